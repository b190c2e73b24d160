package engine

import "errors"

var (
	// ErrIllegalAction 意图和当前阶段或玩家不符；不产生任何副作用
	ErrIllegalAction = errors.New("illegal action")
	// ErrInvariantViolation 提交前检查失败，对局终止
	ErrInvariantViolation = errors.New("invariant violation")
	ErrEngineStopped      = errors.New("engine stopped")
)

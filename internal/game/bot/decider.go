package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"

	"Jaffre/internal/game/table"
)

var ErrNoLegalAction = errors.New("no legal action")

// Decider 机器人决策接口；legal 一定非空，返回值仍会被引擎重新校验
type Decider interface {
	Decide(ctx context.Context, view table.View, legal []table.Action) (table.Action, error)
}

// DeciderFunc 方便测试里直接写函数
type DeciderFunc func(ctx context.Context, view table.View, legal []table.Action) (table.Action, error)

func (f DeciderFunc) Decide(ctx context.Context, view table.View, legal []table.Action) (table.Action, error) {
	return f(ctx, view, legal)
}

// NewDecider 按配置创建：basic / random / lua
func NewDecider(kind, script string, seed int64) (Decider, error) {
	switch kind {
	case "", "basic":
		return Basic{}, nil
	case "random":
		return NewRandom(seed), nil
	case "lua":
		src, err := os.ReadFile(script)
		if err != nil {
			return nil, fmt.Errorf("read bot script: %w", err)
		}
		return NewLua(string(src))
	}
	return nil, fmt.Errorf("unknown bot kind %q", kind)
}

// Basic 能跳过就跳过，否则叫最小分；出牌出最小的合法牌
type Basic struct{}

func (Basic) Decide(ctx context.Context, view table.View, legal []table.Action) (table.Action, error) {
	if len(legal) == 0 {
		return table.Action{}, ErrNoLegalAction
	}
	best := legal[0]
	for _, a := range legal[1:] {
		if lessAction(a, best) {
			best = a
		}
	}
	return best, nil
}

// lessAction skip < 小分 < 大分 < 同分无主；出牌按点数
func lessAction(a, b table.Action) bool {
	if a.Kind != b.Kind {
		return a.Kind == table.ActionSkip
	}
	switch a.Kind {
	case table.ActionBet:
		if a.Amount != b.Amount {
			return a.Amount < b.Amount
		}
		return !a.WithoutTrump && b.WithoutTrump
	case table.ActionPlay:
		return a.Card.Less(*b.Card)
	}
	return false
}

// Random 随机选一个合法动作
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{rnd: rand.New(rand.NewSource(seed))}
}

func (r *Random) Decide(ctx context.Context, view table.View, legal []table.Action) (table.Action, error) {
	if len(legal) == 0 {
		return table.Action{}, ErrNoLegalAction
	}
	r.mu.Lock()
	i := r.rnd.Intn(len(legal))
	r.mu.Unlock()
	return legal[i], nil
}

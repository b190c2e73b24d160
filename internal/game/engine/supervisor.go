package engine

import (
	"time"

	"Jaffre/internal/game/table"
)

// Config 超时相关配置；为 0 的超时表示不启用
type Config struct {
	TurnTimeout             time.Duration
	DisconnectedTurnTimeout time.Duration
	GraceTimeout            time.Duration
	RoundReviewDelay        time.Duration
	BeginnerMode            bool
	// BotTimeout 机器人单次决策的上限
	BotTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		TurnTimeout:             30 * time.Second,
		DisconnectedTurnTimeout: 10 * time.Second,
		GraceTimeout:            60 * time.Second,
		BotTimeout:              2 * time.Second,
	}
}

func (c Config) scale(d time.Duration) time.Duration {
	if c.BeginnerMode {
		return 2 * d
	}
	return d
}

// supervisor 根据已提交的状态维护定时器
// 定时器本身不改状态，只投递带 token 的意图；token 过期的意图会被状态机忽略
type supervisor struct {
	cfg     Config
	clock   Clock
	enqueue func(Intent)

	turnTimer Timer
	turnToken uint64

	reviewTimer Timer
	reviewToken uint64

	grace map[string]graceTimer
}

type graceTimer struct {
	epoch uint64
	timer Timer
}

func newSupervisor(cfg Config, clock Clock, enqueue func(Intent)) *supervisor {
	return &supervisor{cfg: cfg, clock: clock, enqueue: enqueue, grace: map[string]graceTimer{}}
}

func (s *supervisor) turnTimeout(p *table.Player) time.Duration {
	if !p.Active() && s.cfg.DisconnectedTurnTimeout > 0 {
		return s.cfg.DisconnectedTurnTimeout
	}
	return s.cfg.scale(s.cfg.TurnTimeout)
}

// reconcile 每次提交后调用（只在 Engine 协程里）
func (s *supervisor) reconcile(t *table.Table) {
	s.reconcileTurn(t)
	s.reconcileReview(t)
	s.reconcileGrace(t)
}

func (s *supervisor) reconcileTurn(t *table.Table) {
	p := t.CurrentPlayer()
	active := (t.Phase == table.PhaseBetting || t.Phase == table.PhasePlaying) && p != nil && !p.IsBot
	if !active {
		s.stopTurn()
		return
	}
	if s.turnTimer != nil && s.turnToken == t.Turn {
		return
	}
	s.stopTurn()
	d := s.turnTimeout(p)
	if d <= 0 {
		return
	}
	token, id := t.Turn, p.ID
	s.turnToken = token
	s.turnTimer = s.clock.AfterFunc(d, func() {
		s.enqueue(Intent{Kind: IntentTurnTimeout, PlayerID: id, Token: token})
	})
}

func (s *supervisor) stopTurn() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
}

func (s *supervisor) reconcileReview(t *table.Table) {
	if t.Phase != table.PhaseScoring || s.cfg.RoundReviewDelay <= 0 {
		s.stopReview()
		return
	}
	if s.reviewTimer != nil && s.reviewToken == t.Turn {
		return
	}
	s.stopReview()
	token := t.Turn
	s.reviewToken = token
	s.reviewTimer = s.clock.AfterFunc(s.cfg.RoundReviewDelay, func() {
		s.enqueue(Intent{Kind: IntentReviewTimeout, Token: token})
	})
}

func (s *supervisor) stopReview() {
	if s.reviewTimer != nil {
		s.reviewTimer.Stop()
		s.reviewTimer = nil
	}
}

// reconcileGrace 掉线的真人各有一个宽限期定时器，重连或离开后取消
func (s *supervisor) reconcileGrace(t *table.Table) {
	want := map[string]uint64{}
	if t.Phase != table.PhaseTerminated && s.cfg.GraceTimeout > 0 {
		for _, p := range t.Players {
			if p != nil && !p.Active() {
				want[p.ID] = p.Epoch
			}
		}
	}
	for id, g := range s.grace {
		if epoch, ok := want[id]; !ok || epoch != g.epoch {
			g.timer.Stop()
			delete(s.grace, id)
		}
	}
	for id, epoch := range want {
		if _, ok := s.grace[id]; ok {
			continue
		}
		id, epoch := id, epoch
		s.grace[id] = graceTimer{
			epoch: epoch,
			timer: s.clock.AfterFunc(s.cfg.scale(s.cfg.GraceTimeout), func() {
				s.enqueue(Intent{Kind: IntentGraceExpired, PlayerID: id, Token: epoch})
			}),
		}
	}
}

func (s *supervisor) stop() {
	s.stopTurn()
	s.stopReview()
	for id, g := range s.grace {
		g.timer.Stop()
		delete(s.grace, id)
	}
}

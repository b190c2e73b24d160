package engine

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"Jaffre/internal/game/bot"
	"Jaffre/internal/game/dealer"
	"Jaffre/internal/game/table"
	"Jaffre/internal/utils"
	"Jaffre/internal/websocket"
)

// SnapshotSaver 每次提交后保存一份完整快照，用于重启恢复
type SnapshotSaver interface {
	Save(ctx context.Context, t *table.Table) error
}

type request struct {
	in    Intent
	reply chan error
	snap  chan *table.Table
}

// ---------------------
//       ENGINE
// ---------------------

// Engine 一个对局一个协程，所有意图（玩家、定时器、机器人、管理接口）都从 reqs 串行进入
type Engine struct {
	ID      string
	Dealer  *dealer.Dealer
	Hub     websocket.HubInterface
	Clock   Clock
	Decider bot.Decider
	Store   SnapshotSaver

	// OnRematch 四票通过后回调（在独立协程中），由 manager 创建新对局
	OnRematch func(old *table.Table)
	// OnClose 对局结束（终止、所有人离开）后回调
	OnClose func(gameID string)

	cfg      Config
	initial  *table.Table
	m        *Machine
	sup      *supervisor
	log      *log.Logger
	reqs     chan request
	done     chan struct{}
	stopOnce sync.Once
	botTurn  uint64
	rematch  bool
}

func NewEngine(t *table.Table, hub websocket.HubInterface, cfg Config) *Engine {
	return &Engine{
		ID:      t.ID,
		Dealer:  dealer.NewDealer(time.Now().UnixNano()),
		Hub:     hub,
		Clock:   RealClock(),
		Decider: bot.Basic{},
		cfg:     cfg,
		initial: t,
		log:     utils.For(t.ID),
		reqs:    make(chan request, 64), // 防止死锁
		done:    make(chan struct{}),
	}
}

// Start 启动 action loop；字段需要在 Start 之前设置好
func (e *Engine) Start() {
	e.m = NewMachine(e.initial, e.Dealer)
	e.sup = newSupervisor(e.cfg, e.Clock, e.Enqueue)
	go e.loop()
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.done) })
}

func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Submit 同步提交，返回状态机的结果（ErrIllegalAction 等）
func (e *Engine) Submit(ctx context.Context, in Intent) error {
	req := request{in: in, reply: make(chan error, 1)}
	select {
	case e.reqs <- req:
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-e.done:
		select {
		case err := <-req.reply:
			return err
		default:
			return ErrEngineStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue 异步提交（websocket 消息、定时器、机器人）
func (e *Engine) Enqueue(in Intent) {
	select {
	case e.reqs <- request{in: in}:
	case <-e.done:
	}
}

// Snapshot 经过 action loop 取一份深拷贝，保证看到之前排队的意图的结果
func (e *Engine) Snapshot(ctx context.Context) (*table.Table, error) {
	req := request{snap: make(chan *table.Table, 1)}
	select {
	case e.reqs <- req:
	case <-e.done:
		return nil, ErrEngineStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case t := <-req.snap:
		return t, nil
	case <-e.done:
		return nil, ErrEngineStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// 动作循环：串行处理所有意图
func (e *Engine) loop() {
	defer e.sup.stop()
	e.afterCommit()

	for {
		select {
		case req := <-e.reqs:
			if req.snap != nil {
				req.snap <- e.m.Snapshot()
				continue
			}
			err := e.handle(req.in)
			if req.reply != nil {
				req.reply <- err
			}
			if e.m.Table().Phase == table.PhaseTerminated {
				e.finish()
				return
			}
		case <-e.done:
			return
		}
	}
}

func (e *Engine) handle(in Intent) error {
	before := e.m.Table()
	evs, err := e.m.Apply(in)

	switch {
	case errors.Is(err, ErrInvariantViolation):
		e.log.Error("invariant violated, terminating game", "intent", in.String(), "err", err)
		evs = e.m.Terminate("this game could not continue")
		e.publish(before, evs)
		e.persist()
		return err

	case err != nil:
		e.log.Debug("intent rejected", "intent", in.String(), "err", err)
		if e.Hub != nil && in.PlayerID != "" && !in.Trusted {
			e.Hub.SendToPlayer(in.PlayerID, websocket.OutgoingMessage{
				Event: string(EventIllegalAction),
				Data:  IllegalPayload{Reason: err.Error(), Intent: in.Kind},
			})
		}
		return err

	case len(evs) == 0:
		return nil
	}

	e.log.Debug("intent applied", "intent", in.String(), "events", len(evs), "turn", e.m.Table().Turn)
	for _, ev := range evs {
		switch ev.Kind {
		case EventPlayerTimedOut:
			e.log.Info("player timed out", "player", in.PlayerID)
		case EventRematchAccepted:
			e.rematch = true
		case EventGameOver:
			e.log.Info("game over", "payload", ev.Payload)
		}
	}
	e.publish(before, evs)
	e.persist()
	e.afterCommit()
	return nil
}

// publish 广播事件；公共事件发给提交前后所有的真人（刚离开的人也能收到自己的离开事件）
func (e *Engine) publish(before *table.Table, evs []Event) {
	if e.Hub == nil {
		return
	}
	recipients := before.HumanIDs()
	for _, id := range e.m.Table().HumanIDs() {
		if !slices.Contains(recipients, id) {
			recipients = append(recipients, id)
		}
	}
	for _, ev := range evs {
		msg := websocket.OutgoingMessage{Event: string(ev.Kind), Data: ev.Payload}
		if ev.Private() {
			for _, id := range ev.To {
				e.Hub.SendToPlayer(id, msg)
			}
			continue
		}
		e.Hub.BroadcastToPlayers(recipients, msg)
	}
}

func (e *Engine) persist() {
	if e.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.Store.Save(ctx, e.m.Snapshot()); err != nil {
		e.log.Warn("snapshot save failed", "err", err)
	}
}

func (e *Engine) afterCommit() {
	t := e.m.Table()
	e.sup.reconcile(t)
	e.maybeBot(t)
}

// maybeBot 轮到机器人时在独立协程里决策，结果作为 bot_move 意图回到 loop
func (e *Engine) maybeBot(t *table.Table) {
	p := t.CurrentPlayer()
	if p == nil || !p.IsBot || e.botTurn == t.Turn {
		return
	}
	if t.Phase != table.PhaseBetting && t.Phase != table.PhasePlaying {
		return
	}
	e.botTurn = t.Turn
	seat, token, id := t.Current, t.Turn, p.ID
	legal := LegalActions(t, seat)
	view := t.ViewFor(seat)
	view.Legal = legal

	decider := e.Decider
	if decider == nil {
		decider = bot.Basic{}
	}
	budget := e.cfg.BotTimeout
	if budget <= 0 {
		budget = 2 * time.Second
	}
	// 到点还没有结果就投递空的 bot_move（走默认动作），晚到的一方 token 已过期
	fallback := e.Clock.AfterFunc(budget, func() {
		e.Enqueue(Intent{Kind: IntentBotMove, PlayerID: id, Token: token})
	})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), budget)
		defer cancel()
		in := Intent{Kind: IntentBotMove, PlayerID: id, Token: token}
		a, err := decider.Decide(ctx, view, legal)
		if err != nil {
			e.log.Warn("bot decision failed, using default", "player", id, "err", err)
		} else {
			in.Action = &a
		}
		fallback.Stop()
		e.Enqueue(in)
	}()
}

func (e *Engine) finish() {
	snap := e.m.Snapshot()
	e.Stop()
	if e.rematch && e.OnRematch != nil {
		go e.OnRematch(snap)
		return
	}
	if e.OnClose != nil {
		go e.OnClose(e.ID)
	}
}

package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"Jaffre/internal/game/bot"
	"Jaffre/internal/game/engine"
	"Jaffre/internal/game/table"
	"Jaffre/internal/matchmaker"
	"Jaffre/internal/storage"
	"Jaffre/internal/utils"
	"Jaffre/internal/websocket"
)

var (
	ErrGameNotFound  = errors.New("game not found")
	ErrGameExists    = errors.New("game already exists")
	ErrAlreadyInGame = errors.New("player already in a game")

	// ErrReconnectionMismatch 连接的身份在任何对局里都没有座位
	ErrReconnectionMismatch = errors.New("reconnection mismatch")
)

// GameManager 管理所有对局
type GameManager struct {
	mu           sync.RWMutex
	engines      map[string]*engine.Engine // gameID → engine
	playerToGame map[string]string         // player id → gameID
	hub          websocket.HubInterface

	store   storage.SnapshotStore
	cfg     engine.Config
	rules   table.Rules
	decider bot.Decider
	clock   engine.Clock
	log     *log.Logger
}

type Option func(*GameManager)

func WithStore(s storage.SnapshotStore) Option { return func(m *GameManager) { m.store = s } }
func WithConfig(c engine.Config) Option { return func(m *GameManager) { m.cfg = c } }
func WithRules(r table.Rules) Option { return func(m *GameManager) { m.rules = r } }
func WithDecider(d bot.Decider) Option { return func(m *GameManager) { m.decider = d } }

// WithClock 测试里注入手动时钟
func WithClock(c engine.Clock) Option { return func(m *GameManager) { m.clock = c } }

func NewGameManager(hub websocket.HubInterface, opts ...Option) *GameManager {
	m := &GameManager{
		engines:      make(map[string]*engine.Engine),
		playerToGame: make(map[string]string),
		hub:          hub,
		cfg:          engine.DefaultConfig(),
		rules:        table.DefaultRules(),
		decider:      bot.Basic{},
		log:          utils.Log.With("component", "manager"),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// spawn 创建并启动 engine，调用方持有写锁
func (m *GameManager) spawn(t *table.Table) *engine.Engine {
	eng := engine.NewEngine(t, m.hub, m.cfg)
	eng.Decider = m.decider
	if m.clock != nil {
		eng.Clock = m.clock
	}
	if m.store != nil {
		eng.Store = m.store
	}
	eng.OnRematch = m.onRematch
	eng.OnClose = m.onClose
	m.engines[t.ID] = eng
	eng.Start()
	return eng
}

func (m *GameManager) lookup(gameID string) (*engine.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	eng, ok := m.engines[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return eng, nil
}

// GameOf 玩家当前所在的对局
func (m *GameManager) GameOf(playerID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.playerToGame[playerID]
	return id, ok
}

func (m *GameManager) Games() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.engines))
	for id := range m.engines {
		ids = append(ids, id)
	}
	return ids
}

// ---------------------------------------------------------
// 创建 / 加入 / 离开
// ---------------------------------------------------------

// CreateGame 新建一个空桌（选队阶段）；rules 为 nil 时用默认规则
func (m *GameManager) CreateGame(rules *table.Rules) string {
	r := m.rules
	if rules != nil {
		r = *rules
	}
	id := uuid.NewString()
	m.mu.Lock()
	m.spawn(table.New(id, r))
	m.mu.Unlock()
	m.log.Info("game created", "game", id)
	return id
}

// reserve 先占住 player → game 映射，防止同一个人同时进两桌
func (m *GameManager) reserve(playerID, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.playerToGame[playerID]; ok {
		if cur == gameID {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrAlreadyInGame, cur)
	}
	if _, ok := m.engines[gameID]; !ok {
		return ErrGameNotFound
	}
	m.playerToGame[playerID] = gameID
	return nil
}

func (m *GameManager) release(playerID, gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playerToGame[playerID] == gameID {
		delete(m.playerToGame, playerID)
	}
}

// InGame 玩家是否还在某局里占着真人座位；映射已经失效（被移出选队、座位转给机器人）时顺手清掉
func (m *GameManager) InGame(ctx context.Context, playerID string) bool {
	gameID, ok := m.GameOf(playerID)
	if !ok {
		return false
	}
	snap, err := m.Snapshot(ctx, gameID)
	if errors.Is(err, ErrGameNotFound) || errors.Is(err, engine.ErrEngineStopped) {
		m.release(playerID, gameID)
		return false
	}
	if err != nil {
		return true
	}
	if p, _ := snap.PlayerByID(playerID); p == nil || p.IsBot {
		m.release(playerID, gameID)
		return false
	}
	return true
}

func (m *GameManager) JoinGame(ctx context.Context, gameID, playerID, name string, team int) error {
	if err := m.reserve(playerID, gameID); err != nil {
		if !errors.Is(err, ErrAlreadyInGame) || m.InGame(ctx, playerID) {
			return err
		}
		if err := m.reserve(playerID, gameID); err != nil {
			return err
		}
	}
	eng, err := m.lookup(gameID)
	if err == nil {
		err = eng.Submit(ctx, engine.Intent{Kind: engine.IntentJoin, PlayerID: playerID, Name: name, Team: team})
	}
	if err != nil {
		m.release(playerID, gameID)
		return err
	}
	return nil
}

func (m *GameManager) LeaveGame(ctx context.Context, playerID string) error {
	gameID, ok := m.GameOf(playerID)
	if !ok {
		return ErrReconnectionMismatch
	}
	eng, err := m.lookup(gameID)
	if err != nil {
		m.release(playerID, gameID)
		return err
	}
	if err := eng.Submit(ctx, engine.Intent{Kind: engine.IntentLeave, PlayerID: playerID}); err != nil && !errors.Is(err, engine.ErrEngineStopped) {
		return err
	}
	m.release(playerID, gameID)
	return nil
}

// Submit 以玩家身份提交（HTTP 接口用），身份必须在该局有座位
func (m *GameManager) Submit(ctx context.Context, playerID string, in engine.Intent) error {
	gameID, ok := m.GameOf(playerID)
	if !ok {
		return ErrReconnectionMismatch
	}
	eng, err := m.lookup(gameID)
	if err != nil {
		return err
	}
	in.PlayerID = playerID
	in.Trusted = false
	return eng.Submit(ctx, in)
}

// Admin 可信调用方（管理接口），可以强制改分、改阶段
func (m *GameManager) Admin(ctx context.Context, gameID string, in engine.Intent) error {
	eng, err := m.lookup(gameID)
	if err != nil {
		return err
	}
	in.Trusted = true
	return eng.Submit(ctx, in)
}

func (m *GameManager) Snapshot(ctx context.Context, gameID string) (*table.Table, error) {
	eng, err := m.lookup(gameID)
	if err != nil {
		return nil, err
	}
	return eng.Snapshot(ctx)
}

// View 某个玩家看到的局面；不在该局的人得到旁观视角
func (m *GameManager) View(ctx context.Context, gameID, playerID string) (table.View, error) {
	snap, err := m.Snapshot(ctx, gameID)
	if err != nil {
		return table.View{}, err
	}
	_, seat := snap.PlayerByID(playerID)
	v := snap.ViewFor(seat)
	if seat >= 0 {
		v.Legal = engine.LegalActions(snap, seat)
	}
	return v, nil
}

// RemoveGame 直接停掉一个对局（管理接口）
func (m *GameManager) RemoveGame(ctx context.Context, gameID string) error {
	m.mu.Lock()
	eng, ok := m.engines[gameID]
	if !ok {
		m.mu.Unlock()
		return ErrGameNotFound
	}
	m.dropLocked(gameID)
	m.mu.Unlock()

	eng.Stop()
	if m.store != nil {
		if err := m.store.Delete(ctx, gameID); err != nil {
			m.log.Warn("snapshot delete failed", "game", gameID, "err", err)
		}
	}
	m.log.Info("game removed", "game", gameID)
	return nil
}

// dropLocked 删除 engine 和指向它的玩家映射
func (m *GameManager) dropLocked(gameID string) {
	delete(m.engines, gameID)
	for p, g := range m.playerToGame {
		if g == gameID {
			delete(m.playerToGame, p)
		}
	}
}

// ---------------------------------------------------------
// engine 回调
// ---------------------------------------------------------

func (m *GameManager) onClose(gameID string) {
	m.mu.Lock()
	m.dropLocked(gameID)
	m.mu.Unlock()
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.store.Delete(ctx, gameID); err != nil {
			m.log.Warn("snapshot delete failed", "game", gameID, "err", err)
		}
	}
	m.log.Info("game closed", "game", gameID)
}

// ---------------------------------------------------------
// 匹配成桌
// ---------------------------------------------------------

// StartRoom 匹配到 4 人后直接开局：按顺序入座，队伍交替
func (m *GameManager) StartRoom(r *matchmaker.Room) error {
	if len(r.Players) != table.Seats {
		return fmt.Errorf("room %s has %d players, need %d", r.ID, len(r.Players), table.Seats)
	}

	t := table.New(r.ID, m.rules)
	t.CreatedAt = r.CreatedAt
	for i, id := range r.Players {
		t.Players[i] = &table.Player{ID: id, Name: r.NameOf(id), Team: i%2 + 1, Seat: i, Conn: table.Connected}
	}

	m.mu.Lock()
	if _, ok := m.engines[r.ID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGameExists, r.ID)
	}
	for _, id := range r.Players {
		if cur, ok := m.playerToGame[id]; ok {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s is in %s", ErrAlreadyInGame, id, cur)
		}
	}
	eng := m.spawn(t)
	// ⭐ 建立玩家 → 对局映射
	for _, id := range r.Players {
		m.playerToGame[id] = r.ID
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eng.Submit(ctx, engine.Intent{Kind: engine.IntentStartGame, Trusted: true}); err != nil {
		return fmt.Errorf("start room %s: %w", r.ID, err)
	}
	m.log.Info("room started", "game", r.ID, "players", r.Players)
	return nil
}

// ---------------------------------------------------------
// 重启恢复
// ---------------------------------------------------------

// Restore 从快照重建所有未结束的对局；在线的真人标记为 reconnecting，按掉线处理（宽限期、掉线超时），等客户端重新连接
func (m *GameManager) Restore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	ids, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		t, err := m.store.Load(ctx, id)
		if err != nil {
			m.log.Warn("snapshot load failed", "game", id, "err", err)
			continue
		}
		if t.Phase == table.PhaseTerminated {
			continue
		}
		if err := engine.CheckInvariants(t); err != nil {
			m.log.Error("snapshot is inconsistent, dropping", "game", id, "err", err)
			_ = m.store.Delete(ctx, id)
			continue
		}

		for _, p := range t.Players {
			if p != nil && !p.IsBot && p.Conn == table.Connected {
				p.Conn = table.Reconnecting
			}
		}

		m.mu.Lock()
		if _, ok := m.engines[id]; ok {
			m.mu.Unlock()
			continue
		}
		m.spawn(t)
		for _, p := range t.HumanIDs() {
			m.playerToGame[p] = id
		}
		m.mu.Unlock()
		n++
	}
	m.log.Info("games restored", "count", n)
	return n, nil
}

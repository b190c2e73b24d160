package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Jaffre/internal/game/engine"
	"Jaffre/internal/websocket"
)

// 只在 websocket 上出现、不进状态机的事件
const (
	EventCreateGame           = "create_game"
	EventError                = "error"
	EventReconnectionMismatch = "reconnection_mismatch"
)

// clientIntents 客户端可以直接发送的意图；定时器、机器人和管理类意图只能由服务端产生
var clientIntents = map[engine.IntentKind]bool{
	engine.IntentJoin:         true,
	engine.IntentLeave:        true,
	engine.IntentAddBot:       true,
	engine.IntentSelectTeam:   true,
	engine.IntentSwapPosition: true,
	engine.IntentStartGame:    true,
	engine.IntentPlaceBet:     true,
	engine.IntentSkipBet:      true,
	engine.IntentPlayCard:     true,
	engine.IntentAcknowledge:  true,
	engine.IntentVoteRematch:  true,
	engine.IntentResync:       true,
}

// lobbyRequest create_game / join_game 的 data
type lobbyRequest struct {
	GameID string `json:"gameId"`
	Name   string `json:"name"`
	Team   int    `json:"team"`
}

// HandlePlayerMessage 统一入口（来自 Hub.OnIncoming，在 Hub 协程里调用，不能阻塞）
func (m *GameManager) HandlePlayerMessage(msg websocket.IncomingMessage) {
	switch msg.Event {
	case websocket.EventConnected:
		m.connection(msg.From, engine.IntentReconnected)
		return
	case websocket.EventDisconnected:
		m.connection(msg.From, engine.IntentDisconnected)
		return
	case EventCreateGame, string(engine.IntentJoin):
		var req lobbyRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				m.reject(msg.From, msg.Event, err)
				return
			}
		}
		go m.lobby(msg.From, msg.Event, req)
		return
	case string(engine.IntentLeave):
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.LeaveGame(ctx, msg.From); err != nil && !errors.Is(err, engine.ErrIllegalAction) {
				m.reject(msg.From, msg.Event, err)
			}
		}()
		return
	}

	kind := engine.IntentKind(msg.Event)
	if !clientIntents[kind] {
		m.reject(msg.From, msg.Event, errors.New("unknown event"))
		return
	}

	gameID, ok := m.GameOf(msg.From)
	if !ok {
		m.reject(msg.From, msg.Event, ErrReconnectionMismatch)
		return
	}
	eng, err := m.lookup(gameID)
	if err != nil {
		m.reject(msg.From, msg.Event, err)
		return
	}

	var in engine.Intent
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &in); err != nil {
			m.reject(msg.From, msg.Event, err)
			return
		}
	}
	// 身份和类型只信服务端
	in.Kind = kind
	in.PlayerID = msg.From
	in.Token = 0
	in.Trusted = false
	eng.Enqueue(in)
}

// connection 只有在某局有座位的身份才会变成重连/掉线意图
func (m *GameManager) connection(playerID string, kind engine.IntentKind) {
	gameID, ok := m.GameOf(playerID)
	if !ok {
		return
	}
	eng, err := m.lookup(gameID)
	if err != nil {
		return
	}
	eng.Enqueue(engine.Intent{Kind: kind, PlayerID: playerID})
}

func (m *GameManager) lobby(playerID, event string, req lobbyRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	gameID := req.GameID
	if event == EventCreateGame {
		if m.InGame(ctx, playerID) {
			cur, _ := m.GameOf(playerID)
			m.reject(playerID, event, fmt.Errorf("%w: %s", ErrAlreadyInGame, cur))
			return
		}
		gameID = m.CreateGame(nil)
	}
	if err := m.JoinGame(ctx, gameID, playerID, req.Name, req.Team); err != nil {
		// 状态机的拒绝已经通过 illegal_action 发给本人
		if !errors.Is(err, engine.ErrIllegalAction) {
			m.reject(playerID, event, err)
		}
		if event == EventCreateGame {
			_ = m.RemoveGame(ctx, gameID)
		}
	}
}

func (m *GameManager) reject(playerID, event string, err error) {
	m.log.Debug("message rejected", "player", playerID, "event", event, "err", err)
	if m.hub == nil {
		return
	}
	name := EventError
	if errors.Is(err, ErrReconnectionMismatch) {
		name = EventReconnectionMismatch
	}
	m.hub.SendToPlayer(playerID, websocket.OutgoingMessage{
		Event: name,
		Data:  map[string]any{"event": event, "error": err.Error()},
	})
}

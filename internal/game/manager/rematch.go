package manager

import (
	"context"
	"time"

	"github.com/google/uuid"

	"Jaffre/internal/game/engine"
	"Jaffre/internal/game/table"
	"Jaffre/internal/websocket"
)

// EventRematchCreated 通知客户端新对局的 ID
const EventRematchCreated = "rematch_created"

// onRematch 四票通过后由旧 engine 回调：同样的座位和队伍，新 ID，直接开局
func (m *GameManager) onRematch(old *table.Table) {
	t := table.New(uuid.NewString(), old.Rules)
	for i, p := range old.Players {
		if p == nil {
			continue
		}
		t.Players[i] = &table.Player{
			ID:    p.ID,
			Name:  p.Name,
			Team:  p.Team,
			Seat:  i,
			Conn:  p.Conn,
			IsBot: p.IsBot,
		}
	}

	m.mu.Lock()
	delete(m.engines, old.ID)
	eng := m.spawn(t)
	for _, id := range t.HumanIDs() {
		m.playerToGame[id] = t.ID
	}
	m.mu.Unlock()

	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := m.store.Delete(ctx, old.ID); err != nil {
			m.log.Warn("snapshot delete failed", "game", old.ID, "err", err)
		}
		cancel()
	}

	if m.hub != nil {
		m.hub.BroadcastToPlayers(t.HumanIDs(), websocket.OutgoingMessage{
			Event: EventRematchCreated,
			Data:  map[string]any{"gameId": t.ID, "previousGameId": old.ID},
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eng.Submit(ctx, engine.Intent{Kind: engine.IntentStartGame, Trusted: true}); err != nil {
		m.log.Error("rematch start failed", "game", t.ID, "err", err)
		return
	}
	m.log.Info("rematch started", "game", t.ID, "previous", old.ID)
}

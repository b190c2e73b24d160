package matchmaker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"Jaffre/internal/utils"
	"Jaffre/internal/websocket"
)

var ErrAlreadyPlaying = errors.New("player already in a game")

// EventMatched 成桌后推送给桌内玩家
const EventMatched = "matched"

type Service struct {
	repo      Repo
	playerTTL time.Duration // 用于防止遗留队列
	hub       HubBroadcaster

	// InGame 已经有座位的玩家不能再匹配（由 GameManager 提供）
	InGame      func(address string) bool
	OnRoomReady func(*Room) // ✅ 成桌时调用的回调函数
}

type HubBroadcaster interface {
	BroadcastToPlayers(addrs []string, msg websocket.OutgoingMessage)
}

func NewService(repo Repo, playerTTL time.Duration, hub HubBroadcaster) *Service {
	return &Service{repo: repo, playerTTL: playerTTL, hub: hub}
}

// Join 入队并尝试立即成桌（随机 4 人）。若可成桌，返回房间；否则返回排队中。
func (s *Service) Join(ctx context.Context, address, name string, req JoinRequest) (*Room, bool, error) {
	// ❶ 防止重复匹配：玩家已经在对局中
	if s.InGame != nil && s.InGame(address) {
		return nil, false, ErrAlreadyPlaying
	}

	pool := strings.TrimSpace(req.Pool)
	if pool == "" {
		pool = DefaultPool
	}
	if req.Name != "" {
		name = req.Name
	}

	t := Ticket{Address: address, Name: name, Pool: pool}
	if err := s.repo.Enqueue(ctx, t, s.playerTTL); err != nil {
		return nil, false, err
	}
	// 判断人数是否满足，满足则原子随机弹出 4 人（包含刚入队者）
	cnt, err := s.repo.Count(ctx, pool)
	if err != nil {
		return nil, false, err
	}
	if int(cnt) < TableSize {
		return nil, true, nil // queued
	}
	tickets, err := s.repo.PopN(ctx, pool, TableSize)
	if err != nil {
		return nil, false, err
	}
	if len(tickets) < TableSize {
		// 并发竞争或有人过期导致人数不足：回退为排队状态
		return nil, true, nil
	}

	// ❷ 排队期间已经进了别的对局的人丢掉票，其余人放回队列
	ready := tickets[:0]
	for _, tk := range tickets {
		if s.InGame != nil && s.InGame(tk.Address) {
			utils.Log.Info("drop ticket, player already in a game", "player", tk.Address, "pool", pool)
			continue
		}
		ready = append(ready, tk)
	}
	if len(ready) < TableSize {
		for _, tk := range ready {
			if err := s.repo.Enqueue(ctx, tk, s.playerTTL); err != nil {
				utils.Log.Warn("requeue failed", "player", tk.Address, "err", err)
			}
		}
		return nil, true, nil
	}
	tickets = ready

	room := &Room{
		ID:        uuid.NewString(),
		Pool:      pool,
		TableSize: TableSize,
		Players:   make([]string, 0, TableSize),
		Names:     make(map[string]string, TableSize),
		CreatedAt: time.Now(),
	}
	for _, tk := range tickets {
		room.Players = append(room.Players, tk.Address)
		room.Names[tk.Address] = tk.Name
	}

	if err := s.repo.SaveRoom(ctx, room, s.playerTTL); err != nil {
		utils.Log.Warn("save room failed", "room", room.ID, "err", err)
	}

	//通知所有桌内玩家（通过 WebSocket Hub）
	if s.hub != nil {
		s.hub.BroadcastToPlayers(room.Players, websocket.OutgoingMessage{
			Event: EventMatched,
			Data: map[string]any{
				"roomId":  room.ID,
				"pool":    room.Pool,
				"players": room.Players,
				"names":   room.Names,
			},
		})
	}
	utils.Log.Info("room matched", "room", room.ID, "pool", pool, "players", room.Players)

	// ✅ 启动游戏逻辑
	if s.OnRoomReady != nil {
		go s.OnRoomReady(room)
	}

	return room, false, nil
}

func (s *Service) Cancel(ctx context.Context, address string) error {
	return s.repo.Remove(ctx, address)
}

func (s *Service) Room(ctx context.Context, id string) (*Room, error) {
	return s.repo.GetRoom(ctx, id)
}

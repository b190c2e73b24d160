package websocket

import (
	"sync"

	"Jaffre/internal/utils"
)

type HubInterface interface {
	BroadcastToPlayers(addrs []string, msg OutgoingMessage)
	ClientByAddress(addr string) (*Client, bool)
	SendToPlayer(addr string, msg OutgoingMessage)
	Close()
}

type Hub struct {
	clients    map[string]*Client // address -> client
	register   chan *Client
	unregister chan *Client
	incoming   chan IncomingMessage
	OnIncoming func(IncomingMessage)
	quit       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan IncomingMessage, 256),
		quit:       make(chan struct{}),
	}
}

// Run 只负责连接的增删和上行消息的分发；下行消息直接写各自的 Send 队列
func (h *Hub) Run() {
	utils.Log.Info("hub started")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[c.Address]; ok && old != c {
				// 同一身份重复连接：踢掉旧连接
				close(old.Send)
			}
			h.clients[c.Address] = c
			n := len(h.clients)
			h.mu.Unlock()
			utils.Log.Debug("hub register", "player", c.Address, "clients", n)
			h.dispatch(IncomingMessage{From: c.Address, Event: EventConnected})

		case c := <-h.unregister:
			h.mu.Lock()
			cur, ok := h.clients[c.Address]
			if ok && cur == c {
				delete(h.clients, c.Address)
				close(c.Send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			if ok && cur == c {
				utils.Log.Debug("hub unregister", "player", c.Address, "clients", n)
				h.dispatch(IncomingMessage{From: c.Address, Event: EventDisconnected})
			}

		case req := <-h.incoming:
			// 玩家消息统一转发给游戏层（GameManager）
			h.dispatch(req)

		case <-h.quit:
			h.mu.Lock()
			for addr, c := range h.clients {
				close(c.Send)
				delete(h.clients, addr)
			}
			h.mu.Unlock()
			utils.Log.Info("hub stopped")
			return
		}
	}
}

func (h *Hub) dispatch(msg IncomingMessage) {
	if h.OnIncoming != nil {
		h.OnIncoming(msg)
	}
}

// Broadcast to multiple players
func (h *Hub) BroadcastToPlayers(addrs []string, msg OutgoingMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, addr := range addrs {
		h.deliver(addr, msg)
	}
}

// Send to a single player (safe concurrent)
func (h *Hub) SendToPlayer(addr string, msg OutgoingMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(addr, msg)
}

// deliver 调用方持有读锁；队列满时丢弃，客户端可以用 resync 找回状态
func (h *Hub) deliver(addr string, msg OutgoingMessage) {
	client, ok := h.clients[addr]
	if !ok {
		return
	}
	select {
	case client.Send <- msg:
	default:
		utils.Log.Warn("send queue full, dropping message", "player", addr, "event", msg.Event)
	}
}

// Lookup for a player client by address
func (h *Hub) ClientByAddress(addr string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[addr]
	return c, ok
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) push(msg IncomingMessage) {
	select {
	case h.incoming <- msg:
	case <-h.quit:
	}
}

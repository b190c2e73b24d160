package websocket

import "encoding/json"

type OutgoingMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// IncomingMessage Data 原样保留，由 manager 按 Event 解码
type IncomingMessage struct {
	From  string          `json:"from"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// 连接状态变化也作为 IncomingMessage 交给上层，和玩家消息保持同一顺序
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
)

package matchmaker

import (
	"time"

	"Jaffre/internal/game/table"
)

// TableSize 每桌固定 4 人（两队各 2 人）
const TableSize = table.Seats

const DefaultPool = "quick"

// JoinRequest 前端提交的匹配请求；身份来自 JWT
type JoinRequest struct {
	Pool string `json:"pool"` // 例如 "quick"、"beginner"，为空时用 quick
	Name string `json:"name"`
}

// JoinResponse 返回是否已成桌；若已成桌则给出房间信息
type JoinResponse struct {
	Queued  bool     `json:"queued"`
	RoomID  string   `json:"roomId,omitempty"`
	Players []string `json:"players,omitempty"`
	Pool    string   `json:"pool"`
}

// Ticket 排队中的一个玩家
type Ticket struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Pool    string `json:"pool"`
}

// Room 组桌结果；Players 的顺序就是座位顺序
type Room struct {
	ID        string            `json:"id"`
	Pool      string            `json:"pool"`
	TableSize int               `json:"tableSize"`
	Players   []string          `json:"players"`
	Names     map[string]string `json:"names,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func (r *Room) NameOf(addr string) string {
	if n := r.Names[addr]; n != "" {
		return n
	}
	return addr
}

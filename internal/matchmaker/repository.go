package matchmaker

import (
	"context"
	"errors"
	"time"
)

var ErrRoomNotFound = errors.New("room not found")

// Repo 定义对匹配池的抽象操作
type Repo interface {
	// Enqueue 将玩家加入指定池；ttl 过期后不再参与配桌
	Enqueue(ctx context.Context, t Ticket, ttl time.Duration) error
	// PopN 当池内达到 N 个有效玩家时，随机弹出 N 人（原子）；不足时返回空
	PopN(ctx context.Context, pool string, n int) ([]Ticket, error)
	// Remove 将玩家从当前池移除（用于取消）
	Remove(ctx context.Context, address string) error
	// Count 返回池内人数（可能包含已过期的）
	Count(ctx context.Context, pool string) (int64, error)

	SaveRoom(ctx context.Context, room *Room, ttl time.Duration) error
	GetRoom(ctx context.Context, id string) (*Room, error)
}

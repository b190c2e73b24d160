package storage

import (
	"context"
	"errors"

	"Jaffre/internal/game/table"
)

var ErrNotFound = errors.New("snapshot not found")

// SnapshotStore 对局快照；每次提交后整份覆盖，重启时用来恢复
type SnapshotStore interface {
	Save(ctx context.Context, t *table.Table) error
	Load(ctx context.Context, id string) (*table.Table, error)
	Delete(ctx context.Context, id string) error
	// List 所有保存过的对局 ID（无序）
	List(ctx context.Context) ([]string, error)
}

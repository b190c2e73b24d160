package storage

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"Jaffre/internal/game/table"
)

var DB *sql.DB

func InitPostgres(dsn string) error {
	var err error
	DB, err = sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	return DB.Ping()
}

const schema = `
CREATE TABLE IF NOT EXISTS game_snapshots (
	id         TEXT PRIMARY KEY,
	phase      TEXT NOT NULL,
	snapshot   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore 持久化快照，服务重启后仍可恢复
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, t *table.Table) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO game_snapshots (id, phase, snapshot, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET phase = EXCLUDED.phase, snapshot = EXCLUDED.snapshot, updated_at = now()`,
		t.ID, string(t.Phase), data)
	return err
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*table.Table, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM game_snapshots WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return table.Unmarshal(data)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM game_snapshots WHERE id = $1`, id)
	return err
}

// List 只返回还没结束的对局
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM game_snapshots WHERE phase <> $1`, string(table.PhaseTerminated))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

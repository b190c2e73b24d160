package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"Jaffre/internal/game/table"
)

var Rdb *redis.Client
var Ctx = context.Background()

func InitRedis(addr, password string, db int) error {
	Rdb = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return Rdb.Ping(Ctx).Err()
}

// key 约定：
//
//	kv : jaffre:game:{id}   -> 快照 JSON（带 TTL）
//	set: jaffre:games       -> 所有对局 ID
const gamesKey = "jaffre:games"

func gameKey(id string) string {
	return fmt.Sprintf("jaffre:game:%s", id)
}

// RedisStore 热数据；ttl 为 0 表示不过期
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, t *table.Table) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}
	p := s.rdb.TxPipeline()
	p.Set(ctx, gameKey(t.ID), data, s.ttl)
	p.SAdd(ctx, gamesKey, t.ID)
	_, err = p.Exec(ctx)
	return err
}

func (s *RedisStore) Load(ctx context.Context, id string) (*table.Table, error) {
	data, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return table.Unmarshal(data)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	p := s.rdb.TxPipeline()
	p.Del(ctx, gameKey(id))
	p.SRem(ctx, gamesKey, id)
	_, err := p.Exec(ctx)
	return err
}

// List 顺便清理已经过期的 ID
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, gamesKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := s.rdb.Exists(ctx, gameKey(id)).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			_ = s.rdb.SRem(ctx, gamesKey, id).Err()
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

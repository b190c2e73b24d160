package matchmaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) Repo {
	return &redisRepo{rdb: rdb}
}

// key 约定：
//
//	set: jaffre:mm:pool:{pool}        -> Set(address,...)
//	kv : jaffre:mm:player:{address}   -> Ticket JSON，带 TTL；过期的玩家在配桌时被丢弃
//	kv : jaffre:mm:room:{id}          -> Room JSON
const playerPrefix = "jaffre:mm:player:"

func poolKey(pool string) string {
	return fmt.Sprintf("jaffre:mm:pool:%s", pool)
}
func playerKey(addr string) string {
	return playerPrefix + addr
}
func roomKey(id string) string {
	return fmt.Sprintf("jaffre:mm:room:%s", id)
}

func (r *redisRepo) Enqueue(ctx context.Context, t Ticket, ttl time.Duration) error {
	// 同一个人只能在一个池里
	if err := r.Remove(ctx, t.Address); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	p := r.rdb.TxPipeline()
	p.SAdd(ctx, poolKey(t.Pool), t.Address)
	p.Set(ctx, playerKey(t.Address), data, ttl)
	_, err = p.Exec(ctx)
	return err
}

// popScript 随机弹出成员，跳过 player key 已过期的；凑不够 n 人时全部放回
// KEYS[1] = poolKey, ARGV[1] = n, ARGV[2] = player key 前缀
var popScript = redis.NewScript(`
local n = tonumber(ARGV[1])
local members = {}
local tickets = {}
while #members < n do
    local m = redis.call("SPOP", KEYS[1])
    if not m then
        break
    end
    local v = redis.call("GET", ARGV[2] .. m)
    if v then
        table.insert(members, m)
        table.insert(tickets, v)
    end
end
if #members < n then
    for _, m in ipairs(members) do
        redis.call("SADD", KEYS[1], m)
    end
    return {}
end
for _, m in ipairs(members) do
    redis.call("DEL", ARGV[2] .. m)
end
return tickets
`)

func (r *redisRepo) PopN(ctx context.Context, pool string, n int) ([]Ticket, error) {
	res, err := popScript.Run(ctx, r.rdb, []string{poolKey(pool)}, n, playerPrefix).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	out := make([]Ticket, 0, len(res))
	for _, raw := range res {
		var t Ticket
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode ticket: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *redisRepo) Remove(ctx context.Context, address string) error {
	// 读取 player:... kv
	raw, err := r.rdb.Get(ctx, playerKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	var t Ticket
	if err := json.Unmarshal([]byte(raw), &t); err != nil || t.Pool == "" {
		// 格式不对，仍删除 playerKey 并返回
		return r.rdb.Del(ctx, playerKey(address)).Err()
	}

	poolK := poolKey(t.Pool)
	playerK := playerKey(address)

	// Lua 脚本：删除 playerKey、从集合中移除成员；若集合空则删除集合
	// KEYS[1] = playerKey, KEYS[2] = poolKey, ARGV[1] = address
	script := `
        redis.call("DEL", KEYS[1])
        redis.call("SREM", KEYS[2], ARGV[1])
        if redis.call("SCARD", KEYS[2]) == 0 then
            redis.call("DEL", KEYS[2])
        end
        return 1
    `
	return r.rdb.Eval(ctx, script, []string{playerK, poolK}, address).Err()
}

func (r *redisRepo) Count(ctx context.Context, pool string) (int64, error) {
	return r.rdb.SCard(ctx, poolKey(pool)).Result()
}

func (r *redisRepo) SaveRoom(ctx context.Context, room *Room, ttl time.Duration) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, roomKey(room.ID), data, ttl).Err()
}

func (r *redisRepo) GetRoom(ctx context.Context, id string) (*Room, error) {
	data, err := r.rdb.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	var room Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

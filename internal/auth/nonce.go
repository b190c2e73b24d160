package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// NonceStore 一次性 nonce，防止登录请求被重放
type NonceStore interface {
	Put(ctx context.Context, nonce string, ttl time.Duration) error
	// Take 取出并删除；不存在或已过期返回 false
	Take(ctx context.Context, nonce string) (bool, error)
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ---------------------
//     MEMORY STORE
// ---------------------

type MemoryNonces struct {
	mu     sync.Mutex
	nonces map[string]time.Time // nonce → 过期时间
	now    func() time.Time
}

func NewMemoryNonces() *MemoryNonces {
	return &MemoryNonces{nonces: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryNonces) Put(_ context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	// 顺手清理过期的
	for n, exp := range s.nonces {
		if now.After(exp) {
			delete(s.nonces, n)
		}
	}
	s.nonces[nonce] = now.Add(ttl)
	return nil
}

func (s *MemoryNonces) Take(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.nonces[nonce]
	if !ok {
		return false, nil
	}
	delete(s.nonces, nonce) // 只允许一次
	return !s.now().After(exp), nil
}

// ---------------------
//     REDIS STORE
// ---------------------

type RedisNonces struct {
	rdb *redis.Client
}

func NewRedisNonces(rdb *redis.Client) *RedisNonces {
	return &RedisNonces{rdb: rdb}
}

func nonceKey(nonce string) string { return "jaffre:nonce:" + nonce }

func (s *RedisNonces) Put(ctx context.Context, nonce string, ttl time.Duration) error {
	return s.rdb.Set(ctx, nonceKey(nonce), 1, ttl).Err()
}

func (s *RedisNonces) Take(ctx context.Context, nonce string) (bool, error) {
	err := s.rdb.GetDel(ctx, nonceKey(nonce)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ---------------------
//       HANDLERS
// ---------------------

func (h *Handler) issueNonce(c *gin.Context) {
	nonce, err := generateNonce()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate nonce"})
		return
	}

	// 防止重放
	if err := h.nonces.Put(c.Request.Context(), nonce, h.nonceTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

func (h *Handler) PostNonce(c *gin.Context) { h.issueNonce(c) }

func (h *Handler) GetNonce(c *gin.Context) { h.issueNonce(c) }

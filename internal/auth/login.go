package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"Jaffre/internal/utils"
)

type LoginRequest struct {
	Name  string `json:"name" binding:"required"`
	Nonce string `json:"nonce" binding:"required"`
}

// RefreshRequest 拿旧 token 换新 token，身份不变（断线重连时用同一个 sub）
type RefreshRequest struct {
	Token string `json:"token" binding:"required"`
}

const maxNameLen = 24

type Handler struct {
	nonces   NonceStore
	secret   []byte
	ttl      time.Duration
	nonceTTL time.Duration
}

// 工厂方法：创建 handler
func NewHandler(nonces NonceStore, secret []byte, ttl time.Duration) *Handler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handler{
		nonces:   nonces,
		secret:   secret,
		ttl:      ttl,
		nonceTTL: 5 * time.Minute,
	}
}

// Login 访客登录：消费 nonce，签发 guest-<uuid> 身份
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len([]rune(name)) > maxNameLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}

	// 检查 nonce 是否有效
	ok, err := h.nonces.Take(c.Request.Context(), req.Nonce)
	if err != nil {
		utils.Log.Error("nonce lookup failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "nonce lookup failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nonce"})
		return
	}

	sub := "guest-" + uuid.NewString()
	jwtStr, err := IssueToken(h.secret, sub, name, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt generation failed"})
		return
	}
	utils.Log.Info("guest login", "player", sub, "name", name)

	c.JSON(http.StatusOK, gin.H{
		"jwt":     jwtStr,
		"address": sub,
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	claims, err := ParseToken(h.secret, req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	jwtStr, err := IssueToken(h.secret, claims.Subject, claims.Name, h.ttl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jwt": jwtStr, "address": claims.Subject})
}

// Register 挂到 /auth
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/nonce", h.GetNonce)
	r.POST("/nonce", h.PostNonce)
	r.POST("/guest", h.Login)
	r.POST("/refresh", h.Refresh)
}

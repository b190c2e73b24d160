package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"Jaffre/internal/auth"
)

// JwtAuthMiddleware 校验 Authorization: Bearer <jwt>；浏览器的 websocket 不能带 header，所以也接受 ?token=
// 通过后在 context 里写入 address（身份）和 name
func JwtAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearer(c.GetHeader("Authorization"))
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := auth.ParseToken(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("address", claims.Subject)
		c.Set("name", claims.Name)
		c.Next()
	}
}

func bearer(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"Jaffre/internal/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /ws  (需带 JWT，middleware 已在 main.go 中加入)
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.GetString("address") // JWT middleware 注入
		if addr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			utils.Log.Warn("websocket upgrade failed", "player", addr, "err", err)
			return
		}

		client := &Client{
			Address: addr,
			Conn:    conn,
			Send:    make(chan OutgoingMessage, 64),
			Hub:     hub,
		}

		select {
		case hub.register <- client:
		case <-hub.quit:
			_ = conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

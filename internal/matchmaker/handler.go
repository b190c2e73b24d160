package matchmaker

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// POST /match/join  body: {pool, name}
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	room, queued, err := h.svc.Join(c.Request.Context(), c.GetString("address"), c.GetString("name"), req)
	if errors.Is(err, ErrAlreadyPlaying) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if queued {
		pool := req.Pool
		if pool == "" {
			pool = DefaultPool
		}
		c.JSON(http.StatusOK, JoinResponse{Queued: true, Pool: pool})
		return
	}
	c.JSON(http.StatusOK, JoinResponse{
		Queued: false, Pool: room.Pool, RoomID: room.ID, Players: room.Players,
	})
}

// POST /match/cancel
func (h *Handler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.GetString("address")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /match/rooms/:id
func (h *Handler) Room(c *gin.Context) {
	room, err := h.svc.Room(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/match/join", h.Join)
	r.POST("/match/cancel", h.Cancel)
	r.GET("/match/rooms/:id", h.Room)
}

package manager

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"Jaffre/internal/game/engine"
	"Jaffre/internal/game/table"
)

type Handler struct {
	mgr *GameManager
}

func NewHandler(mgr *GameManager) *Handler {
	return &Handler{mgr: mgr}
}

// CreateRequest 可选的规则覆盖
type CreateRequest struct {
	Name  string       `json:"name"`
	Team  int          `json:"team"`
	Rules *table.Rules `json:"rules"`
}

type JoinRequest struct {
	Name string `json:"name"`
	Team int    `json:"team"`
}

type ScoresRequest struct {
	Team1 int `json:"team1"`
	Team2 int `json:"team2"`
}

type PhaseRequest struct {
	Phase table.Phase `json:"phase" binding:"required"`
}

// status 错误 → HTTP 状态码
func status(err error) int {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyInGame), errors.Is(err, ErrGameExists):
		return http.StatusConflict
	case errors.Is(err, ErrReconnectionMismatch):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrIllegalAction):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrEngineStopped):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(status(err), gin.H{"error": err.Error()})
}

// ---------------------
//     PLAYER ROUTES
// ---------------------

// POST /games  body: {name, team, rules}
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	addr := c.GetString("address")
	if h.mgr.InGame(c.Request.Context(), addr) {
		cur, _ := h.mgr.GameOf(addr)
		c.JSON(http.StatusConflict, gin.H{"error": ErrAlreadyInGame.Error(), "gameId": cur})
		return
	}
	id := h.mgr.CreateGame(req.Rules)
	if err := h.mgr.JoinGame(c.Request.Context(), id, addr, nameOf(c, req.Name), req.Team); err != nil {
		_ = h.mgr.RemoveGame(c.Request.Context(), id)
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"gameId": id})
}

// POST /games/:id/join  body: {name, team}
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	id := c.Param("id")
	if err := h.mgr.JoinGame(c.Request.Context(), id, c.GetString("address"), nameOf(c, req.Name), req.Team); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameId": id})
}

// POST /games/leave
func (h *Handler) Leave(c *gin.Context) {
	if err := h.mgr.LeaveGame(c.Request.Context(), c.GetString("address")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /games
func (h *Handler) List(c *gin.Context) {
	type summary struct {
		ID      string      `json:"id"`
		Phase   table.Phase `json:"phase"`
		Players int         `json:"players"`
	}
	out := make([]summary, 0)
	for _, id := range h.mgr.Games() {
		snap, err := h.mgr.Snapshot(c.Request.Context(), id)
		if err != nil {
			continue
		}
		out = append(out, summary{ID: id, Phase: snap.Phase, Players: snap.Occupied()})
	}
	c.JSON(http.StatusOK, gin.H{"games": out})
}

// GET /games/:id  当前玩家视角
func (h *Handler) View(c *gin.Context) {
	v, err := h.mgr.View(c.Request.Context(), c.Param("id"), c.GetString("address"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func nameOf(c *gin.Context, name string) string {
	if name != "" {
		return name
	}
	return c.GetString("name")
}

// ---------------------
//     ADMIN ROUTES
// ---------------------

// GET /admin/games/:id  完整快照（含所有手牌）
func (h *Handler) AdminSnapshot(c *gin.Context) {
	snap, err := h.mgr.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// POST /admin/games/:id/scores  body: {team1, team2}
func (h *Handler) ForceScores(c *gin.Context) {
	var req ScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	scores := table.TeamScores{Team1: req.Team1, Team2: req.Team2}
	if err := h.mgr.Admin(c.Request.Context(), c.Param("id"), engine.Intent{Kind: engine.IntentForceScores, Scores: &scores}); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /admin/games/:id/phase  body: {phase}
func (h *Handler) ForcePhase(c *gin.Context) {
	var req PhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.mgr.Admin(c.Request.Context(), c.Param("id"), engine.Intent{Kind: engine.IntentForcePhase, Phase: req.Phase}); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DELETE /admin/games/:id
func (h *Handler) Remove(c *gin.Context) {
	if err := h.mgr.RemoveGame(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Register 挂载路由；player 组需要 JWT，admin 组需要管理口令
func (h *Handler) Register(player, admin gin.IRoutes) {
	player.POST("/games", h.Create)
	player.GET("/games", h.List)
	player.POST("/games/leave", h.Leave)
	player.GET("/games/:id", h.View)
	player.POST("/games/:id/join", h.Join)

	admin.GET("/games/:id", h.AdminSnapshot)
	admin.POST("/games/:id/scores", h.ForceScores)
	admin.POST("/games/:id/phase", h.ForcePhase)
	admin.DELETE("/games/:id", h.Remove)
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/StudioRelay/internal/app"
	"github.com/dkeye/StudioRelay/internal/app/orch"
	"github.com/dkeye/StudioRelay/internal/core"
)

// Handlers serves read-only views of relay state. Reads go through the
// event loop like every other access to room membership.
type Handlers struct {
	Loop *app.Loop
	Orch *orch.Orchestrator
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /api/rooms
func (h *Handlers) Rooms(c *gin.Context) {
	var rooms []core.RoomInfo
	if err := h.Loop.Call(c.Request.Context(), func() { rooms = h.Orch.Rooms.List() }); err != nil {
		h.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// GET /api/stats
func (h *Handlers) Stats(c *gin.Context) {
	var stats orch.Stats
	if err := h.Loop.Call(c.Request.Context(), func() { stats = h.Orch.Stats() }); err != nil {
		h.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handlers) unavailable(c *gin.Context, err error) {
	log.Warn().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("loop unavailable")
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable"})
}

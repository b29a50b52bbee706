package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/StudioRelay/internal/adapters/signal"
	"github.com/dkeye/StudioRelay/internal/config"
)

func headers(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Server", "studio-relay")
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST")
		c.Next()
	}
}

// SetupRouter wires the relay endpoints:
// - WebSocket upgrade at /ws
// - liveness at /health
// - read-only room views under /api
func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.SignalWSController) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(headers(cfg.AllowedOrigin))

	h := &Handlers{Loop: ctl.Loop, Orch: ctl.Orch}

	r.GET("/health", h.Health)
	r.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(ctx, c)
	})

	api := r.Group("/api")
	api.GET("/rooms", h.Rooms)
	api.GET("/stats", h.Stats)

	log.Info().Str("module", "adapters.http").Str("origin", cfg.AllowedOrigin).Msg("router setup")
	return r
}

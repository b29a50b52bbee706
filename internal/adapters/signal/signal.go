package signal

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/StudioRelay/internal/app"
	"github.com/dkeye/StudioRelay/internal/app/orch"
	"github.com/dkeye/StudioRelay/internal/core"
	"github.com/dkeye/StudioRelay/internal/domain"
)

// Settings tunes the WebSocket transport.
type Settings struct {
	// AllowedOrigin is the single browser origin accepted; "*" accepts any.
	AllowedOrigin string
	ReadLimit     int64
	PingPeriod    time.Duration
	PongWait      time.Duration
	WriteWait     time.Duration
	SendBuffer    int
}

type SignalWSController struct {
	Orch *orch.Orchestrator
	Loop *app.Loop

	settings Settings
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, loop *app.Loop, s Settings) *SignalWSController {
	if s.SendBuffer <= 0 {
		s.SendBuffer = 64
	}
	if s.WriteWait <= 0 {
		s.WriteWait = 5 * time.Second
	}
	return &SignalWSController{
		Orch:     o,
		Loop:     loop,
		settings: s,
		upgrader: websocket.Upgrader{
			CheckOrigin: OriginChecker(s.AllowedOrigin),
		},
	}
}

// OriginChecker accepts requests from allowed only. Requests without an
// Origin header come from non-browser clients and pass.
func OriginChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return strings.EqualFold(origin, allowed)
	}
}

type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// HandleSignal upgrades the request and runs the connection until either
// side goes away. ctx bounds the connection lifetime.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("origin", c.GetHeader("Origin")).Msg("ws upgrade")
		return
	}

	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.settings.SendBuffer),
	}

	var cid domain.ConnectionID
	if err := ctl.Loop.Call(ctx, func() { cid = ctl.Orch.OnConnect(conn) }); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("register connection")
		conn.Close()
		return
	}
	log.Info().Str("module", "signal").Str("cid", string(cid)).Str("remote", c.ClientIP()).Msg("new WS connection")

	connCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(connCtx, conn)
	go ctl.readPump(cancel, cid, conn)
}

package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/StudioRelay/internal/core"
	"github.com/dkeye/StudioRelay/internal/domain"
	"github.com/dkeye/StudioRelay/internal/protocol"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	var ping <-chan time.Time
	if ctl.settings.PingPeriod > 0 {
		ticker := time.NewTicker(ctl.settings.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.settings.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ping:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.settings.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump owns the read side. Clean close and transport error end the
// same way: one OnDisconnect queued behind this connection's messages.
func (ctl *SignalWSController) readPump(cancel context.CancelFunc, cid domain.ConnectionID, c *wsSignalConn) {
	defer func() {
		cancel()
		c.Close()
		if !ctl.Loop.Submit(func() { ctl.Orch.OnDisconnect(cid) }) {
			log.Debug().Str("module", "signal").Str("cid", string(cid)).Msg("loop stopped before disconnect")
		}
		log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("readPump closing")
	}()

	if ctl.settings.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.settings.ReadLimit)
	}
	pongWait := ctl.settings.PongWait
	extend := func() {
		if pongWait > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}
	extend()
	c.conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("readPump read error")
			}
			return
		}
		extend()
		ctl.handleSignal(cid, c, data)
	}
}

// handleSignal decodes one frame on the reader goroutine and hands the
// typed message to the loop.
func (ctl *SignalWSController) handleSignal(cid domain.ConnectionID, c core.SignalConnection, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownKind) {
			log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("unknown signal")
			return
		}
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("bad payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch m := msg.(type) {
	case protocol.Join:
		ctl.handleJoin(cid, c, m)
	case protocol.Leave:
		ctl.handleLeave(cid)
	case protocol.Draw:
		ctl.handleDraw(cid, m)
	case protocol.JoinVideo:
		ctl.handleJoinVideo(cid, c, m)
	case protocol.LeaveVideo:
		ctl.handleLeaveVideo(cid)
	case protocol.Ping:
		ctl.handlePing(c)
	}
}

func (ctl *SignalWSController) send(c core.SignalConnection, frame []byte, err error) {
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode frame")
		return
	}
	_ = c.TrySend(frame)
}

func (ctl *SignalWSController) sendError(c core.SignalConnection, reason string) {
	frame, err := protocol.EncodeError(reason)
	ctl.send(c, frame, err)
}

// submit queues fn on the loop; after shutdown the message is dropped.
func (ctl *SignalWSController) submit(cid domain.ConnectionID, fn func()) {
	if !ctl.Loop.Submit(fn) {
		log.Debug().Str("module", "signal").Str("cid", string(cid)).Msg("loop stopped, message dropped")
	}
}

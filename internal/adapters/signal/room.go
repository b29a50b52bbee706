package signal

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/StudioRelay/internal/app"
	"github.com/dkeye/StudioRelay/internal/core"
	"github.com/dkeye/StudioRelay/internal/domain"
	"github.com/dkeye/StudioRelay/internal/protocol"
)

func (ctl *SignalWSController) handleJoin(cid domain.ConnectionID, c core.SignalConnection, m protocol.Join) {
	ctl.submit(cid, func() {
		if err := ctl.Orch.Join(cid, m.SessionID); err != nil {
			ctl.rejectJoin(cid, c, err)
		}
	})
}

// handleLeave leaves the drawing room; the connection stays open.
func (ctl *SignalWSController) handleLeave(cid domain.ConnectionID) {
	ctl.submit(cid, func() { ctl.Orch.Leave(cid) })
}

func (ctl *SignalWSController) handleDraw(cid domain.ConnectionID, m protocol.Draw) {
	ctl.submit(cid, func() { ctl.Orch.RelayDraw(cid, m.SessionID, m.DrawEvent) })
}

func (ctl *SignalWSController) handleJoinVideo(cid domain.ConnectionID, c core.SignalConnection, m protocol.JoinVideo) {
	ctl.submit(cid, func() {
		if err := ctl.Orch.RelayVideoJoin(cid, m.SessionID); err != nil {
			ctl.rejectJoin(cid, c, err)
		}
	})
}

func (ctl *SignalWSController) handleLeaveVideo(cid domain.ConnectionID) {
	ctl.submit(cid, func() { ctl.Orch.RelayVideoLeave(cid) })
}

func (ctl *SignalWSController) rejectJoin(cid domain.ConnectionID, c core.SignalConnection, err error) {
	log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("join rejected")
	if errors.Is(err, app.ErrRateLimited) {
		ctl.sendError(c, "rate_limited")
		return
	}
	ctl.sendError(c, "join_failed")
}

package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/StudioRelay/internal/app"
	"github.com/dkeye/StudioRelay/internal/domain"
)

// Join puts cid into the drawing room of session. A connection has at
// most one drawing room: joining another one leaves the previous room.
// Joining the room it is already in changes nothing.
func (o *Orchestrator) Join(cid domain.ConnectionID, session domain.SessionID) error {
	if !o.Registry.Has(cid) {
		return nil
	}
	room := domain.Drawing(session)
	if cur, ok := o.Registry.RoomOf(cid, domain.DrawingRoom); ok && cur == room {
		return nil
	}
	if !o.Limiter.Allow(cid) {
		return app.ErrRateLimited
	}

	if prev, ok := o.Registry.RoomOf(cid, domain.DrawingRoom); ok {
		o.Rooms.Leave(prev, cid)
		log.Info().Str("module", "orch").Str("cid", string(cid)).Str("from_room", prev.String()).Msg("left room on switch")
	}
	o.Rooms.Join(room, cid)
	o.Registry.SetRoom(cid, room)
	log.Info().
		Str("module", "orch").
		Str("cid", string(cid)).
		Str("room", room.String()).
		Int("members", o.Rooms.MemberCount(room)).
		Msg("joined room")
	return nil
}

// Leave removes cid from its drawing room, if any.
func (o *Orchestrator) Leave(cid domain.ConnectionID) {
	room, ok := o.Registry.RoomOf(cid, domain.DrawingRoom)
	if !ok {
		return
	}
	o.Rooms.Leave(room, cid)
	o.Registry.ClearRoom(cid, domain.DrawingRoom)
	log.Info().Str("module", "orch").Str("cid", string(cid)).Str("room", room.String()).Msg("left room")
}

// RelayDraw forwards ev unchanged to the other members of the sender's
// drawing room. An empty session means the sender's current room; a
// session naming any other room drops the event, since the sender is
// not a member there.
func (o *Orchestrator) RelayDraw(sender domain.ConnectionID, session domain.SessionID, ev domain.DrawEvent) PublishResult {
	room, ok := o.Registry.RoomOf(sender, domain.DrawingRoom)
	if !ok {
		log.Debug().Str("module", "orch").Str("cid", string(sender)).Msg("draw from connection without room")
		return PublishResult{}
	}
	if session != "" && domain.Drawing(session) != room {
		log.Debug().
			Str("module", "orch").
			Str("cid", string(sender)).
			Str("room", room.String()).
			Str("target", string(session)).
			Msg("draw for foreign room dropped")
		return PublishResult{}
	}
	return o.fanout(room, sender, ev)
}

package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/StudioRelay/internal/app"
	"github.com/dkeye/StudioRelay/internal/domain"
)

// RelayVideoJoin adds sender to the video room of session and announces it
// to the members already there. Video membership is independent of the
// drawing room. Switching to another session's video room leaves the
// previous one first, with the usual participantLeft.
func (o *Orchestrator) RelayVideoJoin(sender domain.ConnectionID, session domain.SessionID) error {
	if !o.Registry.Has(sender) {
		return nil
	}
	room := domain.Video(session)
	if cur, ok := o.Registry.RoomOf(sender, domain.VideoRoom); ok && cur == room {
		return nil
	}
	if !o.Limiter.Allow(sender) {
		return app.ErrRateLimited
	}

	o.RelayVideoLeave(sender)

	o.Rooms.Join(room, sender)
	o.Registry.SetRoom(sender, room)
	res := o.fanout(room, sender, domain.ParticipantJoined{ParticipantID: sender})
	log.Info().
		Str("module", "orch").
		Str("cid", string(sender)).
		Str("room", room.String()).
		Int("notified", res.SendTo).
		Msg("joined video conference")
	return nil
}

// RelayVideoLeave announces sender's departure to the rest of its video
// room and then removes it. No-op when sender is not in a video room.
func (o *Orchestrator) RelayVideoLeave(sender domain.ConnectionID) {
	room, ok := o.Registry.RoomOf(sender, domain.VideoRoom)
	if !ok {
		return
	}
	res := o.fanout(room, sender, domain.ParticipantLeft{ParticipantID: sender})
	o.Rooms.Leave(room, sender)
	o.Registry.ClearRoom(sender, domain.VideoRoom)
	log.Info().
		Str("module", "orch").
		Str("cid", string(sender)).
		Str("room", room.String()).
		Int("notified", res.SendTo).
		Msg("left video conference")
}

package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/StudioRelay/internal/app"
	"github.com/dkeye/StudioRelay/internal/core"
	"github.com/dkeye/StudioRelay/internal/domain"
	"github.com/dkeye/StudioRelay/internal/protocol"
)

// Orchestrator is the event relay. Its methods must run on the event
// loop; none of them are safe for concurrent use.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *core.Multiplexer
	Policy   app.Policy
	Limiter  *app.JoinLimiter
}

func New(policy app.Policy, limiter *app.JoinLimiter) *Orchestrator {
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    core.NewMultiplexer(),
		Policy:   policy,
		Limiter:  limiter,
	}
}

// PublishResult reports delivery stats of one fan-out.
type PublishResult struct {
	SendTo  int
	Dropped []domain.ConnectionID
}

// OnConnect registers conn under a fresh id and greets it.
func (o *Orchestrator) OnConnect(conn core.SignalConnection) domain.ConnectionID {
	cid := domain.NewConnectionID()
	o.Registry.Bind(cid, conn)
	if frame, err := protocol.EncodeConnect(cid); err == nil {
		_ = conn.TrySend(frame)
	}
	log.Info().Str("module", "orch").Str("cid", string(cid)).Msg("connected")
	return cid
}

// OnDisconnect leaves every room cid was in, telling video peers first,
// then forgets the connection. Unknown ids are ignored.
func (o *Orchestrator) OnDisconnect(cid domain.ConnectionID) {
	if !o.Registry.Has(cid) {
		return
	}
	o.RelayVideoLeave(cid)
	o.Leave(cid)
	for _, room := range o.Registry.Unbind(cid) {
		o.Rooms.Leave(room, cid)
	}
	o.Limiter.Forget(cid)
	log.Info().Str("module", "orch").Str("cid", string(cid)).Msg("disconnected")
}

// Send delivers a frame to a single connection.
func (o *Orchestrator) Send(cid domain.ConnectionID, frame core.Frame) error {
	conn, ok := o.Registry.Conn(cid)
	if !ok {
		return core.ErrConnClosed
	}
	return conn.TrySend(frame)
}

func (o *Orchestrator) fanout(room domain.RoomKey, from domain.ConnectionID, ev domain.Event) PublishResult {
	res := PublishResult{}
	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", ev.EventName()).Msg("encode event")
		return res
	}

	for _, cid := range o.Rooms.MembersExcept(room, from) {
		if err := o.Send(cid, frame); err != nil {
			res.Dropped = append(res.Dropped, cid)
			continue
		}
		res.SendTo++
	}
	log.Debug().
		Str("module", "orch").
		Str("room", room.String()).
		Str("from", string(from)).
		Str("event", ev.EventName()).
		Int("sent_to", res.SendTo).
		Int("dropped", len(res.Dropped)).
		Msg("broadcast result")

	o.applyPolicy(room, res.Dropped)
	return res
}

func (o *Orchestrator) applyPolicy(room domain.RoomKey, dropped []domain.ConnectionID) {
	if o.Policy == nil {
		return
	}
	for _, slow := range dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			// Closing makes the transport report a disconnect, which runs
			// the usual cleanup on a later loop turn.
			if conn, ok := o.Registry.Conn(slow); ok {
				log.Warn().Str("module", "orch").Str("cid", string(slow)).Msg("kicking slow consumer")
				conn.Close()
			}
		case app.DropFrame, app.NoAction:
		}
	}
}

type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		Connections: o.Registry.Len(),
		Rooms:       o.Rooms.Len(),
	}
}

package app

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/StudioRelay/internal/core"
	"github.com/dkeye/StudioRelay/internal/domain"
)

type connEntry struct {
	Conn        core.SignalConnection
	ConnectedAt time.Time
	// at most one room per kind
	Rooms map[domain.RoomKind]domain.SessionID
}

// Registry tracks live connections and the rooms each one has joined.
// Like core.Multiplexer it is owned by the event loop and takes no locks.
type Registry struct {
	conns map[domain.ConnectionID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ConnectionID]*connEntry)}
}

func (r *Registry) Bind(cid domain.ConnectionID, conn core.SignalConnection) {
	r.conns[cid] = &connEntry{
		Conn:        conn,
		ConnectedAt: time.Now(),
		Rooms:       make(map[domain.RoomKind]domain.SessionID),
	}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("bound connection")
}

// Unbind forgets cid and returns the rooms it still belonged to.
func (r *Registry) Unbind(cid domain.ConnectionID) []domain.RoomKey {
	e, ok := r.conns[cid]
	if !ok {
		return nil
	}
	delete(r.conns, cid)
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Dur("lifetime", time.Since(e.ConnectedAt)).Msg("unbind connection")
	return e.roomKeys()
}

func (r *Registry) Conn(cid domain.ConnectionID) (core.SignalConnection, bool) {
	e, ok := r.conns[cid]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

func (r *Registry) Has(cid domain.ConnectionID) bool {
	_, ok := r.conns[cid]
	return ok
}

// RoomOf returns the room of the given kind cid is in.
func (r *Registry) RoomOf(cid domain.ConnectionID, kind domain.RoomKind) (domain.RoomKey, bool) {
	e, ok := r.conns[cid]
	if !ok {
		return domain.RoomKey{}, false
	}
	s, ok := e.Rooms[kind]
	if !ok {
		return domain.RoomKey{}, false
	}
	return domain.RoomKey{Kind: kind, Session: s}, true
}

// SetRoom records room as cid's room of that kind, replacing any previous one.
func (r *Registry) SetRoom(cid domain.ConnectionID, room domain.RoomKey) bool {
	e, ok := r.conns[cid]
	if !ok {
		return false
	}
	e.Rooms[room.Kind] = room.Session
	log.Debug().Str("module", "app.registry").Str("cid", string(cid)).Str("room", room.String()).Msg("updated room")
	return true
}

func (r *Registry) ClearRoom(cid domain.ConnectionID, kind domain.RoomKind) {
	if e, ok := r.conns[cid]; ok {
		delete(e.Rooms, kind)
	}
}

// Rooms lists the rooms cid is in, drawing first.
func (r *Registry) Rooms(cid domain.ConnectionID) []domain.RoomKey {
	e, ok := r.conns[cid]
	if !ok {
		return nil
	}
	return e.roomKeys()
}

func (r *Registry) Len() int { return len(r.conns) }

func (e *connEntry) roomKeys() []domain.RoomKey {
	out := make([]domain.RoomKey, 0, len(e.Rooms))
	for _, kind := range []domain.RoomKind{domain.DrawingRoom, domain.VideoRoom} {
		if s, ok := e.Rooms[kind]; ok {
			out = append(out, domain.RoomKey{Kind: kind, Session: s})
		}
	}
	return out
}

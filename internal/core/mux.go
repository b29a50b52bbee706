package core

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/StudioRelay/internal/domain"
)

type RoomInfo struct {
	Room        string           `json:"room"`
	Kind        string           `json:"kind"`
	Session     domain.SessionID `json:"session"`
	MemberCount int              `json:"member_count"`
}

// Multiplexer maps a room to its member set.
// A room exists only while it has members.
// It is not safe for concurrent use: the event loop owns it.
type Multiplexer struct {
	rooms map[domain.RoomKey]map[domain.ConnectionID]struct{}
}

func NewMultiplexer() *Multiplexer {
	return &Multiplexer{rooms: make(map[domain.RoomKey]map[domain.ConnectionID]struct{})}
}

// Join adds cid to room, creating the room if absent.
// It reports whether cid was not a member before.
func (m *Multiplexer) Join(room domain.RoomKey, cid domain.ConnectionID) bool {
	members, ok := m.rooms[room]
	if !ok {
		members = make(map[domain.ConnectionID]struct{})
		m.rooms[room] = members
		log.Debug().Str("module", "core.mux").Str("room", room.String()).Msg("room created")
	}
	if _, ok := members[cid]; ok {
		return false
	}
	members[cid] = struct{}{}
	return true
}

// Leave removes cid from room and deletes the room once it is empty.
// It reports whether cid was a member.
func (m *Multiplexer) Leave(room domain.RoomKey, cid domain.ConnectionID) bool {
	members, ok := m.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[cid]; !ok {
		return false
	}
	delete(members, cid)
	if len(members) == 0 {
		delete(m.rooms, room)
		log.Debug().Str("module", "core.mux").Str("room", room.String()).Msg("room removed")
	}
	return true
}

// MembersExcept returns every other member of room.
// A missing room yields an empty slice.
func (m *Multiplexer) MembersExcept(room domain.RoomKey, cid domain.ConnectionID) []domain.ConnectionID {
	members := m.rooms[room]
	out := make([]domain.ConnectionID, 0, len(members))
	for id := range members {
		if id == cid {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (m *Multiplexer) IsMember(room domain.RoomKey, cid domain.ConnectionID) bool {
	_, ok := m.rooms[room][cid]
	return ok
}

func (m *Multiplexer) MemberCount(room domain.RoomKey) int {
	return len(m.rooms[room])
}

func (m *Multiplexer) Exists(room domain.RoomKey) bool {
	_, ok := m.rooms[room]
	return ok
}

func (m *Multiplexer) Len() int { return len(m.rooms) }

// List returns a snapshot sorted by room name.
func (m *Multiplexer) List() []RoomInfo {
	out := make([]RoomInfo, 0, len(m.rooms))
	for key, members := range m.rooms {
		out = append(out, RoomInfo{
			Room:        key.String(),
			Kind:        key.Kind.String(),
			Session:     key.Session,
			MemberCount: len(members),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	return out
}

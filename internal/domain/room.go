package domain

import "errors"

var ErrEmptySession = errors.New("session id empty")

// SessionID is the client-chosen name of a collaborative session.
// The relay does not validate its format.
type SessionID string

type RoomKind uint8

const (
	DrawingRoom RoomKind = iota
	VideoRoom
)

func (k RoomKind) String() string {
	switch k {
	case DrawingRoom:
		return "drawing"
	case VideoRoom:
		return "video"
	default:
		return "unknown"
	}
}

// RoomKey addresses one membership set. The drawing room and the video
// sub-room of a session share the SessionID but never the key.
type RoomKey struct {
	Kind    RoomKind
	Session SessionID
}

func Drawing(s SessionID) RoomKey { return RoomKey{Kind: DrawingRoom, Session: s} }
func Video(s SessionID) RoomKey   { return RoomKey{Kind: VideoRoom, Session: s} }

func (k RoomKey) String() string {
	if k.Kind == VideoRoom {
		return "video-" + string(k.Session)
	}
	return string(k.Session)
}

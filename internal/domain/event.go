package domain

import (
	"errors"
	"fmt"
)

var ErrUnknownDrawKind = errors.New("unknown draw kind")

// Event is anything the relay emits to a connection.
// The set is closed: DrawEvent, ParticipantJoined and ParticipantLeft.
type Event interface {
	EventName() string
	isEvent()
}

type DrawKind string

const (
	KindDraw      DrawKind = "draw"
	KindErase     DrawKind = "erase"
	KindRectangle DrawKind = "rectangle"
	KindCircle    DrawKind = "circle"
	KindText      DrawKind = "text"
)

func (k DrawKind) Validate() error {
	switch k {
	case KindDraw, KindErase, KindRectangle, KindCircle, KindText:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownDrawKind, string(k))
}

// DrawEvent is a whiteboard primitive. Optional fields stay nil when the
// sender omitted them so that they are forwarded exactly as received.
// Values are never range-checked: rendering clients own that.
type DrawEvent struct {
	Type      DrawKind `json:"type" validate:"required"`
	X         *float64 `json:"x" validate:"required"`
	Y         *float64 `json:"y" validate:"required"`
	Color     *string  `json:"color,omitempty"`
	Width     *float64 `json:"width,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	Text      *string  `json:"text,omitempty"`
	TextColor *string  `json:"textColor,omitempty"`
}

func (DrawEvent) EventName() string { return "draw" }
func (DrawEvent) isEvent()          {}

type ParticipantJoined struct {
	ParticipantID ConnectionID `json:"participantId"`
}

func (ParticipantJoined) EventName() string { return "participantJoined" }
func (ParticipantJoined) isEvent()          {}

type ParticipantLeft struct {
	ParticipantID ConnectionID `json:"participantId"`
}

func (ParticipantLeft) EventName() string { return "participantLeft" }
func (ParticipantLeft) isEvent()          {}

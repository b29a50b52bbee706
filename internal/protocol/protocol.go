// Package protocol is the wire codec of the relay. Every frame is a JSON
// text message of the form {"event": <kind>, "data": <payload>}.
package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/dkeye/StudioRelay/internal/domain"
)

// Client -> server kinds.
const (
	KindJoin       = "join"
	KindDraw       = "draw"
	KindJoinVideo  = "joinVideoConference"
	KindLeave      = "leave"
	KindLeaveVideo = "leaveVideoConference"
	KindPing       = "ping"
)

// Server -> client kinds that are not domain events.
const (
	KindConnect = "connect"
	KindPong    = "pong"
	KindError   = "error"
)

var (
	ErrUnknownKind = errors.New("unknown message kind")
	ErrMalformed   = errors.New("malformed message")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Message is a decoded client message.
type Message interface {
	Kind() string
}

type Join struct {
	SessionID domain.SessionID `json:"sessionId" validate:"required"`
}

type JoinVideo struct {
	SessionID domain.SessionID `json:"sessionId" validate:"required"`
}

// Draw carries an optional SessionID; empty means the sender's current
// drawing room.
type Draw struct {
	SessionID domain.SessionID `json:"sessionId,omitempty"`
	domain.DrawEvent
}

type Leave struct{}

type LeaveVideo struct{}

type Ping struct{}

func (Join) Kind() string       { return KindJoin }
func (JoinVideo) Kind() string  { return KindJoinVideo }
func (Draw) Kind() string       { return KindDraw }
func (Leave) Kind() string      { return KindLeave }
func (LeaveVideo) Kind() string { return KindLeaveVideo }
func (Ping) Kind() string       { return KindPing }

// Decode parses one raw client frame. Errors wrap ErrUnknownKind for kinds
// the relay does not serve and ErrMalformed for everything else.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	switch env.Event {
	case KindJoin:
		s, err := decodeSession(env.Data)
		if err != nil {
			return nil, err
		}
		return Join{SessionID: s}, nil
	case KindJoinVideo:
		s, err := decodeSession(env.Data)
		if err != nil {
			return nil, err
		}
		return JoinVideo{SessionID: s}, nil
	case KindDraw:
		return decodeDraw(env.Data)
	case KindLeave:
		return Leave{}, nil
	case KindLeaveVideo:
		return LeaveVideo{}, nil
	case KindPing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Event)
	}
}

// decodeSession accepts both {"sessionId": "x"} and a bare "x".
func decodeSession(data json.RawMessage) (domain.SessionID, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if s == "" {
			return "", fmt.Errorf("%w: %w", ErrMalformed, domain.ErrEmptySession)
		}
		return domain.SessionID(s), nil
	}

	var j Join
	if err := strictUnmarshal(data, &j); err != nil {
		return "", err
	}
	if err := validate.Struct(j); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, domain.ErrEmptySession)
	}
	return j.SessionID, nil
}

func decodeDraw(data json.RawMessage) (Message, error) {
	var d Draw
	if err := strictUnmarshal(data, &d); err != nil {
		return nil, err
	}
	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := d.Type.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return d, nil
}

func strictUnmarshal(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformed)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return nil
}

// Encode builds one server frame.
func Encode(kind string, data any) ([]byte, error) {
	return json.Marshal(outbound{Event: kind, Data: data})
}

func EncodeEvent(ev domain.Event) ([]byte, error) {
	return Encode(ev.EventName(), ev)
}

func EncodeConnect(id domain.ConnectionID) ([]byte, error) {
	return Encode(KindConnect, struct {
		ID domain.ConnectionID `json:"id"`
	}{ID: id})
}

func EncodePong() ([]byte, error) {
	return Encode(KindPong, nil)
}

func EncodeError(reason string) ([]byte, error) {
	return Encode(KindError, struct {
		Error string `json:"error"`
	}{Error: reason})
}

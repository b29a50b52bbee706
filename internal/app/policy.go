package app

import (
	"fmt"

	"github.com/dkeye/StudioRelay/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a member whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomKey, member domain.ConnectionID) BackpressureAction
}

// DropPolicy loses the frame for that member only. Relaying is
// at-most-once, so this is the default.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomKey, domain.ConnectionID) BackpressureAction {
	return DropFrame
}

// KickPolicy closes the slow connection; cleanup follows the normal
// disconnect path.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(domain.RoomKey, domain.ConnectionID) BackpressureAction {
	return KickMember
}

func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "drop":
		return DropPolicy{}, nil
	case "kick":
		return KickPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown slow consumer policy %q", name)
	}
}

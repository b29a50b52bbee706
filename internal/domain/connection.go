// Package domain contains ids and event payloads without logic, just meta-data
package domain

import (
	"github.com/google/uuid"
)

// ConnectionID identifies one client's persistent link to the relay.
// A reconnecting client always gets a fresh id.
type ConnectionID string

// NewConnectionID is a tiny helper to avoid ad-hoc id generation in adapters.
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

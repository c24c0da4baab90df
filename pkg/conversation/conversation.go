// Package conversation defines the per-identity message history store:
// the identity derivation, the record model, and the Store contract
// implemented by the memory and postgres backends.
//
// Records are overwritten wholesale on every write (last-writer-wins).
// Mutations for one identity are serialized by the store; reads that
// race a write observe either the pre- or post-write value, never a
// partial one.
package conversation

import (
	"context"
	"errors"

	"github.com/entfalten/entfalten/pkg/api"
)

// ErrNotFound is returned when no record exists for an identity.
var ErrNotFound = errors.New("conversation not found")

// Identity partitions all conversation state. Origin is the request
// origin (scheme://host), User the caller-supplied identifier.
type Identity struct {
	Origin string
	User   string
}

// Valid reports whether the identity is complete enough to address a
// record. A user identifier is required; origin may legitimately be
// empty for non-HTTP callers.
func (id Identity) Valid() bool {
	return id.User != ""
}

// Key returns the derived storage key. The separator cannot occur in a
// URL origin, so distinct identities never collide.
func (id Identity) Key() string {
	return id.Origin + "|" + id.User
}

// Record is the persisted message history for one identity.
type Record struct {
	ID       string        `json:"id"`
	Messages []api.Message `json:"messages"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{ID: r.ID}
	if r.Messages != nil {
		out.Messages = make([]api.Message, len(r.Messages))
		copy(out.Messages, r.Messages)
	}
	return out
}

// Store is the conversation persistence contract.
//
// Implementations must be safe for concurrent use and must serialize
// mutations per identity.
type Store interface {
	// Read returns the record for the identity, or ErrNotFound.
	Read(ctx context.Context, id Identity) (*Record, error)

	// Write overwrites the record for the identity (last-writer-wins).
	// The record is created on first write.
	Write(ctx context.Context, id Identity, messages []api.Message) error

	// HealthCheck verifies the backing substrate is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases store resources.
	Close() error
}

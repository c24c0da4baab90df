package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/entfalten/entfalten/pkg/api"
	"github.com/entfalten/entfalten/pkg/debug"
)

// Cache wraps a durable Store with a per-identity in-memory state that
// follows an initialize-once/then-serve lifecycle: the first operation
// for an identity lazily loads the persisted record into memory, every
// later operation is served from memory, and writes go through to the
// backing store synchronously.
//
// A per-identity mutex serializes all operations for that identity, so
// only one mutation is ever in flight per identity.
type Cache struct {
	backing Store

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// cacheEntry holds the in-memory state for one identity. The entry
// mutex covers loading, reading, and writing for that identity.
type cacheEntry struct {
	mu     sync.Mutex
	loaded bool
	record *Record // nil once loaded means "no record persisted"
}

// NewCache creates a Cache over the given durable store.
func NewCache(backing Store) *Cache {
	return &Cache{
		backing: backing,
		entries: make(map[string]*cacheEntry),
	}
}

// entry returns the state container for an identity, creating it on
// first use.
func (c *Cache) entry(id Identity) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id.Key()]
	if !ok {
		e = &cacheEntry{}
		c.entries[id.Key()] = e
	}
	return e
}

// load populates the entry from the backing store once.
// Must be called with e.mu held.
func (c *Cache) load(ctx context.Context, id Identity, e *cacheEntry) error {
	if e.loaded {
		return nil
	}

	rec, err := c.backing.Read(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		e.record = nil
	case err != nil:
		return err
	default:
		e.record = rec
	}

	e.loaded = true
	debug.Log("conversations", "identity state loaded", "identity", id.Key(), "found", e.record != nil)
	return nil
}

// Read returns the in-memory record for the identity, lazily loading it
// from the backing store on first access.
func (c *Cache) Read(ctx context.Context, id Identity) (*Record, error) {
	e := c.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := c.load(ctx, id, e); err != nil {
		return nil, err
	}
	if e.record == nil {
		return nil, ErrNotFound
	}
	return e.record.Clone(), nil
}

// Write replaces the identity's record in memory and persists it
// synchronously. The in-memory state is only updated when the backing
// write succeeds.
func (c *Cache) Write(ctx context.Context, id Identity, messages []api.Message) error {
	e := c.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := c.load(ctx, id, e); err != nil {
		return err
	}

	if err := c.backing.Write(ctx, id, messages); err != nil {
		return err
	}

	msgs := make([]api.Message, len(messages))
	copy(msgs, messages)
	e.record = &Record{ID: id.Key(), Messages: msgs}
	return nil
}

// HealthCheck delegates to the backing store.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.backing.HealthCheck(ctx)
}

// Close releases the backing store.
func (c *Cache) Close() error {
	return c.backing.Close()
}

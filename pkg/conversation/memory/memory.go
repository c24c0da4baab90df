// Package memory provides an in-memory implementation of
// conversation.Store for testing and lightweight deployments. Records
// are lost when the process restarts. Optional LRU eviction limits
// memory usage.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/entfalten/entfalten/pkg/api"
	"github.com/entfalten/entfalten/pkg/conversation"
)

// entry holds a stored record and its LRU position.
type entry struct {
	record  *conversation.Record
	lruElem *list.Element
}

// Store is an in-memory conversation.Store with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
}

// Ensure Store implements conversation.Store at compile time.
var _ conversation.Store = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used identity is
// evicted when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// Read returns the record for the identity, or conversation.ErrNotFound.
func (s *Store) Read(_ context.Context, id conversation.Identity) (*conversation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id.Key()]
	if !ok {
		return nil, conversation.ErrNotFound
	}

	s.lruList.MoveToFront(e.lruElem)
	return e.record.Clone(), nil
}

// Write overwrites the record for the identity (last-writer-wins).
// The store-level mutex serializes all mutations, which trivially
// satisfies the per-identity serialization requirement.
func (s *Store) Write(_ context.Context, id conversation.Identity, messages []api.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.Key()
	msgs := make([]api.Message, len(messages))
	copy(msgs, messages)
	record := &conversation.Record{ID: key, Messages: msgs}

	if e, ok := s.entries[key]; ok {
		e.record = record
		s.lruList.MoveToFront(e.lruElem)
		return nil
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(key)
	s.entries[key] = &entry{record: record, lruElem: elem}
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	key := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, key)
}

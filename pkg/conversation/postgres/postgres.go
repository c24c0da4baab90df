// Package postgres provides a PostgreSQL implementation of
// conversation.Store. It uses pgx/v5 for connection pooling and JSONB
// for the message history.
//
// Writes are single-row upserts; PostgreSQL row locking serializes
// concurrent mutations for the same identity, and readers observe
// either the pre- or post-write row.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entfalten/entfalten/pkg/api"
	"github.com/entfalten/entfalten/pkg/conversation"
)

// Store is a PostgreSQL-backed conversation.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements conversation.Store at compile time.
var _ conversation.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Read retrieves the record for an identity.
func (s *Store) Read(ctx context.Context, id conversation.Identity) (*conversation.Record, error) {
	var messagesJSON []byte

	err := s.pool.QueryRow(ctx,
		"SELECT messages FROM conversations WHERE identity = $1",
		id.Key(),
	).Scan(&messagesJSON)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	rec := &conversation.Record{ID: id.Key()}
	if err := json.Unmarshal(messagesJSON, &rec.Messages); err != nil {
		return nil, fmt.Errorf("unmarshaling messages: %w", err)
	}

	return rec, nil
}

// Write upserts the record for an identity. The single-statement upsert
// makes the overwrite atomic: concurrent writers for the same identity
// are serialized on the row lock and the last one wins.
func (s *Store) Write(ctx context.Context, id conversation.Identity, messages []api.Message) error {
	if messages == nil {
		messages = []api.Message{}
	}

	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshaling messages: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO conversations (identity, messages, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE
		SET messages = EXCLUDED.messages, updated_at = EXCLUDED.updated_at
	`, id.Key(), messagesJSON, time.Now().UTC())

	if err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

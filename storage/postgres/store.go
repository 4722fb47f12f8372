// Package postgres implements storage.SnapshotStore backed by a
// PostgreSQL table, for servers that want their routing table to
// survive a restart without waiting for gossip and client traffic to
// repopulate it.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperborea-net/hyperborea/identity"
	"github.com/hyperborea-net/hyperborea/router"
)

// Config holds the PostgreSQL connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (c Config) connString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Store is a storage.SnapshotStore backed by a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a pool against cfg, verifies connectivity, and ensures
// the routing_entries table exists.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS routing_entries (
			client_pubkey TEXT PRIMARY KEY,
			server_pubkey TEXT NOT NULL,
			server_address TEXT NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL,
			entry JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create routing_entries table: %w", err)
	}
	return nil
}

// Load returns every persisted routing entry.
func (s *Store) Load(ctx context.Context) ([]router.RoutingEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT entry FROM routing_entries ORDER BY observed_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query routing_entries: %w", err)
	}
	defer rows.Close()

	var entries []router.RoutingEntry
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan routing entry: %w", err)
		}
		var entry router.RoutingEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal routing entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating routing_entries: %w", err)
	}
	return entries, nil
}

// Save replaces the entire persisted table with entries, inside a
// transaction so a crash mid-write never leaves a partial snapshot.
func (s *Store) Save(ctx context.Context, entries []router.RoutingEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM routing_entries`); err != nil {
		return fmt.Errorf("failed to clear routing_entries: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal routing entry: %w", err)
		}
		batch.Queue(
			`INSERT INTO routing_entries (client_pubkey, server_pubkey, server_address, observed_at, entry)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (client_pubkey) DO UPDATE
			 SET server_pubkey = EXCLUDED.server_pubkey,
			     server_address = EXCLUDED.server_address,
			     observed_at = EXCLUDED.observed_at,
			     entry = EXCLUDED.entry`,
			identity.Encode(e.Client.PublicKey), identity.Encode(e.Server.PublicKey), e.Server.Address, e.ObservedAt, raw,
		)
	}
	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to insert routing entry: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Package postgres provides the Postgres-backed dedup slot store.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SlotStoreConfig controls the Postgres connection pool used for dedup rows.
type SlotStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// SlotStore persists (entity, slot) delivery records in Postgres.
// The table carries a primary key on (entity_id, slot), which is what makes
// Commit idempotent under concurrent callers.
type SlotStore struct {
	pool  pgxPool
	table string
}

// NewSlotStore creates a Postgres-backed SlotStore using the provided config.
func NewSlotStore(ctx context.Context, cfg SlotStoreConfig) (*SlotStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "sent_slots"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &SlotStore{pool: pool, table: table}, nil
}

// NewSlotStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewSlotStoreWithPool(pool pgxPool, table string) (*SlotStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "sent_slots"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SlotStore{pool: pool, table: table}, nil
}

// EnsureSchema creates the dedup table and its uniqueness constraint if absent.
func (s *SlotStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	entity_id TEXT NOT NULL,
	slot TEXT NOT NULL,
	sent_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity_id, slot)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Exists reports whether (entityID, slot) has already been recorded as sent.
func (s *SlotStore) Exists(ctx context.Context, entityID, slot string) (bool, error) {
	query := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE entity_id = $1 AND slot = $2)`, s.table)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, entityID, slot).Scan(&exists); err != nil {
		return false, fmt.Errorf("query sent slot: %w", err)
	}
	return exists, nil
}

// Commit records a confirmed delivery. A pair that already exists is not an
// error: the insert becomes a no-op and Commit reports inserted=false.
func (s *SlotStore) Commit(ctx context.Context, entityID, slot string, sentAt time.Time) (bool, error) {
	query := fmt.Sprintf(`
INSERT INTO %s (entity_id, slot, sent_at)
VALUES ($1, $2, $3)
ON CONFLICT (entity_id, slot) DO NOTHING`, s.table)
	tag, err := s.pool.Exec(ctx, query, entityID, slot, sentAt)
	if err != nil {
		return false, fmt.Errorf("insert sent slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// EvictOlderThan removes records sent strictly before cutoff and returns the
// number of rows removed. Eviction intentionally re-opens long-past slots for
// re-notification; it is a storage-bound retention policy, not a reset.
func (s *SlotStore) EvictOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE sent_at < $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evict sent slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping verifies the backing connection, for readiness checks.
func (s *SlotStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *SlotStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

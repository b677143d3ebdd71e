// Package storage holds dedup store implementations that are not backed by
// a real database.
package storage

import (
	"context"
	"time"
)

// NoOpStore is a dedup store that remembers nothing. Every slot looks new
// and every commit succeeds. It exists for local development against a quiet
// channel; running it in production would re-announce the same slots on every
// cycle, which is why it must be selected explicitly in configuration.
type NoOpStore struct{}

// Exists always reports false.
func (NoOpStore) Exists(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

// Commit always reports a fresh insert.
func (NoOpStore) Commit(_ context.Context, _, _ string, _ time.Time) (bool, error) {
	return true, nil
}

// EvictOlderThan has nothing to evict.
func (NoOpStore) EvictOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// Ping always succeeds.
func (NoOpStore) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (NoOpStore) Close() {}

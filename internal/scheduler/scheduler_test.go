package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

func testConfig() Config {
	return Config{
		PollInterval:   20 * time.Millisecond,
		RecoverBackoff: 20 * time.Millisecond,
		Retention:      720 * time.Hour,
	}
}

func entities(ids ...string) []watch.Entity {
	out := make([]watch.Entity, len(ids))
	for i, id := range ids {
		out[i] = watch.Entity{Identifier: id, QueryTemplate: "https://example.com/a.json"}
	}
	return out
}

func TestRunExecutesRepeatedCycles(t *testing.T) {
	t.Parallel()

	proc := newFakeProcessor()
	store := &fakeStore{}
	s := New(proc, store, realClock{}, entities("a"), testConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return proc.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Equal(t, StateIdle, s.State())
}

func TestRunIsolatesEntityPanics(t *testing.T) {
	t.Parallel()

	proc := newFakeProcessor()
	proc.panicFor["a"] = true
	proc.newSlotsFor["b"] = 2
	store := &fakeStore{}
	s := New(proc, store, realClock{}, entities("a", "b"), testConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return len(snap.Outcomes) == 2
	}, 2*time.Second, 5*time.Millisecond)

	snap := s.Snapshot()
	require.Contains(t, snap.Outcomes[0].Err, "panic")
	require.Equal(t, 2, snap.Outcomes[1].NewSlots)
	require.True(t, snap.Outcomes[1].Delivered, "sibling failure must not affect B")

	cancel()
	<-done
}

func TestRunEntersRecoveringOnEvictionFailure(t *testing.T) {
	t.Parallel()

	proc := newFakeProcessor()
	store := &fakeStore{evictErr: errors.New("db gone")}
	s := New(proc, store, realClock{}, entities("a"), testConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.State() == StateRecovering
	}, 2*time.Second, time.Millisecond)

	// the loop must keep trying rather than terminate
	require.Eventually(t, func() bool {
		return proc.count() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestRunStopsPromptlyDuringSleep(t *testing.T) {
	t.Parallel()

	proc := newFakeProcessor()
	store := &fakeStore{}
	cfg := testConfig()
	cfg.PollInterval = time.Hour
	s := New(proc, store, realClock{}, entities("a"), cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.State() == StateSleeping
	}, 2*time.Second, time.Millisecond)

	start := time.Now()
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestRunRecordsEvictionCount(t *testing.T) {
	t.Parallel()

	proc := newFakeProcessor()
	store := &fakeStore{evicted: 7}
	s := New(proc, store, realClock{}, entities("a"), testConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.Snapshot().Evicted == 7
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

// --- fakes ---

type fakeProcessor struct {
	mu          sync.Mutex
	calls       int
	panicFor    map[string]bool
	newSlotsFor map[string]int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		panicFor:    make(map[string]bool),
		newSlotsFor: make(map[string]int),
	}
}

func (p *fakeProcessor) Process(_ context.Context, entity watch.Entity) watch.EntityOutcome {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.panicFor[entity.Identifier] {
		panic("fetch exploded")
	}
	n := p.newSlotsFor[entity.Identifier]
	return watch.EntityOutcome{EntityID: entity.Identifier, NewSlots: n, Delivered: n > 0}
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeStore struct {
	evicted  int64
	evictErr error
}

func (s *fakeStore) Exists(_ context.Context, _, _ string) (bool, error) { return false, nil }

func (s *fakeStore) Commit(_ context.Context, _, _ string, _ time.Time) (bool, error) {
	return true, nil
}

func (s *fakeStore) EvictOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return s.evicted, s.evictErr
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

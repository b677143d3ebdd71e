// Package scheduler drives periodic, indefinite execution of the watch cycle.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Kumzy/doctolib-watcher/internal/metrics"
	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

// State is the scheduler's lifecycle state.
type State string

// Scheduler states.
const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateSleeping   State = "sleeping"
	StateRecovering State = "recovering"
)

// EntityProcessor runs one entity's watch pipeline.
type EntityProcessor interface {
	Process(ctx context.Context, entity watch.Entity) watch.EntityOutcome
}

// CycleSnapshot captures the result of the most recent cycle for the status API.
type CycleSnapshot struct {
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Outcomes   []watch.EntityOutcome `json:"outcomes"`
	Evicted    int64                 `json:"evicted"`
}

// Config controls cycle cadence and retention.
type Config struct {
	PollInterval   time.Duration
	RecoverBackoff time.Duration
	Retention      time.Duration
}

// Scheduler loops Running → Sleeping indefinitely, entering Recovering only
// when the cycle orchestration itself fails (individual entity failures are
// isolated inside the cycle). The loop has no terminal state except context
// cancellation; every wait is a cancellable suspension point.
type Scheduler struct {
	processor EntityProcessor
	store     watch.SlotStore
	clock     watch.Clock
	entities  []watch.Entity
	cfg       Config
	logger    *zap.Logger

	mu    sync.RWMutex
	state State
	last  CycleSnapshot
}

// New constructs a Scheduler.
func New(
	processor EntityProcessor,
	store watch.SlotStore,
	clock watch.Clock,
	entities []watch.Entity,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	metrics.SetWatchedEntities(len(entities))
	return &Scheduler{
		processor: processor,
		store:     store,
		clock:     clock,
		entities:  entities,
		cfg:       cfg,
		logger:    logger,
		state:     StateIdle,
	}
}

// Run blocks, executing cycles until the context is cancelled, and returns
// the context's error.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.setState(StateRunning)
		err := s.runCycle(ctx)
		if ctx.Err() != nil {
			s.setState(StateIdle)
			return ctx.Err()
		}
		if err != nil {
			metrics.ObserveCycle("recovering")
			s.logger.Error("cycle failed; backing off", zap.Error(err),
				zap.Duration("backoff", s.cfg.RecoverBackoff))
			s.setState(StateRecovering)
			if !s.pause(ctx, s.cfg.RecoverBackoff) {
				s.setState(StateIdle)
				return ctx.Err()
			}
			continue
		}
		metrics.ObserveCycle("ok")
		s.setState(StateSleeping)
		if !s.pause(ctx, s.cfg.PollInterval) {
			s.setState(StateIdle)
			return ctx.Err()
		}
	}
}

// State reports the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns the most recently completed cycle.
func (s *Scheduler) Snapshot() CycleSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// runCycle processes all entities concurrently, then runs a retention pass.
func (s *Scheduler) runCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	snap := CycleSnapshot{StartedAt: s.clock.Now()}
	s.logger.Info("cycle started", zap.Int("entities", len(s.entities)))

	outcomes := make([]watch.EntityOutcome, len(s.entities))
	var wg sync.WaitGroup
	for i, entity := range s.entities {
		wg.Add(1)
		go func(i int, entity watch.Entity) {
			defer wg.Done()
			// One entity blowing up must not take its siblings with it.
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = watch.EntityOutcome{
						EntityID: entity.Identifier,
						Err:      fmt.Sprintf("panic: %v", r),
					}
					s.logger.Error("entity processing panicked",
						zap.String("entity", entity.Identifier),
						zap.Any("panic", r),
					)
				}
			}()
			outcomes[i] = s.processor.Process(ctx, entity)
		}(i, entity)
	}
	wg.Wait()

	cutoff := s.clock.Now().Add(-s.cfg.Retention)
	evicted, evictErr := s.store.EvictOlderThan(ctx, cutoff)
	if evictErr != nil {
		return fmt.Errorf("retention eviction: %w", evictErr)
	}
	metrics.ObserveEviction(evicted)

	snap.FinishedAt = s.clock.Now()
	snap.Outcomes = outcomes
	snap.Evicted = evicted
	s.setSnapshot(snap)

	s.logger.Info("cycle finished",
		zap.Duration("elapsed", snap.FinishedAt.Sub(snap.StartedAt)),
		zap.Int64("evicted", evicted),
	)
	return nil
}

// pause sleeps for delay, returning false if the context ended first.
func (s *Scheduler) pause(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Scheduler) setSnapshot(snap CycleSnapshot) {
	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()
}

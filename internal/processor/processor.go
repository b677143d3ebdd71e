// Package processor runs the watch pipeline for a single entity.
package processor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Kumzy/doctolib-watcher/internal/metrics"
	"github.com/Kumzy/doctolib-watcher/internal/notifier"
	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

// Config controls window generation for each entity pass.
type Config struct {
	HorizonDays int
	WindowDays  int
}

// Processor drives Windower → Fetcher → Extractor → SlotStore → Notifier for
// one entity. Dedup records are committed only after the notifier confirms
// delivery; a failed delivery leaves every slot uncommitted so the next cycle
// retries the whole batch.
type Processor struct {
	fetcher  watch.Fetcher
	store    watch.SlotStore
	notifier watch.Notifier
	clock    watch.Clock
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Processor.
func New(
	fetcher watch.Fetcher,
	store watch.SlotStore,
	notif watch.Notifier,
	clock watch.Clock,
	cfg Config,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Processor{
		fetcher:  fetcher,
		store:    store,
		notifier: notif,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Process runs one full pass for the entity and reports its outcome.
func (p *Processor) Process(ctx context.Context, entity watch.Entity) watch.EntityOutcome {
	outcome := watch.EntityOutcome{EntityID: entity.Identifier}
	logger := p.logger.With(zap.String("entity", entity.Identifier))

	urls := watch.Windows(entity.QueryTemplate, p.clock.Now(), p.cfg.HorizonDays, p.cfg.WindowDays)
	if len(urls) == 0 {
		logger.Warn("no windows generated for entity")
		return outcome
	}

	slots := p.collectSlots(ctx, urls)
	newSlots := p.filterNew(ctx, entity.Identifier, slots, logger)
	outcome.NewSlots = len(newSlots)

	if len(newSlots) == 0 {
		// Silence on no news: an idle cycle must not ping the channel.
		logger.Debug("no new slots", zap.Int("seen", len(slots)))
		return outcome
	}

	msg := notifier.Build(entity.DisplayName(), newSlots, p.clock.Now())
	if !p.notifier.Notify(ctx, msg) {
		// Leave every slot uncommitted; the next cycle retries the batch.
		logger.Warn("delivery failed; slots left uncommitted", zap.Int("new_slots", len(newSlots)))
		return outcome
	}
	outcome.Delivered = true

	sentAt := p.clock.Now()
	for _, slot := range newSlots {
		if _, err := p.store.Commit(ctx, entity.Identifier, slot, sentAt); err != nil {
			// The slot may be re-notified next cycle; better twice than never.
			logger.Error("commit sent slot failed", zap.String("slot", slot), zap.Error(err))
		}
	}
	metrics.ObserveSlotsNotified(len(newSlots))
	logger.Info("notified new slots", zap.Int("new_slots", len(newSlots)))
	return outcome
}

// collectSlots fetches all windows concurrently and flattens their slots in
// window-generation order. Order only affects message readability.
func (p *Processor) collectSlots(ctx context.Context, urls []string) []string {
	results := make([]watch.FetchResult, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			results[i] = p.fetcher.Fetch(ctx, u)
		}(i, u)
	}
	wg.Wait()

	var slots []string
	for _, result := range results {
		slots = append(slots, watch.ExtractSlots(result)...)
	}
	return slots
}

// filterNew keeps the slots with no dedup record yet, preserving order.
// A store error skips the slot for this cycle: risking a missed notification
// beats risking a duplicate one.
func (p *Processor) filterNew(ctx context.Context, entityID string, slots []string, logger *zap.Logger) []string {
	var fresh []string
	for _, slot := range slots {
		exists, err := p.store.Exists(ctx, entityID, slot)
		if err != nil {
			logger.Error("dedup lookup failed; skipping slot this cycle",
				zap.String("slot", slot), zap.Error(err))
			continue
		}
		if !exists {
			fresh = append(fresh, slot)
		}
	}
	return fresh
}

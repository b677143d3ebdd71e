// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Kumzy/doctolib-watcher/internal/api"
	"github.com/Kumzy/doctolib-watcher/internal/clock/system"
	"github.com/Kumzy/doctolib-watcher/internal/config"
	collyfetcher "github.com/Kumzy/doctolib-watcher/internal/fetcher/colly"
	"github.com/Kumzy/doctolib-watcher/internal/logging"
	"github.com/Kumzy/doctolib-watcher/internal/notifier"
	"github.com/Kumzy/doctolib-watcher/internal/policy/ratelimit"
	"github.com/Kumzy/doctolib-watcher/internal/processor"
	"github.com/Kumzy/doctolib-watcher/internal/scheduler"
	"github.com/Kumzy/doctolib-watcher/internal/storage"
	"github.com/Kumzy/doctolib-watcher/internal/storage/postgres"
	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

// Store is what App requires from a dedup store implementation: the watcher
// contract plus readiness checks and shutdown.
type Store interface {
	watch.SlotStore
	watch.Pinger
	Close()
}

// App holds all the shared, long-lived services for the application.
// It is initialized once at startup and passed to the commands that need it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     Store
	notifier  watch.Notifier
	scheduler *scheduler.Scheduler
	httpSrv   *http.Server
}

// New creates and initializes an App from the loaded configuration.
// It is the central point for service initialization and fails fast if any
// critical service cannot be reached.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	logger.Info("initializing application services")

	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	notif, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.Fetch.PerHostRPS})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout,
		MaxConns:  cfg.Fetch.MaxConns,
		JitterMin: cfg.Fetch.JitterMin,
		JitterMax: cfg.Fetch.JitterMax,
	}, limiter, logger)

	clk := system.New()
	proc := processor.New(fetcher, store, notif, clk, processor.Config{
		HorizonDays: cfg.Watcher.HorizonDays,
		WindowDays:  cfg.Watcher.WindowDays,
	}, logger)
	sched := scheduler.New(proc, store, clk, cfg.Entities, scheduler.Config{
		PollInterval:   cfg.Watcher.PollInterval,
		RecoverBackoff: cfg.Watcher.RecoverBackoff,
		Retention:      cfg.Watcher.Retention,
	}, logger)

	srv := api.NewServer(sched, store, cfg.Entities, logger)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("application services initialized",
		zap.Int("entities", len(cfg.Entities)),
		zap.String("database_provider", cfg.Database.Provider),
		zap.String("notifier_provider", cfg.Notifier.Provider),
	)

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		notifier:  notif,
		scheduler: sched,
		httpSrv:   httpSrv,
	}, nil
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Database.Provider {
	case "postgres":
		logger.Info("connecting to postgres", zap.String("table", cfg.Database.Table))
		store, err := postgres.NewSlotStore(ctx, postgres.SlotStoreConfig{
			DSN:      cfg.Database.DSN,
			Table:    cfg.Database.Table,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil
	case "noop":
		logger.Warn("using no-op store, every slot will look new each cycle")
		return storage.NoOpStore{}, nil
	default:
		return nil, fmt.Errorf("unknown database provider: %s", cfg.Database.Provider)
	}
}

func buildNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (watch.Notifier, error) {
	switch cfg.Notifier.Provider {
	case "webhook":
		return notifier.NewWebhook(cfg.Notifier.Webhook.URL, cfg.Notifier.Webhook.Timeout, logger), nil
	case "pubsub":
		n, err := notifier.NewPubSub(ctx, cfg.Notifier.PubSub.ProjectID, cfg.Notifier.PubSub.TopicID, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize pubsub notifier: %w", err)
		}
		return n, nil
	case "noop":
		logger.Warn("using no-op notifier, nothing will be delivered")
		return notifier.NewNoOp(logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier provider: %s", cfg.Notifier.Provider)
	}
}

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run starts the status HTTP server and blocks in the watch loop until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	go func() {
		a.logger.Info("starting status server", zap.String("addr", a.httpSrv.Addr))
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("status server failed", zap.Error(err))
		}
	}()

	err := a.scheduler.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	a.logger.Info("shutting down application services")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("error shutting down status server", zap.Error(err))
	}

	if c, ok := a.notifier.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("error closing notifier", zap.Error(err))
		}
	}
	a.store.Close()

	// Best effort: logging itself may be the thing failing at this point.
	_ = a.logger.Sync()
}

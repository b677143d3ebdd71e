package watch

import (
	"context"
	"time"
)

// Fetcher issues one upstream request for a dated query URL.
// Implementations must swallow transport and HTTP failures: any non-2xx
// status, timeout, or malformed body comes back as an empty FetchResult,
// never an error, so one bad window cannot poison a cycle.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// SlotStore is the durable set of (entity, slot) pairs already notified.
// It is the only state shared across concurrent entity tasks and must be
// safe for concurrent use; Commit relies on a unique constraint rather
// than external locking.
type SlotStore interface {
	// Exists reports whether a delivery for (entityID, slot) was already recorded.
	Exists(ctx context.Context, entityID, slot string) (bool, error)

	// Commit records a confirmed delivery. It is idempotent: inserting a pair
	// that already exists is a no-op and returns inserted=false, not an error.
	Commit(ctx context.Context, entityID, slot string, sentAt time.Time) (inserted bool, err error)

	// EvictOlderThan removes records whose sentAt is strictly before cutoff
	// and returns how many rows were removed.
	EvictOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier delivers one formatted message to the configured channel.
// It reports delivery success as a bool; failures are logged by the
// implementation and never surface as errors, since the caller's only
// decision is whether to commit the dedup records.
type Notifier interface {
	Notify(ctx context.Context, msg Message) bool
}

// Pinger is implemented by stores that can verify their backing connection,
// used by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

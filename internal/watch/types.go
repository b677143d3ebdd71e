// Package watch defines core types shared across the watcher subsystems.
package watch

import (
	"time"
)

// Entity is one watched subject: a stable identifier plus the upstream
// availability query template it is polled with.
type Entity struct {
	Identifier    string `json:"identifier" mapstructure:"identifier"`
	Name          string `json:"name" mapstructure:"name"`
	QueryTemplate string `json:"query_template" mapstructure:"query_template"`
}

// DisplayName returns the human label used in notification messages.
func (e Entity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Identifier
}

// FetchResult is the raw outcome of fetching one dated query.
// A zero-value result means the window yielded no data; fetch failures
// collapse into it rather than propagating.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Empty reports whether the result carries no usable body.
func (r FetchResult) Empty() bool {
	return len(r.Body) == 0
}

// Message is the formatted notification for one entity's batch of new slots.
type Message struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Color     int       `json:"color"`
	Timestamp time.Time `json:"timestamp"`
	Footer    string    `json:"footer"`
}

// SentSlotRecord is one durable dedup row: a slot that was confirmed
// delivered for an entity. No two records share (EntityID, Slot).
type SentSlotRecord struct {
	EntityID string    `json:"entity_id"`
	Slot     string    `json:"slot"`
	SentAt   time.Time `json:"sent_at"`
}

// EntityOutcome summarizes one entity's pass within a cycle.
type EntityOutcome struct {
	EntityID  string `json:"entity_id"`
	NewSlots  int    `json:"new_slots"`
	Delivered bool   `json:"delivered"`
	Err       string `json:"error,omitempty"`
}

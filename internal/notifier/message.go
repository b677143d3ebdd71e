// Package notifier formats and delivers new-slot notifications.
package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

// maxSlotsPerMessage caps the slot list so one noisy entity cannot flood
// the channel; the remainder is summarized.
const maxSlotsPerMessage = 10

const colorNewSlots = 0x2ECC71

// Build composes the single message covering one entity's batch of new slots.
func Build(entityName string, slots []string, now time.Time) watch.Message {
	shown := slots
	if len(shown) > maxSlotsPerMessage {
		shown = shown[:maxSlotsPerMessage]
	}
	lines := make([]string, 0, len(shown))
	for _, slot := range shown {
		lines = append(lines, FormatSlot(slot))
	}
	body := strings.Join(lines, "\n")
	if extra := len(slots) - maxSlotsPerMessage; extra > 0 {
		body += fmt.Sprintf("\n... and %d more slots", extra)
	}
	return watch.Message{
		Title:     "New slots for " + entityName,
		Body:      body,
		Color:     colorNewSlots,
		Timestamp: now,
		Footer:    "slotwatcher",
	}
}

// FormatSlot renders an upstream slot timestamp for humans. Slots are opaque
// dedup keys; formatting only normalizes the display, so anything that does
// not parse as RFC 3339 passes through verbatim.
func FormatSlot(slot string) string {
	t, err := time.Parse(time.RFC3339, slot)
	if err != nil {
		return slot
	}
	return t.Format("2006-01-02 15:04")
}

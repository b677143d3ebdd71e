package processor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	collyfetcher "github.com/Kumzy/doctolib-watcher/internal/fetcher/colly"
	"github.com/Kumzy/doctolib-watcher/internal/notifier"
	"github.com/Kumzy/doctolib-watcher/internal/processor"
	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

// TestPipelineEndToEnd runs the real fetcher and webhook notifier against
// local HTTP servers: one cycle announces the upstream's slot exactly once,
// a second cycle over unchanged upstream data stays silent.
func TestPipelineEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("start_date"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"availabilities":[{"date":"2025-06-10","slots":["2025-06-10T09:00:00Z"]}]}`))
	}))
	defer upstream.Close()

	var (
		mu       sync.Mutex
		received []watch.Message
	)
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg watch.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	entity := watch.Entity{
		Identifier:    "e2e-entity",
		Name:          "Dr. End-to-End",
		QueryTemplate: upstream.URL + "/availabilities?start_date=2025-01-01&visit_motive_ids=42",
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		Timeout: 5 * time.Second,
	}, nil, zap.NewNop())
	notif := notifier.NewWebhook(webhook.URL, 5*time.Second, zap.NewNop())
	store := newMemStore()
	clock := fixedClock{now: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}

	proc := processor.New(fetcher, store, notif, clock, processor.Config{
		HorizonDays: 15,
		WindowDays:  15,
	}, zap.NewNop())

	outcome := proc.Process(context.Background(), entity)
	require.Empty(t, outcome.Err)
	assert.Equal(t, 1, outcome.NewSlots)
	assert.True(t, outcome.Delivered)

	mu.Lock()
	require.Len(t, received, 1)
	assert.Equal(t, "New slots for Dr. End-to-End", received[0].Title)
	assert.Contains(t, received[0].Body, "2025-06-10 09:00")
	mu.Unlock()

	assert.Equal(t, 1, store.size())

	// Same upstream data again: everything is already committed.
	outcome = proc.Process(context.Background(), entity)
	require.Empty(t, outcome.Err)
	assert.Zero(t, outcome.NewSlots)
	assert.False(t, outcome.Delivered)

	mu.Lock()
	assert.Len(t, received, 1)
	mu.Unlock()
	assert.Equal(t, 1, store.size())
}

type memStore struct {
	mu      sync.Mutex
	records map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]time.Time)}
}

func (m *memStore) Exists(_ context.Context, entityID, slot string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[entityID+"|"+slot]
	return ok, nil
}

func (m *memStore) Commit(_ context.Context, entityID, slot string, sentAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := entityID + "|" + slot
	if _, ok := m.records[key]; ok {
		return false, nil
	}
	m.records[key] = sentAt
	return true, nil
}

func (m *memStore) EvictOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, sentAt := range m.records {
		if sentAt.Before(cutoff) {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}

func (m *memStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

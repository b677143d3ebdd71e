package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kumzy/doctolib-watcher/internal/scheduler"
	"github.com/Kumzy/doctolib-watcher/internal/watch"
)

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeStatus{}, &fakePinger{})

	resp := doGet(t, srv, "/healthz")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestReadyzStoreHealthy(t *testing.T) {
	srv := newTestServer(t, &fakeStatus{}, &fakePinger{})

	resp := doGet(t, srv, "/readyz")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyzStoreUnreachable(t *testing.T) {
	srv := newTestServer(t, &fakeStatus{}, &fakePinger{err: errors.New("connection refused")})

	resp := doGet(t, srv, "/readyz")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestListEntitiesOmitsQueryTemplates(t *testing.T) {
	entities := []watch.Entity{
		{Identifier: "id-1", Name: "Dr. Example", QueryTemplate: "https://upstream.example/avail?key=secret"},
		{Identifier: "id-2", QueryTemplate: "https://upstream.example/avail2"},
	}
	srv := newTestServer(t, &fakeStatus{}, &fakePinger{}, entities...)

	resp := doGet(t, srv, "/v1/entities")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var views []map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	require.Len(t, views, 2)
	assert.Equal(t, "id-1", views[0]["identifier"])
	assert.Equal(t, "Dr. Example", views[0]["name"])
	assert.NotContains(t, views[0], "query_template")
}

func TestGetStatus(t *testing.T) {
	started := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	status := &fakeStatus{
		state: scheduler.StateSleeping,
		snapshot: scheduler.CycleSnapshot{
			StartedAt: started,
			Outcomes: []watch.EntityOutcome{
				{EntityID: "id-1", NewSlots: 3, Delivered: true},
			},
			Evicted: 7,
		},
	}
	srv := newTestServer(t, status, &fakePinger{})

	resp := doGet(t, srv, "/v1/status")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view struct {
		State     string                  `json:"state"`
		LastCycle scheduler.CycleSnapshot `json:"last_cycle"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "sleeping", view.State)
	assert.Equal(t, int64(7), view.LastCycle.Evicted)
	require.Len(t, view.LastCycle.Outcomes, 1)
	assert.True(t, view.LastCycle.Outcomes[0].Delivered)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeStatus{}, &fakePinger{})

	resp := doGet(t, srv, "/metrics")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func newTestServer(t *testing.T, status StatusSource, pinger watch.Pinger, entities ...watch.Entity) *httptest.Server {
	t.Helper()
	s := NewServer(status, pinger, entities, zap.NewNop())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doGet(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	return resp
}

type fakeStatus struct {
	state    scheduler.State
	snapshot scheduler.CycleSnapshot
}

func (f *fakeStatus) State() scheduler.State            { return f.state }
func (f *fakeStatus) Snapshot() scheduler.CycleSnapshot { return f.snapshot }

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

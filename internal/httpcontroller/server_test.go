package httpcontroller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-listener/internal/analysis/processor"
	"github.com/tphakala/birdnet-listener/internal/datastore"
	"github.com/tphakala/birdnet-listener/internal/observability"
	"github.com/tphakala/birdnet-listener/internal/rendercache"
	"github.com/tphakala/birdnet-listener/internal/suncalc"
)

var now = time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)

type fakeStore struct {
	records []datastore.Record
	err     error
	reads   atomic.Int32
}

func (f *fakeStore) ReadAll() ([]datastore.Record, error) {
	f.reads.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

type fixedHealth processor.Health

func (h fixedHealth) Health() processor.Health { return processor.Health(h) }

func scenarioStore() *fakeStore {
	return &fakeStore{records: []datastore.Record{
		{Timestamp: now.Add(-10 * time.Minute), Species: "Merel", Confidence: 0.9},
		{Timestamp: now.Add(-2 * time.Hour), Species: "Merel", Confidence: 0.6},
		{Timestamp: now.Add(-10 * 24 * time.Hour), Species: "Roodborst", Confidence: 0.99},
	}}
}

func testConfig() Config {
	return Config{
		Title:       "Garden",
		Refresh:     time.Minute,
		Recent:      20,
		TopSpecies:  10,
		HeatmapDays: 7,
		Threshold:   0.75,
		Window:      30 * time.Second,
		Location:    time.UTC,
	}
}

func newTestServer(t *testing.T, store RecordReader, opts ...Option) *Server {
	t.Helper()
	clock := func() time.Time { return now }
	cache := rendercache.New(rendercache.WithClock(clock))
	return New(testConfig(), store, cache, append([]Option{WithClock(clock)}, opts...)...)
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestIndexPage(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, scenarioStore())
	rec := get(s, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Garden</title>")
	assert.Contains(t, body, `content="60"`)
	assert.Contains(t, body, "/activity.png?2026101914")
	assert.Contains(t, body, "Merel")
	assert.Contains(t, body, "last 24 hours")
	assert.NotContains(t, body, `class="banner"`)
}

func TestIndexPageShowsBannerOnStoreError(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeStore{err: errors.New("disk gone")})
	rec := get(s, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk gone")
	assert.Contains(t, rec.Body.String(), "No detections yet")
}

func TestIndexPageShowsStaleIngestion(t *testing.T) {
	t.Parallel()

	health := fixedHealth{FirstWindow: now.Add(-time.Hour), LastSuccess: now.Add(-10 * time.Minute), Processed: 12}
	s := newTestServer(t, scenarioStore(), WithHealth(health))
	body := get(s, "/").Body.String()

	assert.Contains(t, body, "No audio window has been processed since")
	assert.Contains(t, body, "Windows processed")
}

func TestActivityPNGIsCachedForTheHour(t *testing.T) {
	t.Parallel()

	store := scenarioStore()
	s := newTestServer(t, store)

	first := get(s, "/activity.png")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "image/png", first.Header().Get("Content-Type"))
	assert.Equal(t, "private, max-age=1800", first.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(first.Body.String(), "\x89PNG"))

	second := get(s, "/activity.png")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, int32(1), store.reads.Load())
}

func TestActivityPNGStoreFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeStore{err: errors.New("disk gone")})
	assert.Equal(t, http.StatusInternalServerError, get(s, "/activity.png").Code)
}

func TestSpeciesActivity(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, scenarioStore())

	rec := get(s, "/species_activity/merel")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	assert.Equal(t, http.StatusNotFound, get(s, "/species_activity/Koolmees").Code)
}

func TestActivityChart(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, scenarioStore())
	rec := get(s, "/charts/activity")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Garden activity")
}

func TestSummaryAPI(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, scenarioStore())
	rec := get(s, "/api/v1/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Total  int `json:"total"`
		Counts []struct {
			Label string `json:"label"`
			Count int    `json:"count"`
		} `json:"counts"`
		Confident []struct {
			Species string `json:"species"`
			Count   int    `json:"count"`
		} `json:"confident_species"`
		Latest []map[string]any `json:"latest"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.Equal(t, 3, got.Total)
	require.Len(t, got.Counts, 4)
	assert.Equal(t, 2, got.Counts[0].Count)
	assert.Equal(t, 3, got.Counts[3].Count)
	require.Len(t, got.Confident, 1)
	assert.Equal(t, "Merel", got.Confident[0].Species)
	assert.Equal(t, 1, got.Confident[0].Count)
	require.Len(t, got.Latest, 3)
	for _, row := range got.Latest {
		assert.Contains(t, row, "timestamp")
		assert.Contains(t, row, "species")
		assert.Contains(t, row, "confidence")
		assert.NotContains(t, row, "Species")
	}

	failing := newTestServer(t, &fakeStore{err: errors.New("disk gone")})
	assert.Equal(t, http.StatusServiceUnavailable, get(failing, "/api/v1/summary").Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		health HealthSource
		want   int
		status string
	}{
		{"no ingestion", nil, http.StatusOK, "ok"},
		{"not started", fixedHealth{}, http.StatusOK, "ok"},
		{"fresh", fixedHealth{FirstWindow: now.Add(-time.Hour), LastSuccess: now.Add(-time.Minute)}, http.StatusOK, "ok"},
		{"stale", fixedHealth{FirstWindow: now.Add(-time.Hour), LastSuccess: now.Add(-91 * time.Second)}, http.StatusServiceUnavailable, "stale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var opts []Option
			if tt.health != nil {
				opts = append(opts, WithHealth(tt.health))
			}
			rec := get(newTestServer(t, scenarioStore(), opts...), "/health")
			assert.Equal(t, tt.want, rec.Code)

			var body struct {
				Status string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := newTestServer(t, scenarioStore(), WithMetrics(m))

	require.Equal(t, http.StatusOK, get(s, "/api/v1/summary").Code)

	rec := get(s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `birdnet_http_requests_total{method="GET",route="/api/v1/summary",status="200"} 1`)

	count, err := testutil.GatherAndCount(m.Registry(), "birdnet_http_requests_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}

func TestMetricsEndpointDisabled(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, scenarioStore())
	assert.Equal(t, http.StatusNotFound, get(s, "/metrics").Code)
}

func TestNoMutationRoutes(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, scenarioStore())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/summary", http.NoBody)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStartStopsOnCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Listen = "127.0.0.1:0"
	s := New(cfg, scenarioStore(), rendercache.New())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Echo.ListenerAddr() != nil }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSinceFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "just now", since(now.Add(-10*time.Second), now))
	assert.Equal(t, "10 min ago", since(now.Add(-10*time.Minute), now))
	assert.Equal(t, "2 h ago", since(now.Add(-2*time.Hour), now))
	assert.Equal(t, "10 d ago", since(now.Add(-10*24*time.Hour), now))
	assert.Equal(t, "-", since(time.Time{}, now))
}

type fakeSun struct{ err error }

func (f fakeSun) Times(date time.Time) (suncalc.SunTimes, error) {
	if f.err != nil {
		return suncalc.SunTimes{}, f.err
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return suncalc.SunTimes{
		CivilDawn: day.Add(7*time.Hour + 45*time.Minute),
		Sunrise:   day.Add(8*time.Hour + 19*time.Minute),
		Sunset:    day.Add(18*time.Hour + 34*time.Minute),
		CivilDusk: day.Add(19*time.Hour + 8*time.Minute),
	}, nil
}

func TestIndexPageShowsSunTimes(t *testing.T) {
	t.Parallel()

	body := get(newTestServer(t, scenarioStore(), WithSunTimes(fakeSun{})), "/").Body.String()
	assert.Contains(t, body, "Sunrise 08:19")
	assert.Contains(t, body, "Sunset 18:34")

	body = get(newTestServer(t, scenarioStore(), WithSunTimes(fakeSun{err: errors.New("polar night")})), "/").Body.String()
	assert.NotContains(t, body, "Sunrise")
}

func TestHealthReportsDiskUsage(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.DiskPath = t.TempDir()
	clock := func() time.Time { return now }
	s := New(cfg, scenarioStore(), rendercache.New(rendercache.WithClock(clock)), WithClock(clock))

	rec := get(s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string `json:"status"`
		Disk   struct {
			Path       string `json:"path"`
			TotalBytes uint64 `json:"total_bytes"`
		} `json:"disk"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, cfg.DiskPath, body.Disk.Path)
	assert.Positive(t, body.Disk.TotalBytes)

	assert.Contains(t, get(s, "/").Body.String(), "Storage ")
}

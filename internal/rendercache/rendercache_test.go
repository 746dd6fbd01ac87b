package rendercache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-listener/internal/observability/metrics"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func counter(calls *atomic.Int32, payload string) func() ([]byte, error) {
	return func() ([]byte, error) {
		n := calls.Add(1)
		return []byte(payload + string(rune('0'+n))), nil
	}
}

func TestHourKey(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 10, 19, 7, 59, 59, 0, time.UTC)
	assert.Equal(t, "2026101907", HourKey(ts))
	assert.Equal(t, "2026101908", HourKey(ts.Add(time.Second)))
}

func TestGetOrRenderServesSameHourFromCache(t *testing.T) {
	t.Parallel()

	clk := &clock{t: time.Date(2026, 10, 19, 7, 5, 0, 0, time.UTC)}
	c := New(WithClock(clk.Now))

	var calls atomic.Int32
	first, err := c.GetOrRender(Activity, counter(&calls, "png"))
	require.NoError(t, err)

	clk.Set(clk.Now().Add(50 * time.Minute))
	second, err := c.GetOrRender(Activity, counter(&calls, "png"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrRenderRegeneratesOncePerNewHour(t *testing.T) {
	t.Parallel()

	clk := &clock{t: time.Date(2026, 10, 19, 7, 5, 0, 0, time.UTC)}
	c := New(WithClock(clk.Now))

	var calls atomic.Int32
	_, err := c.GetOrRender(Activity, counter(&calls, "png"))
	require.NoError(t, err)

	clk.Set(time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC))
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, err := c.GetOrRender(Activity, counter(&calls, "png"))
			assert.NoError(t, err)
			assert.Equal(t, "png2", string(payload))
		}()
	}
	wg.Wait()

	for range 5 {
		_, err := c.GetOrRender(Activity, counter(&calls, "png"))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestNamespacesAreIndependent(t *testing.T) {
	t.Parallel()

	c := New()

	var calls atomic.Int32
	a, err := c.GetOrRender(Activity, counter(&calls, "a"))
	require.NoError(t, err)
	h, err := c.GetOrRender(ActivityHTML, counter(&calls, "h"))
	require.NoError(t, err)
	s, err := c.GetOrRender(SpeciesNamespace("Merel"), counter(&calls, "s"))
	require.NoError(t, err)

	assert.Equal(t, "a1", string(a))
	assert.Equal(t, "h2", string(h))
	assert.Equal(t, "s3", string(s))

	s, err = c.GetOrRender(SpeciesNamespace(" merel "), counter(&calls, "s"))
	require.NoError(t, err)
	assert.Equal(t, "s3", string(s))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRenderErrorIsNotCached(t *testing.T) {
	t.Parallel()

	c := New()
	boom := errors.New("boom")

	_, err := c.GetOrRender(Activity, func() ([]byte, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	payload, err := c.GetOrRender(Activity, func() ([]byte, error) { return []byte("ok"), nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", string(payload))
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	c := New()
	var calls atomic.Int32

	_, err := c.GetOrRender(Activity, counter(&calls, "a"))
	require.NoError(t, err)
	_, err = c.GetOrRender(SpeciesNamespace("Vink"), counter(&calls, "s"))
	require.NoError(t, err)

	c.Invalidate()

	_, err = c.GetOrRender(Activity, counter(&calls, "a"))
	require.NoError(t, err)
	_, err = c.GetOrRender(SpeciesNamespace("Vink"), counter(&calls, "s"))
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestCacheMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewCacheMetrics(registry)
	require.NoError(t, err)

	c := New(WithMetrics(m))
	var calls atomic.Int32
	for range 3 {
		_, err := c.GetOrRender(Activity, counter(&calls, "a"))
		require.NoError(t, err)
	}
	_, err = c.GetOrRender(SpeciesNamespace("Merel"), counter(&calls, "s"))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(registry, "birdnet_render_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "activity hit, activity miss, species miss")
}

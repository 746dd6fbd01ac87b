// Package rendercache memoizes rendered dashboard artifacts for the
// current calendar hour.
package rendercache

import (
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/observability/metrics"
)

// Fixed namespaces.
const (
	Activity     = "activity"
	ActivityHTML = "activity-html"

	speciesPrefix = "species/"
)

// DefaultSpeciesTTL is how long an unused species slot is kept.
const DefaultSpeciesTTL = 2 * time.Hour

// HourKey returns the validity key of the hour containing t, YYYYMMDDHH.
func HourKey(t time.Time) string {
	return t.Format(conf.HourKeyLayout)
}

// SpeciesNamespace returns the namespace of a per-species artifact.
func SpeciesNamespace(species string) string {
	return speciesPrefix + strings.ToLower(strings.TrimSpace(species))
}

type entry struct {
	key     string
	payload []byte
}

// Cache holds one slot per namespace. A slot is valid while its key
// equals the hour key of now; a stale slot is replaced, never appended to.
// Payloads are shared between callers and must not be modified.
type Cache struct {
	mu    sync.RWMutex
	whole map[string]entry

	species *cache.Cache
	group   singleflight.Group

	now     func() time.Time
	metrics *metrics.CacheMetrics
	log     logger.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMetrics enables hit and miss counters.
func WithMetrics(m *metrics.CacheMetrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithSpeciesTTL sets how long species slots live.
func WithSpeciesTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.species = cache.New(ttl, ttl)
		}
	}
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		whole:   make(map[string]entry),
		species: cache.New(DefaultSpeciesTTL, DefaultSpeciesTTL),
		now:     time.Now,
		log:     logger.Global().Module("rendercache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrRender returns the payload cached for namespace in the current
// hour, calling render when the slot is empty or stale. Concurrent misses
// on one namespace share a single render. A failed render is returned and
// leaves the slot untouched.
func (c *Cache) GetOrRender(namespace string, render func() ([]byte, error)) ([]byte, error) {
	key := HourKey(c.now())

	if payload, ok := c.lookup(namespace, key); ok {
		c.metrics.RecordHit(metricNamespace(namespace))
		return payload, nil
	}
	c.metrics.RecordMiss(metricNamespace(namespace))

	v, err, _ := c.group.Do(namespace+"@"+key, func() (any, error) {
		if payload, ok := c.lookup(namespace, key); ok {
			return payload, nil
		}

		start := time.Now()
		payload, err := render()
		c.metrics.ObserveRender(metricNamespace(namespace), time.Since(start), err)
		if err != nil {
			return nil, errors.New(err).
				Component("rendercache").
				Category(errors.CategoryRender).
				Context("namespace", namespace).
				Context("hour_key", key).
				Build()
		}

		c.store(namespace, entry{key: key, payload: payload})
		c.log.Debug("rendered",
			logger.String("namespace", namespace),
			logger.String("hour_key", key),
			logger.Int("bytes", len(payload)),
			logger.Duration("elapsed", time.Since(start)))
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate empties every slot.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	clear(c.whole)
	c.mu.Unlock()
	c.species.Flush()
}

func (c *Cache) lookup(namespace, key string) ([]byte, bool) {
	var e entry
	if strings.HasPrefix(namespace, speciesPrefix) {
		v, found := c.species.Get(namespace)
		if !found {
			return nil, false
		}
		e = v.(entry)
	} else {
		c.mu.RLock()
		var found bool
		e, found = c.whole[namespace]
		c.mu.RUnlock()
		if !found {
			return nil, false
		}
	}
	if e.key != key {
		return nil, false
	}
	return e.payload, true
}

func (c *Cache) store(namespace string, e entry) {
	if strings.HasPrefix(namespace, speciesPrefix) {
		c.species.Set(namespace, e, cache.DefaultExpiration)
		return
	}
	c.mu.Lock()
	c.whole[namespace] = e
	c.mu.Unlock()
}

// metricNamespace keeps species names out of metric labels.
func metricNamespace(namespace string) string {
	if strings.HasPrefix(namespace, speciesPrefix) {
		return "species"
	}
	return namespace
}

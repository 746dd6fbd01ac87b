// Package suncalc computes civil twilight, sunrise and sunset for the
// station location.
package suncalc

import (
	"fmt"
	"sync"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// maxCachedDays bounds the per-day cache.
const maxCachedDays = 31

// SunTimes holds the sun events of one day in the calculator's zone.
type SunTimes struct {
	CivilDawn time.Time
	Sunrise   time.Time
	Sunset    time.Time
	CivilDusk time.Time
}

// Calculator computes and caches sun times per calendar day.
type Calculator struct {
	observer astral.Observer
	loc      *time.Location

	mu    sync.RWMutex
	cache map[string]SunTimes
}

// New returns a calculator for the location. Times are reported in loc,
// time.Local when nil.
func New(latitude, longitude float64, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{
		observer: astral.Observer{Latitude: latitude, Longitude: longitude},
		loc:      loc,
		cache:    make(map[string]SunTimes),
	}
}

// Times returns the sun events of the calendar day of date. Near the poles
// some events do not happen and an error is returned.
func (c *Calculator) Times(date time.Time) (SunTimes, error) {
	date = date.In(c.loc)
	key := date.Format(time.DateOnly)

	c.mu.RLock()
	times, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return times, nil
	}

	times, err := c.calculate(date)
	if err != nil {
		return SunTimes{}, err
	}

	c.mu.Lock()
	if len(c.cache) >= maxCachedDays {
		clear(c.cache)
	}
	c.cache[key] = times
	c.mu.Unlock()

	return times, nil
}

func (c *Calculator) calculate(date time.Time) (SunTimes, error) {
	// astral uses the calendar date of its argument.
	day := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, time.UTC)

	dawn, err := astral.Dawn(c.observer, day, astral.DepressionCivil)
	if err != nil {
		return SunTimes{}, fmt.Errorf("failed to calculate civil dawn: %w", err)
	}
	sunrise, err := astral.Sunrise(c.observer, day)
	if err != nil {
		return SunTimes{}, fmt.Errorf("failed to calculate sunrise: %w", err)
	}
	sunset, err := astral.Sunset(c.observer, day)
	if err != nil {
		return SunTimes{}, fmt.Errorf("failed to calculate sunset: %w", err)
	}
	dusk, err := astral.Dusk(c.observer, day, astral.DepressionCivil)
	if err != nil {
		return SunTimes{}, fmt.Errorf("failed to calculate civil dusk: %w", err)
	}

	return SunTimes{
		CivilDawn: dawn.In(c.loc),
		Sunrise:   sunrise.In(c.loc),
		Sunset:    sunset.In(c.loc),
		CivilDusk: dusk.In(c.loc),
	}, nil
}

package stats

import (
	"fmt"
	"slices"
	"time"

	"github.com/tphakala/birdnet-listener/internal/datastore"
)

// Granularity is the width of a GroupBy block.
type Granularity string

const (
	FiveMinutes Granularity = "5min"
	Minute      Granularity = "minute"
	Hour        Granularity = "hour"
	Day         Granularity = "day"
	Week        Granularity = "week"
)

// ParseGranularity validates a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case FiveMinutes, Minute, Hour, Day, Week:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// Bucket is the record count of one block.
type Bucket struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// Truncate returns the start of the block containing t, in t's location.
// Weeks start on Monday.
func (g Granularity) Truncate(t time.Time) time.Time {
	y, mo, d := t.Date()
	switch g {
	case FiveMinutes:
		return time.Date(y, mo, d, t.Hour(), t.Minute()-t.Minute()%5, 0, 0, t.Location())
	case Minute:
		return time.Date(y, mo, d, t.Hour(), t.Minute(), 0, 0, t.Location())
	case Hour:
		return time.Date(y, mo, d, t.Hour(), 0, 0, 0, t.Location())
	case Day:
		return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
	case Week:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, mo, d-offset, 0, 0, 0, 0, t.Location())
	}
	return t
}

// GroupBy counts records per block, oldest block first. Empty blocks are
// not returned.
func GroupBy(records []datastore.Record, g Granularity) []Bucket {
	counts := make(map[time.Time]int)
	for i := range records {
		counts[g.Truncate(records[i].Timestamp)]++
	}

	buckets := make([]Bucket, 0, len(counts))
	for start, n := range counts {
		buckets = append(buckets, Bucket{Start: start, Count: n})
	}
	slices.SortFunc(buckets, func(a, b Bucket) int {
		return a.Start.Compare(b.Start)
	})
	return buckets
}

// Package stats computes the dashboard aggregates from the full list of
// stored detections. Every function is pure: it takes the records and
// the reference time and recomputes from scratch.
package stats

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/tphakala/birdnet-listener/internal/datastore"
)

// HoursPerDay is the column count of an activity matrix.
const HoursPerDay = 24

// SpeciesCount is one row of a frequency table.
type SpeciesCount struct {
	Species string `json:"species"`
	Count   int    `json:"count"`
}

// inWindow reports whether ts lies in (now-d, now].
func inWindow(ts, now time.Time, d time.Duration) bool {
	return ts.After(now.Add(-d)) && !ts.After(now)
}

// CountSince counts records newer than now-d and not after now.
func CountSince(records []datastore.Record, now time.Time, d time.Duration) int {
	var n int
	for i := range records {
		if inWindow(records[i].Timestamp, now, d) {
			n++
		}
	}
	return n
}

// TopSpecies returns at most n species seen in (now-d, now], most
// frequent first. Ties keep the order in which species were first seen.
func TopSpecies(records []datastore.Record, now time.Time, d time.Duration, n int) []SpeciesCount {
	var recent []datastore.Record
	for i := range records {
		if inWindow(records[i].Timestamp, now, d) {
			recent = append(recent, records[i])
		}
	}
	counts := AggregateBySpecies(recent)
	if n >= 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// AggregateBySpecies counts records per species, most frequent first,
// ties in first-seen order.
func AggregateBySpecies(records []datastore.Record) []SpeciesCount {
	index := make(map[string]int)
	counts := []SpeciesCount{}
	for i := range records {
		species := records[i].Species
		if pos, ok := index[species]; ok {
			counts[pos].Count++
			continue
		}
		index[species] = len(counts)
		counts = append(counts, SpeciesCount{Species: species, Count: 1})
	}

	slices.SortStableFunc(counts, func(a, b SpeciesCount) int {
		return b.Count - a.Count
	})
	return counts
}

// Latest returns the n most recent records, newest first. Records with
// equal timestamps keep their store order.
func Latest(records []datastore.Record, n int) []datastore.Record {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b datastore.Record) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// BucketedActivity counts records per block and hour of day. Row
// numBlocks-1 is the block containing now, row 0 the oldest. A record
// exactly numBlocks blocks old is outside the matrix, and records after
// now are skipped.
func BucketedActivity(records []datastore.Record, now time.Time, blockWidth time.Duration, numBlocks int) [][]int {
	matrix := make([][]int, max(numBlocks, 0))
	for i := range matrix {
		matrix[i] = make([]int, HoursPerDay)
	}
	if blockWidth <= 0 {
		return matrix
	}

	for i := range records {
		ts := records[i].Timestamp
		if ts.After(now) {
			continue
		}
		age := int(now.Sub(ts) / blockWidth)
		if age >= numBlocks {
			continue
		}
		matrix[numBlocks-age-1][ts.In(now.Location()).Hour()]++
	}
	return matrix
}

// SpeciesActivity is BucketedActivity restricted to one species, matched
// case-insensitively.
func SpeciesActivity(records []datastore.Record, species string, now time.Time, blockWidth time.Duration, numBlocks int) [][]int {
	want := fold(species)
	var selected []datastore.Record
	for i := range records {
		if fold(records[i].Species) == want {
			selected = append(selected, records[i])
		}
	}
	return BucketedActivity(selected, now, blockWidth, numBlocks)
}

// HasSpecies reports whether any record names species, ignoring case.
func HasSpecies(records []datastore.Record, species string) bool {
	want := fold(species)
	for i := range records {
		if fold(records[i].Species) == want {
			return true
		}
	}
	return false
}

// MatrixTotal sums all cells.
func MatrixTotal(matrix [][]int) int {
	var total int
	for _, row := range matrix {
		for _, v := range row {
			total += v
		}
	}
	return total
}

// Criteria selects records for the filtered aggregates.
type Criteria struct {
	Since     time.Time // keep records at or after Since; zero keeps all
	Threshold float64   // keep records with confidence above Threshold
	Exclude   []string  // species to drop, case-insensitive
}

// Filter returns the records matching c in their original order.
func Filter(records []datastore.Record, c Criteria) []datastore.Record {
	excluded := make(map[string]struct{}, len(c.Exclude))
	for _, s := range c.Exclude {
		excluded[fold(s)] = struct{}{}
	}

	out := []datastore.Record{}
	for i := range records {
		r := records[i]
		if !c.Since.IsZero() && r.Timestamp.Before(c.Since) {
			continue
		}
		if r.Confidence <= c.Threshold {
			continue
		}
		if _, ok := excluded[fold(r.Species)]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

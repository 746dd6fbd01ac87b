package datastore

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/birdnet-listener/internal/errors"
)

// TimestampLayout is the on-disk timestamp format: local ISO-8601 with
// microseconds and no zone.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Header is the first row of the store file.
var Header = []string{"timestamp", "species", "confidence"}

// parseLayouts are tried in order when reading. Fractional seconds are
// optional for all of them.
var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ErrInvalidRecord is returned when a record cannot be stored.
var ErrInvalidRecord = errors.NewStd("invalid detection record")

// Record is one stored detection. Records are immutable once appended.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	Species    string    `json:"species"`
	Confidence float64   `json:"confidence"`
}

// Validate checks the invariants every stored row must satisfy.
func (r *Record) Validate() error {
	switch {
	case r.Timestamp.IsZero():
		return errors.Newf("%w: zero timestamp", ErrInvalidRecord).
			Component("datastore").Category(errors.CategoryValidation).Build()
	case strings.TrimSpace(r.Species) == "":
		return errors.Newf("%w: empty species", ErrInvalidRecord).
			Component("datastore").Category(errors.CategoryValidation).Build()
	case math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1:
		return errors.Newf("%w: confidence %v outside [0,1]", ErrInvalidRecord, r.Confidence).
			Component("datastore").Category(errors.CategoryValidation).
			Context("species", r.Species).Build()
	}
	return nil
}

// fields renders the record as a CSV row in loc.
func (r *Record) fields(loc *time.Location) []string {
	species := strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(r.Species))
	return []string{
		r.Timestamp.In(loc).Format(TimestampLayout),
		species,
		strconv.FormatFloat(r.Confidence, 'f', -1, 64),
	}
}

// parseRecord converts a CSV row into a Record. ok is false for any row
// that is short, has an empty species, or an unparseable field.
func parseRecord(row []string, loc *time.Location) (Record, bool) {
	if len(row) < len(Header) {
		return Record{}, false
	}

	species := strings.TrimSpace(row[1])
	if species == "" {
		return Record{}, false
	}

	ts, ok := ParseTimestamp(row[0], loc)
	if !ok {
		return Record{}, false
	}

	confidence, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil || math.IsNaN(confidence) {
		return Record{}, false
	}

	return Record{Timestamp: ts, Species: species, Confidence: confidence}, true
}

// ParseTimestamp parses a stored timestamp. Values without a zone are
// interpreted in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

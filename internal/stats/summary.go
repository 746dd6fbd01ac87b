package stats

import (
	"time"

	"github.com/tphakala/birdnet-listener/internal/datastore"
)

// Horizons are the rolling windows shown on the dashboard.
var Horizons = []Horizon{
	{Label: "24 hours", Duration: 24 * time.Hour},
	{Label: "48 hours", Duration: 48 * time.Hour},
	{Label: "7 days", Duration: 7 * 24 * time.Hour},
	{Label: "30 days", Duration: 30 * 24 * time.Hour},
}

// Horizon is a labelled trailing duration.
type Horizon struct {
	Label    string        `json:"label"`
	Duration time.Duration `json:"-"`
}

// HorizonCount is the record count of one horizon.
type HorizonCount struct {
	Horizon
	Count int `json:"count"`
}

// SummaryOptions sizes the lists in a Summary.
type SummaryOptions struct {
	Recent    int           // latest detections listed
	Top       int           // species in the top list
	TopWindow time.Duration // horizon of the top list
}

// DefaultSummaryOptions matches the dashboard defaults.
var DefaultSummaryOptions = SummaryOptions{Recent: 20, Top: 10, TopWindow: 7 * 24 * time.Hour}

// Summary is everything the dashboard page shows about the store.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Total       int                `json:"total"`
	Counts      []HorizonCount     `json:"counts"`
	Latest      []datastore.Record `json:"latest"`
	TopSpecies  []SpeciesCount     `json:"top_species"`
}

// Summarize builds the dashboard summary at now.
func Summarize(records []datastore.Record, now time.Time, opts SummaryOptions) Summary {
	if opts.TopWindow <= 0 {
		opts.TopWindow = DefaultSummaryOptions.TopWindow
	}

	s := Summary{
		GeneratedAt: now,
		Total:       len(records),
		Counts:      make([]HorizonCount, 0, len(Horizons)),
		Latest:      Latest(records, opts.Recent),
		TopSpecies:  TopSpecies(records, now, opts.TopWindow, opts.Top),
	}
	for _, h := range Horizons {
		s.Counts = append(s.Counts, HorizonCount{Horizon: h, Count: CountSince(records, now, h.Duration)})
	}
	return s
}

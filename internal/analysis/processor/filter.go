package processor

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/tphakala/birdnet-listener/internal/birdnet"
	"github.com/tphakala/birdnet-listener/internal/observability/metrics"
)

// labelSet matches species labels case-insensitively with Unicode case
// folding, so "Human Vocal" and "human vocal" are the same label.
type labelSet map[string]struct{}

func newLabelSet(labels []string) labelSet {
	set := make(labelSet, len(labels))
	for _, l := range labels {
		if key := foldLabel(l); key != "" {
			set[key] = struct{}{}
		}
	}
	return set
}

func (s labelSet) contains(label string) bool {
	_, ok := s[foldLabel(label)]
	return ok
}

// foldLabel normalizes a label for comparison. cases.Caser is stateful,
// so a new one is made per call.
func foldLabel(label string) string {
	return cases.Fold().String(strings.TrimSpace(label))
}

// Filter decides which detections are worth storing.
type Filter struct {
	threshold float64
	human     labelSet
	exclude   labelSet
}

// NewFilter returns a filter that drops detections below threshold and
// detections carrying one of the human or excluded labels.
func NewFilter(threshold float64, humanLabels, exclude []string) *Filter {
	return &Filter{
		threshold: threshold,
		human:     newLabelSet(humanLabels),
		exclude:   newLabelSet(exclude),
	}
}

// Outcome returns metrics.OutcomeStored for a detection that passes, or
// the reason it was filtered.
func (f *Filter) Outcome(d birdnet.Detection) string {
	switch {
	case d.Confidence < f.threshold:
		return metrics.OutcomeBelowThreshold
	case f.human.contains(d.Species):
		return metrics.OutcomeHuman
	case f.exclude.contains(d.Species):
		return metrics.OutcomeExcluded
	default:
		return metrics.OutcomeStored
	}
}

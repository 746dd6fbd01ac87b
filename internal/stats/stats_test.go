package stats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-listener/internal/datastore"
)

var now = time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)

func rec(ago time.Duration, species string, confidence float64) datastore.Record {
	return datastore.Record{Timestamp: now.Add(-ago), Species: species, Confidence: confidence}
}

func TestCountSince(t *testing.T) {
	t.Parallel()

	records := []datastore.Record{
		rec(0, "Merel", 0.9),
		rec(time.Hour, "Merel", 0.9),
		rec(24*time.Hour, "Merel", 0.9), // exactly on the boundary, excluded
		rec(3*24*time.Hour, "Vink", 0.9),
		rec(-time.Minute, "Vink", 0.9), // in the future
	}

	assert.Equal(t, 2, CountSince(records, now, 24*time.Hour))
	assert.Equal(t, 4, CountSince(records, now, 7*24*time.Hour))
	assert.Zero(t, CountSince(nil, now, time.Hour))
}

func TestCountSinceMonotonicInDuration(t *testing.T) {
	t.Parallel()

	var records []datastore.Record
	for i := range 200 {
		records = append(records, rec(time.Duration(i*37)*time.Minute, "Merel", 0.9))
	}

	prev := 0
	for d := time.Duration(0); d <= 10*24*time.Hour; d += 30 * time.Minute {
		n := CountSince(records, now, d)
		assert.GreaterOrEqual(t, n, prev, "duration %s", d)
		prev = n
	}
}

func TestTopSpeciesOrderAndTies(t *testing.T) {
	t.Parallel()

	records := []datastore.Record{
		rec(time.Minute, "Roodborst", 0.9),
		rec(2*time.Minute, "Merel", 0.9),
		rec(3*time.Minute, "Koolmees", 0.9),
		rec(4*time.Minute, "Merel", 0.9),
		rec(5*time.Minute, "Koolmees", 0.9),
		rec(6*time.Minute, "Vink", 0.9),
		rec(30*24*time.Hour, "Vink", 0.9),
		rec(31*24*time.Hour, "Vink", 0.9),
	}

	got := TopSpecies(records, now, 7*24*time.Hour, 3)
	want := []SpeciesCount{{"Merel", 2}, {"Koolmees", 2}, {"Roodborst", 1}}
	assert.Equal(t, want, got)

	all := TopSpecies(records, now, 7*24*time.Hour, 10)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Count, all[i].Count)
	}
}

func TestLatestNewestFirst(t *testing.T) {
	t.Parallel()

	records := []datastore.Record{
		rec(3*time.Hour, "A", 0.9),
		rec(time.Hour, "B", 0.9),
		rec(2*time.Hour, "C", 0.9),
		rec(time.Hour, "D", 0.9),
	}

	got := Latest(records, 3)
	names := make([]string, len(got))
	for i := range got {
		names[i] = got[i].Species
	}
	assert.Equal(t, []string{"B", "D", "C"}, names)
	assert.Equal(t, "A", records[0].Species, "input is not reordered")
}

func TestBucketedActivityOrientation(t *testing.T) {
	t.Parallel()

	const days = 7
	records := []datastore.Record{
		rec(0, "Merel", 0.9),                          // now: last row, hour 14
		rec(24*time.Hour, "Merel", 0.9),               // one block old: row 5, hour 14
		rec(days*24*time.Hour, "Merel", 0.9),          // exactly numBlocks old: excluded
		rec(days*24*time.Hour-1, "Merel", 0.9),        // just inside: row 0
		rec(-time.Hour, "Merel", 0.9),                 // future: skipped
		rec(14*time.Hour+30*time.Minute, "Vink", 0.9), // midnight today: last row, hour 0
	}

	got := BucketedActivity(records, now, 24*time.Hour, days)

	want := make([][]int, days)
	for i := range want {
		want[i] = make([]int, HoursPerDay)
	}
	want[6][14] = 1
	want[6][0] = 1
	want[5][14] = 1
	want[0][14] = 1

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BucketedActivity mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, MatrixTotal(got))
}

func TestSpeciesActivity(t *testing.T) {
	t.Parallel()

	records := []datastore.Record{
		rec(0, "Merel", 0.9),
		rec(0, "merel", 0.9),
		rec(0, "Vink", 0.9),
	}
	got := SpeciesActivity(records, "MEREL", now, 24*time.Hour, 1)
	assert.Equal(t, 2, got[0][14])
	assert.Equal(t, 2, MatrixTotal(got))
}

func TestFilteredAggregateScenario(t *testing.T) {
	t.Parallel()

	records := []datastore.Record{
		rec(10*time.Minute, "Merel", 0.9),
		rec(2*time.Hour, "Merel", 0.6),
		rec(10*24*time.Hour, "Roodborst", 0.99),
	}

	filtered := Filter(records, Criteria{Since: now.Add(-24 * time.Hour), Threshold: 0.75})
	assert.Equal(t, []SpeciesCount{{"Merel", 1}}, AggregateBySpecies(filtered))
}

func TestFilterExcludesCaseInsensitive(t *testing.T) {
	t.Parallel()

	records := []datastore.Record{
		rec(time.Minute, "Dog", 0.9),
		rec(time.Minute, "Engine", 0.9),
		rec(time.Minute, "Merel", 0.75),
		rec(time.Minute, "Merel", 0.76),
	}
	got := Filter(records, Criteria{Threshold: 0.75, Exclude: []string{"dog", "ENGINE"}})
	require.Len(t, got, 1)
	assert.InDelta(t, 0.76, got[0].Confidence, 1e-9)
}

func TestGroupBy(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 10, 21, 9, 7, 30, 0, time.UTC) // a Wednesday
	records := []datastore.Record{
		{Timestamp: base, Species: "A"},
		{Timestamp: base.Add(2 * time.Minute), Species: "A"},
		{Timestamp: base.Add(-2 * time.Hour), Species: "A"},
		{Timestamp: base.Add(-3 * 24 * time.Hour), Species: "A"},
	}

	tests := []struct {
		g    Granularity
		want []Bucket
	}{
		{FiveMinutes, []Bucket{
			{time.Date(2026, 10, 18, 9, 5, 0, 0, time.UTC), 1},
			{time.Date(2026, 10, 21, 7, 5, 0, 0, time.UTC), 1},
			{time.Date(2026, 10, 21, 9, 5, 0, 0, time.UTC), 2},
		}},
		{Hour, []Bucket{
			{time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), 1},
			{time.Date(2026, 10, 21, 7, 0, 0, 0, time.UTC), 1},
			{time.Date(2026, 10, 21, 9, 0, 0, 0, time.UTC), 2},
		}},
		{Day, []Bucket{
			{time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), 1},
			{time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), 3},
		}},
		{Week, []Bucket{
			{time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), 1},
			{time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), 3},
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.g), func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, GroupBy(records, tt.g)); diff != "" {
				t.Errorf("GroupBy(%s) mismatch (-want +got):\n%s", tt.g, diff)
			}
		})
	}

	assert.Len(t, GroupBy(records, Minute), 4)
}

func TestParseGranularity(t *testing.T) {
	t.Parallel()

	g, err := ParseGranularity("week")
	require.NoError(t, err)
	assert.Equal(t, Week, g)

	_, err = ParseGranularity("fortnight")
	require.Error(t, err)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	records := []datastore.Record{
		rec(time.Hour, "Merel", 0.9),
		rec(30*time.Hour, "Vink", 0.9),
		rec(5*24*time.Hour, "Merel", 0.9),
		rec(20*24*time.Hour, "Koolmees", 0.9),
	}

	s := Summarize(records, now, SummaryOptions{Recent: 2, Top: 1})

	counts := make([]int, len(s.Counts))
	for i, c := range s.Counts {
		counts[i] = c.Count
	}
	assert.Equal(t, []int{1, 2, 3, 4}, counts)
	assert.Equal(t, 4, s.Total)
	assert.Len(t, s.Latest, 2)
	assert.Equal(t, []SpeciesCount{{"Merel", 2}}, s.TopSpecies)
}

func TestExporterWritesSnapshots(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "export")
	records := []datastore.Record{
		rec(10*time.Minute, "Merel", 0.9),
		rec(3*time.Hour, "Vink", 0.8),
		rec(3*24*time.Hour, "Koolmees", 0.7),
		rec(30*24*time.Hour, "Roodborst", 0.95),
	}

	e := &Exporter{Dir: dir, Loc: time.UTC}
	require.NoError(t, e.Export(records, now))

	lines := func(name string) []string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		return strings.Split(strings.TrimSpace(string(data)), "\n")
	}

	assert.Len(t, lines(LastHourFile), 2)
	assert.Len(t, lines(DayFile), 3)
	assert.Len(t, lines(WeekFile), 4)

	hourly := lines(HourlyFile)
	require.Len(t, hourly, 25)
	assert.Equal(t, "hour,count", hourly[0])
	assert.Equal(t, "2026-10-18 15:00,0", hourly[1])
	assert.Equal(t, "2026-10-19 11:00,1", hourly[21])
	assert.Equal(t, "2026-10-19 14:00,1", hourly[24])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4, "no temporary files left behind")
}

func TestHasSpecies(t *testing.T) {
	t.Parallel()

	records := []datastore.Record{rec(40*24*time.Hour, "Grote Bonte Specht", 0.9)}
	assert.True(t, HasSpecies(records, "grote bonte specht"))
	assert.False(t, HasSpecies(records, "Merel"))
}

package stats

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tphakala/birdnet-listener/internal/datastore"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
)

// Export file names.
const (
	LastHourFile = "last_hour.csv"
	DayFile      = "day.csv"
	WeekFile     = "week.csv"
	HourlyFile   = "stats.csv"
)

// Exporter writes CSV snapshots of the store for offline analysis.
type Exporter struct {
	Dir string
	Loc *time.Location
}

// Export writes the last hour, day and week extracts and the hourly
// counts of the last day. Each file is replaced atomically.
func (e *Exporter) Export(records []datastore.Record, now time.Time) error {
	loc := e.Loc
	if loc == nil {
		loc = time.Local
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return e.ioError(err, e.Dir)
	}

	extracts := []struct {
		name string
		span time.Duration
	}{
		{LastHourFile, time.Hour},
		{DayFile, 24 * time.Hour},
		{WeekFile, 7 * 24 * time.Hour},
	}
	for _, x := range extracts {
		selected := since(records, now, x.span)
		if err := e.write(x.name, func(w io.Writer) error {
			return datastore.WriteCSV(w, selected, loc)
		}); err != nil {
			return err
		}
	}

	if err := e.write(HourlyFile, func(w io.Writer) error {
		return writeHourly(w, records, now.In(loc))
	}); err != nil {
		return err
	}

	logger.Global().Module("stats").Info("export snapshots written",
		logger.String("dir", e.Dir),
		logger.Int("records", len(records)))
	return nil
}

func since(records []datastore.Record, now time.Time, d time.Duration) []datastore.Record {
	out := []datastore.Record{}
	for i := range records {
		if inWindow(records[i].Timestamp, now, d) {
			out = append(out, records[i])
		}
	}
	return out
}

// writeHourly writes one row per hour of the last day, oldest first,
// including hours without detections.
func writeHourly(w io.Writer, records []datastore.Record, now time.Time) error {
	current := Hour.Truncate(now)
	first := current.Add(-23 * time.Hour)

	lastDay := since(records, now, 24*time.Hour)
	for i := range lastDay {
		lastDay[i].Timestamp = lastDay[i].Timestamp.In(now.Location())
	}
	counts := make(map[time.Time]int, HoursPerDay)
	for _, b := range GroupBy(lastDay, Hour) {
		counts[b.Start] = b.Count
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"hour", "count"}); err != nil {
		return err
	}
	for h := first; !h.After(current); h = h.Add(time.Hour) {
		if err := cw.Write([]string{h.Format("2006-01-02 15:00"), strconv.Itoa(counts[h])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// write renders a file into memory and moves it into place through a
// temporary file in the same directory.
func (e *Exporter) write(name string, render func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return e.ioError(fmt.Errorf("render %s: %w", name, err), name)
	}

	tmp, err := os.CreateTemp(e.Dir, "."+name+"-*")
	if err != nil {
		return e.ioError(err, name)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return e.ioError(err, name)
	}
	if err := tmp.Close(); err != nil {
		return e.ioError(err, name)
	}
	if err := os.Rename(tmpName, filepath.Join(e.Dir, name)); err != nil {
		return e.ioError(err, name)
	}
	return nil
}

func (e *Exporter) ioError(err error, name string) error {
	return errors.New(err).
		Component("stats").
		Category(errors.CategoryFileIO).
		Context("dir", e.Dir).
		Context("file", name).
		Build()
}

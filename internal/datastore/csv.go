package datastore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
)

// Store is the append-only detection file. Appends are serialized; a full
// read may run alongside an append from another process and drops any row
// it cannot parse.
type Store struct {
	path string
	loc  *time.Location
	mu   sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithLocation sets the zone timestamps are written and read in.
// The default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewStore returns a store backed by the file at path. The file is
// created on first append.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{path: path, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Append writes rec as one line, writing the header first if the file is
// new or empty, and syncs the file before returning. A file that does not
// end in a newline, after a torn write or a manual edit, gets one first so
// the new row starts on its own line.
func (s *Store) Append(_ context.Context, rec Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	var line bytes.Buffer
	w := csv.NewWriter(&line)
	if err := w.Write(rec.fields(s.loc)); err != nil {
		return s.ioError(err, "encode")
	}
	w.Flush()

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return s.ioError(err, "mkdir")
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return s.ioError(err, "open")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return s.ioError(err, "stat")
	}

	var buf bytes.Buffer
	if info.Size() == 0 {
		buf.WriteString(strings.Join(Header, ",") + "\n")
	} else {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err != nil {
			return s.ioError(err, "read tail")
		}
		if last[0] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line.Bytes())

	if _, err := f.Write(buf.Bytes()); err != nil {
		return s.ioError(err, "write")
	}
	if err := f.Sync(); err != nil {
		return s.ioError(err, "sync")
	}

	return nil
}

// ReadAll returns every parseable record in file order. A missing file is
// an empty store. The header, malformed rows and an unterminated trailing
// line are skipped.
func (s *Store) ReadAll() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, s.ioError(err, "open")
	}
	defer f.Close()

	records, skipped, err := readRecords(f, s.loc)
	if err != nil {
		return nil, s.ioError(err, "read")
	}
	if skipped > 0 {
		GetLogger().Debug("skipped unparseable rows",
			logger.String("path", s.path),
			logger.Int("skipped", skipped))
	}
	return records, nil
}

// readRecords parses r line by line so that one bad row cannot affect
// its neighbours. skipped does not count the header.
func readRecords(r io.Reader, loc *time.Location) (records []Record, skipped int, err error) {
	records = []Record{}
	br := bufio.NewReader(r)
	first := true

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, skipped, readErr
		}

		// A line without its newline is an append still in progress.
		complete := strings.HasSuffix(line, "\n")
		line = strings.TrimRight(line, "\r\n")

		if complete && line != "" {
			row, parseErr := csv.NewReader(strings.NewReader(line)).Read()
			switch {
			case first && parseErr == nil && isHeader(row):
			case parseErr != nil:
				skipped++
			default:
				if rec, ok := parseRecord(row, loc); ok {
					records = append(records, rec)
				} else {
					skipped++
				}
			}
			first = false
		}

		if readErr == io.EOF {
			return records, skipped, nil
		}
	}
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), Header[0])
}

func (s *Store) ioError(err error, op string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryFileIO).
		Context("operation", op).
		Context("path", s.path).
		Build()
}

// WriteCSV writes the header and records in the store file format, with
// timestamps rendered in loc.
func WriteCSV(w io.Writer, records []Record, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for i := range records {
		if err := cw.Write(records[i].fields(loc)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

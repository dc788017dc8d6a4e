// Package datalog implements the append-only CSV sample log.
package datalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
)

// TimestampLayout is ISO-8601 with microseconds and an explicit UTC offset.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Header is the first row of every log file.
var Header = []string{"timestamp", "pot_value_percent"}

// Record is one timestamped reading. The value is stored as the instrument
// sent it.
type Record struct {
	Timestamp time.Time
	Value     string
}

// row returns the CSV fields for the record.
func (r Record) row() []string {
	return []string{r.Timestamp.UTC().Format(TimestampLayout), r.Value}
}

// Store appends records to a CSV file. Every call acquires and releases the
// file, so nothing is held open between samples.
type Store struct {
	path string
}

// New creates a store for the file at path. Nothing is touched until Init or Append.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the log file location.
func (s *Store) Path() string {
	return s.path
}

// Init writes the header when the file is missing or empty. Existing content is
// never modified. created reports whether the header was written.
func (s *Store) Init() (created bool, err error) {
	info, err := os.Stat(s.path)
	switch {
	case err == nil && info.Size() > 0:
		return false, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return false, fmt.Errorf("failed to stat log file %s: %w", s.path, err)
	}

	if err := s.write(Header); err != nil {
		return false, err
	}
	return true, nil
}

// Append writes one record as a single row.
func (s *Store) Append(rec Record) error {
	return s.write(rec.row())
}

func (s *Store) write(row []string) (err error) {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", s.path, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write log file %s: %w", s.path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write log file %s: %w", s.path, err)
	}
	return nil
}

// ReadAll parses every record in the log, skipping the header row.
func (s *Store) ReadAll() (records []Record, err error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", s.path, err)
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	for line := 1; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read log file %s: %w", s.path, err)
		}
		if line == 1 && row[0] == Header[0] && row[1] == Header[1] {
			continue
		}

		ts, err := time.Parse(TimestampLayout, row[0])
		if err != nil {
			return nil, fmt.Errorf("log file %s line %d: invalid timestamp: %w", s.path, line, err)
		}
		records = append(records, Record{Timestamp: ts, Value: row[1]})
	}

	return records, nil
}

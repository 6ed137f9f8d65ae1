package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"expensetrack/internal/core"
)

// FileStore persists expense records as CSV rows in a single flat file.
// Rows have the shape category,amount,description[,timestamp]; the 3-field
// form is the legacy schema where the creation time is unknown. Quoting
// follows RFC 4180, so descriptions round-trip exactly even when they contain
// commas, quotes or line breaks.
//
// Every operation opens the file, does its I/O and closes it again. Rewrites
// (Delete, Clear) are not crash-atomic.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Append validates the record and writes it as one CSV row, creating the
// file if absent. A zero Timestamp is replaced with the current UTC time.
// The stored record is returned.
func (s *FileStore) Append(_ context.Context, r core.Record) (core.Record, error) {
	if err := r.Validate(); err != nil {
		return core.Record{}, err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	// Serialized precision is one second; truncate up front so the returned
	// record matches what a reload will produce.
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Second)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return core.Record{}, fmt.Errorf("open expense file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(encodeRow(r)); err != nil {
		return core.Record{}, fmt.Errorf("write expense row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return core.Record{}, fmt.Errorf("flush expense row: %w", err)
	}
	return r, nil
}

// List returns all records in file order. Rows with fewer than 3 fields,
// unparsable amounts or negative amounts are silently skipped; negative
// amounts are re-checked here because files written by versions predating
// write-time validation may still carry them. A missing file yields an
// empty result, not an error.
func (s *FileStore) List(_ context.Context) ([]core.Record, error) {
	rows, err := s.readRows()
	if err != nil {
		return nil, err
	}

	var records []core.Record
	for _, row := range rows {
		r, ok := decodeRow(row)
		if !ok {
			slog.Debug("Skipping malformed expense row", "fields", len(row))
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

// Total sums the amounts of all well-formed records; 0 when there are none.
func (s *FileStore) Total(ctx context.Context) (float64, error) {
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, r := range records {
		total += r.Amount
	}
	return total, nil
}

// Clear truncates the file so that a subsequent List yields nothing.
func (s *FileStore) Clear(_ context.Context) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("truncate expense file: %w", err)
	}
	return f.Close()
}

// Delete rewrites the file omitting the first record whose fields match r:
// category and description compared exactly, amount within the float
// tolerance, timestamp only when the probe carries one. Malformed rows and
// non-matching records are preserved in their original order. It reports
// whether a match was removed; when none is found the file is left untouched.
func (s *FileStore) Delete(_ context.Context, r core.Record) (bool, error) {
	rows, err := s.readRows()
	if err != nil {
		return false, err
	}

	matched := -1
	for i, row := range rows {
		candidate, ok := decodeRow(row)
		if !ok {
			continue
		}
		if rowMatches(candidate, r) {
			matched = i
			break
		}
	}
	if matched < 0 {
		return false, nil
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("rewrite expense file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for i, row := range rows {
		if i == matched {
			continue
		}
		if err := w.Write(row); err != nil {
			return false, fmt.Errorf("rewrite expense row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return false, fmt.Errorf("flush rewritten file: %w", err)
	}
	return true, nil
}

// Exists reports whether the backing file is present on disk.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *FileStore) readRows() ([][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open expense file: %w", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	rd.LazyQuotes = true
	rows, err := rd.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read expense file: %w", err)
	}
	return rows, nil
}

func encodeRow(r core.Record) []string {
	return []string{
		r.Category,
		strconv.FormatFloat(r.Amount, 'f', -1, 64),
		r.Description,
		r.Timestamp.UTC().Format(time.RFC3339),
	}
}

// decodeRow parses one CSV row. It reports false for rows that must be
// skipped: fewer than 3 fields, unparsable amount, negative amount.
func decodeRow(row []string) (core.Record, bool) {
	if len(row) < 3 {
		return core.Record{}, false
	}
	amount, err := strconv.ParseFloat(row[1], 64)
	if err != nil || amount < 0 {
		return core.Record{}, false
	}
	r := core.Record{
		Category:    row[0],
		Amount:      amount,
		Description: row[2],
	}
	if len(row) >= 4 && row[3] != "" {
		if ts, err := time.Parse(time.RFC3339, row[3]); err == nil {
			r.Timestamp = ts
		}
	}
	return r, true
}

func rowMatches(candidate, probe core.Record) bool {
	if candidate.Category != probe.Category || candidate.Description != probe.Description {
		return false
	}
	if !core.AmountsEqual(candidate.Amount, probe.Amount) {
		return false
	}
	if !probe.Timestamp.IsZero() && !candidate.Timestamp.Equal(probe.Timestamp) {
		return false
	}
	return true
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"expensetrack/internal/core"

	_ "modernc.org/sqlite"
)

// ErrMissingID is returned when an identity-addressed operation is asked to
// act on a record that carries no identity.
var ErrMissingID = errors.New("record id is required")

const schema = `
CREATE TABLE IF NOT EXISTS expenses (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	category    TEXT NOT NULL,
	amount      REAL NOT NULL CHECK(amount >= 0),
	description TEXT DEFAULT '',
	timestamp   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
)`

// SQLiteStore is the relational backend: a single expenses table in a
// single-file SQLite database. Every operation opens a connection, performs
// its I/O and closes again, so no handle outlives a call and the backup
// manager can copy the file without racing a live writer.
//
// Timestamps are stored as RFC 3339 UTC text, which keeps
// ORDER BY timestamp DESC correct under plain string comparison.
type SQLiteStore struct {
	path string
}

// NewSQLiteStore creates the parent directory and the schema if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	s := &SQLiteStore{path: path}
	if err := s.withDB(context.Background(), func(*sql.DB) error { return nil }); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) withDB(ctx context.Context, fn func(db *sql.DB) error) error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return fn(db)
}

// Insert validates and stores a new record with the current UTC time,
// returning the assigned identity.
func (s *SQLiteStore) Insert(ctx context.Context, category string, amount float64, description string) (int64, error) {
	r, err := s.Append(ctx, core.Record{Category: category, Amount: amount, Description: description})
	if err != nil {
		return 0, err
	}
	return r.ID, nil
}

// Append validates and stores r, honouring a caller-supplied timestamp and
// substituting the current UTC time when it is zero. The stored record,
// including its new identity, is returned.
func (s *SQLiteStore) Append(ctx context.Context, r core.Record) (core.Record, error) {
	if err := r.Validate(); err != nil {
		return core.Record{}, err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	// Stored precision is one second; truncate up front so the returned
	// record matches what a reload will produce.
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Second)

	err := s.withDB(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`INSERT INTO expenses (category, amount, description, timestamp) VALUES (?, ?, ?, ?)`,
			r.Category, r.Amount, r.Description, r.Timestamp.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read insert id: %w", err)
		}
		r.ID = id
		return nil
	})
	if err != nil {
		return core.Record{}, err
	}
	return r, nil
}

// List returns all records ordered by timestamp descending. A missing
// database file yields an empty result, not an error.
func (s *SQLiteStore) List(ctx context.Context) ([]core.Record, error) {
	if !s.Exists() {
		return nil, nil
	}
	return s.queryRecords(ctx,
		`SELECT id, category, amount, description, timestamp FROM expenses ORDER BY timestamp DESC, id DESC`)
}

// ListByCategory returns the records for one category, newest first.
func (s *SQLiteStore) ListByCategory(ctx context.Context, category string) ([]core.Record, error) {
	return s.queryRecords(ctx,
		`SELECT id, category, amount, description, timestamp FROM expenses WHERE category = ? ORDER BY timestamp DESC, id DESC`,
		category)
}

func (s *SQLiteStore) queryRecords(ctx context.Context, query string, args ...any) ([]core.Record, error) {
	var records []core.Record
	err := s.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query expenses: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r core.Record
			var ts string
			if err := rows.Scan(&r.ID, &r.Category, &r.Amount, &r.Description, &ts); err != nil {
				return fmt.Errorf("scan expense row: %w", err)
			}
			r.Timestamp = parseTimestamp(ts)
			records = append(records, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Total computes the sum of all amounts in SQL; 0 when the table is empty.
func (s *SQLiteStore) Total(ctx context.Context) (float64, error) {
	var total float64
	err := s.withDB(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses`).Scan(&total)
	})
	if err != nil {
		return 0, fmt.Errorf("total expenses: %w", err)
	}
	return total, nil
}

// CategoryTotals returns per-category sums ordered by total descending.
func (s *SQLiteStore) CategoryTotals(ctx context.Context) ([]core.CategoryTotal, error) {
	var totals []core.CategoryTotal
	err := s.withDB(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			`SELECT category, SUM(amount) AS total FROM expenses GROUP BY category ORDER BY total DESC`)
		if err != nil {
			return fmt.Errorf("query category totals: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var ct core.CategoryTotal
			if err := rows.Scan(&ct.Category, &ct.Total); err != nil {
				return fmt.Errorf("scan category total: %w", err)
			}
			totals = append(totals, ct)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// Statistics computes count, total, average, min and max in a single
// aggregate query, plus the per-category totals.
func (s *SQLiteStore) Statistics(ctx context.Context) (core.Statistics, error) {
	var stats core.Statistics
	err := s.withDB(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `
			SELECT COUNT(*),
			       COALESCE(SUM(amount), 0),
			       COALESCE(AVG(amount), 0),
			       COALESCE(MIN(amount), 0),
			       COALESCE(MAX(amount), 0)
			FROM expenses`).
			Scan(&stats.Count, &stats.Total, &stats.Average, &stats.Min, &stats.Max)
	})
	if err != nil {
		return core.Statistics{}, fmt.Errorf("expense statistics: %w", err)
	}

	totals, err := s.CategoryTotals(ctx)
	if err != nil {
		return core.Statistics{}, err
	}
	stats.ByCategory = totals
	return stats, nil
}

// DeleteByID removes one record, reporting whether a row was actually removed.
func (s *SQLiteStore) DeleteByID(ctx context.Context, id int64) (bool, error) {
	var removed bool
	err := s.withDB(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = n > 0
		return nil
	})
	return removed, err
}

// Delete removes the record addressed by its identity. The relational
// backend has no field-match addressing, so a probe without an ID is
// rejected with ErrMissingID.
func (s *SQLiteStore) Delete(ctx context.Context, r core.Record) (bool, error) {
	if r.ID <= 0 {
		return false, ErrMissingID
	}
	return s.DeleteByID(ctx, r.ID)
}

// UpdateByID validates the new field values and updates all three mutable
// fields in place, reporting whether the row was found.
func (s *SQLiteStore) UpdateByID(ctx context.Context, id int64, category string, amount float64, description string) (bool, error) {
	probe := core.Record{Category: category, Amount: amount, Description: description}
	if err := probe.Validate(); err != nil {
		return false, err
	}

	var updated bool
	err := s.withDB(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`UPDATE expenses SET category = ?, amount = ?, description = ? WHERE id = ?`,
			category, amount, description, id)
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		updated = n > 0
		return nil
	})
	return updated, err
}

// Clear removes every record from the table.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.withDB(ctx, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
			return fmt.Errorf("clear expenses: %w", err)
		}
		return nil
	})
}

// Vacuum rebuilds the database file to reclaim unused space.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	return s.withDB(ctx, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, `VACUUM`); err != nil {
			return fmt.Errorf("vacuum database: %w", err)
		}
		return nil
	})
}

// FileSize returns the database file size in bytes, 0 when it is absent.
func (s *SQLiteStore) FileSize() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat database file: %w", err)
	}
	return info.Size(), nil
}

// Exists reports whether the database file is present on disk.
func (s *SQLiteStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// parseTimestamp accepts the RFC 3339 text this store writes plus the bare
// forms SQLite's CURRENT_TIMESTAMP default produces, interpreted as UTC.
// Unparsable text maps to the zero time ("unknown").
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

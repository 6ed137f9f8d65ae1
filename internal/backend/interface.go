package backend

import (
	"context"

	"expensetrack/internal/core"
)

// Store is the one contract both storage backends satisfy. The identity
// model difference lives in core.Record: the relational backend assigns an
// ID and deletes by it, the flat-file backend leaves ID zero and deletes by
// exact field match. Delete dispatches on whichever the record carries.
type Store interface {
	// Append validates and stores a record, returning it as stored
	// (identity assigned, timestamp substituted when it was zero).
	Append(ctx context.Context, r core.Record) (core.Record, error)
	// List returns all records in the backend's canonical order:
	// insertion order for the flat file, timestamp descending for SQLite.
	List(ctx context.Context) ([]core.Record, error)
	// Total is the sum of all stored amounts, 0 when there are none.
	Total(ctx context.Context) (float64, error)
	// Delete removes one record, reporting whether a match was removed.
	Delete(ctx context.Context, r core.Record) (bool, error)
	// Clear removes every record.
	Clear(ctx context.Context) error
	// Exists reports whether the backing file is present on disk.
	Exists() bool
}

// CleanupFunc releases backend resources when the caller is done.
type CleanupFunc func() error

// Result pairs an opened backend with its optional cleanup.
type Result struct {
	Store   Store
	Cleanup CleanupFunc
}

// Type selects which storage backend to open.
type Type string

const (
	FileBackend   Type = "file"
	SQLiteBackend Type = "sqlite"
)

func (t Type) String() string {
	return string(t)
}

// IsValid reports whether the backend type is one of the known values.
func (t Type) IsValid() bool {
	switch t {
	case FileBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// Config holds what the factory needs to open a backend.
type Config struct {
	Type Type

	// File backend
	FilePath string

	// SQLite backend
	DBPath string
}

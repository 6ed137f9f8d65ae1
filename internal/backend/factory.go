package backend

import (
	"fmt"
	"log/slog"

	"expensetrack/internal/storage"
)

// Open creates the backend selected by cfg. Both backends use per-call file
// handles, so there is nothing to tear down and Cleanup stays nil.
func Open(cfg Config, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}

	switch cfg.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite backend: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.DBPath)
		return &Result{Store: store}, nil
	case FileBackend:
		store := storage.NewFileStore(cfg.FilePath)
		logger.Info("Initialized flat-file backend", "file_path", cfg.FilePath)
		return &Result{Store: store}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}

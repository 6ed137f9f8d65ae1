// Package backup manages point-in-time copies of the SQLite expense store.
//
// Copies are taken with SQLite's VACUUM INTO, which produces a consistent
// snapshot through the engine rather than a raw file copy, so a backup taken
// while another process holds the database open is never a torn file.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	backupPrefix = "expenses_backup_"
	backupSuffix = ".db"
	metaSuffix   = ".meta"

	// Retention policy applied by Automatic.
	autoRetentionDays = 30
	autoKeepMinimum   = 5
)

// ErrSourceMissing is returned when a backup is requested but the live
// database file does not exist.
var ErrSourceMissing = errors.New("database file not found")

// Info describes one backup file in a listing.
type Info struct {
	Path        string
	Timestamp   string // as embedded in the filename
	Size        int64
	Description string
}

// Details is the deeper inspection of a single backup file.
type Details struct {
	Path        string
	Size        int64
	Created     time.Time
	RecordCount int64
}

// Manager creates, lists, restores and prunes backups of one database file.
type Manager struct {
	dbPath string
	dir    string
	logger *slog.Logger
}

// NewManager ensures the backup directory exists.
func NewManager(dbPath, dir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	return &Manager{dbPath: dbPath, dir: dir, logger: logger}, nil
}

// Create takes a consistent snapshot of the live database into a
// timestamp-named file, optionally writing a sidecar metadata note. On any
// failure the partially written backup is removed before the error is
// returned. It returns the path of the new backup.
func (m *Manager) Create(ctx context.Context, description string) (string, error) {
	if _, err := os.Stat(m.dbPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrSourceMissing, m.dbPath)
	}

	now := time.Now().UTC()
	name := fmt.Sprintf("%s%s_%06d%s", backupPrefix, now.Format("20060102_150405"), now.Nanosecond()/1000, backupSuffix)
	backupPath := filepath.Join(m.dir, name)

	if err := m.snapshot(ctx, m.dbPath, backupPath); err != nil {
		os.Remove(backupPath)
		return "", fmt.Errorf("create backup: %w", err)
	}

	if description != "" {
		meta := fmt.Sprintf("Created: %s\nDescription: %s\nOriginal DB: %s\n",
			now.Format(time.RFC3339), description, m.dbPath)
		if err := os.WriteFile(backupPath+metaSuffix, []byte(meta), 0o644); err != nil {
			os.Remove(backupPath)
			return "", fmt.Errorf("write backup metadata: %w", err)
		}
	}

	m.logger.Info("Created backup", "path", backupPath, "description", description)
	return backupPath, nil
}

// snapshot copies src into dst through the engine. VACUUM INTO refuses to
// overwrite, so a stale dst is removed first.
func (m *Manager) snapshot(ctx context.Context, src, dst string) error {
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale target: %w", err)
	}

	db, err := sql.Open("sqlite", src)
	if err != nil {
		return fmt.Errorf("open source database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoteSQLString(dst)); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	return nil
}

// List enumerates the backups newest-first by the timestamp embedded in the
// filename, pairing each with its size and sidecar description.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		path := filepath.Join(m.dir, name)
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:        path,
			Timestamp:   strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix),
			Size:        info.Size(),
			Description: readSidecarDescription(path + metaSuffix),
		})
	}

	// Zero-padded timestamps sort lexically, so reverse name order is
	// newest first.
	sort.Slice(backups, func(i, j int) bool {
		return filepath.Base(backups[i].Path) > filepath.Base(backups[j].Path)
	})
	return backups, nil
}

// Restore replaces the live database with the named backup. A safety backup
// of the current state is taken first, and the copy back goes through the
// engine for consistency.
func (m *Manager) Restore(ctx context.Context, backupPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup file not found: %s", backupPath)
	}

	if _, err := m.Create(ctx, "Safety backup before restore"); err != nil {
		return fmt.Errorf("create safety backup: %w", err)
	}

	if err := m.snapshot(ctx, backupPath, m.dbPath); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	m.logger.Info("Restored backup", "path", backupPath, "db_path", m.dbPath)
	return nil
}

// Delete removes a backup and its sidecar, reporting whether anything was
// removed.
func (m *Manager) Delete(backupPath string) bool {
	if err := os.Remove(backupPath); err != nil {
		return false
	}
	os.Remove(backupPath + metaSuffix)
	return true
}

// CleanupOld prunes backups whose filename timestamp is older than the
// cutoff, always retaining the keepMinimum newest regardless of age. It
// returns how many backups were removed.
func (m *Manager) CleanupOld(days, keepMinimum int) (int, error) {
	backups, err := m.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	removed := 0
	for i, b := range backups {
		if i < keepMinimum {
			continue
		}
		ts, err := parseBackupTimestamp(b.Timestamp)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) && m.Delete(b.Path) {
			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("Pruned old backups", "removed", removed, "days", days, "keep_minimum", keepMinimum)
	}
	return removed, nil
}

// Automatic creates a backup and applies the fixed retention policy
// (30 days, keep at least 5). It returns the path of the new backup.
func (m *Manager) Automatic(ctx context.Context, description string) (string, error) {
	if description == "" {
		description = "Automatic backup"
	}
	backupPath, err := m.Create(ctx, description)
	if err != nil {
		return "", err
	}
	if _, err := m.CleanupOld(autoRetentionDays, autoKeepMinimum); err != nil {
		return "", err
	}
	return backupPath, nil
}

// BackupInfo reads size, creation time and row count directly from a backup
// file. An unreadable file yields an error rather than partial data.
func (m *Manager) BackupInfo(ctx context.Context, backupPath string) (Details, error) {
	info, err := os.Stat(backupPath)
	if err != nil {
		return Details{}, fmt.Errorf("stat backup file: %w", err)
	}

	db, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return Details{}, fmt.Errorf("open backup file: %w", err)
	}
	defer db.Close()

	var count int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&count); err != nil {
		return Details{}, fmt.Errorf("count backup records: %w", err)
	}

	return Details{
		Path:        backupPath,
		Size:        info.Size(),
		Created:     info.ModTime(),
		RecordCount: count,
	}, nil
}

// parseBackupTimestamp reads the leading date_time portion of a filename
// timestamp, ignoring the microsecond suffix.
func parseBackupTimestamp(ts string) (time.Time, error) {
	const layout = "20060102_150405"
	if len(ts) < len(layout) {
		return time.Time{}, fmt.Errorf("timestamp too short: %q", ts)
	}
	return time.Parse(layout, ts[:len(layout)])
}

func readSidecarDescription(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "Description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// quoteSQLString renders a single-quoted SQL string literal; VACUUM INTO
// does not take bound parameters.
func quoteSQLString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

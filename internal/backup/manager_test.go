package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetrack/internal/storage"
)

type fixture struct {
	store   *storage.SQLiteStore
	manager *Manager
	dir     string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(base, "expenses.db"))
	require.NoError(t, err)
	dir := filepath.Join(base, ".backups")
	manager, err := NewManager(store.Path(), dir, nil)
	require.NoError(t, err)
	return fixture{store: store, manager: manager, dir: dir}
}

func TestCreateRequiresSource(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(filepath.Join(dir, "missing.db"), filepath.Join(dir, ".backups"), nil)
	require.NoError(t, err)

	_, err = manager.Create(context.Background(), "")
	assert.ErrorIs(t, err, ErrSourceMissing)
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.Insert(ctx, "Food", 10, "")
	require.NoError(t, err)

	path, err := f.manager.Create(ctx, "before vacation")
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.FileExists(t, path+".meta")

	backups, err := f.manager.List()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, path, backups[0].Path)
	assert.Equal(t, "before vacation", backups[0].Description)
	assert.Positive(t, backups[0].Size)
}

func TestCreateWithoutDescriptionHasNoSidecar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.Insert(ctx, "Food", 10, "")
	require.NoError(t, err)

	path, err := f.manager.Create(ctx, "")
	require.NoError(t, err)
	assert.NoFileExists(t, path+".meta")
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)

	// Fabricated backups with embedded timestamps out of order.
	for _, name := range []string{
		"expenses_backup_20250102_000000_000000.db",
		"expenses_backup_20250301_000000_000000.db",
		"expenses_backup_20250201_000000_000000.db",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte("x"), 0o644))
	}

	backups, err := f.manager.List()
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, "20250301_000000_000000", backups[0].Timestamp)
	assert.Equal(t, "20250201_000000_000000", backups[1].Timestamp)
	assert.Equal(t, "20250102_000000_000000", backups[2].Timestamp)
}

func TestRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.Insert(ctx, "Food", 10, "record A")
	require.NoError(t, err)

	backupPath, err := f.manager.Create(ctx, "")
	require.NoError(t, err)

	_, err = f.store.Insert(ctx, "Rent", 100, "record B")
	require.NoError(t, err)
	total, err := f.store.Total(ctx)
	require.NoError(t, err)
	require.InDelta(t, 110, total, 1e-6)

	require.NoError(t, f.manager.Restore(ctx, backupPath))

	total, err = f.store.Total(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10, total, 1e-6, "record B is gone after restore")
}

func TestRestoreMissingBackup(t *testing.T) {
	f := newFixture(t)
	err := f.manager.Restore(context.Background(), filepath.Join(f.dir, "nope.db"))
	assert.Error(t, err)
}

func TestRestoreTakesSafetyBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.Insert(ctx, "Food", 10, "")
	require.NoError(t, err)
	backupPath, err := f.manager.Create(ctx, "")
	require.NoError(t, err)

	require.NoError(t, f.manager.Restore(ctx, backupPath))

	backups, err := f.manager.List()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, "Safety backup before restore", backups[0].Description)
}

func TestDeleteBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.Insert(ctx, "Food", 10, "")
	require.NoError(t, err)
	path, err := f.manager.Create(ctx, "note")
	require.NoError(t, err)

	assert.True(t, f.manager.Delete(path))
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, path+".meta")

	assert.False(t, f.manager.Delete(path), "second delete finds nothing")
}

func TestCleanupOldKeepsMinimum(t *testing.T) {
	f := newFixture(t)

	// Eight backups, all far older than any cutoff.
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("expenses_backup_2020010%d_000000_000000.db", i+1)
		require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte("x"), 0o644))
	}

	removed, err := f.manager.CleanupOld(30, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	backups, err := f.manager.List()
	require.NoError(t, err)
	require.Len(t, backups, 5)
	// The five newest survive even though all are past the cutoff.
	assert.Equal(t, "20200108_000000_000000", backups[0].Timestamp)
	assert.Equal(t, "20200104_000000_000000", backups[4].Timestamp)
}

func TestCleanupOldSparesRecent(t *testing.T) {
	f := newFixture(t)

	old := "expenses_backup_20200101_000000_000000.db"
	recent := fmt.Sprintf("expenses_backup_%s_000000.db", time.Now().UTC().Format("20060102_150405"))
	for _, name := range []string{old, recent} {
		require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte("x"), 0o644))
	}

	removed, err := f.manager.CleanupOld(30, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	backups, err := f.manager.List()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, filepath.Join(f.dir, recent), backups[0].Path)
}

func TestAutomaticBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.Insert(ctx, "Food", 10, "")
	require.NoError(t, err)

	path, err := f.manager.Automatic(ctx, "")
	require.NoError(t, err)
	assert.FileExists(t, path)

	backups, err := f.manager.List()
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "Automatic backup", backups[0].Description)
}

func TestBackupInfo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.store.Insert(ctx, "Food", float64(i+1), "")
		require.NoError(t, err)
	}
	path, err := f.manager.Create(ctx, "")
	require.NoError(t, err)

	details, err := f.manager.BackupInfo(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, details.Path)
	assert.Positive(t, details.Size)
	assert.EqualValues(t, 3, details.RecordCount)
	assert.WithinDuration(t, time.Now(), details.Created, time.Minute)
}

func TestBackupInfoUnreadable(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.BackupInfo(context.Background(), filepath.Join(f.dir, "nope.db"))
	assert.Error(t, err)
}

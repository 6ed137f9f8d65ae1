package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetrack/internal/core"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "expenses.db"))
	require.NoError(t, err)
	return store
}

func TestSQLiteInsertAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	id1, err := store.Insert(ctx, "Food", 10, "lunch")
	require.NoError(t, err)
	id2, err := store.Insert(ctx, "Food", 20, "dinner")
	require.NoError(t, err)

	assert.Positive(t, id1)
	assert.Greater(t, id2, id1, "identities are monotonically increasing")
}

func TestSQLiteInsertValidates(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	_, err := store.Insert(ctx, "", 10, "")
	assert.ErrorIs(t, err, core.ErrEmptyCategory)

	_, err = store.Insert(ctx, "Food", -10, "")
	assert.ErrorIs(t, err, core.ErrNegativeAmount)

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSQLiteListOrdersByTimestampDescending(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"oldest", "middle", "newest"} {
		_, err := store.Append(ctx, core.Record{
			Category:    "Food",
			Amount:      float64(i + 1),
			Description: name,
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "newest", records[0].Description)
	assert.Equal(t, "middle", records[1].Description)
	assert.Equal(t, "oldest", records[2].Description)
	assert.True(t, records[0].Timestamp.Equal(base.Add(2*time.Hour)))
}

func TestSQLiteListByCategory(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	_, err := store.Insert(ctx, "Food", 10, "a")
	require.NoError(t, err)
	_, err = store.Insert(ctx, "Rent", 800, "b")
	require.NoError(t, err)
	_, err = store.Insert(ctx, "Food", 20, "c")
	require.NoError(t, err)

	records, err := store.ListByCategory(ctx, "Food")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "Food", r.Category)
	}
}

func TestSQLiteAggregates(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	for _, r := range []struct {
		category string
		amount   float64
	}{
		{"Food", 10},
		{"Food", 20},
		{"Rent", 100},
	} {
		_, err := store.Insert(ctx, r.category, r.amount, "")
		require.NoError(t, err)
	}

	total, err := store.Total(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 130, total, 1e-6)

	totals, err := store.CategoryTotals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, core.CategoryTotal{Category: "Rent", Total: 100}, totals[0])
	assert.Equal(t, core.CategoryTotal{Category: "Food", Total: 30}, totals[1])

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Count)
	assert.InDelta(t, 130, stats.Total, 1e-6)
	assert.InDelta(t, 130.0/3.0, stats.Average, 1e-6)
	assert.InDelta(t, 10, stats.Min, 1e-6)
	assert.InDelta(t, 100, stats.Max, 1e-6)
	assert.Equal(t, totals, stats.ByCategory)
}

func TestSQLiteStatisticsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	stats, err := store.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Average)
	assert.Empty(t, stats.ByCategory)
}

func TestSQLiteDeleteByID(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	id, err := store.Insert(ctx, "Food", 10, "lunch")
	require.NoError(t, err)

	removed, err := store.DeleteByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.DeleteByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, removed, "second delete finds nothing")
}

func TestSQLiteDeleteRequiresIdentity(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	_, err := store.Delete(ctx, core.Record{Category: "Food", Amount: 10})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestSQLiteUpdateByID(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	id, err := store.Insert(ctx, "Food", 10, "lunch")
	require.NoError(t, err)

	found, err := store.UpdateByID(ctx, id, "Transport", 2.40, "bus")
	require.NoError(t, err)
	assert.True(t, found)

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Transport", records[0].Category)
	assert.InDelta(t, 2.40, records[0].Amount, 1e-6)
	assert.Equal(t, "bus", records[0].Description)

	found, err = store.UpdateByID(ctx, id+1, "X", 1, "")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = store.UpdateByID(ctx, id, "", 1, "")
	assert.ErrorIs(t, err, core.ErrEmptyCategory)
}

func TestSQLiteClear(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	_, err := store.Insert(ctx, "Food", 10, "")
	require.NoError(t, err)
	require.NoError(t, store.Clear(ctx))

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	total, err := store.Total(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSQLiteFileIntrospection(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	assert.True(t, store.Exists())
	size, err := store.FileSize()
	require.NoError(t, err)
	assert.Positive(t, size)

	missing := &SQLiteStore{path: filepath.Join(t.TempDir(), "nope.db")}
	assert.False(t, missing.Exists())
	size, err = missing.FileSize()
	require.NoError(t, err)
	assert.Zero(t, size)

	records, err := missing.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

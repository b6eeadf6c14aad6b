package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pendencias/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunsLedger(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i, status := range []string{"ok", "failed", "ok"} {
		require.NoError(t, db.InsertRun(ctx, internal.RunRow{
			TraceID: "trace-" + string(rune('a'+i)),
			Source:  "turma.csv",
			Format:  "csv",
			Status:  status,
			Counts:  map[string]int{"records": i},
			Timings: map[string]float64{"totalMs": 1.5},
		}))
	}

	runs, err := db.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "trace-c", runs[0].TraceID)
	assert.Equal(t, 2, runs[0].Counts["records"])
	assert.Equal(t, 1.5, runs[0].Timings["totalMs"])
	assert.Equal(t, "failed", runs[1].Status)
	assert.NotEmpty(t, runs[1].CreatedAt)
}

func TestInboundLifecycle(t *testing.T) {
	db := openTestDB(t)

	row, err := db.UpsertInbound("dir", "a.csv@1", "a.csv", "2024-01-01T00:00:00Z", "h1", "/raw/h1.csv", "fetched")
	require.NoError(t, err)
	assert.Equal(t, "fetched", row.Status)

	again, err := db.UpsertInbound("dir", "a.csv@1", "a.csv", "2024-01-01T00:00:00Z", "h2", "/raw/h2.csv", "fetched")
	require.NoError(t, err)
	assert.Equal(t, row.ID, again.ID)
	assert.Equal(t, "h2", again.Hash)

	missing, err := db.GetInbound("dir", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, db.UpdateInboundStatus(row.ID, "processed"))
	fetched, err := db.ListInboundByStatus("fetched", 10)
	require.NoError(t, err)
	assert.Empty(t, fetched)
	processed, err := db.ListInboundByStatus("processed", 10)
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Equal(t, "/raw/h2.csv", processed[0].RawRef)
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetMetadata("listener.lastCycle")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, db.SetMetadata("listener.lastCycle", "one"))
	require.NoError(t, db.SetMetadata("listener.lastCycle", "two"))
	v, err = db.GetMetadata("listener.lastCycle")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "two", *v)
}

func TestListInboundBySource(t *testing.T) {
	db := openTestDB(t)
	for i, src := range []string{"gmail", "gmail", "dir"} {
		_, err := db.UpsertInbound(src, string(rune('a'+i)), "f.csv", "2024-01-0"+string(rune('1'+i))+"T00:00:00Z", "h", "/raw/f.csv", "fetched")
		require.NoError(t, err)
	}

	rows, err := db.ListInboundBySource("dir", "fetched", 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "dir", rows[0].Source)

	rows, err = db.ListInboundBySource("gmail", "fetched", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = db.ListInboundBySource("imap", "fetched", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

package db

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCatalogue(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "captures.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord(id string, started time.Time) CaptureRecord {
	return CaptureRecord{
		ID:            id,
		Mode:          "distance",
		SampleRate:    44100,
		Frames:        101,
		Bytes:         101 * 512,
		Discards:      1,
		Implicit:      false,
		SyncFrames:    175,
		SyncInvalid:   2,
		SyncDiscarded: 37,
		SyncResyncs:   3,
		LowCutoffHz:   20,
		HighCutoffHz:  20000,
		FilterOrder:   5,
		StartedAt:     started,
		EndedAt:       started.Add(4 * time.Second),
		Files: []CaptureFile{
			{Format: "wav", Path: "/captures/" + id + ".wav"},
			{Format: "csv", Path: "/captures/" + id + ".csv"},
		},
	}
}

func TestRecordAndGetCapture(t *testing.T) {
	db := setupCatalogue(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 9, 30, 0, 250*int(time.Millisecond), time.UTC)

	want := sampleRecord("cap-1", started)
	require.NoError(t, db.RecordCapture(ctx, want))

	got, err := db.GetCapture(ctx, "cap-1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("GetCapture() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 586*time.Millisecond, got.Duration().Round(time.Millisecond))
}

func TestRecordCapture_NoFiles(t *testing.T) {
	db := setupCatalogue(t)
	ctx := context.Background()

	rec := sampleRecord("bare", time.UnixMilli(1_700_000_000_000).UTC())
	rec.Files = nil
	rec.Implicit = true
	require.NoError(t, db.RecordCapture(ctx, rec))

	got, err := db.GetCapture(ctx, "bare")
	require.NoError(t, err)
	assert.Nil(t, got.Files)
	assert.True(t, got.Implicit)
}

func TestRecordCapture_Duplicate(t *testing.T) {
	db := setupCatalogue(t)
	ctx := context.Background()
	rec := sampleRecord("dup", time.Now().UTC())

	require.NoError(t, db.RecordCapture(ctx, rec))
	assert.Error(t, db.RecordCapture(ctx, rec))

	// The failed insert left nothing behind.
	list, err := db.ListCaptures(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecordCapture_FileRollback(t *testing.T) {
	db := setupCatalogue(t)
	ctx := context.Background()
	rec := sampleRecord("rollback", time.Now().UTC())
	rec.Files = append(rec.Files, rec.Files[0])

	assert.Error(t, db.RecordCapture(ctx, rec))
	_, err := db.GetCapture(ctx, "rollback")
	assert.ErrorIs(t, err, ErrCaptureNotFound)
}

func TestRecordCapture_NoID(t *testing.T) {
	db := setupCatalogue(t)
	assert.Error(t, db.RecordCapture(context.Background(), CaptureRecord{}))
}

func TestGetCapture_NotFound(t *testing.T) {
	db := setupCatalogue(t)
	_, err := db.GetCapture(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCaptureNotFound)
}

func TestListCaptures(t *testing.T) {
	db := setupCatalogue(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := sampleRecord(fmt.Sprintf("cap-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, db.RecordCapture(ctx, rec))
	}

	all, err := db.ListCaptures(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "cap-4", all[0].ID)
	assert.Equal(t, "cap-0", all[4].ID)
	assert.Nil(t, all[0].Files)

	recent, err := db.ListCaptures(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, []string{"cap-4", "cap-3"}, []string{recent[0].ID, recent[1].ID})
}

func TestListCaptures_Empty(t *testing.T) {
	db := setupCatalogue(t)
	list, err := db.ListCaptures(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

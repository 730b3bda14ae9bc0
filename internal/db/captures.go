package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrCaptureNotFound is returned by GetCapture for an unknown ID.
var ErrCaptureNotFound = errors.New("capture not found")

// CaptureFile is one exported artefact of a capture.
type CaptureFile struct {
	Format string `json:"format"`
	Path   string `json:"path"`
}

// CaptureRecord is a catalogue row.
type CaptureRecord struct {
	ID         string `json:"capture_id"`
	Mode       string `json:"mode"`
	SampleRate int    `json:"sample_rate"`
	Frames     int    `json:"frames"`
	Bytes      int    `json:"bytes"`
	Discards   int    `json:"discards"`
	Implicit   bool   `json:"implicit"`

	SyncFrames    uint64 `json:"sync_frames"`
	SyncInvalid   uint64 `json:"sync_invalid"`
	SyncDiscarded uint64 `json:"sync_discarded"`
	SyncResyncs   uint64 `json:"sync_resyncs"`

	LowCutoffHz  float64 `json:"low_cutoff_hz"`
	HighCutoffHz float64 `json:"high_cutoff_hz"`
	FilterOrder  int     `json:"filter_order"`

	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Files     []CaptureFile `json:"files,omitempty"`
}

// Duration is the audio length the capture's bytes represent.
func (r CaptureRecord) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(r.Bytes/2) * time.Second / time.Duration(r.SampleRate)
}

// RecordCapture inserts a capture and its files in one transaction.
func (db *DB) RecordCapture(ctx context.Context, rec CaptureRecord) error {
	if rec.ID == "" {
		return errors.New("capture record has no ID")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO captures (
			capture_id, mode, sample_rate, frames, bytes, discards, implicit,
			sync_frames, sync_invalid, sync_discarded, sync_resyncs,
			low_cutoff_hz, high_cutoff_hz, filter_order,
			started_at_ms, ended_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Mode, rec.SampleRate, rec.Frames, rec.Bytes, rec.Discards, rec.Implicit,
		int64(rec.SyncFrames), int64(rec.SyncInvalid), int64(rec.SyncDiscarded), int64(rec.SyncResyncs),
		rec.LowCutoffHz, rec.HighCutoffHz, rec.FilterOrder,
		rec.StartedAt.UnixMilli(), rec.EndedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert capture %s: %w", rec.ID, err)
	}

	for _, f := range rec.Files {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO capture_files (capture_id, format, path) VALUES (?, ?, ?)`,
			rec.ID, f.Format, f.Path,
		)
		if err != nil {
			return fmt.Errorf("failed to insert capture file %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

const captureColumns = `
	capture_id, mode, sample_rate, frames, bytes, discards, implicit,
	sync_frames, sync_invalid, sync_discarded, sync_resyncs,
	COALESCE(low_cutoff_hz, 0), COALESCE(high_cutoff_hz, 0), COALESCE(filter_order, 0),
	started_at_ms, ended_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapture(row rowScanner) (CaptureRecord, error) {
	var rec CaptureRecord
	var syncFrames, syncInvalid, syncDiscarded, syncResyncs int64
	var startedMs, endedMs int64
	err := row.Scan(
		&rec.ID, &rec.Mode, &rec.SampleRate, &rec.Frames, &rec.Bytes, &rec.Discards, &rec.Implicit,
		&syncFrames, &syncInvalid, &syncDiscarded, &syncResyncs,
		&rec.LowCutoffHz, &rec.HighCutoffHz, &rec.FilterOrder,
		&startedMs, &endedMs,
	)
	if err != nil {
		return rec, err
	}
	rec.SyncFrames = uint64(syncFrames)
	rec.SyncInvalid = uint64(syncInvalid)
	rec.SyncDiscarded = uint64(syncDiscarded)
	rec.SyncResyncs = uint64(syncResyncs)
	rec.StartedAt = time.UnixMilli(startedMs).UTC()
	rec.EndedAt = time.UnixMilli(endedMs).UTC()
	return rec, nil
}

// GetCapture loads one capture with its files.
func (db *DB) GetCapture(ctx context.Context, id string) (*CaptureRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT `+captureColumns+` FROM captures WHERE capture_id = ?`, id)
	rec, err := scanCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCaptureNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if rec.Files, err = db.captureFiles(ctx, id); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCaptures returns the most recent captures first. limit <= 0 means no
// limit. Files are not loaded.
func (db *DB) ListCaptures(ctx context.Context, limit int) ([]CaptureRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+captureColumns+` FROM captures ORDER BY started_at_ms DESC, capture_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CaptureRecord
	for rows.Next() {
		rec, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (db *DB) captureFiles(ctx context.Context, id string) ([]CaptureFile, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT format, path FROM capture_files WHERE capture_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []CaptureFile
	for rows.Next() {
		var f CaptureFile
		if err := rows.Scan(&f.Format, &f.Path); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

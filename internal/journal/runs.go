package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a recorded run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Fixed-width timestamps keep lexical order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DefaultRecentLimit caps Recent when the caller passes a non-positive limit.
const DefaultRecentLimit = 50

// Run is one processed request.
type Run struct {
	ID           string    `json:"id"`
	RequestID    string    `json:"requestId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	SourceFormat string    `json:"sourceFormat,omitempty"`
	OutputFormat string    `json:"outputFormat,omitempty"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	SizeBytes    int64     `json:"sizeBytes"`
	RemoveBg     bool      `json:"removeBg"`
	DurationMS   int64     `json:"durationMs"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	OutputPath   string    `json:"outputPath,omitempty"`
}

const runColumns = "id, request_id, created_at, source_format, output_format, width, height, size_bytes, remove_bg, duration_ms, status, error_message, output_path"

// Record appends run to the journal, assigning an ID and timestamp when unset.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	if s == nil {
		return run, errors.New("journal store unavailable")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()
	if run.Status == "" {
		run.Status = StatusSucceeded
		if run.ErrorMessage != "" {
			run.Status = StatusFailed
		}
	}

	_, err := s.exec(ctx,
		"INSERT INTO runs ("+runColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		run.ID,
		nullableString(run.RequestID),
		run.CreatedAt.Format(timeLayout),
		nullableString(run.SourceFormat),
		nullableString(run.OutputFormat),
		run.Width,
		run.Height,
		run.SizeBytes,
		boolToInt(run.RemoveBg),
		run.DurationMS,
		string(run.Status),
		nullableString(run.ErrorMessage),
		nullableString(run.OutputPath),
	)
	if err != nil {
		return run, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Prune deletes runs recorded before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		"DELETE FROM runs WHERE created_at < ?", cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return n, nil
}

// Count returns the number of recorded runs.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		id           string
		requestID    sql.NullString
		createdRaw   string
		sourceFormat sql.NullString
		outputFormat sql.NullString
		width        int
		height       int
		sizeBytes    int64
		removeBg     int
		durationMS   int64
		status       string
		errorMessage sql.NullString
		outputPath   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&requestID,
		&createdRaw,
		&sourceFormat,
		&outputFormat,
		&width,
		&height,
		&sizeBytes,
		&removeBg,
		&durationMS,
		&status,
		&errorMessage,
		&outputPath,
	); err != nil {
		return Run{}, err
	}
	run := Run{
		ID:           id,
		RequestID:    requestID.String,
		SourceFormat: sourceFormat.String,
		OutputFormat: outputFormat.String,
		Width:        width,
		Height:       height,
		SizeBytes:    sizeBytes,
		RemoveBg:     removeBg != 0,
		DurationMS:   durationMS,
		Status:       Status(status),
		ErrorMessage: errorMessage.String,
		OutputPath:   outputPath.String,
	}
	if created, err := time.Parse(timeLayout, createdRaw); err == nil {
		run.CreatedAt = created
	}
	return run, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opencode-ai/wavecast/internal/models"
)

// Dispatch repository errors.
var (
	ErrDispatchNotFound = errors.New("dispatch record not found")
)

// DispatchRepository persists journal records.
type DispatchRepository struct {
	db *DB
}

// NewDispatchRepository creates a new DispatchRepository.
func NewDispatchRepository(db *DB) *DispatchRepository {
	return &DispatchRepository{db: db}
}

// DispatchQuery defines filters for querying records.
type DispatchQuery struct {
	RunID  string                 // Filter by run
	Number string                 // Filter by recipient number
	Status *models.DispatchStatus // Filter by outcome
	Since  *time.Time             // Records at or after this time (inclusive)
	Limit  int                    // Max results to return
}

const dispatchColumns = `id, run_id, iteration, timestamp, name, number, channel, handle, wave, status, stage, content, error_message`

// Create appends a record. ID and Timestamp are filled in when empty.
func (r *DispatchRepository) Create(ctx context.Context, record *models.DispatchRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	} else {
		record.Timestamp = record.Timestamp.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatches (`+dispatchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.RunID,
		record.Iteration,
		record.Timestamp.Format(timestampLayout),
		record.Name,
		record.Number,
		string(record.Channel),
		record.Handle,
		record.Wave,
		string(record.Status),
		record.Stage,
		record.Content,
		record.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert dispatch record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (r *DispatchRepository) Get(ctx context.Context, id string) (*models.DispatchRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+dispatchColumns+` FROM dispatches WHERE id = ?`, id)
	record, err := scanDispatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDispatchNotFound
	}
	return record, err
}

// Query retrieves records matching the filters, oldest first.
func (r *DispatchRepository) Query(ctx context.Context, q DispatchQuery) ([]*models.DispatchRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + dispatchColumns + ` FROM dispatches WHERE 1=1`
	args := []any{}

	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Number != "" {
		query += ` AND number = ?`
		args = append(args, q.Number)
	}
	if q.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*q.Status))
	}
	if q.Since != nil {
		query += ` AND timestamp >= ?`
		args = append(args, q.Since.UTC().Format(timestampLayout))
	}

	query += ` ORDER BY timestamp, id LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispatch records: %w", err)
	}
	defer rows.Close()

	var records []*models.DispatchRecord
	for rows.Next() {
		record, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dispatch records: %w", err)
	}
	return records, nil
}

// ListUnrecorded returns sends that reached the recipient but never reached the store.
func (r *DispatchRepository) ListUnrecorded(ctx context.Context, limit int) ([]*models.DispatchRecord, error) {
	status := models.DispatchStatusUnrecorded
	return r.Query(ctx, DispatchQuery{Status: &status, Limit: limit})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispatch(row rowScanner) (*models.DispatchRecord, error) {
	var record models.DispatchRecord
	var timestamp, channel, status string

	if err := row.Scan(
		&record.ID,
		&record.RunID,
		&record.Iteration,
		&timestamp,
		&record.Name,
		&record.Number,
		&channel,
		&record.Handle,
		&record.Wave,
		&status,
		&record.Stage,
		&record.Content,
		&record.Error,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan dispatch record: %w", err)
	}

	record.Channel = models.Channel(channel)
	record.Status = models.DispatchStatus(status)
	if t, err := time.Parse(timestampLayout, timestamp); err == nil {
		record.Timestamp = t
	}
	return &record, nil
}

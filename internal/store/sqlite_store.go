package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spindex/spindex/internal/db"
	"github.com/spindex/spindex/internal/submission"
)

// SqliteStore implements Storage on top of the SQLite database opened by the
// db package. The conditional update is a single UPDATE guarded by the
// version column; a zero rows-affected result signals a lost race rather
// than an error.
type SqliteStore struct {
	db *sql.DB
}

// Compile-time check that SqliteStore implements Storage.
var _ Storage = (*SqliteStore)(nil)

// NewSqliteStore wraps an open database handle.
func NewSqliteStore(database *sql.DB) *SqliteStore {
	return &SqliteStore{db: database}
}

// Close closes the underlying database handle.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Create persists a new record and returns its id.
func (s *SqliteStore) Create(ctx context.Context,
	rec submission.Record) (string, error) {

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = submission.StatusPending
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	payload, approvers, err := encodeRecord(&rec)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (
			id, submission_type, payload, status, approvers,
			rejection_category, rejection_reason, moderator_notes,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		rec.ID, string(rec.Type), payload, string(rec.Status),
		approvers, rec.RejectionCategory, rec.RejectionReason,
		rec.ModeratorNotes, rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("create submission: %w",
			db.MapSQLError(err))
	}

	return rec.ID, nil
}

// Get retrieves a record and its current version.
func (s *SqliteStore) Get(ctx context.Context,
	id string) (submission.Record, int64, error) {

	row := s.db.QueryRowContext(ctx, `
		SELECT id, submission_type, payload, status, approvers,
			rejection_category, rejection_reason, moderator_notes,
			version, created_at, updated_at
		FROM submissions WHERE id = ?`, id,
	)

	rec, version, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return submission.Record{}, 0, ErrNotFound
		}
		return submission.Record{}, 0, fmt.Errorf(
			"get submission: %w", db.MapSQLError(err))
	}

	return rec, version, nil
}

// ConditionalUpdate replaces the record only when the stored version still
// equals expectedVersion.
func (s *SqliteStore) ConditionalUpdate(ctx context.Context, id string,
	expectedVersion int64, rec submission.Record) (bool, error) {

	payload, approvers, err := encodeRecord(&rec)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET
			payload = ?, status = ?, approvers = ?,
			rejection_category = ?, rejection_reason = ?,
			moderator_notes = ?, version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?`,
		payload, string(rec.Status), approvers,
		rec.RejectionCategory, rec.RejectionReason,
		rec.ModeratorNotes, rec.UpdatedAt.Unix(),
		id, expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("conditional update: %w",
			db.MapSQLError(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a lost race from a missing record.
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM submissions WHERE id = ?", id,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		if err != nil {
			return false, fmt.Errorf("conditional update: %w",
				db.MapSQLError(err))
		}

		return false, nil
	}

	return true, nil
}

// List returns records matching the filter, newest first.
func (s *SqliteStore) List(ctx context.Context,
	filter ListFilter) ([]submission.Record, error) {

	query := `
		SELECT id, submission_type, payload, status, approvers,
			rejection_category, rejection_reason, moderator_notes,
			version, created_at, updated_at
		FROM submissions WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		query += " AND submission_type = ?"
		args = append(args, string(filter.Type))
	}

	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w",
			db.MapSQLError(err))
	}
	defer rows.Close()

	var out []submission.Record
	for rows.Next() {
		rec, _, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

// Stats returns per-status counts for the moderation queue.
func (s *SqliteStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM submissions GROUP BY status",
	)
	if err != nil {
		return Stats{}, fmt.Errorf("submission stats: %w",
			db.MapSQLError(err))
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan stats: %w", err)
		}

		stats.Total += count
		switch submission.Status(status) {
		case submission.StatusPending:
			stats.Pending = count
		case submission.StatusUnderReview:
			stats.UnderReview = count
		case submission.StatusAwaitingSecondApproval:
			stats.AwaitingSecondApproval = count
		case submission.StatusApproved:
			stats.Approved = count
		case submission.StatusRejected:
			stats.Rejected = count
		}
	}

	return stats, rows.Err()
}

// AppendAudit records one audit entry.
func (s *SqliteStore) AppendAudit(ctx context.Context,
	entry AuditEntry) error {

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, submission_id, actor, action, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SubmissionID, entry.Actor, entry.Action,
		entry.Detail, entry.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append audit: %w", db.MapSQLError(err))
	}

	return nil
}

// ListAudit returns the audit trail for a submission, oldest first.
func (s *SqliteStore) ListAudit(ctx context.Context,
	submissionID string) ([]AuditEntry, error) {

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_id, actor, action, detail, created_at
		FROM audit_entries
		WHERE submission_id = ?
		ORDER BY created_at ASC, id ASC`, submissionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", db.MapSQLError(err))
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var createdAt int64
		err := rows.Scan(
			&entry.ID, &entry.SubmissionID, &entry.Actor,
			&entry.Action, &entry.Detail, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		entry.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, entry)
	}

	return out, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for scanRecord.
type scanner interface {
	Scan(dest ...any) error
}

// encodeRecord serializes the payload map and approver set to their JSON
// column representations.
func encodeRecord(rec *submission.Record) (string, string, error) {
	payload := rec.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("encode payload: %w", err)
	}

	approvers := rec.Approvers
	if approvers == nil {
		approvers = []string{}
	}
	approversJSON, err := json.Marshal(approvers)
	if err != nil {
		return "", "", fmt.Errorf("encode approvers: %w", err)
	}

	return string(payloadJSON), string(approversJSON), nil
}

// scanRecord reads one submission row.
func scanRecord(row scanner) (submission.Record, int64, error) {
	var (
		rec                 submission.Record
		typeTag, statusTag  string
		payload, approvers  string
		version             int64
		createdAt, updated  int64
	)

	err := row.Scan(
		&rec.ID, &typeTag, &payload, &statusTag, &approvers,
		&rec.RejectionCategory, &rec.RejectionReason,
		&rec.ModeratorNotes, &version, &createdAt, &updated,
	)
	if err != nil {
		return submission.Record{}, 0, err
	}

	rec.Type = submission.Type(typeTag)
	rec.Status = submission.Status(statusTag)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updated, 0).UTC()

	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return submission.Record{}, 0, fmt.Errorf(
			"decode payload: %w", err)
	}
	if err := json.Unmarshal([]byte(approvers), &rec.Approvers); err != nil {
		return submission.Record{}, 0, fmt.Errorf(
			"decode approvers: %w", err)
	}
	if len(rec.Approvers) == 0 {
		rec.Approvers = nil
	}

	return rec, version, nil
}

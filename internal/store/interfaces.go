// Package store defines the persistence seam consumed by the moderation
// engine and provides its in-memory and SQLite implementations. The engine
// never issues raw queries; it reads and writes whole records through this
// interface.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/spindex/spindex/internal/submission"
)

// ErrNotFound is returned when no record exists for the given id.
var ErrNotFound = errors.New("submission not found")

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	Status submission.Status
	Type   submission.Type
	Limit  int
	Offset int
}

// Stats summarizes the moderation queue by status.
type Stats struct {
	Total                  int64
	Pending                int64
	UnderReview            int64
	AwaitingSecondApproval int64
	Approved               int64
	Rejected               int64
}

// AuditEntry is one immutable line of the moderation audit trail.
// Submissions are never physically deleted, and neither are these.
type AuditEntry struct {
	ID           string
	SubmissionID string
	Actor        string
	Action       string
	Detail       string
	CreatedAt    time.Time
}

// SubmissionStore handles submission persistence. Get returns the record
// together with an opaque version; ConditionalUpdate only commits when the
// caller's version still matches, which is the primitive the engine's
// optimistic concurrency relies on. The conditional update is a hard
// requirement of this design, not an optimization.
type SubmissionStore interface {
	// Create persists a new record and returns its id. A record created
	// without an id is assigned one.
	Create(ctx context.Context, rec submission.Record) (string, error)

	// Get retrieves a record and its current version.
	Get(ctx context.Context,
		id string) (submission.Record, int64, error)

	// ConditionalUpdate replaces the record only if its stored version
	// equals expectedVersion, returning false (and leaving the record
	// untouched) otherwise.
	ConditionalUpdate(ctx context.Context, id string,
		expectedVersion int64, rec submission.Record) (bool, error)

	// List returns records matching the filter, newest first.
	List(ctx context.Context,
		filter ListFilter) ([]submission.Record, error)

	// Stats returns per-status counts for the moderation queue.
	Stats(ctx context.Context) (Stats, error)
}

// AuditStore handles the append-only moderation audit trail.
type AuditStore interface {
	// AppendAudit records one audit entry. Entries without an id or
	// timestamp are assigned them.
	AppendAudit(ctx context.Context, entry AuditEntry) error

	// ListAudit returns the audit trail for a submission, oldest first.
	ListAudit(ctx context.Context,
		submissionID string) ([]AuditEntry, error)
}

// Storage combines the store interfaces implemented by both the in-memory
// and the SQLite backends.
type Storage interface {
	SubmissionStore
	AuditStore

	// Close releases any resources held by the backend.
	Close() error
}

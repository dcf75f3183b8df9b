package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spindex/spindex/internal/submission"
)

// MemoryStore provides an in-memory implementation of Storage for tests and
// for running the daemon without a database file. All data is stored in maps
// and protected by a mutex; versions increment on every committed update,
// which gives the conditional-update primitive the same semantics as the
// SQLite backend.
type MemoryStore struct {
	mu sync.RWMutex

	records  map[string]submission.Record
	versions map[string]int64
	audit    map[string][]AuditEntry
}

// Compile-time check that MemoryStore implements Storage.
var _ Storage = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]submission.Record),
		versions: make(map[string]int64),
		audit:    make(map[string][]AuditEntry),
	}
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// Create persists a new record and returns its id.
func (m *MemoryStore) Create(_ context.Context,
	rec submission.Record) (string, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

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

	m.records[rec.ID] = rec.Clone()
	m.versions[rec.ID] = 1

	return rec.ID, nil
}

// Get retrieves a record and its current version.
func (m *MemoryStore) Get(_ context.Context,
	id string) (submission.Record, int64, error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return submission.Record{}, 0, ErrNotFound
	}

	return rec.Clone(), m.versions[id], nil
}

// ConditionalUpdate replaces the record only when the stored version still
// matches expectedVersion.
func (m *MemoryStore) ConditionalUpdate(_ context.Context, id string,
	expectedVersion int64, rec submission.Record) (bool, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return false, ErrNotFound
	}
	if m.versions[id] != expectedVersion {
		return false, nil
	}

	rec.ID = id
	m.records[id] = rec.Clone()
	m.versions[id] = expectedVersion + 1

	return true, nil
}

// List returns records matching the filter, newest first.
func (m *MemoryStore) List(_ context.Context,
	filter ListFilter) ([]submission.Record, error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []submission.Record
	for _, rec := range m.records {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		out = append(out, rec.Clone())
	}

	// Newest first, with the id as a tiebreaker for determinism.
	sortRecords(out)

	out = paginate(out, filter.Offset, filter.Limit)

	return out, nil
}

// Stats returns per-status counts.
func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats Stats
	for _, rec := range m.records {
		stats.Total++
		switch rec.Status {
		case submission.StatusPending:
			stats.Pending++
		case submission.StatusUnderReview:
			stats.UnderReview++
		case submission.StatusAwaitingSecondApproval:
			stats.AwaitingSecondApproval++
		case submission.StatusApproved:
			stats.Approved++
		case submission.StatusRejected:
			stats.Rejected++
		}
	}

	return stats, nil
}

// AppendAudit records one audit entry.
func (m *MemoryStore) AppendAudit(_ context.Context,
	entry AuditEntry) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	m.audit[entry.SubmissionID] = append(
		m.audit[entry.SubmissionID], entry,
	)

	return nil
}

// ListAudit returns the audit trail for a submission, oldest first.
func (m *MemoryStore) ListAudit(_ context.Context,
	submissionID string) ([]AuditEntry, error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.audit[submissionID]
	out := make([]AuditEntry, len(entries))
	copy(out, entries)

	return out, nil
}

package moderation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spindex/spindex/internal/store"
	"github.com/spindex/spindex/internal/submission"
)

// flakyStore wraps a Storage and makes the first failCount conditional
// updates lose, as if another moderator raced in between read and write.
type flakyStore struct {
	store.Storage

	mu        sync.Mutex
	failCount int
}

func (f *flakyStore) ConditionalUpdate(ctx context.Context, id string,
	expectedVersion int64, rec submission.Record) (bool, error) {

	f.mu.Lock()
	shouldFail := f.failCount > 0
	if shouldFail {
		f.failCount--
	}
	f.mu.Unlock()

	if shouldFail {
		return false, nil
	}

	return f.Storage.ConditionalUpdate(ctx, id, expectedVersion, rec)
}

// spyNotifier records status-change callbacks and signals each arrival.
type spyNotifier struct {
	mu      sync.Mutex
	records []submission.Record
	arrived chan struct{}
}

func newSpyNotifier() *spyNotifier {
	return &spyNotifier{arrived: make(chan struct{}, 16)}
}

func (s *spyNotifier) NotifyStatusChange(_ context.Context,
	rec submission.Record) {

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	s.arrived <- struct{}{}
}

func (s *spyNotifier) wait(t *testing.T) submission.Record {
	t.Helper()

	select {
	case <-s.arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.records[len(s.records)-1]
}

func newTestEngine(t *testing.T,
	storage store.Storage) (*Engine, *spyNotifier) {

	t.Helper()

	spy := newSpyNotifier()
	engine := NewEngine(EngineConfig{
		Store:    storage,
		Audit:    storage,
		Notifier: spy,
		Policy:   DefaultApprovalPolicy(),
	})

	return engine, spy
}

func seedSubmission(t *testing.T, storage store.Storage) string {
	t.Helper()

	id, err := storage.Create(context.Background(), submission.Record{
		Type:    submission.TypeEquipment,
		Payload: map[string]string{"name": "Dignics 09C"},
		Status:  submission.StatusPending,
	})
	require.NoError(t, err)

	return id
}

func TestApproveProgressesToApproved(t *testing.T) {
	t.Parallel()

	storage := store.NewMemoryStore()
	engine, spy := newTestEngine(t, storage)
	id := seedSubmission(t, storage)
	ctx := context.Background()

	result, err := engine.Approve(ctx, id, "mod-a")
	require.NoError(t, err)
	require.Equal(t, OutcomeChanged, result.Outcome)
	require.Equal(t, submission.StatusPending, result.PrevStatus)
	require.Equal(t, submission.StatusUnderReview, result.NewStatus)
	spy.wait(t)

	result, err = engine.Approve(ctx, id, "mod-b")
	require.NoError(t, err)
	require.Equal(t, OutcomeChanged, result.Outcome)
	require.Equal(t, submission.StatusApproved, result.NewStatus)
	require.Equal(t, []string{"mod-a", "mod-b"},
		result.Submission.Approvers)

	notified := spy.wait(t)
	require.Equal(t, submission.StatusApproved, notified.Status)

	// Both decisions are in the audit trail.
	audit, err := storage.ListAudit(ctx, id)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	require.Equal(t, "approve", audit[0].Action)
	require.Equal(t, "mod-a", audit[0].Actor)
	require.Equal(t, "mod-b", audit[1].Actor)
}

func TestDuplicateApprovalDoesNotWrite(t *testing.T) {
	t.Parallel()

	storage := store.NewMemoryStore()
	engine, spy := newTestEngine(t, storage)
	id := seedSubmission(t, storage)
	ctx := context.Background()

	_, err := engine.Approve(ctx, id, "mod-a")
	require.NoError(t, err)
	spy.wait(t)

	before, version, err := storage.Get(ctx, id)
	require.NoError(t, err)

	result, err := engine.Approve(ctx, id, "mod-a")
	require.NoError(t, err)
	require.Equal(t, OutcomeNoChange, result.Outcome)

	after, sameVersion, err := storage.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, version, sameVersion,
		"no-op must not bump the version")
	require.True(t, after.Equal(&before))

	// The denied duplicate still leaves a line in the audit trail.
	trail, err := storage.ListAudit(ctx, id)
	require.NoError(t, err)
	last := trail[len(trail)-1]
	require.Equal(t, "approve_duplicate", last.Action)
	require.Equal(t, "mod-a", last.Actor)
}

func TestActionOnFinalizedRecordIsBenign(t *testing.T) {
	t.Parallel()

	storage := store.NewMemoryStore()
	engine, spy := newTestEngine(t, storage)
	id := seedSubmission(t, storage)
	ctx := context.Background()

	_, err := engine.Reject(ctx, id, "mod-a", "spam", "obvious ad")
	require.NoError(t, err)
	spy.wait(t)

	result, err := engine.Approve(ctx, id, "mod-b")
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyFinalized, result.Outcome)
	require.Equal(t, submission.StatusRejected,
		result.Submission.Status)

	// The late approval left no trace on the record.
	rec, _, err := storage.Get(ctx, id)
	require.NoError(t, err)
	require.Empty(t, rec.Approvers)
}

func TestRejectValidation(t *testing.T) {
	t.Parallel()

	storage := store.NewMemoryStore()
	engine, _ := newTestEngine(t, storage)
	id := seedSubmission(t, storage)
	ctx := context.Background()

	var validationErr *ValidationError

	_, err := engine.Reject(ctx, id, "mod-a", "", "no category")
	require.ErrorAs(t, err, &validationErr)

	_, err = engine.Reject(ctx, id, "mod-a", "spam", "")
	require.ErrorAs(t, err, &validationErr)

	_, err = engine.Approve(ctx, id, "  ")
	require.ErrorAs(t, err, &validationErr)

	// None of the invalid attempts moved the record.
	rec, _, err := storage.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, submission.StatusPending, rec.Status)
}

func TestApproveUnknownSubmission(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, store.NewMemoryStore())

	_, err := engine.Approve(context.Background(), "missing", "mod-a")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLostRaceRetriesOnce(t *testing.T) {
	t.Parallel()

	storage := store.NewMemoryStore()
	flaky := &flakyStore{Storage: storage, failCount: 1}

	spy := newSpyNotifier()
	engine := NewEngine(EngineConfig{
		Store:    flaky,
		Audit:    storage,
		Notifier: spy,
		Policy:   DefaultApprovalPolicy(),
	})

	id := seedSubmission(t, storage)

	result, err := engine.Approve(context.Background(), id, "mod-a")
	require.NoError(t, err)
	require.Equal(t, OutcomeChanged, result.Outcome)
}

func TestPersistentConflictSurfaces(t *testing.T) {
	t.Parallel()

	storage := store.NewMemoryStore()
	flaky := &flakyStore{Storage: storage, failCount: 100}

	engine := NewEngine(EngineConfig{
		Store:  flaky,
		Audit:  storage,
		Policy: DefaultApprovalPolicy(),
	})

	id := seedSubmission(t, storage)

	_, err := engine.Approve(context.Background(), id, "mod-a")
	require.ErrorIs(t, err, ErrConcurrentModification)
}

// TestConcurrentDistinctApprovals races two moderators against the same
// pending record; the approver-set semantics plus conditional updates
// must register both, finalizing the record as approved.
func TestConcurrentDistinctApprovals(t *testing.T) {
	t.Parallel()

	storage := store.NewMemoryStore()
	engine, _ := newTestEngine(t, storage)
	id := seedSubmission(t, storage)

	var wg sync.WaitGroup
	for _, mod := range []string{"mod-a", "mod-b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// One of the two may need the engine's built-in retry,
			// and under unlucky interleaving may still lose twice.
			for i := 0; i < 5; i++ {
				_, err := engine.Approve(
					context.Background(), id, mod,
				)
				if err == nil {
					return
				}
				require.ErrorIs(t, err,
					ErrConcurrentModification)
			}
			t.Errorf("approval by %s never committed", mod)
		}()
	}
	wg.Wait()

	rec, _, err := storage.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, submission.StatusApproved, rec.Status)
	require.Equal(t, []string{"mod-a", "mod-b"}, rec.Approvers)
}

func TestPerTypeApprovalPolicy(t *testing.T) {
	t.Parallel()

	storage := store.NewMemoryStore()

	policy := DefaultApprovalPolicy()
	policy.PerType = map[submission.Type]int{
		submission.TypeVideo: 1,
	}

	engine := NewEngine(EngineConfig{
		Store:  storage,
		Audit:  storage,
		Policy: policy,
	})

	ctx := context.Background()
	id, err := storage.Create(ctx, submission.Record{
		Type:    submission.TypeVideo,
		Payload: map[string]string{"title": "WTTF 2025 final"},
		Status:  submission.StatusPending,
	})
	require.NoError(t, err)

	result, err := engine.Approve(ctx, id, "mod-a")
	require.NoError(t, err)
	require.Equal(t, submission.StatusApproved, result.NewStatus,
		"video threshold of one approves immediately")
}

func TestAddNoteWorksOnTerminalRecords(t *testing.T) {
	t.Parallel()

	storage := store.NewMemoryStore()
	engine, spy := newTestEngine(t, storage)
	id := seedSubmission(t, storage)
	ctx := context.Background()

	_, err := engine.Reject(ctx, id, "mod-a", "spam", "obvious ad")
	require.NoError(t, err)
	spy.wait(t)

	result, err := engine.AddNote(ctx, id, "checked the source link")
	require.NoError(t, err)
	require.Equal(t, "checked the source link",
		result.Submission.ModeratorNotes)

	result, err = engine.AddNote(ctx, id, "second opinion agrees")
	require.NoError(t, err)
	require.Equal(t,
		"checked the source link\nsecond opinion agrees",
		result.Submission.ModeratorNotes)

	// Notes never change the status.
	rec, _, err := storage.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, submission.StatusRejected, rec.Status)

	_, err = engine.AddNote(ctx, id, "   ")
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

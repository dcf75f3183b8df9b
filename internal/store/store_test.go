package store_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spindex/spindex/internal/db"
	"github.com/spindex/spindex/internal/store"
	"github.com/spindex/spindex/internal/submission"
)

// storageFactory builds a fresh, empty backend for one test.
type storageFactory func(t *testing.T) store.Storage

func newMemory(t *testing.T) store.Storage {
	return store.NewMemoryStore()
}

func newSqlite(t *testing.T) store.Storage {
	database, err := db.NewSqliteStore(&db.SqliteConfig{
		DatabaseFileName: filepath.Join(t.TempDir(), "spindex.db"),
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	return store.NewSqliteStore(database.DB)
}

// backends runs a subtest against both storage implementations, so every
// behavior below is pinned for the in-memory store and SQLite alike.
func backends(t *testing.T, test func(t *testing.T, s store.Storage)) {
	t.Run("memory", func(t *testing.T) {
		t.Parallel()
		test(t, newMemory(t))
	})
	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		test(t, newSqlite(t))
	})
}

func newRecord(subType submission.Type,
	status submission.Status) submission.Record {

	now := time.Now().UTC().Truncate(time.Second)

	return submission.Record{
		Type:      subType,
		Payload:   map[string]string{"name": "Hurricane 3"},
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAssignsIDAndInitialVersion(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s store.Storage) {
		ctx := context.Background()

		id, err := s.Create(ctx, newRecord(
			submission.TypeEquipment, submission.StatusPending,
		))
		require.NoError(t, err)
		require.NotEmpty(t, id)

		rec, version, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.EqualValues(t, 1, version)
		require.Equal(t, id, rec.ID)
		require.Equal(t, submission.StatusPending, rec.Status)
		require.Equal(t, "Hurricane 3", rec.Payload["name"])
	})
}

func TestGetUnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s store.Storage) {
		_, _, err := s.Get(context.Background(), "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestConditionalUpdateEnforcesVersion(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s store.Storage) {
		ctx := context.Background()

		id, err := s.Create(ctx, newRecord(
			submission.TypePlayer, submission.StatusPending,
		))
		require.NoError(t, err)

		rec, version, err := s.Get(ctx, id)
		require.NoError(t, err)

		rec.Status = submission.StatusUnderReview
		rec.Approvers = []string{"mod-a"}

		// Stale version: rejected without touching the record.
		ok, err := s.ConditionalUpdate(ctx, id, version+1, rec)
		require.NoError(t, err)
		require.False(t, ok)

		unchanged, sameVersion, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, version, sameVersion)
		require.Equal(t, submission.StatusPending, unchanged.Status)

		// Matching version: committed, version bumped.
		ok, err = s.ConditionalUpdate(ctx, id, version, rec)
		require.NoError(t, err)
		require.True(t, ok)

		updated, newVersion, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, version+1, newVersion)
		require.Equal(t, submission.StatusUnderReview,
			updated.Status)
		require.Equal(t, []string{"mod-a"}, updated.Approvers)

		// The old version token is now stale.
		ok, err = s.ConditionalUpdate(ctx, id, version, rec)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestConditionalUpdateUnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s store.Storage) {
		_, err := s.ConditionalUpdate(
			context.Background(), "missing", 1,
			newRecord(submission.TypeVideo,
				submission.StatusPending),
		)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestListFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s store.Storage) {
		ctx := context.Background()

		seed := []struct {
			subType submission.Type
			status  submission.Status
		}{
			{submission.TypeEquipment, submission.StatusPending},
			{submission.TypeEquipment, submission.StatusApproved},
			{submission.TypePlayer, submission.StatusPending},
			{submission.TypeReview, submission.StatusRejected},
			{submission.TypePlayer, submission.StatusPending},
		}
		for _, item := range seed {
			_, err := s.Create(ctx,
				newRecord(item.subType, item.status))
			require.NoError(t, err)
		}

		all, err := s.List(ctx, store.ListFilter{})
		require.NoError(t, err)
		require.Len(t, all, 5)

		pending, err := s.List(ctx, store.ListFilter{
			Status: submission.StatusPending,
		})
		require.NoError(t, err)
		require.Len(t, pending, 3)

		players, err := s.List(ctx, store.ListFilter{
			Type:   submission.TypePlayer,
			Status: submission.StatusPending,
		})
		require.NoError(t, err)
		require.Len(t, players, 2)

		// Pagination walks the full set without overlap.
		page1, err := s.List(ctx, store.ListFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, page1, 2)

		page2, err := s.List(ctx, store.ListFilter{
			Limit: 2, Offset: 2,
		})
		require.NoError(t, err)
		require.Len(t, page2, 2)
		require.NotEqual(t, page1[0].ID, page2[0].ID)

		page3, err := s.List(ctx, store.ListFilter{
			Limit: 2, Offset: 4,
		})
		require.NoError(t, err)
		require.Len(t, page3, 1)
	})
}

func TestStatsCountsPerStatus(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s store.Storage) {
		ctx := context.Background()

		statuses := []submission.Status{
			submission.StatusPending,
			submission.StatusPending,
			submission.StatusUnderReview,
			submission.StatusAwaitingSecondApproval,
			submission.StatusApproved,
			submission.StatusRejected,
		}
		for _, status := range statuses {
			_, err := s.Create(ctx, newRecord(
				submission.TypeEquipment, status,
			))
			require.NoError(t, err)
		}

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 6, stats.Total)
		require.EqualValues(t, 2, stats.Pending)
		require.EqualValues(t, 1, stats.UnderReview)
		require.EqualValues(t, 1, stats.AwaitingSecondApproval)
		require.EqualValues(t, 1, stats.Approved)
		require.EqualValues(t, 1, stats.Rejected)
	})
}

func TestAuditTrailIsAppendOnlyAndOrdered(t *testing.T) {
	t.Parallel()

	backends(t, func(t *testing.T, s store.Storage) {
		ctx := context.Background()

		id, err := s.Create(ctx, newRecord(
			submission.TypeReview, submission.StatusPending,
		))
		require.NoError(t, err)

		base := time.Now().UTC().Truncate(time.Second)
		for i, action := range []string{"approve", "note", "reject"} {
			err := s.AppendAudit(ctx, store.AuditEntry{
				SubmissionID: id,
				Actor:        "mod-a",
				Action:       action,
				Detail:       action + " detail",
				CreatedAt:    base.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err)
		}

		entries, err := s.ListAudit(ctx, id)
		require.NoError(t, err)
		require.Len(t, entries, 3)

		// Oldest first.
		require.Equal(t, "approve", entries[0].Action)
		require.Equal(t, "note", entries[1].Action)
		require.Equal(t, "reject", entries[2].Action)

		for _, e := range entries {
			require.NotEmpty(t, e.ID)
			require.Equal(t, id, e.SubmissionID)
		}

		// Another submission's trail is untouched.
		other, err := s.ListAudit(ctx, "some-other-id")
		require.NoError(t, err)
		require.Empty(t, other)
	})
}

package submission

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestApprovalSequenceProperties drives random action sequences through
// the state machine and checks the workflow invariants hold at every
// step.
func TestApprovalSequenceProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		threshold := rapid.IntRange(1, 4).Draw(rt, "threshold")
		steps := rapid.IntRange(1, 12).Draw(rt, "steps")

		moderators := []string{"m1", "m2", "m3", "m4", "m5"}

		rec := testRecord()

		for i := 0; i < steps; i++ {
			mod := rapid.SampledFrom(moderators).Draw(rt, "mod")

			var action Action = ApproveAction{ModeratorID: mod}
			if rapid.Bool().Draw(rt, "isReject") {
				action = RejectAction{
					ModeratorID: mod,
					Category:    "other",
					Reason:      "property test",
				}
			}

			tr, err := Apply(rec, action, threshold)

			if rec.Status.IsTerminal() {
				// Terminal records accept nothing.
				require.ErrorIs(rt, err, ErrAlreadyFinalized)
				continue
			}

			require.NoError(rt, err)
			next := tr.Record

			// Approvers stay a sorted set.
			require.True(rt,
				slices.IsSorted(next.Approvers))
			require.Equal(rt,
				len(slices.Compact(slices.Clone(next.Approvers))),
				len(next.Approvers),
				"approvers must be distinct")

			// Status must agree with the approval count.
			switch next.Status {
			case StatusApproved:
				require.GreaterOrEqual(rt,
					next.ApprovalCount(), threshold)
			case StatusUnderReview,
				StatusAwaitingSecondApproval:

				require.Less(rt,
					next.ApprovalCount(), threshold)
				require.NotZero(rt, next.ApprovalCount())
			case StatusRejected:
				require.NotEmpty(rt, next.RejectionCategory)
				require.NotEmpty(rt, next.RejectionReason)
			case StatusPending:
				// Only a no-op retry can leave it pending, and
				// pending records have no approvers to retry.
				require.Fail(rt, "action on pending record "+
					"must move it")
			}

			// A no-op must be byte-for-byte identical.
			if tr.NoChange {
				require.True(rt, next.Equal(&rec))
				require.Empty(rt, tr.Outbox)
			} else {
				require.NotEmpty(rt, tr.Outbox)
			}

			rec = next
		}
	})
}

// TestApproverSetNeverShrinks verifies approvals accumulate
// monotonically until the record finalizes.
func TestApproverSetNeverShrinks(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		threshold := rapid.IntRange(2, 5).Draw(rt, "threshold")

		rec := testRecord()

		for i := 0; i < 6 && !rec.Status.IsTerminal(); i++ {
			mod := rapid.SampledFrom(
				[]string{"a", "b", "c", "d", "e", "f"},
			).Draw(rt, "mod")

			tr, err := Apply(rec,
				ApproveAction{ModeratorID: mod}, threshold)
			require.NoError(rt, err)

			for _, prev := range rec.Approvers {
				require.Contains(rt, tr.Record.Approvers,
					prev)
			}

			rec = tr.Record
		}
	})
}

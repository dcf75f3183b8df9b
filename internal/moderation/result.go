package moderation

import "github.com/spindex/spindex/internal/submission"

// Outcome classifies what an engine operation did to the record.
type Outcome string

const (
	// OutcomeChanged means the record transitioned and was persisted.
	OutcomeChanged Outcome = "changed"

	// OutcomeNoChange means the action was an idempotent retry (a
	// moderator re-approving); nothing was written.
	OutcomeNoChange Outcome = "no_change"

	// OutcomeAlreadyFinalized means the record was already terminal.
	// Reported as success-with-no-change since it commonly results from
	// duplicate chat clicks.
	OutcomeAlreadyFinalized Outcome = "already_finalized"
)

// Result is the transactional outcome of an engine operation. It is always
// resolved and reported to the immediate caller; the notification side
// effect is detached and never reflected here.
type Result struct {
	Outcome    Outcome
	Submission submission.Record
	PrevStatus submission.Status
	NewStatus  submission.Status
}

// Changed reports whether the operation persisted a transition.
func (r *Result) Changed() bool {
	return r.Outcome == OutcomeChanged
}

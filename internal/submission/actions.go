package submission

// Action is the sealed interface for moderator actions that drive the
// submission state machine. All action types must implement the unexported
// isAction() method.
type Action interface {
	// isAction seals the interface to prevent external implementations.
	isAction()
}

// Ensure all action types implement Action.
func (ApproveAction) isAction() {}
func (RejectAction) isAction()  {}

// ApproveAction is applied when a moderator approves the submission.
type ApproveAction struct {
	// ModeratorID identifies the approving moderator. Approvals from an
	// identifier already present in the approver set are idempotent
	// no-ops, which is what makes duplicate chat-button clicks safe.
	ModeratorID string
}

// RejectAction is applied when a moderator declines the submission. Both
// Category and Reason must be non-empty.
type RejectAction struct {
	ModeratorID string
	Category    string
	Reason      string
}

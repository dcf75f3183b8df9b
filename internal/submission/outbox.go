package submission

// OutboxEvent is the sealed interface for side effects emitted by the state
// machine. The moderation engine dispatches them after the conditional write
// commits; the state machine itself performs no I/O.
type OutboxEvent interface {
	// isOutboxEvent seals the interface to prevent external
	// implementations.
	isOutboxEvent()
}

// Ensure all outbox event types implement OutboxEvent.
func (NotifyStatusChange) isOutboxEvent() {}
func (RecordAudit) isOutboxEvent()        {}

// NotifyStatusChange requests a best-effort chat follow-up announcing the
// status change. Delivery failures never roll back the transition.
type NotifyStatusChange struct {
	SubmissionID string
	OldStatus    Status
	NewStatus    Status
}

// RecordAudit requests an immutable audit-trail entry for the action.
type RecordAudit struct {
	SubmissionID string
	Actor        string
	Action       string
	Detail       string
}

package submission

import "fmt"

// State is the sealed interface for all submission states. Each state
// handles incoming moderator actions and returns a transition carrying the
// mutated record plus outbox events for side effects. States are pure: they
// never touch the store or the chat platform.
type State interface {
	// ProcessAction handles a moderator action and returns the resulting
	// transition.
	ProcessAction(action Action, env *Environment) (*Transition, error)

	// IsTerminal returns true if this is a terminal state.
	IsTerminal() bool

	// Status returns the status tag this state corresponds to.
	Status() Status

	// isState seals the interface.
	isState()
}

// Environment provides the context a transition needs: the record being
// acted on and the approval policy for its type.
type Environment struct {
	// Record is a private copy of the submission; states mutate it
	// freely since a rejected transition discards the copy.
	Record Record

	// RequiredApprovals is the approval threshold for the record's type.
	// Values below one are treated as one.
	RequiredApprovals int
}

func (e *Environment) threshold() int {
	if e.RequiredApprovals < 1 {
		return 1
	}

	return e.RequiredApprovals
}

// Transition is the result of processing an action.
type Transition struct {
	// Record is the mutated record copy. For no-op transitions it is
	// identical to the input.
	Record Record

	// Outbox holds the side effects to dispatch once the record is
	// persisted. Empty for no-op transitions.
	Outbox []OutboxEvent

	// NoChange is true when the action was an idempotent retry (a
	// moderator approving a record they already approved). The caller
	// must skip the conditional write and report success.
	NoChange bool
}

// Compile-time verification that all concrete states implement State.
var (
	_ State = (*StatePending)(nil)
	_ State = (*StateUnderReview)(nil)
	_ State = (*StateAwaitingSecondApproval)(nil)
	_ State = (*StateApproved)(nil)
	_ State = (*StateRejected)(nil)
)

// Apply runs a single moderator action against a record and returns the
// transition. This is the only entry point the moderation engine uses: it
// reconstructs the state from the persisted status tag, so the store remains
// the single source of truth across restarts.
func Apply(rec Record, action Action,
	requiredApprovals int) (*Transition, error) {

	state, err := StateFromStatus(rec.Status)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		Record:            rec.Clone(),
		RequiredApprovals: requiredApprovals,
	}

	transition, err := state.ProcessAction(action, env)
	if err != nil {
		return nil, fmt.Errorf("process %T in state %s: %w",
			action, rec.Status, err)
	}

	return transition, nil
}

// approve implements the shared approval logic for all non-terminal states.
// Adding a moderator to the approver set either meets the threshold
// (approved) or leaves the record waiting for more approvals.
func approve(action ApproveAction, env *Environment) (*Transition, error) {
	if action.ModeratorID == "" {
		return nil, fmt.Errorf("%w: missing moderator id",
			ErrUnknownAction)
	}

	rec := env.Record

	// Idempotent retry: the same moderator approving twice leaves the
	// record untouched, including its timestamps.
	if rec.HasApprover(action.ModeratorID) {
		return &Transition{Record: rec, NoChange: true}, nil
	}

	oldStatus := rec.Status
	rec.Approvers = rec.addApprover(action.ModeratorID)

	switch {
	case rec.ApprovalCount() >= env.threshold():
		rec.Status = StatusApproved

	case oldStatus == StatusPending:
		rec.Status = StatusUnderReview

	default:
		rec.Status = StatusAwaitingSecondApproval
	}

	outbox := []OutboxEvent{
		RecordAudit{
			SubmissionID: rec.ID,
			Actor:        action.ModeratorID,
			Action:       "approve",
			Detail: fmt.Sprintf("approval %d of %d",
				rec.ApprovalCount(), env.threshold()),
		},
	}
	if rec.Status != oldStatus {
		outbox = append(outbox, NotifyStatusChange{
			SubmissionID: rec.ID,
			OldStatus:    oldStatus,
			NewStatus:    rec.Status,
		})
	}

	return &Transition{Record: rec, Outbox: outbox}, nil
}

// reject implements rejection from any non-terminal state.
func reject(action RejectAction, env *Environment) (*Transition, error) {
	if action.Category == "" || action.Reason == "" {
		return nil, ErrInvalidRejection
	}

	rec := env.Record
	oldStatus := rec.Status

	rec.Status = StatusRejected
	rec.RejectionCategory = action.Category
	rec.RejectionReason = action.Reason

	return &Transition{
		Record: rec,
		Outbox: []OutboxEvent{
			RecordAudit{
				SubmissionID: rec.ID,
				Actor:        action.ModeratorID,
				Action:       "reject",
				Detail: fmt.Sprintf("%s: %s",
					action.Category, action.Reason),
			},
			NotifyStatusChange{
				SubmissionID: rec.ID,
				OldStatus:    oldStatus,
				NewStatus:    StatusRejected,
			},
		},
	}, nil
}

// nonTerminal dispatches the shared approve/reject handling used by every
// non-terminal state.
func nonTerminal(action Action, env *Environment) (*Transition, error) {
	switch a := action.(type) {
	case ApproveAction:
		return approve(a, env)

	case RejectAction:
		return reject(a, env)

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
}

// StatePending is the initial state of every submission.
type StatePending struct{}

func (s *StatePending) ProcessAction(action Action,
	env *Environment) (*Transition, error) {

	return nonTerminal(action, env)
}

func (s *StatePending) IsTerminal() bool { return false }
func (s *StatePending) Status() Status   { return StatusPending }
func (s *StatePending) isState()         {}

// StateUnderReview holds a submission with exactly one approval while the
// threshold is above one.
type StateUnderReview struct{}

func (s *StateUnderReview) ProcessAction(action Action,
	env *Environment) (*Transition, error) {

	return nonTerminal(action, env)
}

func (s *StateUnderReview) IsTerminal() bool { return false }
func (s *StateUnderReview) Status() Status   { return StatusUnderReview }
func (s *StateUnderReview) isState()         {}

// StateAwaitingSecondApproval holds a submission with multiple approvals
// that is still below the threshold.
type StateAwaitingSecondApproval struct{}

func (s *StateAwaitingSecondApproval) ProcessAction(action Action,
	env *Environment) (*Transition, error) {

	return nonTerminal(action, env)
}

func (s *StateAwaitingSecondApproval) IsTerminal() bool { return false }

func (s *StateAwaitingSecondApproval) Status() Status {
	return StatusAwaitingSecondApproval
}

func (s *StateAwaitingSecondApproval) isState() {}

// StateApproved is terminal.
type StateApproved struct{}

func (s *StateApproved) ProcessAction(Action,
	*Environment) (*Transition, error) {

	return nil, ErrAlreadyFinalized
}

func (s *StateApproved) IsTerminal() bool { return true }
func (s *StateApproved) Status() Status   { return StatusApproved }
func (s *StateApproved) isState()         {}

// StateRejected is terminal.
type StateRejected struct{}

func (s *StateRejected) ProcessAction(Action,
	*Environment) (*Transition, error) {

	return nil, ErrAlreadyFinalized
}

func (s *StateRejected) IsTerminal() bool { return true }
func (s *StateRejected) Status() Status   { return StatusRejected }
func (s *StateRejected) isState()         {}

// StateFromStatus reconstructs a State from its persisted status tag.
func StateFromStatus(status Status) (State, error) {
	switch status {
	case StatusPending:
		return &StatePending{}, nil
	case StatusUnderReview:
		return &StateUnderReview{}, nil
	case StatusAwaitingSecondApproval:
		return &StateAwaitingSecondApproval{}, nil
	case StatusApproved:
		return &StateApproved{}, nil
	case StatusRejected:
		return &StateRejected{}, nil
	default:
		return nil, fmt.Errorf("unknown submission status %q", status)
	}
}

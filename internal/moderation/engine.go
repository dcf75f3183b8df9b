package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spindex/spindex/internal/store"
	"github.com/spindex/spindex/internal/submission"
)

// notifyTimeout bounds the detached notification send so a stuck chat API
// call cannot pile up goroutines forever.
const notifyTimeout = 15 * time.Second

// StatusNotifier receives best-effort follow-ups after a committed
// transition. Implementations must tolerate concurrent calls; errors are
// theirs to log since the engine never joins the result.
type StatusNotifier interface {
	// NotifyStatusChange announces that the record reached a new status.
	NotifyStatusChange(ctx context.Context, rec submission.Record)
}

// MultiNotifier fans a status change out to several notifiers, e.g. the
// chat dispatcher plus the websocket feed.
type MultiNotifier []StatusNotifier

// NotifyStatusChange implements StatusNotifier.
func (m MultiNotifier) NotifyStatusChange(ctx context.Context,
	rec submission.Record) {

	for _, n := range m {
		n.NotifyStatusChange(ctx, rec)
	}
}

// EngineConfig holds the engine's collaborators.
type EngineConfig struct {
	// Store is the persistence seam. Required.
	Store store.SubmissionStore

	// Audit receives the append-only moderation trail. Optional.
	Audit store.AuditStore

	// Notifier receives detached status-change follow-ups. Optional.
	Notifier StatusNotifier

	// Policy supplies per-type approval thresholds.
	Policy ApprovalPolicy

	// Logger defaults to slog.Default when nil.
	Logger *slog.Logger
}

// Engine applies moderator actions to submissions. It is stateless between
// calls and safe for concurrent use, including concurrent calls against the
// same submission: the set-union semantics of the approver set plus the
// store's conditional update guarantee that two racing distinct-moderator
// approvals both register.
type Engine struct {
	store    store.SubmissionStore
	audit    store.AuditStore
	notifier StatusNotifier
	policy   ApprovalPolicy
	log      *slog.Logger

	// clock is overridable in tests.
	clock func() time.Time
}

// NewEngine creates a moderation engine from the given configuration.
func NewEngine(cfg EngineConfig) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		store:    cfg.Store,
		audit:    cfg.Audit,
		notifier: cfg.Notifier,
		policy:   cfg.Policy,
		log:      log,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Approve registers a moderator's approval. A repeat approval by the same
// moderator is a successful no-op; an approval of a finalized record is
// reported as OutcomeAlreadyFinalized, not an error.
func (e *Engine) Approve(ctx context.Context, submissionID,
	moderatorID string) (*Result, error) {

	if strings.TrimSpace(moderatorID) == "" {
		return nil, &ValidationError{
			Field:  "moderatorId",
			Reason: "must not be empty",
		}
	}

	return e.applyAction(ctx, submissionID, submission.ApproveAction{
		ModeratorID: moderatorID,
	})
}

// Reject finalizes the record as rejected. Both category and reason are
// required.
func (e *Engine) Reject(ctx context.Context, submissionID, moderatorID,
	category, reason string) (*Result, error) {

	if strings.TrimSpace(moderatorID) == "" {
		return nil, &ValidationError{
			Field:  "moderatorId",
			Reason: "must not be empty",
		}
	}

	return e.applyAction(ctx, submissionID, submission.RejectAction{
		ModeratorID: moderatorID,
		Category:    strings.TrimSpace(category),
		Reason:      strings.TrimSpace(reason),
	})
}

// applyAction runs the read, transition, conditional-write cycle, retrying
// once on a lost race before surfacing ErrConcurrentModification.
func (e *Engine) applyAction(ctx context.Context, submissionID string,
	action submission.Action) (*Result, error) {

	const attempts = 2

	for attempt := 0; attempt < attempts; attempt++ {
		rec, version, err := e.store.Get(ctx, submissionID)
		if err != nil {
			return nil, err
		}

		required := e.policy.RequiredFor(rec.Type)

		transition, err := submission.Apply(rec, action, required)
		switch {
		case errors.Is(err, submission.ErrAlreadyFinalized):
			// Benign: a duplicate click after finalization. The
			// caller sees the same confirmation either way.
			return &Result{
				Outcome:    OutcomeAlreadyFinalized,
				Submission: rec,
				PrevStatus: rec.Status,
				NewStatus:  rec.Status,
			}, nil

		case errors.Is(err, submission.ErrInvalidRejection):
			return nil, &ValidationError{
				Field:  "rejection",
				Reason: "category and reason are required",
			}

		case errors.Is(err, submission.ErrUnknownAction):
			return nil, &ValidationError{
				Field:  "action",
				Reason: err.Error(),
			}

		case err != nil:
			return nil, fmt.Errorf("apply action: %w", err)
		}

		if transition.NoChange {
			// The record is untouched, but the trail still shows
			// that the duplicate was received and denied.
			if approve, ok := action.(submission.ApproveAction); ok {
				e.recordAudit(ctx, store.AuditEntry{
					SubmissionID: submissionID,
					Actor:        approve.ModeratorID,
					Action:       "approve_duplicate",
					Detail:       "approval already counted",
				})
			}

			return &Result{
				Outcome:    OutcomeNoChange,
				Submission: rec,
				PrevStatus: rec.Status,
				NewStatus:  rec.Status,
			}, nil
		}

		updated := transition.Record
		updated.UpdatedAt = e.clock()

		ok, err := e.store.ConditionalUpdate(
			ctx, submissionID, version, updated,
		)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Lost the race: reload and recompute rather than
			// blocking. The approver-set union makes the retry
			// converge for the two-concurrent-approvals case.
			e.log.DebugContext(ctx,
				"Conditional update conflict, retrying",
				"submission_id", submissionID,
				"attempt", attempt+1,
			)

			continue
		}

		e.dispatchOutbox(ctx, transition.Outbox, updated)

		return &Result{
			Outcome:    OutcomeChanged,
			Submission: updated,
			PrevStatus: rec.Status,
			NewStatus:  updated.Status,
		}, nil
	}

	return nil, ErrConcurrentModification
}

// AddNote appends annotation text to the record. Notes are allowed in any
// state, including terminal ones, and do not bump UpdatedAt since they are
// not a status or approver change. Concurrent notes are last-write-wins;
// the retry loop only exists to re-read a fresher version.
func (e *Engine) AddNote(ctx context.Context, submissionID,
	note string) (*Result, error) {

	note = strings.TrimSpace(note)
	if note == "" {
		return nil, &ValidationError{
			Field:  "note",
			Reason: "must not be empty",
		}
	}

	const attempts = 3

	for attempt := 0; attempt < attempts; attempt++ {
		rec, version, err := e.store.Get(ctx, submissionID)
		if err != nil {
			return nil, err
		}

		updated := rec.Clone()
		if updated.ModeratorNotes == "" {
			updated.ModeratorNotes = note
		} else {
			updated.ModeratorNotes += "\n" + note
		}

		ok, err := e.store.ConditionalUpdate(
			ctx, submissionID, version, updated,
		)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		e.recordAudit(ctx, store.AuditEntry{
			SubmissionID: submissionID,
			Actor:        "moderator",
			Action:       "note",
			Detail:       note,
		})

		return &Result{
			Outcome:    OutcomeChanged,
			Submission: updated,
			PrevStatus: rec.Status,
			NewStatus:  updated.Status,
		}, nil
	}

	return nil, ErrConcurrentModification
}

// dispatchOutbox performs the side effects emitted by a committed
// transition. Audit writes happen inline; notification delivery is detached
// from the request path so the platform deadline is never missed waiting on
// the chat API.
func (e *Engine) dispatchOutbox(ctx context.Context,
	outbox []submission.OutboxEvent, rec submission.Record) {

	for _, event := range outbox {
		switch ev := event.(type) {
		case submission.RecordAudit:
			e.recordAudit(ctx, store.AuditEntry{
				SubmissionID: ev.SubmissionID,
				Actor:        ev.Actor,
				Action:       ev.Action,
				Detail:       ev.Detail,
			})

		case submission.NotifyStatusChange:
			if e.notifier == nil {
				continue
			}

			// Fire and forget: the moderation decision has
			// already committed, so a delivery failure is logged
			// by the notifier and never propagated.
			notifyRec := rec.Clone()
			go func() {
				notifyCtx, cancel := context.WithTimeout(
					context.Background(), notifyTimeout,
				)
				defer cancel()

				e.notifier.NotifyStatusChange(
					notifyCtx, notifyRec,
				)
			}()
		}
	}
}

// recordAudit appends an audit entry, logging rather than failing the
// operation when the trail cannot be written.
func (e *Engine) recordAudit(ctx context.Context, entry store.AuditEntry) {
	if e.audit == nil {
		return
	}

	if err := e.audit.AppendAudit(ctx, entry); err != nil {
		e.log.ErrorContext(ctx, "Failed to append audit entry",
			"error", err,
			"submission_id", entry.SubmissionID,
			"action", entry.Action,
		)
	}
}

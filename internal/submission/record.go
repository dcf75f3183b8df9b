// Package submission defines the data model and state machine for
// community-contributed content awaiting moderation.
package submission

import (
	"fmt"
	"slices"
	"time"
)

// Type identifies the kind of content a contributor submitted. The set is
// closed: the moderation engine and the notification formatters both key off
// of it.
type Type string

const (
	TypeEquipment            Type = "equipment"
	TypePlayer               Type = "player"
	TypePlayerEdit           Type = "player_edit"
	TypeReview               Type = "review"
	TypeVideo                Type = "video"
	TypePlayerEquipmentSetup Type = "player_equipment_setup"
)

// AllTypes lists every known submission type. Used for validation and for
// registering notification formatters.
var AllTypes = []Type{
	TypeEquipment,
	TypePlayer,
	TypePlayerEdit,
	TypeReview,
	TypeVideo,
	TypePlayerEquipmentSetup,
}

// ParseType converts a string tag into a Type, rejecting anything outside
// the closed set.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !slices.Contains(AllTypes, t) {
		return "", fmt.Errorf("unknown submission type %q", s)
	}

	return t, nil
}

// Status is the moderation lifecycle state of a submission.
type Status string

const (
	// StatusPending is the initial state of every submission.
	StatusPending Status = "pending"

	// StatusUnderReview means a first moderator has approved but the
	// approval threshold has not been met yet.
	StatusUnderReview Status = "under_review"

	// StatusAwaitingSecondApproval means more than one moderator has
	// approved but the threshold still has not been met.
	StatusAwaitingSecondApproval Status = "awaiting_second_approval"

	// StatusApproved is terminal: the content is published.
	StatusApproved Status = "approved"

	// StatusRejected is terminal: the content was declined with a
	// category and reason.
	StatusRejected Status = "rejected"
)

// IsTerminal reports whether the status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Record is a single contributed item moving through moderation. The payload
// is opaque to the engine beyond display formatting; everything the state
// machine inspects lives in the top-level fields.
type Record struct {
	// ID is an opaque unique identifier.
	ID string

	// Type tags which formatter and approval policy apply.
	Type Type

	// Payload holds the type-specific attributes captured at intake.
	// The engine never interprets it; formatters read known keys.
	Payload map[string]string

	// Status is the current lifecycle state.
	Status Status

	// Approvers holds the distinct moderator identifiers that have
	// approved this record. Kept sorted so records compare and persist
	// deterministically. The set semantics (not a bare count) are what
	// prevent one moderator from double-counting.
	Approvers []string

	// RejectionCategory and RejectionReason are populated only when the
	// record is rejected.
	RejectionCategory string
	RejectionReason   string

	// ModeratorNotes is free-form annotation text, allowed in any state.
	ModeratorNotes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasApprover reports whether the given moderator already approved.
func (r *Record) HasApprover(moderatorID string) bool {
	return slices.Contains(r.Approvers, moderatorID)
}

// addApprover returns a new sorted approver slice including moderatorID.
// The caller must have checked HasApprover first.
func (r *Record) addApprover(moderatorID string) []string {
	approvers := append(slices.Clone(r.Approvers), moderatorID)
	slices.Sort(approvers)

	return approvers
}

// ApprovalCount returns the cardinality of the approver set.
func (r *Record) ApprovalCount() int {
	return len(r.Approvers)
}

// Clone returns a deep copy of the record. Transitions operate on copies so
// a failed conditional write never leaves a half-mutated record behind.
func (r *Record) Clone() Record {
	out := *r
	out.Approvers = slices.Clone(r.Approvers)
	if r.Payload != nil {
		out.Payload = make(map[string]string, len(r.Payload))
		for k, v := range r.Payload {
			out.Payload[k] = v
		}
	}

	return out
}

// Equal reports whether two records are identical field for field. Used by
// tests to assert that no-op actions leave records untouched.
func (r *Record) Equal(other *Record) bool {
	if r.ID != other.ID || r.Type != other.Type ||
		r.Status != other.Status ||
		r.RejectionCategory != other.RejectionCategory ||
		r.RejectionReason != other.RejectionReason ||
		r.ModeratorNotes != other.ModeratorNotes ||
		!r.CreatedAt.Equal(other.CreatedAt) ||
		!r.UpdatedAt.Equal(other.UpdatedAt) {

		return false
	}
	if !slices.Equal(r.Approvers, other.Approvers) {
		return false
	}
	if len(r.Payload) != len(other.Payload) {
		return false
	}
	for k, v := range r.Payload {
		if other.Payload[k] != v {
			return false
		}
	}

	return true
}

// Title returns a short human-readable label for the record, preferring the
// payload's name/title fields.
func (r *Record) Title() string {
	for _, key := range []string{"name", "title", "player_name"} {
		if v, ok := r.Payload[key]; ok && v != "" {
			return v
		}
	}

	return fmt.Sprintf("%s %s", r.Type, r.ID)
}

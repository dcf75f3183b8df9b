package moderation

import "github.com/spindex/spindex/internal/submission"

// DefaultRequiredApprovals is the approval threshold applied when no
// per-type override is configured. Two distinct moderators must approve
// before content is published.
const DefaultRequiredApprovals = 2

// ApprovalPolicy maps submission types to the number of distinct moderator
// approvals required for publication. The threshold is a configuration
// point rather than a hard-coded constant so low-risk types (say, videos)
// can be single-approval while the rest stay at two.
type ApprovalPolicy struct {
	// Default applies to any type without an explicit override.
	Default int

	// PerType holds per-type overrides.
	PerType map[submission.Type]int
}

// DefaultApprovalPolicy returns the stock two-approval policy.
func DefaultApprovalPolicy() ApprovalPolicy {
	return ApprovalPolicy{Default: DefaultRequiredApprovals}
}

// RequiredFor returns the approval threshold for the given type. Values
// below one collapse to one.
func (p ApprovalPolicy) RequiredFor(t submission.Type) int {
	required := p.Default
	if override, ok := p.PerType[t]; ok {
		required = override
	}
	if required < 1 {
		required = 1
	}

	return required
}

package gateway

// RoleChecker decides whether a guild member may perform moderation
// actions. The check runs before any engine call, so an unauthorized
// member never reaches the moderation path.
type RoleChecker struct {
	allowed map[string]struct{}
}

// NewRoleChecker builds a checker from the configured moderator role ids.
// An empty allow-list denies everyone, which is the safe default for a
// half-configured deployment.
func NewRoleChecker(roleIDs []string) *RoleChecker {
	allowed := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		if id == "" {
			continue
		}
		allowed[id] = struct{}{}
	}

	return &RoleChecker{allowed: allowed}
}

// Allowed reports whether the member holds at least one moderator role.
func (r *RoleChecker) Allowed(member *Member) bool {
	if member == nil {
		return false
	}
	for _, role := range member.Roles {
		if _, ok := r.allowed[role]; ok {
			return true
		}
	}

	return false
}

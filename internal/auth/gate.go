package auth

// AccessRule guards one view or endpoint. An empty AllowedRoles means any
// authenticated actor.
type AccessRule struct {
	AllowedRoles []Role
}

// Allow builds an AccessRule
func Allow(roles ...Role) AccessRule {
	return AccessRule{AllowedRoles: roles}
}

// Permits applies IsAllowed to the rule
func (r AccessRule) Permits(role *Role) bool {
	return IsAllowed(role, r.AllowedRoles)
}

// IsAllowed is the role gate. role is nil when there is no session; a role
// outside the closed set counts as no session.
func IsAllowed(role *Role, allowed []Role) bool {
	if role == nil || !role.Valid() {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == *role {
			return true
		}
	}
	return false
}

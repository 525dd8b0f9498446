package auth

import "testing"

func rolePtr(r Role) *Role { return &r }

func TestIsAllowedTotality(t *testing.T) {
	ruleSets := [][]Role{
		nil,
		{},
		{RoleCitizen},
		{RoleLeader},
		{RoleAdmin},
		{RoleCitizen, RoleLeader},
		{RoleLeader, RoleAdmin},
		{RoleCitizen, RoleLeader, RoleAdmin},
	}
	actors := []*Role{nil, rolePtr(RoleCitizen), rolePtr(RoleLeader), rolePtr(RoleAdmin)}

	for _, allowed := range ruleSets {
		for _, role := range actors {
			got := IsAllowed(role, allowed)

			var expected bool
			switch {
			case role == nil:
				expected = false
			case len(allowed) == 0:
				expected = true
			default:
				for _, r := range allowed {
					if r == *role {
						expected = true
					}
				}
			}

			if got != expected {
				name := "<nil>"
				if role != nil {
					name = string(*role)
				}
				t.Errorf("IsAllowed(%s, %v): expected %v, got %v", name, allowed, expected, got)
			}
		}
	}
}

func TestIsAllowedUnknownRoleIsDenied(t *testing.T) {
	if IsAllowed(rolePtr(Role("SUPERUSER")), nil) {
		t.Error("Expected undefined role to be denied")
	}
	if IsAllowed(rolePtr(Role("")), []Role{RoleCitizen}) {
		t.Error("Expected empty role to be denied")
	}
}

func TestAccessRulePermits(t *testing.T) {
	adminOnly := Allow(RoleAdmin)
	if adminOnly.Permits(rolePtr(RoleCitizen)) {
		t.Error("Expected citizen to be refused an admin rule")
	}
	if !adminOnly.Permits(rolePtr(RoleAdmin)) {
		t.Error("Expected admin to be permitted")
	}
	if !Allow().Permits(rolePtr(RoleLeader)) {
		t.Error("Expected empty rule to permit any authenticated role")
	}
}

func TestLandingPath(t *testing.T) {
	tests := []struct {
		role     Role
		expected string
	}{
		{RoleAdmin, "/admin/dashboard"},
		{RoleLeader, "/leader/dashboard"},
		{RoleCitizen, "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := LandingPath(tt.role); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range Roles {
		got, err := ParseRole(string(r))
		if err != nil || got != r {
			t.Errorf("Expected %s, got %s (%v)", r, got, err)
		}
	}
	if _, err := ParseRole("citizen"); err == nil {
		t.Error("Expected lower-case role to be rejected")
	}
}

// Package auth provides authentication and authorization types.
package auth

import "fmt"

// Role represents a user role in the system.
type Role string

const (
	RoleCitizen Role = "CITIZEN" // Files and follows complaints
	RoleLeader  Role = "LEADER"  // Handles complaints inside an administrative area
	RoleAdmin   Role = "ADMIN"   // Manages leaders, sees everything
)

// Roles lists every role
var Roles = []Role{RoleCitizen, RoleLeader, RoleAdmin}

// ParseRole converts s into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the defined roles
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleLeader, RoleAdmin:
		return true
	}
	return false
}

// Landing paths per role
const (
	PathCitizenDashboard = "/dashboard"
	PathLeaderDashboard  = "/leader/dashboard"
	PathAdminDashboard   = "/admin/dashboard"
	PathLogin            = "/login"
	PathUnauthorized     = "/unauthorized"
)

// LandingPath is the dashboard an actor with role r is sent to after login.
// Unknown roles land on the citizen dashboard, which grants nothing beyond
// authentication.
func LandingPath(r Role) string {
	switch r {
	case RoleAdmin:
		return PathAdminDashboard
	case RoleLeader:
		return PathLeaderDashboard
	case RoleCitizen:
		return PathCitizenDashboard
	}
	return PathCitizenDashboard
}

// ActorType is the event actor label for r
func ActorType(r Role) string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleLeader:
		return "leader"
	case RoleCitizen:
		return "citizen"
	}
	return "unknown"
}

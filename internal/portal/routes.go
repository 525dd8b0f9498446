package portal

import (
	"strings"

	"github.com/citizenvoice/platform/internal/auth"
)

// Route is a dashboard view and the roles that may open it
type Route struct {
	Path string
	Rule auth.AccessRule
}

// Routes lists the guarded views. A path ending in "/*" covers its subtree.
var Routes = []Route{
	{Path: auth.PathCitizenDashboard, Rule: auth.Allow(auth.RoleCitizen)},
	{Path: "/complaints/new", Rule: auth.Allow(auth.RoleCitizen)},
	{Path: "/leader/*", Rule: auth.Allow(auth.RoleLeader)},
	{Path: "/admin/*", Rule: auth.Allow(auth.RoleAdmin)},
	{Path: "/complaints/*", Rule: auth.Allow()},
	{Path: "/profile", Rule: auth.Allow()},
}

// PublicRestricted are the views an authenticated actor is sent away from
var PublicRestricted = []string{auth.PathLogin, "/register"}

// Lookup finds the route guarding path. The first match wins.
func Lookup(path string) (Route, bool) {
	path = strings.TrimSuffix(path, "/")
	for _, r := range Routes {
		if prefix, ok := strings.CutSuffix(r.Path, "/*"); ok {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				return r, true
			}
			continue
		}
		if path == r.Path {
			return r, true
		}
	}
	return Route{}, false
}

// IsPublicRestricted reports whether path is a login or registration view
func IsPublicRestricted(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, p := range PublicRestricted {
		if path == p {
			return true
		}
	}
	return false
}

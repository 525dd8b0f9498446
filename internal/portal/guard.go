package portal

import (
	"context"
	"net/url"

	"github.com/citizenvoice/platform/internal/auth"
	"go.uber.org/zap"
)

// State is a step of route entry
type State int

const (
	StateUnchecked State = iota
	StateChecking
	StateGranted
	StateDeniedUnauthenticated
	StateDeniedForbidden
)

func (s State) String() string {
	switch s {
	case StateUnchecked:
		return "UNCHECKED"
	case StateChecking:
		return "CHECKING"
	case StateGranted:
		return "GRANTED"
	case StateDeniedUnauthenticated:
		return "DENIED_UNAUTHENTICATED"
	case StateDeniedForbidden:
		return "DENIED_FORBIDDEN"
	}
	return "UNKNOWN"
}

// Decision is the outcome of entering a route. Redirect is empty when the
// view may render.
type Decision struct {
	State    State
	Redirect string
	Actor    *auth.Actor
	Trace    []State
}

// Granted reports whether the view may render
func (d Decision) Granted() bool {
	return d.State == StateGranted
}

// Guard decides whether the current session may open a route
type Guard struct {
	session   *Session
	confirmer *Confirmer
	logger    *zap.Logger
}

// NewGuard creates a Guard
func NewGuard(session *Session, confirmer *Confirmer, logger *zap.Logger) *Guard {
	return &Guard{session: session, confirmer: confirmer, logger: logger}
}

// Enter runs the route state machine. requested is the location the user
// asked for and is carried to the login page.
func (g *Guard) Enter(ctx context.Context, route Route, requested string) Decision {
	d := Decision{State: StateUnchecked, Trace: []State{StateUnchecked}}

	if !g.session.Checked() {
		d.advance(StateChecking)
	}

	actor, err := g.confirmer.Confirm(ctx)
	if err != nil {
		d.advance(StateDeniedUnauthenticated)
		d.Redirect = LoginRedirect(requested)
		return d
	}
	d.Actor = &actor

	if !route.Rule.Permits(&actor.Role) {
		g.logger.Info("route denied",
			zap.String("path", route.Path),
			zap.String("role", string(actor.Role)),
		)
		d.advance(StateDeniedForbidden)
		d.Redirect = auth.PathUnauthorized
		return d
	}

	d.advance(StateGranted)
	return d
}

// EnterPublic handles the login and registration views: a mirrored actor is
// sent to its dashboard without asking the backend
func (g *Guard) EnterPublic() (redirect string, ok bool) {
	actor, found := g.session.Current()
	if !found {
		return "", false
	}
	return auth.LandingPath(actor.Role), true
}

func (d *Decision) advance(s State) {
	d.State = s
	d.Trace = append(d.Trace, s)
}

// LoginRedirect is the login location that returns to requested after sign-in
func LoginRedirect(requested string) string {
	if requested == "" {
		return auth.PathLogin
	}
	return auth.PathLogin + "?from=" + url.QueryEscape(requested)
}

// UnauthorizedReturnLink is the link offered on the unauthorized view
func UnauthorizedReturnLink(actor *auth.Actor) string {
	if actor == nil {
		return auth.PathLogin
	}
	return auth.LandingPath(actor.Role)
}

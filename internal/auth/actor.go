package auth

import (
	"context"
	"fmt"

	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/shared/types"
)

// Actor is an authenticated user as seen by access rules.
type Actor struct {
	ID       types.OptionalID `json:"id"`
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Role     Role             `json:"role"`
	Scope    geo.Level        `json:"administration_scope,omitempty"`
	Location types.Location   `json:"location"`
}

// Validate checks the invariants of the role and scope combination
func (a Actor) Validate() error {
	if !a.Role.Valid() {
		return fmt.Errorf("invalid role %q", a.Role)
	}
	switch a.Role {
	case RoleLeader:
		if !a.Scope.Valid() {
			return fmt.Errorf("leader requires an administration scope")
		}
	case RoleCitizen, RoleAdmin:
		if a.Scope != "" {
			return fmt.Errorf("%s cannot have an administration scope", a.Role)
		}
	}
	return nil
}

// Visibility returns the predicate restricting the located records the actor
// may see. Admins see everything, leaders see their area (NATIONAL sees
// everything), citizens see nothing by location and are matched by
// ownership instead.
func (a Actor) Visibility() geo.Predicate {
	switch a.Role {
	case RoleAdmin:
		return geo.AcceptAll
	case RoleLeader:
		return geo.ForScope(a.Scope, a.Location)
	case RoleCitizen:
		return geo.RejectAll
	}
	return geo.RejectAll
}

// Condition is the SQL counterpart of Visibility
func (a Actor) Condition() geo.Condition {
	switch a.Role {
	case RoleAdmin:
		return geo.Condition{Mode: geo.MatchAll}
	case RoleLeader:
		return geo.ConditionFor(a.Scope, a.Location)
	case RoleCitizen:
		return geo.Condition{Mode: geo.MatchNone}
	}
	return geo.Condition{Mode: geo.MatchNone}
}

type actorContextKey struct{}

// WithActor attaches the authenticated actor to ctx
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, &actor)
}

// ActorFromContext returns the actor stored by WithActor
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorContextKey{}).(*Actor)
	if !ok || a == nil {
		return Actor{}, false
	}
	return *a, true
}

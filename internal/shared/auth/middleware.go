package auth

import (
	"context"
	"net/http"

	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/shared/errors"
	"github.com/citizenvoice/platform/internal/shared/metrics"
	"github.com/citizenvoice/platform/internal/shared/response"
	"go.uber.org/zap"
)

// SessionResolver turns a session token into a live session
type SessionResolver interface {
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
}

// Middleware creates session authentication middleware. The token comes from
// the session cookie or a Bearer header; the actor is read from the server
// side session so a revoked session fails even with a valid token.
func Middleware(resolver SessionResolver, cookieName string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r, cookieName)
			if token == "" {
				response.Error(w, logger, errors.Unauthorized("authentication required"))
				return
			}

			sess, err := resolver.Authenticate(r.Context(), token)
			if err != nil {
				response.Error(w, logger, err)
				return
			}

			ctx := auth.WithActor(r.Context(), sess.Actor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActor extracts the actor from request context
func GetActor(ctx context.Context) (auth.Actor, bool) {
	return auth.ActorFromContext(ctx)
}

// RequireRoles creates middleware that admits only the given roles. No actor
// answers 401, an actor outside roles answers 403.
func RequireRoles(logger *zap.Logger, roles ...auth.Role) func(http.Handler) http.Handler {
	rule := auth.Allow(roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r.Context())
			if !ok {
				response.Error(w, logger, errors.Unauthorized("authentication required"))
				return
			}

			allowed := rule.Permits(&actor.Role)
			metrics.RecordAuthorizationDecision("route", r.Method, allowed)
			if !allowed {
				response.Error(w, logger, errors.Forbidden("insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

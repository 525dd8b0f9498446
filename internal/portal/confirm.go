package portal

import (
	"context"

	"github.com/citizenvoice/platform/internal/auth"
	"golang.org/x/sync/singleflight"
	"go.uber.org/zap"
)

// Checker asks the backend who the session belongs to
type Checker interface {
	Me(ctx context.Context) (auth.Actor, error)
}

// Confirmer confirms the session at most once per browsing session.
// Concurrent callers share a single backend call.
type Confirmer struct {
	session *Session
	checker Checker
	group   singleflight.Group
	logger  *zap.Logger
}

// NewConfirmer creates a Confirmer
func NewConfirmer(session *Session, checker Checker, logger *zap.Logger) *Confirmer {
	return &Confirmer{session: session, checker: checker, logger: logger}
}

// Confirm returns the confirmed actor, or ErrUnauthenticated. Any check
// failure clears the mirror.
func (c *Confirmer) Confirm(ctx context.Context) (auth.Actor, error) {
	if c.session.Checked() {
		return c.current()
	}

	// The shared call must outlive the first caller's cancellation.
	shared := context.WithoutCancel(ctx)
	_, err, _ := c.group.Do("session", func() (any, error) {
		if c.session.Checked() {
			return nil, nil
		}

		identity, err := c.checker.Me(shared)
		if err != nil {
			c.logger.Info("session check failed", zap.Error(err))
			c.session.Reject()
			return nil, nil
		}

		c.session.Confirm(identity)
		return nil, nil
	})
	if err != nil {
		return auth.Actor{}, err
	}

	return c.current()
}

func (c *Confirmer) current() (auth.Actor, error) {
	actor, ok := c.session.Current()
	if !ok {
		return auth.Actor{}, ErrUnauthenticated
	}
	return actor, nil
}

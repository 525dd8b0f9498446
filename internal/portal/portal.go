package portal

import (
	"context"
	"errors"

	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/complaint/domain"
	"go.uber.org/zap"
)

// Portal ties the backend client to the mirrored session
type Portal struct {
	client  *Client
	session *Session
	guard   *Guard
	logger  *zap.Logger
}

// New creates a Portal. The session must already be initialized.
func New(client *Client, session *Session, logger *zap.Logger) *Portal {
	confirmer := NewConfirmer(session, client, logger)
	return &Portal{
		client:  client,
		session: session,
		guard:   NewGuard(session, confirmer, logger),
		logger:  logger,
	}
}

// Session returns the mirrored session
func (p *Portal) Session() *Session {
	return p.session
}

// Client returns the backend client
func (p *Portal) Client() *Client {
	return p.client
}

// Login signs in and returns the dashboard to open
func (p *Portal) Login(ctx context.Context, email, password string) (string, error) {
	actor, err := p.client.Login(ctx, email, password)
	if err != nil {
		return "", err
	}
	p.session.Update(actor)
	return auth.LandingPath(actor.Role), nil
}

// Logout ends the session. Local state is cleared even if the backend call
// fails.
func (p *Portal) Logout(ctx context.Context) error {
	err := p.client.Logout(ctx)
	if err != nil {
		p.logger.Warn("logout request failed", zap.Error(err))
	}
	p.session.Clear()
	return err
}

// Navigate decides what happens when the user opens path
func (p *Portal) Navigate(ctx context.Context, path string) Decision {
	if IsPublicRestricted(path) {
		if redirect, ok := p.guard.EnterPublic(); ok {
			return Decision{State: StateGranted, Redirect: redirect, Trace: []State{StateUnchecked, StateGranted}}
		}
		return Decision{State: StateGranted, Trace: []State{StateUnchecked, StateGranted}}
	}

	route, ok := Lookup(path)
	if !ok {
		route = Route{Path: path, Rule: auth.Allow()}
	}
	return p.guard.Enter(ctx, route, path)
}

// LoadComplaints loads the complaint list into view and returns the error of
// this load, even when a newer load superseded it. A 401 drops the mirrored
// actor without forcing another session check.
func (p *Portal) LoadComplaints(ctx context.Context, view *ListView[domain.Complaint], q ComplaintQuery) error {
	var err error
	view.Load(ctx, func(ctx context.Context) (Page[domain.Complaint], error) {
		var page Page[domain.Complaint]
		page, err = p.client.ListComplaints(ctx, q)
		if errors.Is(err, ErrUnauthenticated) {
			p.session.Reject()
		}
		return page, err
	})
	return err
}

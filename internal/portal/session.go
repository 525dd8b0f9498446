package portal

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/shared/types"
	"go.uber.org/zap"
)

// Storage keys
const (
	KeyUser           = "user"
	KeySessionChecked = "sessionChecked"
)

// Session mirrors the backend session. The mirror only saves a round trip;
// the backend re-validates every request. Storage failures are logged and
// never change the in-memory state.
type Session struct {
	mu        sync.RWMutex
	durable   Storage
	ephemeral Storage
	actor     *auth.Actor
	checked   bool
	logger    *zap.Logger
}

// NewSession creates a session over durable storage for the identity mirror
// and session-lifetime storage for the confirmation flag
func NewSession(durable, ephemeral Storage, logger *zap.Logger) *Session {
	return &Session{durable: durable, ephemeral: ephemeral, logger: logger}
}

// Init loads the mirror and the confirmation flag. A corrupt mirror is
// discarded.
func (s *Session) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.durable.Load(KeyUser)
	switch {
	case errors.Is(err, ErrNotStored):
	case err != nil:
		return err
	default:
		var actor auth.Actor
		if err := json.Unmarshal(data, &actor); err != nil || !actor.Role.Valid() {
			s.logger.Warn("discarding unreadable session mirror", zap.Error(err))
			s.remove(s.durable, KeyUser)
		} else {
			s.actor = &actor
		}
	}

	flag, err := s.ephemeral.Load(KeySessionChecked)
	switch {
	case errors.Is(err, ErrNotStored):
	case err != nil:
		return err
	default:
		s.checked = string(flag) == "true"
	}

	return nil
}

// Current returns the mirrored actor
func (s *Session) Current() (auth.Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.actor == nil {
		return auth.Actor{}, false
	}
	return *s.actor, true
}

// Checked reports whether the session was confirmed, or found missing, during
// this browsing session
func (s *Session) Checked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checked
}

// Update mirrors actor after login and marks the session confirmed
func (s *Session) Update(actor auth.Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(actor)
}

// Confirm mirrors the identity returned by the session check. The check
// carries no id: a known mirrored id is kept only if the email matches.
func (s *Session) Confirm(identity auth.Actor) auth.Actor {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity.ID = types.Unknown
	if s.actor != nil && s.actor.ID.IsKnown() && strings.EqualFold(s.actor.Email, identity.Email) {
		identity.ID = s.actor.ID
	}
	s.set(identity)
	return identity
}

// Reject records a failed session check: the mirror is cleared and no further
// check is made this browsing session
func (s *Session) Reject() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = nil
	s.remove(s.durable, KeyUser)
	s.markChecked()
}

// Clear forgets the actor and the confirmation flag, as on logout
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actor = nil
	s.checked = false
	s.remove(s.durable, KeyUser)
	s.remove(s.ephemeral, KeySessionChecked)
}

func (s *Session) set(actor auth.Actor) {
	s.actor = &actor
	data, err := json.Marshal(actor)
	if err == nil {
		err = s.durable.Store(KeyUser, data)
	}
	if err != nil {
		s.logger.Warn("failed to write session mirror", zap.Error(err))
	}
	s.markChecked()
}

func (s *Session) markChecked() {
	s.checked = true
	if err := s.ephemeral.Store(KeySessionChecked, []byte("true")); err != nil {
		s.logger.Warn("failed to write session flag", zap.Error(err))
	}
}

func (s *Session) remove(st Storage, key string) {
	if err := st.Remove(key); err != nil {
		s.logger.Warn("failed to remove session state", zap.String("key", key), zap.Error(err))
	}
}

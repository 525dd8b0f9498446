package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/location"
	apperrors "github.com/citizenvoice/platform/internal/shared/errors"
	"github.com/citizenvoice/platform/internal/shared/metrics"
	"github.com/citizenvoice/platform/internal/shared/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service implements registration, login and logout
type Service struct {
	users     UserRepository
	sessions  SessionStore
	tokens    *TokenIssuer
	locations *location.Table
	cost      int
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the auth service. cost is the bcrypt cost; values
// outside bcrypt's range use bcrypt.DefaultCost.
func NewService(users UserRepository, sessions SessionStore, tokens *TokenIssuer, locations *location.Table, cost int, logger *zap.Logger) *Service {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		locations: locations,
		cost:      cost,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterInput is a citizen self-registration
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Location types.Location
}

// NewAccount describes an account created on behalf of someone else
type NewAccount struct {
	Name     string
	Email    string
	Phone    string
	Role     Role
	Scope    geo.Level
	Location types.Location
}

// Register creates a citizen account. Citizens are located down to village.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := s.locations.Validate(geo.LevelVillage, in.Location); err != nil {
		return nil, apperrors.Validation("invalid location", map[string]string{"location": err.Error()})
	}
	return s.create(ctx, NewAccount{
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Role:     RoleCitizen,
		Location: in.Location,
	}, in.Password)
}

// CreateAccount creates an account with a generated temporary password and
// returns that password once.
func (s *Service) CreateAccount(ctx context.Context, acct NewAccount) (*User, string, error) {
	if acct.Role == RoleLeader {
		if err := s.locations.Validate(acct.Scope, acct.Location); err != nil {
			return nil, "", apperrors.Validation("location does not match administration scope", map[string]string{
				"administration_scope": err.Error(),
			})
		}
	}
	password, err := TemporaryPassword()
	if err != nil {
		return nil, "", apperrors.Internal(err)
	}
	u, err := s.create(ctx, acct, password)
	if err != nil {
		return nil, "", err
	}
	return u, password, nil
}

func (s *Service) create(ctx context.Context, acct NewAccount, password string) (*User, error) {
	u := &User{
		ID:       types.NewID(),
		Name:     strings.TrimSpace(acct.Name),
		Email:    strings.ToLower(strings.TrimSpace(acct.Email)),
		Phone:    acct.Phone,
		Role:     acct.Role,
		Scope:    acct.Scope,
		Location: acct.Location,
	}
	if err := u.Actor().Validate(); err != nil {
		return nil, apperrors.Validation("invalid account", map[string]string{"role": err.Error()})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}
	u.PasswordHash = string(hash)
	now := s.now()
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("account created", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	return u, nil
}

// LoginResult carries the signed token for the session cookie
type LoginResult struct {
	User    *User
	Session *Session
	Token   string
}

// ClientInfo identifies the device a session was created from
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Login checks the password and opens a session. Unknown emails and wrong
// passwords produce the same error.
func (s *Service) Login(ctx context.Context, email, password string, client ClientInfo) (*LoginResult, error) {
	invalid := apperrors.Unauthorized("invalid email or password")

	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			metrics.RecordLogin(false)
			return nil, invalid
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		metrics.RecordLogin(false)
		return nil, invalid
	}

	now := s.now()
	sessionID, err := randomToken(32)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	sess := &Session{
		ID:        sessionID,
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Scope:     u.Scope,
		Location:  u.Location,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.TTL()),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, apperrors.Wrap(err, "failed to store session")
	}
	token, err := s.tokens.Issue(sess)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	metrics.RecordLogin(true)
	s.logger.Info("login", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	return &LoginResult{User: u, Session: sess, Token: token}, nil
}

// Authenticate resolves a token to its live session
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid session")
	}
	sess, err := s.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, apperrors.Unauthorized("session expired")
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load session")
	}
	return sess, nil
}

// Logout revokes the session behind token. Invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		return apperrors.Wrap(err, "failed to delete session")
	}
	return nil
}

// RevokeSessions logs a user out everywhere
func (s *Service) RevokeSessions(ctx context.Context, userID types.ID) error {
	if err := s.sessions.DeleteUser(ctx, userID); err != nil {
		return apperrors.Wrap(err, "failed to revoke sessions")
	}
	s.logger.Info("sessions revoked", zap.String("user_id", userID.String()))
	return nil
}

// TemporaryPassword generates a random password for accounts created by an
// administrator.
func TemporaryPassword() (string, error) {
	return randomToken(12)
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

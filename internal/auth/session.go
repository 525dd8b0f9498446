// Package auth provides session management types.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/shared/types"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned for unknown, expired or revoked sessions.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side record behind a session cookie. The role and
// location are copied at login, so a changed role takes effect only after a
// new login.
type Session struct {
	ID        string         `json:"id"`
	UserID    types.ID       `json:"user_id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Role      Role           `json:"role"`
	Scope     geo.Level      `json:"administration_scope,omitempty"`
	Location  types.Location `json:"location"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	IPAddress string         `json:"ip_address"`
	UserAgent string         `json:"user_agent"`
}

// IsExpired checks if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Actor converts the session into the actor used by access rules.
func (s *Session) Actor() Actor {
	return Actor{
		ID:       types.Known(s.UserID),
		Name:     s.Name,
		Email:    s.Email,
		Role:     s.Role,
		Scope:    s.Scope,
		Location: s.Location,
	}
}

// SessionStore keeps server-side sessions so logout can revoke a cookie
// before its token expires.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	// DeleteUser revokes every session belonging to userID
	DeleteUser(ctx context.Context, userID types.ID) error
}

// RedisSessionStore stores sessions as JSON with a TTL matching their expiry.
// Each user's session ids are indexed in the set user:<id>:sessions.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore creates a Redis-backed session store
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "session:"}
}

func userIndexKey(userID types.ID) string {
	return "user:" + userID.String() + ":sessions"
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	index := userIndexKey(sess.UserID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+sess.ID, data, ttl)
		pipe.SAdd(ctx, index, sess.ID)
		pipe.Expire(ctx, index, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.IsExpired() {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.prefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) DeleteUser(ctx context.Context, userID types.ID) error {
	index := userIndexKey(userID)
	ids, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.prefix+id)
	}
	keys = append(keys, index)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// Health pings Redis
func (s *RedisSessionStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MemorySessionStore is the single-instance fallback used when Redis is not
// configured. Sessions do not survive a restart.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemorySessionStore creates an empty in-memory store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.IsExpired() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemorySessionStore) DeleteUser(_ context.Context, userID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
		}
	}
	return nil
}

var (
	_ SessionStore = (*RedisSessionStore)(nil)
	_ SessionStore = (*MemorySessionStore)(nil)
)

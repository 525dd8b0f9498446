package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/shared/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        "sess-1",
		UserID:    types.NewID(),
		Name:      "Jean Bosco",
		Email:     "jean@example.rw",
		Role:      RoleLeader,
		Scope:     geo.LevelSector,
		Location:  types.NewLocation("Kigali", "Gasabo", "Remera", "", ""),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisSessionStore(client)
	ctx := context.Background()
	sess := newSession(time.Hour)

	require.NoError(t, store.Save(ctx, sess))
	assert.True(t, mr.Exists("session:sess-1"))
	assert.True(t, mr.Exists("user:"+sess.UserID.String()+":sessions"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("session:sess-1").Seconds(), 5)

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)
	assert.Equal(t, sess.Location, got.Location)
	assert.Equal(t, RoleLeader, got.Actor().Role)

	require.NoError(t, store.Delete(ctx, "sess-1"))
	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Health(ctx))
}

func TestRedisSessionStoreExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newSession(time.Minute)))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Error(t, store.Save(ctx, newSession(-time.Minute)))
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newSession(time.Hour)))
	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "jean@example.rw", got.Email)

	expired := newSession(-time.Minute)
	expired.ID = "sess-2"
	require.NoError(t, store.Save(ctx, expired))
	_, err = store.Get(ctx, "sess-2")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.Delete(ctx, "sess-1"))
	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreDeleteUser(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	stores := map[string]SessionStore{
		"redis":  NewRedisSessionStore(client),
		"memory": NewMemorySessionStore(),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := newSession(time.Hour)
			second := newSession(time.Hour)
			second.ID = "sess-2"
			second.UserID = first.UserID
			other := newSession(time.Hour)
			other.ID = "sess-3"

			for _, s := range []*Session{first, second, other} {
				require.NoError(t, store.Save(ctx, s))
			}

			require.NoError(t, store.DeleteUser(ctx, first.UserID))

			for _, id := range []string{"sess-1", "sess-2"} {
				_, err := store.Get(ctx, id)
				assert.ErrorIs(t, err, ErrSessionNotFound, id)
			}
			_, err := store.Get(ctx, "sess-3")
			assert.NoError(t, err)

			assert.NoError(t, store.DeleteUser(ctx, types.NewID()))
		})
	}
}

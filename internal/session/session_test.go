package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/grammar-sentinel/internal/logger"
)

func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, s.Save(ctx, "tok-1"))
	token, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	require.NoError(t, s.Save(ctx, "tok-2"))
	token, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	require.ErrorIs(t, err, ErrNoSession)

	// clearing twice is fine
	require.NoError(t, s.Clear(ctx))
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "default.token")
	s := NewFileStore(path)
	runStoreContract(t, s)

	require.NoError(t, s.Save(context.Background(), "secret"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, "gs", "alice", time.Hour)
	defer s.Close()

	runStoreContract(t, s)

	require.NoError(t, s.Save(context.Background(), "tok"))
	assert.True(t, mr.Exists("gs:session:alice"))
	mr.FastForward(2 * time.Hour)
	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

type fakeAuth struct {
	token string
	err   error
}

func (f fakeAuth) Login(_ context.Context, _, _ string) (string, error) {
	return f.token, f.err
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("LoginLogout", func(t *testing.T) {
		m := NewManager(NewMemoryStore(), fakeAuth{token: "abc"}, logger.NewNop())
		assert.False(t, m.LoggedIn(ctx))

		require.NoError(t, m.Login(ctx, "admin", "admin"))
		assert.True(t, m.LoggedIn(ctx))
		token, err := m.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc", token)

		require.NoError(t, m.Logout(ctx))
		assert.False(t, m.LoggedIn(ctx))
	})

	t.Run("LoginFailureKeepsState", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(ctx, "old"))
		boom := errors.New("denied")
		m := NewManager(store, fakeAuth{err: boom}, logger.NewNop())

		assert.ErrorIs(t, m.Login(ctx, "admin", "x"), boom)
		token, err := m.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "old", token)
	})
}

package cacheredis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store[string] {
	t.Helper()
	addr := os.Getenv("CERTAUTH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CERTAUTH_TEST_REDIS_ADDR not set")
	}
	client, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return New[string](client, "certauth:test:"+uuid.NewString()+":", nil)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", "one", time.Now().Add(time.Minute)))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	v, ok, err = s.Take(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	_, ok, err = s.Take(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreScanExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Put(ctx, "old", "x", now.Add(-time.Second)))
	require.NoError(t, s.Put(ctx, "live", "x", now.Add(time.Minute)))

	keys, err := s.ScanExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, keys)

	seen := map[string]bool{}
	require.NoError(t, s.Range(ctx, func(key, value string) bool {
		seen[key] = true
		return true
	}))
	assert.Equal(t, map[string]bool{"old": true, "live": true}, seen)
}

func TestRedisStoreUpdateSkipsDeletedKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)

	require.NoError(t, s.Put(ctx, "a", "one", exp))
	v, ok, err := s.Update(ctx, "a", func(old string) (string, error) { return old + "+", nil })
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one+", v)

	require.NoError(t, s.Delete(ctx, "a"))
	_, ok, err = s.Update(ctx, "a", func(old string) (string, error) { return "revived", nil })
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

package redislock

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// newMiniredis starts an in-process Redis and a client connected to it.
func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m := miniredis.RunT(t)
	client, err := Connect("redis://" + m.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return m, client
}

func TestConnectParsesInputs(t *testing.T) {
	c, err := Connect("redis://localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)
	c.Close()

	c, err = Connect("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", c.Options().Addr)
	c.Close()

	_, err = Connect("redis://localhost:6379/notanumber")
	assert.Error(t, err)
}

func TestLockerExclusive(t *testing.T) {
	m, client := newMiniredis(t)
	l := New(client, 5*time.Second, discard)

	unlock, err := l.Lock(context.Background(), "example.com")
	require.NoError(t, err)
	assert.True(t, m.Exists(keyPrefix+"example.com"))
	assert.Equal(t, 5*time.Second, m.TTL(keyPrefix+"example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "example.com")
	assert.ErrorIs(t, err, domain.ErrLockUnavailable)

	other, err := l.Lock(context.Background(), "example.org")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	assert.False(t, m.Exists(keyPrefix+"example.com"))

	unlock2, err := l.Lock(context.Background(), "example.com")
	require.NoError(t, err)
	unlock2()
}

func TestLockerWaitsForRelease(t *testing.T) {
	_, client := newMiniredis(t)
	l := New(client, 5*time.Second, discard)

	unlock, err := l.Lock(context.Background(), "example.com")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := l.Lock(context.Background(), "example.com")
		if assert.NoError(t, err) {
			second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while it was held")
	case <-time.After(200 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second holder never acquired the lock")
	}
}

func TestLockerReclaimsExpiredKey(t *testing.T) {
	m, client := newMiniredis(t)
	l := New(client, time.Second, discard)

	// A holder that died without releasing leaves only its TTL behind.
	require.NoError(t, m.Set(keyPrefix+"example.com", "crashed-holder"))
	m.SetTTL(keyPrefix+"example.com", 100*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	_, err := l.Lock(ctx, "example.com")
	cancel()
	require.ErrorIs(t, err, domain.ErrLockUnavailable)

	m.FastForward(200 * time.Millisecond)

	unlock, err := l.Lock(context.Background(), "example.com")
	require.NoError(t, err, "lock must be reclaimable after ttl")
	unlock()
}

func TestLockerRenewsWhileHeld(t *testing.T) {
	m, client := newMiniredis(t)
	ttl := 300 * time.Millisecond
	l := New(client, ttl, discard)
	key := keyPrefix + "example.com"

	unlock, err := l.Lock(context.Background(), "example.com")
	require.NoError(t, err)

	// Age the key close to expiry; renewal must push it back to the full ttl.
	m.FastForward(250 * time.Millisecond)
	require.True(t, m.Exists(key))
	require.Eventually(t, func() bool {
		return m.TTL(key) > 200*time.Millisecond
	}, 2*time.Second, 20*time.Millisecond)

	// Longer than one ttl in total, and the key is still ours.
	m.FastForward(250 * time.Millisecond)
	require.True(t, m.Exists(key))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "example.com")
	assert.ErrorIs(t, err, domain.ErrLockUnavailable)

	unlock()
	assert.False(t, m.Exists(key))

	// Renewal stopped with the release and does not recreate the key.
	time.Sleep(3 * l.renewal)
	assert.False(t, m.Exists(key))
}

func TestLockerLeavesTakenOverKey(t *testing.T) {
	m, client := newMiniredis(t)
	l := New(client, 300*time.Millisecond, discard)
	key := keyPrefix + "example.com"

	unlock, err := l.Lock(context.Background(), "example.com")
	require.NoError(t, err)

	// Another instance claimed the key after ours expired.
	require.NoError(t, m.Set(key, "other-instance"))
	m.SetTTL(key, time.Minute)

	time.Sleep(3 * l.renewal)
	assert.Equal(t, time.Minute, m.TTL(key), "renewal must not extend a key holding another token")

	unlock()
	got, err := m.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-instance", got)
}

// TestLockerAgainstRedis runs the exclusivity check against a real server
// when REDIS_URL is set.
func TestLockerAgainstRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	client, err := Connect(url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	l := New(client, 5*time.Second, discard)
	key := "test-" + t.Name()

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, domain.ErrLockUnavailable)

	unlock()
	unlock2, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	unlock2()
}

// Package redislock provides a per-domain lock shared by every bridge
// instance pointed at the same Redis.
package redislock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
)

const (
	keyPrefix        = "uptime-bridge:lock:"
	defaultTTL       = 30 * time.Second
	defaultRetryWait = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the key only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Connect initializes a Redis client from URL or host:port input.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// Locker holds a Redis key per domain while it is reconciled. The key is
// renewed every ttl/3 while held, so ttl only bounds how long a crashed
// holder can block a domain, not how long a reconciliation may take.
type Locker struct {
	client    redis.Cmdable
	ttl       time.Duration
	renewal   time.Duration
	retryWait time.Duration
	logger    *slog.Logger
}

// New creates a Locker.
func New(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Locker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locker{
		client:    client,
		ttl:       ttl,
		renewal:   max(ttl/3, time.Millisecond),
		retryWait: defaultRetryWait,
		logger:    logger,
	}
}

// Lock polls until the domain key is set by us or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", domain.ErrLockUnavailable, key, ctx.Err())
			}
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrLockUnavailable, key, err)
		}
		if ok {
			return l.hold(redisKey, token), nil
		}

		timer := time.NewTimer(l.retryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrLockUnavailable, key, ctx.Err())
		case <-timer.C:
		}
	}
}

// hold keeps the key alive until the returned unlock func is called.
func (l *Locker) hold(redisKey, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// The request context may already be done; release on a fresh one.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("failed to release domain lock",
					slog.String("key", redisKey), slog.String("error", err.Error()))
			}
		})
	}
}

func (l *Locker) renew(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.renewal)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.renewal)
		n, err := renewScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			l.logger.Warn("failed to renew domain lock",
				slog.String("key", redisKey), slog.String("error", err.Error()))
			continue
		}
		if n == 0 {
			l.logger.Warn("domain lock lost before release", slog.String("key", redisKey))
			return
		}
	}
}

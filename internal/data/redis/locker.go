// Package redis provides the redis backed handle lock used when several
// bridge processes share one store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/ledger-rail-bridge/internal/bridge/lock"
)

// ErrLockLost is returned on unlock when the lock expired and another holder took it
var ErrLockLost = errors.New("handle lock expired before release")

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`

// Locker implements lock.Locker with SET NX PX and a token checked on release.
// A held lock is extended every third of its TTL until released, so a slow
// pipeline keeps its handle while a crashed one loses it after one TTL.
type Locker struct {
	client       backend.UniversalClient
	prefix       string
	ttl          time.Duration
	pollInterval time.Duration
	unlock       *backend.Script
	renew        *backend.Script
}

// Option configures a Locker
type Option func(*Locker)

// WithPrefix namespaces lock keys
func WithPrefix(prefix string) Option {
	return func(l *Locker) { l.prefix = prefix }
}

// WithTTL bounds how long a crashed holder can keep a handle locked
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) { l.ttl = ttl }
}

// WithPollInterval sets how often a waiting caller retries
func WithPollInterval(d time.Duration) Option {
	return func(l *Locker) { l.pollInterval = d }
}

// NewLocker creates a redis handle locker
func NewLocker(client backend.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client:       client,
		prefix:       "bridge",
		ttl:          10 * time.Minute,
		pollInterval: 50 * time.Millisecond,
		unlock:       backend.NewScript(unlockScript),
		renew:        backend.NewScript(renewScript),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Locker) key(handle string) string {
	return l.prefix + ":lock:" + handle
}

// Lock acquires the handle lock, polling until it is free or ctx is done
func (l *Locker) Lock(ctx context.Context, handle string) (lock.UnlockFunc, error) {
	key := l.key(handle)
	token := uuid.NewString()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire handle lock: %w", err)
		}
		if ok {
			return l.hold(ctx, key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// hold keeps key alive until the returned func releases it
func (l *Locker) hold(ctx context.Context, key, token string) lock.UnlockFunc {
	renewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.keepAlive(renewCtx, key, token)
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-stopped
		})
	}

	return func(ctx context.Context) error {
		stop()
		released, err := l.unlock.Run(ctx, l.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("failed to release handle lock: %w", err)
		}
		if released == 0 {
			return ErrLockLost
		}
		return nil
	}
}

func (l *Locker) keepAlive(ctx context.Context, key, token string) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	expires := time.Now().Add(l.ttl)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		renewed, err := l.renew.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
		if err != nil {
			// retried on the next tick while the key still has TTL left
			if time.Now().After(expires) {
				return
			}
			continue
		}
		if renewed == 0 {
			return
		}
		expires = time.Now().Add(l.ttl)
	}
}

var _ lock.Locker = (*Locker)(nil)

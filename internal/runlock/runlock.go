// Package runlock serializes analysis runs that write to the same summary store.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/schema"
	"github.com/redis/go-redis/v9"
)

// pollInterval is how often a waiting run retries the lock.
const pollInterval = 250 * time.Millisecond

// ErrNotHeld is returned when releasing a lock this holder does not own.
var ErrNotHeld = errors.New("run lock not held")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the expiry only if the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// renewInterval is how often a holder extends a lock with the given ttl.
func renewInterval(ttl time.Duration) time.Duration {
	return max(ttl/3, time.Millisecond)
}

// New returns the lock for the configured backend.
func New(backend schema.LockBackend, addr, key string, ttl time.Duration, logger *slog.Logger) (contract.RunLock, error) {
	switch backend {
	case schema.NoLock, "":
		return NoopLock{}, nil
	case schema.RedisLock:
		return NewRedisLock(addr, key, ttl, logger)
	default:
		return nil, fmt.Errorf("unsupported lock backend: %s", backend)
	}
}

// NoopLock is used when runs are serialized by the caller.
type NoopLock struct{}

var _ contract.RunLock = NoopLock{} // Compile-time check

// Acquire implements the RunLock interface.
func (NoopLock) Acquire(context.Context) error { return nil }

// Release implements the RunLock interface.
func (NoopLock) Release(context.Context) error { return nil }

// Close implements the RunLock interface.
func (NoopLock) Close() error { return nil }

// RedisLock is a single-key mutex in Redis with a TTL so a crashed run cannot hold it forever.
// While held, the TTL is extended every ttl/3, so a run may outlast the TTL.
type RedisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	stopRenew context.CancelFunc
	renewDone chan struct{}
}

var _ contract.RunLock = &RedisLock{} // Compile-time check

// NewRedisLock creates a lock on key at the Redis server addr.
func NewRedisLock(addr, key string, ttl time.Duration, logger *slog.Logger) (*RedisLock, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis lock requires an address")
	}
	if key == "" {
		key = contract.DefaultLockKey
	}
	if logger == nil {
		logger = contract.NewDiscardLogger()
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive (received %s)", ttl)
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0, // use default DB
	})
	return &RedisLock{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Acquire blocks until the lock is held or ctx is done.
func (l *RedisLock) Acquire(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire run lock %s: %w", l.key, err)
		}
		if ok {
			l.logger.Debug("run lock acquired", "key", l.key, "attempts", attempt)
			l.startRenewal(ctx)
			return nil
		}
		if attempt == 1 {
			l.logger.Info("waiting for another run to finish", "key", l.key)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up waiting for run lock %s: %w", l.key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Release gives up the lock if this holder still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	l.stopRenewal()
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release run lock %s: %w", l.key, err)
	}
	if n == 0 {
		return ErrNotHeld
	}
	l.logger.Debug("run lock released", "key", l.key)
	return nil
}

// Close stops renewing and closes the Redis connection.
func (l *RedisLock) Close() error {
	l.stopRenewal()
	return l.client.Close()
}

// startRenewal keeps the key alive until stopRenewal. It outlives ctx's
// cancellation so an aborting run still holds the lock until it releases it.
func (l *RedisLock) startRenewal(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopRenew != nil {
		return
	}
	renewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	l.stopRenew, l.renewDone = cancel, done
	go l.renew(renewCtx, done)
}

func (l *RedisLock) stopRenewal() {
	l.mu.Lock()
	cancel, done := l.stopRenew, l.renewDone
	l.stopRenew, l.renewDone = nil, nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (l *RedisLock) renew(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(renewInterval(l.ttl))
	defer ticker.Stop()

	ttlMillis := max(l.ttl.Milliseconds(), 1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, ttlMillis).Int64()
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			l.logger.Warn("failed to extend run lock", "key", l.key, "error", err)
		case n == 0:
			l.logger.Warn("run lock expired before the run finished", "key", l.key)
			return
		}
	}
}

package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock not acquired")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a single-key Redis mutex. Release only deletes the key while it still holds our token.
type Locker struct {
	log    *slog.Logger
	rdb    redis.Cmdable
	prefix string
}

func NewLocker(log *slog.Logger, rdb redis.Cmdable) *Locker {
	return &Locker{log: log, rdb: rdb, prefix: "lock"}
}

func (l *Locker) key(name string) string {
	return l.prefix + ":" + name
}

// Acquire returns a release func, or ErrNotAcquired if the lock is held.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key(name), token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.rdb, []string{l.key(name)}, token).Err()
	}, nil
}

// Run executes fn while holding name. It reports false without calling fn when the lock is taken.
func (l *Locker) Run(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	release, err := l.Acquire(ctx, name, ttl)
	if errors.Is(err, ErrNotAcquired) {
		l.log.Debug("lock held elsewhere", "lock", name)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			l.log.Warn("lock release failed", "lock", name, "err", err)
		}
	}()
	return true, fn(ctx)
}

package distributed

import (
	"context"
	"sync"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrLockHeld = gerrors.New("lock is held by another process")

const (
	unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`
	renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`
)

// Locker hands out named locks. A Locker with a nil client grants every lock
// locally, which keeps single-process deployments free of a Redis dependency.
type Locker struct {
	client *redis.Client
	log    *logrus.Logger
}

func NewLocker(client *redis.Client, log *logrus.Logger) *Locker {
	return &Locker{client: client, log: log}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, gerrors.Wrap(err, "parse redis url")
	}
	return redis.NewClient(opts), nil
}

type Lock struct {
	client *redis.Client
	log    *logrus.Logger
	key    string
	token  string
	ttl    time.Duration

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Acquire takes the lock without blocking. ErrLockHeld is returned when another
// holder owns it. The lock renews itself every ttl/3 until Release.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{
		client: l.client,
		log:    l.log,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
		done:   make(chan struct{}),
	}
	if l.client == nil {
		close(lock.done)
		return lock, nil
	}

	ok, err := l.client.SetNX(ctx, key, lock.token, ttl).Result()
	if err != nil {
		return nil, gerrors.Wrap(err, "acquire lock")
	}
	if !ok {
		return nil, ErrLockHeld
	}

	renewCtx, cancel := context.WithCancel(context.Background())
	lock.cancel = cancel
	go lock.renew(renewCtx)
	return lock, nil
}

func (l *Lock) Key() string { return l.key }

func (l *Lock) renew(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := l.client.Eval(ctx, renewScript, []string{l.key}, l.token, l.ttl.Milliseconds()).Result()
			if err != nil {
				if ctx.Err() == nil && l.log != nil {
					l.log.WithError(err).WithField("lock", l.key).Warn("failed to renew lock")
				}
				return
			}
			if res == int64(0) {
				if l.log != nil {
					l.log.WithField("lock", l.key).Warn("lock lost before release")
				}
				return
			}
		}
	}
}

// Release is idempotent.
func (l *Lock) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		if l.client == nil {
			return
		}
		l.cancel()
		<-l.done
		res, evalErr := l.client.Eval(ctx, unlockScript, []string{l.key}, l.token).Result()
		if evalErr != nil {
			err = gerrors.Wrap(evalErr, "release lock")
			return
		}
		if res == int64(0) && l.log != nil {
			l.log.WithField("lock", l.key).Warn("lock was not held by this process")
		}
	})
	return err
}

package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeadershipTTL = 30 * time.Second

	leaderRetryDelay  = time.Second
	leaderCallTimeout = 5 * time.Second
	minRenewInterval  = time.Second
	renewFraction     = 3
)

var (
	leaseCounter atomic.Uint64

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// LeaderKey namespaces a leadership lock so multiple deployments can share
// one Redis instance.
func LeaderKey(name string) string {
	return "jackdaw:leader:" + name
}

// RunWithLeader holds a Redis leadership lock and invokes run while it is
// held. run receives a context that is cancelled when the lock is lost or the
// parent context ends. The lock is renewed in the background and released
// when run returns; after a run the loop competes for the lock again until
// the parent context is done.
func RunWithLeader(ctx context.Context, key string, ttl time.Duration, run func(context.Context)) error {
	if run == nil {
		return errors.New("support: leader run function cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}

	client, err := GetRedisClient()
	if err != nil {
		return fmt.Errorf("support: leader lock redis client: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		held, err := acquireLease(ctx, client, key, ttl)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Leader lock acquisition failed", "key", key, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(leaderRetryDelay):
				continue
			}
		}

		log.Debug("Leader lock acquired", "key", key)
		run(held.ctx)
		held.release()
		log.Debug("Leader lock released", "key", key)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(leaderRetryDelay):
		}
	}
}

// lease is one held leadership lock plus its renewal goroutine.
type lease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	once   sync.Once
}

func acquireLease(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*lease, error) {
	token := leaseToken()

	for {
		ok, err := client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		if ok {
			leaseCtx, cancel := context.WithCancel(ctx)
			held := &lease{
				client: client,
				key:    key,
				token:  token,
				ttl:    ttl,
				ctx:    leaseCtx,
				cancel: cancel,
				stop:   make(chan struct{}),
			}
			go held.renewLoop()
			return held, nil
		}

		// Another instance leads right now; wait for its TTL to lapse.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(leaderRetryDelay):
		}
	}
}

func (l *lease) renewLoop() {
	interval := l.ttl / renewFraction
	if interval < minRenewInterval {
		interval = minRenewInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if err := l.renew(); err != nil {
				log.Warn("Leader lock renewal failed", "key", l.key, "error", err)
				l.cancel()
				return
			}
		}
	}
}

func (l *lease) renew() error {
	ctx, cancel := context.WithTimeout(context.Background(), leaderCallTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}
	if updated, ok := res.(int64); ok && updated == 0 {
		return errors.New("lock lost")
	}
	return nil
}

func (l *lease) release() {
	l.once.Do(func() {
		close(l.stop)
		l.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), leaderCallTimeout)
		defer cancel()

		if _, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result(); err != nil && !errors.Is(err, redis.Nil) {
			log.Warn("Leader lock release failed", "key", l.key, "error", err)
		}
	})
}

func leaseToken() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), leaseCounter.Add(1))
}

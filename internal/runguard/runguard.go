// Package runguard keeps two runs of the same pipeline stage from overlapping,
// within one process or across processes sharing a Redis instance.
package runguard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrAlreadyRunning is returned by Acquire when the named run is held.
var ErrAlreadyRunning = errors.New("already running")

// Guard hands out exclusive run slots by name. The returned release func
// must be called when the run finishes.
type Guard interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// Ensure implementations satisfy Guard.
var (
	_ Guard = (*Local)(nil)
	_ Guard = (*Redis)(nil)
)

// Local guards runs inside a single process.
type Local struct {
	mu      sync.Mutex
	running map[string]bool
}

func NewLocal() *Local {
	return &Local{running: make(map[string]bool)}
}

func (l *Local) Acquire(_ context.Context, name string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running[name] {
		return nil, fmt.Errorf("%s: %w", name, ErrAlreadyRunning)
	}
	l.running[name] = true
	return func() {
		l.mu.Lock()
		delete(l.running, name)
		l.mu.Unlock()
	}, nil
}

// redisClient is the subset of *redis.Client the guard uses.
type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// releaseScript deletes the lock only if this holder still owns it.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// Redis guards runs across processes with SET NX locks. The TTL bounds how
// long a crashed holder can block the next run.
type Redis struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

func NewRedis(client redisClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (r *Redis) Acquire(ctx context.Context, name string) (func(), error) {
	key := r.prefix + name
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrAlreadyRunning)
	}
	return func() {
		// Released with a fresh context so a cancelled run still frees its slot.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r.client.Eval(ctx, releaseScript, []string{key}, token)
	}, nil
}

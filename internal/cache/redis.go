package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis is a JSON cache that degrades to a no-op when the server is
// unreachable. A nil *Redis is valid and never caches.
type Redis struct {
	client *redis.Client
	logger *logrus.Logger
	prefix string

	warnedUnavailable atomic.Bool
}

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis connects to addr. When addr is empty or the ping fails the cache
// is bypassed.
func NewRedis(ctx context.Context, opts Options, logger *logrus.Logger) *Redis {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.Addr == "" {
		logger.Info("cache: no redis address configured, caching disabled")
		return &Redis{logger: logger, prefix: opts.Prefix}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnf("cache: redis unavailable at %s, bypassing cache: %v", opts.Addr, err)
		_ = client.Close()
		return &Redis{logger: logger, prefix: opts.Prefix}
	}

	logger.Infof("cache: using redis at %s", opts.Addr)
	return &Redis{client: client, logger: logger, prefix: opts.Prefix}
}

func (r *Redis) isUnavailable() bool {
	return r == nil || r.client == nil
}

// Enabled reports whether a reachable server backs the cache.
func (r *Redis) Enabled() bool {
	return !r.isUnavailable()
}

func (r *Redis) warnUnavailableOnce(err error) {
	if r.logger == nil {
		return
	}
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.logger.Warnf("cache: redis error, continuing without cache: %v", err)
	}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if r.isUnavailable() {
		return false, nil
	}
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.warnUnavailableOnce(err)
		return false, err
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if r.isUnavailable() {
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), b, ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if r.isUnavailable() {
		return nil
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if r.isUnavailable() {
		return errors.New("redis unavailable")
	}
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r.isUnavailable() {
		return nil
	}
	return r.client.Close()
}

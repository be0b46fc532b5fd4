// Package remote is the realtime key-value store shared across devices.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"matai/internal/config"
	appLog "matai/internal/log"
)

// Store reads and writes JSON values addressed by slash-separated paths.
type Store interface {
	Read(ctx context.Context, path string) (json.RawMessage, bool, error)
	Write(ctx context.Context, path string, value any) error
}

// Redis implements Store on a Redis server.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the configured server. It returns nil, nil when no
// address is configured so callers can treat the remote store as optional.
func NewRedis(ctx context.Context, cfg config.RemoteConfig) (*Redis, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}

	appLog.Info("remote store connected", "addr", cfg.RedisAddr)
	return &Redis{client: client, prefix: cfg.Prefix}, nil
}

// Key maps a path such as "userPreferences/dev-1/theme" to
// "<prefix>userPreferences:dev-1:theme".
func Key(prefix, path string) string {
	return prefix + strings.ReplaceAll(strings.Trim(path, "/"), "/", ":")
}

func (r *Redis) Read(ctx context.Context, path string) (json.RawMessage, bool, error) {
	key := Key(r.prefix, path)
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	if !json.Valid(val) {
		return nil, false, fmt.Errorf("reading %s: stored value is not JSON", key)
	}
	return json.RawMessage(val), true, nil
}

func (r *Redis) Write(ctx context.Context, path string, value any) error {
	key := Key(r.prefix, path)
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

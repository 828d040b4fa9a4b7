package linkcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

type RedisConfig struct {
	Addr      string
	Password  string
	KeyPrefix string
	// TTL of zero keeps entries until they are deleted.
	TTL         time.Duration
	DialTimeout time.Duration
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        "localhost:6379",
		KeyPrefix:   "tap2go:link:",
		DialTimeout: 5 * time.Second,
	}
}

type Redis struct {
	client rueidis.Client
	cfg    RedisConfig
}

func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: no address configured")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:   []string{cfg.Addr},
		Password:      cfg.Password,
		MaxFlushDelay: 100 * time.Microsecond,
		DisableCache:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}
	return &Redis{client: client, cfg: cfg}, nil
}

func (r *Redis) key(externalID string) string {
	return r.cfg.KeyPrefix + externalID
}

func (r *Redis) Get(ctx context.Context, externalID string) (string, bool, error) {
	resp := r.client.Do(ctx, r.client.B().Get().Key(r.key(externalID)).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	accountID, err := resp.ToString()
	if err != nil {
		return "", false, fmt.Errorf("redis get: failed to read response: %w", err)
	}
	return accountID, true, nil
}

func (r *Redis) Set(ctx context.Context, externalID, accountID string) error {
	var cmd rueidis.Completed
	if r.cfg.TTL > 0 {
		cmd = r.client.B().Set().Key(r.key(externalID)).Value(accountID).Ex(r.cfg.TTL).Build()
	} else {
		cmd = r.client.B().Set().Key(r.key(externalID)).Value(accountID).Build()
	}
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, externalID string) error {
	if err := r.client.Do(ctx, r.client.B().Del().Key(r.key(externalID)).Build()).Error(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (r *Redis) Close() {
	r.client.Close()
}

package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

// RedisOptions configures a Redis-backed ledger.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Timeout  time.Duration
	TTL      time.Duration
}

// Redis shares claims across gateway replicas. A claim is a key set with
// SET NX PX, so expiry is enforced by Redis itself.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis ledger. The connection is established lazily.
func NewRedis(o RedisOptions) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  o.Timeout,
		ReadTimeout:  o.Timeout,
		WriteTimeout: o.Timeout,
	})
	ttl := o.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{
		rdb:    rdb,
		prefix: firstNonEmpty(o.Prefix, "deploywatch:delivery"),
		ttl:    ttl,
	}
}

func (r *Redis) key(id string) string {
	return r.prefix + ":" + id
}

func (r *Redis) Claim(ctx context.Context, deliveryID string) (bool, error) {
	id, err := normalizeID(deliveryID)
	if err != nil {
		return false, err
	}
	ok, err := r.rdb.SetNX(ctx, r.key(id), time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", id, err)
	}
	return ok, nil
}

func (r *Redis) Release(ctx context.Context, deliveryID string) error {
	id, err := normalizeID(deliveryID)
	if err != nil {
		return err
	}
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func firstNonEmpty(s, def string) string {
	if strings.TrimSpace(s) != "" {
		return s
	}
	return def
}

var _ ports.Ledger = (*Redis)(nil)

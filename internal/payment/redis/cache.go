package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/frahmantamala/tonpay/internal/core/datamodel/payment"
	paymentpkg "github.com/frahmantamala/tonpay/internal/payment"
)

const keyPrefix = "tonpay:payment:status:"

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// StatusCache keeps terminal statuses in Redis so repeat verifications skip
// the database. Pending is never written.
type StatusCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewStatusCache(config Config) *StatusCache {
	return &StatusCache{
		client: goredis.NewClient(&goredis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		}),
		ttl: config.TTL,
	}
}

var _ paymentpkg.StatusCache = (*StatusCache)(nil)

func (c *StatusCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *StatusCache) GetStatus(ctx context.Context, hash string) (string, bool, error) {
	status, err := c.client.Get(ctx, keyPrefix+hash).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cached status: %w", err)
	}
	if !payment.IsTerminalStatus(status) {
		return "", false, nil
	}
	return status, true, nil
}

func (c *StatusCache) SetStatus(ctx context.Context, hash, status string) error {
	if !payment.IsTerminalStatus(status) {
		return nil
	}
	if err := c.client.Set(ctx, keyPrefix+hash, status, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached status: %w", err)
	}
	return nil
}

func (c *StatusCache) Close() error {
	return c.client.Close()
}

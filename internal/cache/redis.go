package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/azizikri/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

const availableCouponsKey = "coupons:available"

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return rdb, nil
}

// Redis stores JSON snapshots of product details and the available coupon
// list with a fixed TTL.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (c *Redis) get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (c *Redis) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, c.ttl).Err()
}

func (c *Redis) GetProduct(ctx context.Context, id int64) (*domain.Product, bool, error) {
	var p domain.Product
	found, err := c.get(ctx, productKey(id), &p)
	if !found {
		return nil, false, err
	}
	return &p, true, nil
}

func (c *Redis) SetProduct(ctx context.Context, product *domain.Product) error {
	return c.set(ctx, productKey(product.ID), product)
}

func (c *Redis) InvalidateProducts(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Redis) GetAvailableCoupons(ctx context.Context) ([]domain.Coupon, bool, error) {
	var coupons []domain.Coupon
	found, err := c.get(ctx, availableCouponsKey, &coupons)
	if !found {
		return nil, false, err
	}
	return coupons, true, nil
}

func (c *Redis) SetAvailableCoupons(ctx context.Context, coupons []domain.Coupon) error {
	if coupons == nil {
		coupons = []domain.Coupon{}
	}
	return c.set(ctx, availableCouponsKey, coupons)
}

func (c *Redis) InvalidateAvailableCoupons(ctx context.Context) error {
	return c.rdb.Del(ctx, availableCouponsKey).Err()
}

// Nop is used when no Redis address is configured; every read misses.
type Nop struct{}

func (Nop) GetProduct(context.Context, int64) (*domain.Product, bool, error) {
	return nil, false, nil
}

func (Nop) SetProduct(context.Context, *domain.Product) error { return nil }

func (Nop) InvalidateProducts(context.Context, ...int64) error { return nil }

func (Nop) GetAvailableCoupons(context.Context) ([]domain.Coupon, bool, error) {
	return nil, false, nil
}

func (Nop) SetAvailableCoupons(context.Context, []domain.Coupon) error { return nil }

func (Nop) InvalidateAvailableCoupons(context.Context) error { return nil }

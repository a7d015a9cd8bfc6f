// Package cache keeps hot product rows out of the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/coachline/coachline/internal/models"
	"github.com/redis/go-redis/v9"
)

// ProductCache stores product rows by id.
type ProductCache interface {
	GetProduct(ctx context.Context, id uint64) (*models.Product, bool, error)
	SetProduct(ctx context.Context, p *models.Product) error
	InvalidateProduct(ctx context.Context, id uint64) error
}

// Options configures the redis connection.
type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis is a ProductCache backed by redis JSON strings.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects and pings redis.
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func productKey(id uint64) string {
	return "product:" + strconv.FormatUint(id, 10)
}

// GetProduct returns the cached product and whether it was present.
func (r *Redis) GetProduct(ctx context.Context, id uint64) (*models.Product, bool, error) {
	val, err := r.client.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get product: %w", err)
	}
	var p models.Product
	if err := json.Unmarshal(val, &p); err != nil {
		return nil, false, fmt.Errorf("cache: decode product: %w", err)
	}
	return &p, true, nil
}

// SetProduct stores p for the configured TTL.
func (r *Redis) SetProduct(ctx context.Context, p *models.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cache: encode product: %w", err)
	}
	return r.client.Set(ctx, productKey(p.ID), data, r.ttl).Err()
}

// InvalidateProduct drops the cached row.
func (r *Redis) InvalidateProduct(ctx context.Context, id uint64) error {
	return r.client.Del(ctx, productKey(id)).Err()
}

// Ping checks the redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Noop never caches.
type Noop struct{}

// GetProduct always misses.
func (Noop) GetProduct(context.Context, uint64) (*models.Product, bool, error) {
	return nil, false, nil
}

// SetProduct discards p.
func (Noop) SetProduct(context.Context, *models.Product) error { return nil }

// InvalidateProduct does nothing.
func (Noop) InvalidateProduct(context.Context, uint64) error { return nil }

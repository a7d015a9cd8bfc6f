package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coachline/coachline/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewRedis(context.Background(), Options{Addr: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestProductRoundTrip(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()
	p := &models.Product{ID: 3, Title: "Physics", ListPrice: decimal.RequireFromString("1000"), SalePrice: decimal.RequireFromString("800")}

	require.NoError(t, c.SetProduct(ctx, p))
	got, ok, err := c.GetProduct(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Physics", got.Title)
	assert.True(t, got.SalePrice.Equal(p.SalePrice))

	require.NoError(t, c.InvalidateProduct(ctx, 3))
	_, ok, err = c.GetProduct(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProductExpires(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetProduct(ctx, &models.Product{ID: 9, Title: "x"}))

	mr.FastForward(2 * time.Minute)
	_, ok, err := c.GetProduct(ctx, 9)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNoopMisses(t *testing.T) {
	var c ProductCache = Noop{}
	require.NoError(t, c.SetProduct(context.Background(), &models.Product{ID: 1}))
	_, ok, err := c.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPingReportsOutage(t *testing.T) {
	c, mr := setupTestCache(t)
	require.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}

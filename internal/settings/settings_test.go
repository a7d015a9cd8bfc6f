package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/coachline/coachline/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:settings_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Setting{}))
	return conn
}

func TestTypedGettersUnwrapValues(t *testing.T) {
	Store(time.Now(), map[string]json.RawMessage{
		FriendDiscountPercentKey: json.RawMessage(`12.5`),
		DefaultFreeAttemptsKey:   json.RawMessage(`"3"`),
		BuyNowURLKey:             json.RawMessage(`{"value":"/buy/{product_id}"}`),
		SiteNameKey:              json.RawMessage(`""`),
	})
	t.Cleanup(func() { Store(time.Time{}, nil) })

	assert.Equal(t, 12.5, Float(FriendDiscountPercentKey, 0))
	assert.Equal(t, 3, Int(DefaultFreeAttemptsKey, 1))
	assert.Equal(t, "/buy/{product_id}", String(BuyNowURLKey, ""))
	assert.Equal(t, DefaultSiteName, String(SiteNameKey, DefaultSiteName))
	assert.Equal(t, 60, Int(OrderTTLMinutesKey, 60))
}

func TestPutRefreshesSnapshot(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	t.Cleanup(func() { Store(time.Time{}, nil) })

	require.NoError(t, Put(ctx, conn, DefaultFreeAttemptsKey, json.RawMessage(`2`), 0))
	assert.Equal(t, 2, Int(DefaultFreeAttemptsKey, 1))

	require.NoError(t, Put(ctx, conn, DefaultFreeAttemptsKey, json.RawMessage(`5`), 7))
	assert.Equal(t, 5, Int(DefaultFreeAttemptsKey, 1))

	rows, err := Rows(ctx, conn)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].UpdatedBy)
	assert.Equal(t, uint64(7), *rows[0].UpdatedBy)
}

func TestPutRejectsUnknownKeysAndBadJSON(t *testing.T) {
	conn := openTestDB(t)
	assert.Error(t, Put(context.Background(), conn, "NOPE", json.RawMessage(`1`), 0))
	assert.Error(t, Put(context.Background(), conn, SiteNameKey, json.RawMessage(`{bad`), 0))
}

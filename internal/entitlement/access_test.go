package entitlement

import (
	"context"
	"errors"
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
	dsn := fmt.Sprintf("file:entitlement_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.ProductAccess{}))
	return conn
}

func TestGrantAccessExtendsTimedAccess(t *testing.T) {
	conn := openTestDB(t)
	product := &models.Product{Title: "Physics", AccessDays: 30, Active: true}
	require.NoError(t, conn.Create(product).Error)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := GrantAccess(conn, 1, product, nil, now)
	require.NoError(t, err)
	require.NotNil(t, first.ExpiresAt)
	assert.True(t, first.ExpiresAt.Equal(now.AddDate(0, 0, 30)))

	second, err := GrantAccess(conn, 1, product, nil, now.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.NotNil(t, second.ExpiresAt)
	assert.True(t, second.ExpiresAt.Equal(now.AddDate(0, 0, 60)), second.ExpiresAt.String())

	var count int64
	require.NoError(t, conn.Model(&models.ProductAccess{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGrantAccessFirstGrantRace(t *testing.T) {
	conn := openTestDB(t)
	product := &models.Product{Title: "Physics", AccessDays: 30, Active: true}
	require.NoError(t, conn.Create(product).Error)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rivalExpiry := now.AddDate(0, 0, 30)

	// Another checkout commits the first grant just before this one inserts.
	armed := true
	var rivalErr error
	require.NoError(t, conn.Callback().Create().Before("gorm:create").Register("test:rival_grant", func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != "product_accesses" {
			return
		}
		armed = false
		rivalErr = conn.Create(&models.ProductAccess{UserID: 1, ProductID: product.ID, GrantedAt: now, ExpiresAt: &rivalExpiry}).Error
	}))

	access, err := GrantAccess(conn, 1, product, nil, now)
	require.NoError(t, rivalErr)
	require.NoError(t, err)
	require.NotNil(t, access.ExpiresAt)
	assert.True(t, access.ExpiresAt.Equal(now.AddDate(0, 0, 60)), access.ExpiresAt.String())

	var count int64
	require.NoError(t, conn.Model(&models.ProductAccess{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGrantAccessAfterExpiryStartsFromNow(t *testing.T) {
	conn := openTestDB(t)
	product := &models.Product{Title: "Chemistry", AccessDays: 7, Active: true}
	require.NoError(t, conn.Create(product).Error)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := GrantAccess(conn, 1, product, nil, now)
	require.NoError(t, err)
	later := now.AddDate(0, 1, 0)
	renewed, err := GrantAccess(conn, 1, product, nil, later)
	require.NoError(t, err)
	assert.True(t, renewed.ExpiresAt.Equal(later.AddDate(0, 0, 7)))
}

func TestGrantAccessLifetimeStaysLifetime(t *testing.T) {
	conn := openTestDB(t)
	product := &models.Product{Title: "Maths", AccessDays: 0, Active: true}
	require.NoError(t, conn.Create(product).Error)
	now := time.Now().UTC()

	for i := 0; i < 2; i++ {
		access, err := GrantAccess(conn, 5, product, nil, now)
		require.NoError(t, err)
		assert.Nil(t, access.ExpiresAt)
	}

	ok, err := HasActiveAccess(context.Background(), conn, 5, product.ID, now.AddDate(10, 0, 0))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasActiveAccess(t *testing.T) {
	conn := openTestDB(t)
	product := &models.Product{Title: "Biology", AccessDays: 1, Active: true}
	require.NoError(t, conn.Create(product).Error)
	now := time.Now().UTC()
	ctx := context.Background()

	ok, err := HasActiveAccess(ctx, conn, 9, product.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = GrantAccess(conn, 9, product, nil, now)
	require.NoError(t, err)

	ok, err = HasActiveAccess(ctx, conn, 9, product.ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasActiveAccess(ctx, conn, 9, product.ID, now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := ActiveProductIDs(ctx, conn, 9, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []uint64{product.ID}, ids)
}

func TestErrorTaxonomyMatching(t *testing.T) {
	var err error = &AttemptsExhaustedError{RedirectURL: "/plans"}
	assert.True(t, errors.Is(err, ErrAttemptsExhausted))
	assert.False(t, errors.Is(err, ErrPaymentRequired))

	var exhausted *AttemptsExhaustedError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &exhausted))
	assert.Equal(t, "/plans", exhausted.RedirectURL)

	assert.True(t, errors.Is(Invalid("product_id", "required"), ErrValidation))
	assert.Equal(t, "product_id: required", Invalid("product_id", "required").Error())
}

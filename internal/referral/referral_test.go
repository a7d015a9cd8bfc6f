package referral

import (
	"context"
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
	dsn := fmt.Sprintf("file:referral_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.User{}))
	return conn
}

func TestResolve(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	owner := models.User{Username: "owner", Password: "x", Role: models.RoleStudent, Active: true, ReferralCode: "ABCD2345"}
	blocked := models.User{Username: "blocked", Password: "x", Role: models.RoleStudent, Active: true, Disabled: true, ReferralCode: "ZZZZ2345"}
	require.NoError(t, conn.Create(&owner).Error)
	require.NoError(t, conn.Create(&blocked).Error)

	got, err := Resolve(ctx, conn, " abcd2345 ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, owner.ID, got.ID)

	got, err = Resolve(ctx, conn, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = Resolve(ctx, conn, "ZZZZ2345")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ResolveFor(ctx, conn, owner.ID, "ABCD2345")
	require.NoError(t, err)
	assert.Nil(t, got, "own code must not apply")
}

func TestNewCodeAndStats(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	code, err := NewCode(ctx, conn)
	require.NoError(t, err)
	assert.Len(t, code, codeLength)

	owner := models.User{Username: "owner", Password: "x", Role: models.RoleStudent, Active: true, ReferralCode: code}
	require.NoError(t, conn.Create(&owner).Error)
	for i := 0; i < 2; i++ {
		friend := models.User{Username: fmt.Sprintf("friend%d", i), Password: "x", Role: models.RoleStudent, Active: true, ReferralCode: fmt.Sprintf("F%07d", i), ReferredByCode: code}
		require.NoError(t, conn.Create(&friend).Error)
	}

	stats, err := StatsFor(ctx, conn, &owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Referrals)
	assert.Equal(t, code, stats.Code)
}

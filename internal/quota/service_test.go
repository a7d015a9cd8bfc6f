package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coachline/coachline/internal/db"
	"github.com/coachline/coachline/internal/entitlement"
	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/settings"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:quota_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(conn))
	return conn
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	user    models.User
	product models.Product
	test    models.MockTest
}

func newFixture(t *testing.T, limit *int) *fixture {
	t.Helper()
	conn := openTestDB(t)
	f := &fixture{db: conn, svc: NewService(conn, "/buy/{product_id}")}
	f.user = models.User{Username: "student", Password: "x", Role: models.RoleStudent, Active: true, ReferralCode: "STUDENT2"}
	require.NoError(t, conn.Create(&f.user).Error)
	f.product = models.Product{Title: "Mock pass", AccessDays: 0, Active: true}
	require.NoError(t, conn.Create(&f.product).Error)
	f.test = models.MockTest{
		Title:            "JEE mock 1",
		ProductID:        &f.product.ID,
		FreeAttemptLimit: limit,
		Active:           true,
		Questions: []models.Question{
			{ID: "q1", Prompt: "2+2", Options: []string{"3", "4"}, Answer: 1},
			{ID: "q2", Prompt: "3*3", Options: []string{"9", "6"}, Answer: 0, Marks: 2},
			{ID: "q3", Prompt: "1-1", Options: []string{"0", "1"}, Answer: 0},
		},
	}
	require.NoError(t, conn.Create(&f.test).Error)
	return f
}

func intPtr(v int) *int { return &v }

func TestStartAttemptRequiresRegistration(t *testing.T) {
	f := newFixture(t, intPtr(2))
	_, err := f.svc.StartAttempt(context.Background(), f.user.ID, f.test.ID)
	assert.ErrorIs(t, err, entitlement.ErrRegistrationRequired)

	_, err = f.svc.StartAttempt(context.Background(), f.user.ID, 4242)
	assert.ErrorIs(t, err, entitlement.ErrNotFound)
}

func TestExactlyNFreeAttempts(t *testing.T) {
	const limit = 3
	f := newFixture(t, intPtr(limit))
	ctx := context.Background()

	reg, created, err := f.svc.Register(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, limit, reg.FreeAttemptLimit)

	for i := 0; i < limit; i++ {
		attempt, errStart := f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
		require.NoError(t, errStart, "attempt %d", i+1)
		assert.False(t, attempt.Paid)
	}

	_, err = f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
	require.ErrorIs(t, err, entitlement.ErrAttemptsExhausted)
	var exhausted *entitlement.AttemptsExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, fmt.Sprintf("/buy/%d", f.product.ID), exhausted.RedirectURL)

	st, err := f.svc.Status(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)
	assert.Equal(t, limit, st.UsedAttempts)
	assert.Zero(t, st.RemainingAttempts)
	assert.NotEmpty(t, st.BuyNowURL)

	attempts, err := f.svc.ListAttempts(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, limit)
}

func TestRegisterTwiceKeepsCounters(t *testing.T) {
	f := newFixture(t, intPtr(1))
	ctx := context.Background()

	_, _, err := f.svc.Register(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)
	_, err = f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)

	reg, created, err := f.svc.Register(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, reg.UsedAttempts)

	_, err = f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
	assert.ErrorIs(t, err, entitlement.ErrAttemptsExhausted)
}

func TestRegisterUsesSiteDefaultLimit(t *testing.T) {
	settings.Store(time.Now(), map[string]json.RawMessage{settings.DefaultFreeAttemptsKey: json.RawMessage(`4`)})
	t.Cleanup(func() { settings.Store(time.Time{}, nil) })
	f := newFixture(t, nil)

	reg, _, err := f.svc.Register(context.Background(), f.user.ID, f.test.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, reg.FreeAttemptLimit)
}

func TestPaidUserBypassesQuota(t *testing.T) {
	f := newFixture(t, intPtr(0))
	ctx := context.Background()
	_, _, err := f.svc.Register(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)

	_, err = f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
	require.ErrorIs(t, err, entitlement.ErrAttemptsExhausted)

	_, err = entitlement.GrantAccess(f.db, f.user.ID, &f.product, nil, time.Now())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		attempt, errStart := f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
		require.NoError(t, errStart)
		assert.True(t, attempt.Paid)
	}

	var reg models.Registration
	require.NoError(t, f.db.Where("user_id = ? AND mock_test_id = ?", f.user.ID, f.test.ID).First(&reg).Error)
	assert.Zero(t, reg.UsedAttempts)
}

func TestConcurrentStartAtBoundary(t *testing.T) {
	f := newFixture(t, intPtr(2))
	ctx := context.Background()
	_, _, err := f.svc.Register(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)
	_, err = f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
		}(i)
	}
	wg.Wait()

	successes, exhausted := 0, 0
	for _, errStart := range results {
		switch {
		case errStart == nil:
			successes++
		case errors.Is(errStart, entitlement.ErrAttemptsExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", errStart)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, exhausted)

	var reg models.Registration
	require.NoError(t, f.db.Where("user_id = ?", f.user.ID).First(&reg).Error)
	var attempts int64
	require.NoError(t, f.db.Model(&models.Attempt{}).Where("registration_id = ?", reg.ID).Count(&attempts).Error)
	assert.Equal(t, 2, reg.UsedAttempts)
	assert.Equal(t, int64(reg.UsedAttempts), attempts)
}

// A second start can bump used_attempts between the registration read and
// the conditional increment. The increment must re-check the stored count
// rather than trust the stale row.
func TestStartAttemptRechecksCountAfterStaleRead(t *testing.T) {
	f := newFixture(t, intPtr(2))
	ctx := context.Background()
	_, _, err := f.svc.Register(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)
	_, err = f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)

	armed, loadedUsed := true, -1
	var bumpErr error
	require.NoError(t, f.db.Callback().Query().After("gorm:query").Register("test:concurrent_start", func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != "registrations" {
			return
		}
		reg, ok := tx.Statement.Dest.(*models.Registration)
		if !ok {
			return
		}
		armed = false
		loadedUsed = reg.UsedAttempts
		bumpErr = f.db.Exec("UPDATE registrations SET used_attempts = used_attempts + 1 WHERE id = ?", reg.ID).Error
	}))

	_, err = f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
	require.NoError(t, bumpErr)
	assert.Equal(t, 1, loadedUsed)
	var exhausted *entitlement.AttemptsExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.ErrorIs(t, err, entitlement.ErrAttemptsExhausted)

	var reg models.Registration
	require.NoError(t, f.db.Where("user_id = ?", f.user.ID).First(&reg).Error)
	assert.Equal(t, 2, reg.UsedAttempts)
	var attempts int64
	require.NoError(t, f.db.Model(&models.Attempt{}).Where("registration_id = ?", reg.ID).Count(&attempts).Error)
	assert.Equal(t, int64(1), attempts)
}

func TestSubmitAttemptScoresOnce(t *testing.T) {
	f := newFixture(t, intPtr(1))
	ctx := context.Background()
	_, _, err := f.svc.Register(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)
	attempt, err := f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)

	done, err := f.svc.SubmitAttempt(ctx, f.user.ID, attempt.ID, Answers{"q1": 1, "q2": 1, "q3": 0})
	require.NoError(t, err)
	assert.Equal(t, 2, done.Score)
	assert.Equal(t, 4, done.MaxScore)
	assert.NotNil(t, done.SubmittedAt)

	_, err = f.svc.SubmitAttempt(ctx, f.user.ID, attempt.ID, Answers{"q1": 1})
	assert.ErrorIs(t, err, entitlement.ErrValidation)

	_, err = f.svc.SubmitAttempt(ctx, f.user.ID+1, attempt.ID, Answers{})
	assert.ErrorIs(t, err, entitlement.ErrNotFound)
}

func TestSetLimitReopensQuota(t *testing.T) {
	f := newFixture(t, intPtr(1))
	ctx := context.Background()
	reg, _, err := f.svc.Register(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)
	_, err = f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)

	updated, err := f.svc.SetLimit(ctx, reg.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.RemainingAttempts())

	_, err = f.svc.StartAttempt(ctx, f.user.ID, f.test.ID)
	require.NoError(t, err)

	_, err = f.svc.SetLimit(ctx, reg.ID, -1)
	assert.ErrorIs(t, err, entitlement.ErrValidation)
	_, err = f.svc.SetLimit(ctx, 9999, 1)
	assert.ErrorIs(t, err, entitlement.ErrNotFound)
}

func TestRedirectURLFallbacks(t *testing.T) {
	svc := NewService(nil, "")
	assert.Equal(t, "/plans", svc.RedirectURL(&models.MockTest{}))

	settings.Store(time.Now(), map[string]json.RawMessage{settings.BuyNowURLKey: json.RawMessage(`"/checkout?product={product_id}"`)})
	t.Cleanup(func() { settings.Store(time.Time{}, nil) })
	pid := uint64(12)
	assert.Equal(t, "/checkout?product=12", svc.RedirectURL(&models.MockTest{ProductID: &pid}))
}

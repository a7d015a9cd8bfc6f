package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coachline/coachline/internal/billing"
	"github.com/coachline/coachline/internal/db"
	"github.com/coachline/coachline/internal/entitlement"
	"github.com/coachline/coachline/internal/events"
	"github.com/coachline/coachline/internal/gateway"
	"github.com/coachline/coachline/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "gateway_secret"

type fakeGateway struct {
	mu      sync.Mutex
	created []int64
	err     error
}

func (g *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, amountMinor)
	return &gateway.Order{ID: fmt.Sprintf("order_%d", len(g.created)), Amount: amountMinor, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (g *fakeGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return gateway.Sign(testSecret, orderID, paymentID) == signature
}

func (g *fakeGateway) KeyID() string { return "key_test" }

func (g *fakeGateway) calls() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.created...)
}

type fixture struct {
	db       *gorm.DB
	gw       *fakeGateway
	recorder *events.Recorder
	svc      *Service
	buyer    models.User
	friend   models.User
	product  models.Product
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func createUser(t *testing.T, conn *gorm.DB, username, code string) models.User {
	t.Helper()
	u := models.User{Username: username, Password: "x", Role: models.RoleStudent, Active: true, ReferralCode: code}
	require.NoError(t, conn.Create(&u).Error)
	return u
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	conn := openTestDB(t)
	f := &fixture{db: conn, gw: &fakeGateway{}, recorder: &events.Recorder{}}
	f.buyer = createUser(t, conn, "buyer", "BUYER234")
	f.friend = createUser(t, conn, "friend", "FRIEND23")
	f.product = models.Product{
		Title:      "Physics crash course",
		ListPrice:  decimal.NewFromInt(1000),
		SalePrice:  decimal.NewFromInt(800),
		AccessDays: 30,
		Active:     true,
	}
	require.NoError(t, conn.Create(&f.product).Error)
	opts = append([]Option{WithPublisher(f.recorder), WithReferralPolicy(billing.PercentFriendDiscount(10))}, opts...)
	f.svc = NewService(conn, f.gw, opts...)
	return f
}

func TestPreviewAppliesOfferAndReferral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.Preview(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID, IncludeOffer: true})
	require.NoError(t, err)
	assert.Equal(t, 20, q.DiscountPercent)
	assert.True(t, q.OfferDiscount.Equal(decimal.NewFromInt(160)))
	assert.True(t, q.Payable.Equal(decimal.NewFromInt(640)))
	assert.Empty(t, q.ReferralCode)

	q, err = f.svc.Preview(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID, IncludeOffer: true, ReferralCode: "friend23"})
	require.NoError(t, err)
	assert.Equal(t, "FRIEND23", q.ReferralCode)
	assert.True(t, q.FriendDiscount.Equal(decimal.NewFromInt(80)))
	assert.True(t, q.Payable.Equal(decimal.NewFromInt(560)))
}

func TestPreviewIgnoresSelfAndUnknownReferral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, code := range []string{"BUYER234", "NOSUCHCD"} {
		q, err := f.svc.Preview(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID, ReferralCode: code})
		require.NoError(t, err)
		assert.Empty(t, q.ReferralCode, code)
		assert.True(t, q.FriendDiscount.IsZero(), code)
		assert.True(t, q.Payable.Equal(decimal.NewFromInt(800)), code)
	}
}

func TestPreviewMissingOrInactiveProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Preview(ctx, f.buyer.ID, PreviewRequest{ProductID: 9999})
	assert.ErrorIs(t, err, entitlement.ErrNotFound)

	require.NoError(t, f.db.Model(&f.product).Update("active", false).Error)
	_, err = f.svc.Preview(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID})
	assert.ErrorIs(t, err, entitlement.ErrNotFound)

	_, err = f.svc.Preview(ctx, f.buyer.ID, PreviewRequest{})
	assert.ErrorIs(t, err, entitlement.ErrValidation)
}

func TestCreateOrderUsesMinorUnits(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, PreviewRequest{ProductID: f.product.ID, IncludeOffer: true})
	require.NoError(t, err)
	assert.False(t, res.Free)
	assert.Equal(t, "order_1", res.OrderID)
	assert.Equal(t, int64(64000), res.Amount)
	assert.Equal(t, "key_test", res.Key)
	assert.Equal(t, []int64{64000}, f.gw.calls())

	var order models.PaymentOrder
	require.NoError(t, f.db.Where("gateway_order_id = ?", "order_1").First(&order).Error)
	assert.Equal(t, models.OrderStatusCreated, order.Status)
	assert.True(t, order.Amount.Equal(decimal.NewFromInt(640)))
	assert.True(t, order.OfferDiscount.Equal(decimal.NewFromInt(160)))
}

func TestCreateOrderGatewayErrorSavesNothing(t *testing.T) {
	f := newFixture(t)
	f.gw.err = errors.New("gateway down")

	_, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, PreviewRequest{ProductID: f.product.ID})
	require.Error(t, err)

	var count int64
	require.NoError(t, f.db.Model(&models.PaymentOrder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestVerifyPaymentFinalizesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.CreateOrder(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID, IncludeOffer: true})
	require.NoError(t, err)

	_, err = f.svc.MarkAuthorized(ctx, f.buyer.ID, res.OrderID, "pay_1")
	require.NoError(t, err)

	req := VerifyRequest{OrderID: res.OrderID, PaymentID: "pay_1", Signature: gateway.Sign(testSecret, res.OrderID, "pay_1")}
	first, err := f.svc.VerifyPayment(ctx, f.buyer.ID, req)
	require.NoError(t, err)
	require.NotNil(t, first.PaymentOrderID)
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(640)))

	second, err := f.svc.VerifyPayment(ctx, f.buyer.ID, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var purchases int64
	require.NoError(t, f.db.Model(&models.Purchase{}).Count(&purchases).Error)
	assert.Equal(t, int64(1), purchases)

	ok, err := entitlement.HasActiveAccess(ctx, f.db, f.buyer.ID, f.product.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	var order models.PaymentOrder
	require.NoError(t, f.db.Where("gateway_order_id = ?", res.OrderID).First(&order).Error)
	assert.Equal(t, models.OrderStatusVerified, order.Status)
	assert.NotNil(t, order.VerifiedAt)

	assert.Len(t, f.recorder.Snapshot(), 1)
}

func TestVerifyPaymentBadSignatureFailsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.CreateOrder(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID})
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, f.buyer.ID, VerifyRequest{OrderID: res.OrderID, PaymentID: "pay_1", Signature: "deadbeef"})
	assert.ErrorIs(t, err, entitlement.ErrPaymentVerificationFailed)

	var order models.PaymentOrder
	require.NoError(t, f.db.Where("gateway_order_id = ?", res.OrderID).First(&order).Error)
	assert.Equal(t, models.OrderStatusFailed, order.Status)

	ok, err := entitlement.HasActiveAccess(ctx, f.db, f.buyer.ID, f.product.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.VerifyPayment(ctx, f.buyer.ID, VerifyRequest{OrderID: res.OrderID, PaymentID: "pay_1", Signature: gateway.Sign(testSecret, res.OrderID, "pay_1")})
	assert.ErrorIs(t, err, entitlement.ErrValidation)
}

func TestVerifyPaymentOtherUsersOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.CreateOrder(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID})
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, f.friend.ID, VerifyRequest{OrderID: res.OrderID, PaymentID: "p", Signature: gateway.Sign(testSecret, res.OrderID, "p")})
	assert.ErrorIs(t, err, entitlement.ErrNotFound)
}

func TestPurchaseRequiresVerifiedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	preview := PreviewRequest{ProductID: f.product.ID, IncludeOffer: true}

	_, err := f.svc.Purchase(ctx, f.buyer.ID, PurchaseRequest{PreviewRequest: preview})
	assert.ErrorIs(t, err, entitlement.ErrPaymentRequired)

	res, err := f.svc.CreateOrder(ctx, f.buyer.ID, preview)
	require.NoError(t, err)
	_, err = f.svc.Purchase(ctx, f.buyer.ID, PurchaseRequest{PreviewRequest: preview, OrderID: res.OrderID})
	assert.ErrorIs(t, err, entitlement.ErrPaymentRequired)

	_, err = f.svc.Purchase(ctx, f.buyer.ID, PurchaseRequest{PreviewRequest: preview, OrderID: "order_missing"})
	assert.ErrorIs(t, err, entitlement.ErrPaymentRequired)

	verified, err := f.svc.VerifyPayment(ctx, f.buyer.ID, VerifyRequest{OrderID: res.OrderID, PaymentID: "pay_9", Signature: gateway.Sign(testSecret, res.OrderID, "pay_9")})
	require.NoError(t, err)

	purchase, err := f.svc.Purchase(ctx, f.buyer.ID, PurchaseRequest{PreviewRequest: preview, OrderID: res.OrderID})
	require.NoError(t, err)
	assert.Equal(t, verified.ID, purchase.ID)

	// Dropping the offer raises the payable amount above what was paid.
	_, err = f.svc.Purchase(ctx, f.buyer.ID, PurchaseRequest{PreviewRequest: PreviewRequest{ProductID: f.product.ID}, OrderID: res.OrderID})
	assert.ErrorIs(t, err, entitlement.ErrPaymentRequired)
}

func TestFreeCheckoutGrantsWithoutGateway(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	free := models.Product{Title: "Orientation", ListPrice: decimal.Zero, Active: true}
	require.NoError(t, f.db.Create(&free).Error)

	res, err := f.svc.CreateOrder(ctx, f.buyer.ID, PreviewRequest{ProductID: free.ID})
	require.NoError(t, err)
	assert.True(t, res.Free)
	require.NotNil(t, res.Purchase)
	assert.Nil(t, res.Purchase.PaymentOrderID)
	assert.Empty(t, f.gw.calls())

	purchase, err := f.svc.Purchase(ctx, f.buyer.ID, PurchaseRequest{PreviewRequest: PreviewRequest{ProductID: free.ID}})
	require.NoError(t, err)
	assert.True(t, purchase.Amount.IsZero())

	ok, err := entitlement.HasActiveAccess(ctx, f.db, f.buyer.ID, free.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateOrder(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID})
	require.NoError(t, err)
	order, err := f.svc.Cancel(ctx, f.buyer.ID, res.OrderID, false, "modal dismissed")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)

	res2, err := f.svc.CreateOrder(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID})
	require.NoError(t, err)
	order, err = f.svc.Cancel(ctx, f.buyer.ID, res2.OrderID, true, "card declined")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, order.Status)

	res3, err := f.svc.CreateOrder(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID})
	require.NoError(t, err)
	_, err = f.svc.VerifyPayment(ctx, f.buyer.ID, VerifyRequest{OrderID: res3.OrderID, PaymentID: "p3", Signature: gateway.Sign(testSecret, res3.OrderID, "p3")})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.buyer.ID, res3.OrderID, false, "")
	assert.ErrorIs(t, err, entitlement.ErrValidation)

	orders, err := f.svc.ListOrders(ctx, f.buyer.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 3)
	purchases, err := f.svc.ListPurchases(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	require.NotNil(t, purchases[0].Product)
	assert.Equal(t, f.product.Title, purchases[0].Product.Title)
}

func TestCancelRefusesAuthorizedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateOrder(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID})
	require.NoError(t, err)
	_, err = f.svc.MarkAuthorized(ctx, f.buyer.ID, res.OrderID, "pay_auth")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, f.buyer.ID, res.OrderID, false, "modal dismissed")
	assert.ErrorIs(t, err, entitlement.ErrValidation)
	_, err = f.svc.Cancel(ctx, f.buyer.ID, res.OrderID, true, "card declined")
	assert.ErrorIs(t, err, entitlement.ErrValidation)

	purchase, err := f.svc.VerifyPayment(ctx, f.buyer.ID, VerifyRequest{OrderID: res.OrderID, PaymentID: "pay_auth", Signature: gateway.Sign(testSecret, res.OrderID, "pay_auth")})
	require.NoError(t, err)
	assert.Equal(t, f.product.ID, purchase.ProductID)
}

func TestVerifyPaymentAfterSweepFinalizesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateOrder(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.PaymentOrder{}).
		Where("gateway_order_id = ?", res.OrderID).
		Update("created_at", time.Now().UTC().Add(-2*time.Hour)).Error)

	n, err := NewOrderSweeper(f.db, time.Minute).SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	purchase, err := f.svc.VerifyPayment(ctx, f.buyer.ID, VerifyRequest{OrderID: res.OrderID, PaymentID: "pay_late", Signature: gateway.Sign(testSecret, res.OrderID, "pay_late")})
	require.NoError(t, err)
	assert.Equal(t, f.product.ID, purchase.ProductID)

	var order models.PaymentOrder
	require.NoError(t, f.db.Where("gateway_order_id = ?", res.OrderID).First(&order).Error)
	assert.Equal(t, models.OrderStatusVerified, order.Status)
	assert.Equal(t, "pay_late", order.GatewayPaymentID)
	assert.Empty(t, order.FailureReason)

	var grants int64
	require.NoError(t, f.db.Model(&models.ProductAccess{}).
		Where("user_id = ? AND product_id = ?", f.buyer.ID, f.product.ID).
		Count(&grants).Error)
	assert.Equal(t, int64(1), grants)
}

func TestVerifyPaymentAfterDismissFinalizesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CreateOrder(ctx, f.buyer.ID, PreviewRequest{ProductID: f.product.ID})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, f.buyer.ID, res.OrderID, false, "modal dismissed")
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, f.buyer.ID, VerifyRequest{OrderID: res.OrderID, PaymentID: "pay_2", Signature: "forged"})
	assert.ErrorIs(t, err, entitlement.ErrPaymentVerificationFailed)
	var order models.PaymentOrder
	require.NoError(t, f.db.Where("gateway_order_id = ?", res.OrderID).First(&order).Error)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)

	purchase, err := f.svc.VerifyPayment(ctx, f.buyer.ID, VerifyRequest{OrderID: res.OrderID, PaymentID: "pay_2", Signature: gateway.Sign(testSecret, res.OrderID, "pay_2")})
	require.NoError(t, err)
	again, err := f.svc.VerifyPayment(ctx, f.buyer.ID, VerifyRequest{OrderID: res.OrderID, PaymentID: "pay_2", Signature: gateway.Sign(testSecret, res.OrderID, "pay_2")})
	require.NoError(t, err)
	assert.Equal(t, purchase.ID, again.ID)
}

func TestSweeperCancelsStaleOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := models.PaymentOrder{UserID: f.buyer.ID, ProductID: f.product.ID, Receipt: "r1", GatewayOrderID: "order_old", Amount: decimal.NewFromInt(800), AmountMinor: 80000, Currency: "INR", Status: models.OrderStatusCreated, CreatedAt: now.Add(-2 * time.Hour)}
	fresh := models.PaymentOrder{UserID: f.buyer.ID, ProductID: f.product.ID, Receipt: "r2", GatewayOrderID: "order_new", Amount: decimal.NewFromInt(800), AmountMinor: 80000, Currency: "INR", Status: models.OrderStatusCreated, CreatedAt: now}
	require.NoError(t, f.db.Create(&stale).Error)
	require.NoError(t, f.db.Create(&fresh).Error)

	sweeper := NewOrderSweeper(f.db, time.Minute)
	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var got models.PaymentOrder
	require.NoError(t, f.db.First(&got, stale.ID).Error)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	require.NoError(t, f.db.First(&got, fresh.ID).Error)
	assert.Equal(t, models.OrderStatusCreated, got.Status)
}

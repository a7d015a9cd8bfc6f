// Package checkout prices products for a user, opens gateway orders,
// verifies payments, and records purchases.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coachline/coachline/internal/billing"
	"github.com/coachline/coachline/internal/cache"
	"github.com/coachline/coachline/internal/entitlement"
	"github.com/coachline/coachline/internal/events"
	"github.com/coachline/coachline/internal/gateway"
	"github.com/coachline/coachline/internal/metrics"
	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/referral"
	"github.com/coachline/coachline/internal/settings"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = "INR"

// Gateway is the subset of the payment gateway the checkout flow needs.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*gateway.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

// Service runs the checkout flow against the database and the gateway.
type Service struct {
	db        *gorm.DB
	gw        Gateway
	cache     cache.ProductCache
	publisher events.Publisher
	policy    billing.ReferralPolicy
	currency  string
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithCache serves product lookups from c.
func WithCache(c cache.ProductCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithPublisher emits purchase events through p.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithReferralPolicy fixes the friend discount policy instead of reading it from settings.
func WithReferralPolicy(p billing.ReferralPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithCurrency sets the ISO currency for new orders.
func WithCurrency(code string) Option {
	return func(s *Service) {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			s.currency = code
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService builds a checkout Service.
func NewService(db *gorm.DB, gw Gateway, opts ...Option) *Service {
	s := &Service{
		db:        db,
		gw:        gw,
		cache:     cache.Noop{},
		publisher: events.Noop{},
		currency:  DefaultCurrency,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Currency is the ISO code new orders are created in.
func (s *Service) Currency() string {
	return s.currency
}

// GatewayKeyID is the public key the browser checkout widget needs.
func (s *Service) GatewayKeyID() string {
	if s.gw == nil {
		return ""
	}
	return s.gw.KeyID()
}

// PreviewRequest selects a product and the discounts to try.
type PreviewRequest struct {
	ProductID    uint64 `json:"product_id"`
	IncludeOffer bool   `json:"include_offer"`
	ReferralCode string `json:"referral_code"`
}

// referralPolicy returns the configured friend discount policy.
func (s *Service) referralPolicy() billing.ReferralPolicy {
	if s.policy != nil {
		return s.policy
	}
	return billing.PercentFriendDiscount(settings.Float(settings.FriendDiscountPercentKey, settings.DefaultFriendDiscountPercent))
}

// Product loads an active product, preferring the cache.
func (s *Service) Product(ctx context.Context, id uint64) (*models.Product, error) {
	if id == 0 {
		return nil, entitlement.Invalid("product_id", "is required")
	}
	if cached, ok, errCache := s.cache.GetProduct(ctx, id); errCache != nil {
		log.WithError(errCache).Warn("checkout: product cache read failed")
	} else if ok {
		if !cached.Active {
			return nil, entitlement.ErrNotFound
		}
		return cached, nil
	}

	var product models.Product
	if errFind := s.db.WithContext(ctx).First(&product, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrNotFound
		}
		return nil, fmt.Errorf("checkout: load product: %w", errFind)
	}
	if errCache := s.cache.SetProduct(ctx, &product); errCache != nil {
		log.WithError(errCache).Warn("checkout: product cache write failed")
	}
	if !product.Active {
		return nil, entitlement.ErrNotFound
	}
	return &product, nil
}

// quote prices req for userID. Unknown, disabled, or self-owned referral codes are dropped.
func (s *Service) quote(ctx context.Context, userID uint64, req PreviewRequest) (*models.Product, billing.Quote, error) {
	product, err := s.Product(ctx, req.ProductID)
	if err != nil {
		return nil, billing.Quote{}, err
	}
	code := referral.Normalize(req.ReferralCode)
	referrer, err := referral.ResolveFor(ctx, s.db, userID, code)
	if err != nil {
		return nil, billing.Quote{}, fmt.Errorf("checkout: %w", err)
	}
	q := billing.BuildQuote(product, billing.QuoteOptions{
		IncludeOffer: req.IncludeOffer,
		Referrer:     referrer,
		ReferralCode: code,
		Policy:       s.referralPolicy(),
		Currency:     s.currency,
	})
	return product, q, nil
}

// Preview prices a product without side effects.
func (s *Service) Preview(ctx context.Context, userID uint64, req PreviewRequest) (*billing.Quote, error) {
	_, q, err := s.quote(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// OrderResult is what the client needs to open the gateway widget, or the
// purchase itself when nothing was due.
type OrderResult struct {
	Free     bool             `json:"free"`
	Quote    billing.Quote    `json:"quote"`
	OrderID  string           `json:"order_id,omitempty"`
	Amount   int64            `json:"amount,omitempty"`
	Currency string           `json:"currency"`
	Key      string           `json:"key,omitempty"`
	Purchase *models.Purchase `json:"purchase,omitempty"`
}

// CreateOrder opens a gateway order for the re-derived payable amount.
// A zero payable amount records the purchase immediately.
func (s *Service) CreateOrder(ctx context.Context, userID uint64, req PreviewRequest) (*OrderResult, error) {
	product, q, err := s.quote(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	if q.IsFree() {
		purchase, errFree := s.recordFree(ctx, userID, product, q)
		if errFree != nil {
			return nil, errFree
		}
		return &OrderResult{Free: true, Quote: q, Currency: q.Currency, Purchase: purchase}, nil
	}

	amountMinor := billing.ToMinorUnits(q.Payable)
	receipt := "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	gwOrder, err := s.gw.CreateOrder(ctx, amountMinor, q.Currency, receipt)
	if err != nil {
		return nil, fmt.Errorf("checkout: open gateway order: %w", err)
	}

	order := models.PaymentOrder{
		UserID:         userID,
		ProductID:      product.ID,
		Receipt:        receipt,
		GatewayOrderID: gwOrder.ID,
		Amount:         q.Payable,
		AmountMinor:    amountMinor,
		Currency:       q.Currency,
		Status:         models.OrderStatusCreated,
		IncludeOffer:   req.IncludeOffer,
		ReferralCode:   q.ReferralCode,
		ListPrice:      q.ListPrice,
		CurrentPrice:   q.CurrentPrice,
		OfferDiscount:  q.OfferDiscount,
		FriendDiscount: q.FriendDiscount,
	}
	if errCreate := s.db.WithContext(ctx).Create(&order).Error; errCreate != nil {
		return nil, fmt.Errorf("checkout: save order: %w", errCreate)
	}
	metrics.CheckoutOrders.WithLabelValues(string(models.OrderStatusCreated)).Inc()
	log.WithFields(log.Fields{"order": order.GatewayOrderID, "user_id": userID, "product_id": product.ID}).Info("checkout: order created")

	return &OrderResult{
		Quote:    q,
		OrderID:  gwOrder.ID,
		Amount:   amountMinor,
		Currency: q.Currency,
		Key:      s.gw.KeyID(),
	}, nil
}

// findOrder loads the caller's order by gateway id.
func (s *Service) findOrder(tx *gorm.DB, userID uint64, gatewayOrderID string, lock bool) (*models.PaymentOrder, error) {
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return nil, entitlement.Invalid("order_id", "is required")
	}
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order models.PaymentOrder
	if errFind := q.Where("gateway_order_id = ? AND user_id = ?", gatewayOrderID, userID).First(&order).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrNotFound
		}
		return nil, fmt.Errorf("checkout: load order: %w", errFind)
	}
	return &order, nil
}

// MarkAuthorized records that the client received a signed gateway response.
func (s *Service) MarkAuthorized(ctx context.Context, userID uint64, gatewayOrderID, paymentID string) (*models.PaymentOrder, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, entitlement.Invalid("payment_id", "is required")
	}
	order, err := s.findOrder(s.db.WithContext(ctx), userID, gatewayOrderID, false)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusAuthorized {
		return order, nil
	}
	if order.Status != models.OrderStatusCreated {
		return nil, entitlement.Invalid("order_id", "order is "+string(order.Status))
	}
	res := s.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusCreated).
		Updates(map[string]any{
			"status":             models.OrderStatusAuthorized,
			"gateway_payment_id": paymentID,
			"updated_at":         s.now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("checkout: authorize order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, entitlement.Invalid("order_id", "order is no longer open")
	}
	order.Status = models.OrderStatusAuthorized
	order.GatewayPaymentID = paymentID
	metrics.CheckoutOrders.WithLabelValues(string(models.OrderStatusAuthorized)).Inc()
	return order, nil
}

// VerifyRequest is the signed payment response relayed by the client.
type VerifyRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// VerifyPayment checks the gateway signature and, on success, moves the
// order to VERIFIED and records the purchase in the same transaction. A
// verified order is never verified twice; repeating the call returns the
// existing purchase. Cancelled orders still accept a valid signature since
// the gateway may have captured the payment after the cancel.
func (s *Service) VerifyPayment(ctx context.Context, userID uint64, req VerifyRequest) (*models.Purchase, error) {
	if strings.TrimSpace(req.PaymentID) == "" || strings.TrimSpace(req.Signature) == "" {
		return nil, entitlement.Invalid("signature", "payment_id and signature are required")
	}
	order, err := s.findOrder(s.db.WithContext(ctx), userID, req.OrderID, false)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusVerified {
		return s.purchaseForOrder(s.db.WithContext(ctx), order.ID)
	}
	if !order.Status.AcceptsSignature() {
		return nil, entitlement.Invalid("order_id", "order is "+string(order.Status))
	}

	if !s.gw.VerifySignature(order.GatewayOrderID, req.PaymentID, req.Signature) {
		// A cancelled order stays cancelled so the real signature can still land.
		res := s.db.WithContext(ctx).Model(&models.PaymentOrder{}).
			Where("id = ? AND status IN ?", order.ID, []models.OrderStatus{models.OrderStatusCreated, models.OrderStatusAuthorized}).
			Updates(map[string]any{
				"status":             models.OrderStatusFailed,
				"gateway_payment_id": req.PaymentID,
				"failure_reason":     "signature mismatch",
				"updated_at":         s.now().UTC(),
			})
		if res.Error != nil {
			log.WithError(res.Error).Warn("checkout: mark order failed")
		} else if res.RowsAffected > 0 {
			metrics.CheckoutOrders.WithLabelValues(string(models.OrderStatusFailed)).Inc()
		}
		log.WithFields(log.Fields{"order": order.GatewayOrderID, "user_id": userID}).Warn("checkout: payment signature mismatch")
		return nil, entitlement.ErrPaymentVerificationFailed
	}

	var purchase *models.Purchase
	created := false
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, errLock := s.findOrder(tx, userID, order.GatewayOrderID, true)
		if errLock != nil {
			return errLock
		}
		if locked.Status == models.OrderStatusVerified {
			existing, errExisting := s.purchaseForOrder(tx, locked.ID)
			purchase = existing
			return errExisting
		}
		if !locked.Status.AcceptsSignature() {
			return entitlement.Invalid("order_id", "order is "+string(locked.Status))
		}
		if locked.Status == models.OrderStatusCancelled {
			log.WithFields(log.Fields{
				"order":          locked.GatewayOrderID,
				"payment_id":     req.PaymentID,
				"user_id":        userID,
				"failure_reason": locked.FailureReason,
			}).Error("checkout: payment captured on a cancelled order, finalizing")
		}

		now := s.now().UTC()
		if errUpdate := tx.Model(locked).Updates(map[string]any{
			"status":             models.OrderStatusVerified,
			"gateway_payment_id": req.PaymentID,
			"failure_reason":     "",
			"verified_at":        now,
			"updated_at":         now,
		}).Error; errUpdate != nil {
			return fmt.Errorf("checkout: verify order: %w", errUpdate)
		}
		locked.Status = models.OrderStatusVerified

		recorded, errFinalize := s.finalizeOrder(tx, locked, now)
		if errFinalize != nil {
			return errFinalize
		}
		purchase = recorded
		created = true
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	if created {
		metrics.CheckoutOrders.WithLabelValues(string(models.OrderStatusVerified)).Inc()
		s.afterPurchase(ctx, purchase, order.ReferralCode, "paid")
	}
	return purchase, nil
}

// finalizeOrder records the purchase for a verified order and grants access.
func (s *Service) finalizeOrder(tx *gorm.DB, order *models.PaymentOrder, now time.Time) (*models.Purchase, error) {
	var product models.Product
	if errFind := tx.First(&product, order.ProductID).Error; errFind != nil {
		return nil, fmt.Errorf("checkout: load product %d: %w", order.ProductID, errFind)
	}
	orderID := order.ID
	purchase := models.Purchase{
		UserID:         order.UserID,
		ProductID:      order.ProductID,
		PaymentOrderID: &orderID,
		Amount:         order.Amount,
		Currency:       order.Currency,
	}
	if errCreate := tx.Create(&purchase).Error; errCreate != nil {
		return nil, fmt.Errorf("checkout: record purchase: %w", errCreate)
	}
	if _, errGrant := entitlement.GrantAccess(tx, order.UserID, &product, &purchase.ID, now); errGrant != nil {
		return nil, errGrant
	}
	return &purchase, nil
}

// purchaseForOrder returns the purchase recorded for a verified order.
func (s *Service) purchaseForOrder(tx *gorm.DB, orderID uint64) (*models.Purchase, error) {
	var purchase models.Purchase
	if errFind := tx.Where("payment_order_id = ?", orderID).First(&purchase).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrNotFound
		}
		return nil, fmt.Errorf("checkout: load purchase: %w", errFind)
	}
	return &purchase, nil
}

// PurchaseRequest finalizes a checkout. OrderID is required when anything is due.
type PurchaseRequest struct {
	PreviewRequest
	OrderID string `json:"order_id"`
}

// Purchase re-derives the payable amount server side and records the
// purchase. Nothing due means an immediate grant. Otherwise the named order
// must be VERIFIED for the same user and product and must cover the amount.
func (s *Service) Purchase(ctx context.Context, userID uint64, req PurchaseRequest) (*models.Purchase, error) {
	product, q, err := s.quote(ctx, userID, req.PreviewRequest)
	if err != nil {
		return nil, err
	}
	if q.IsFree() {
		return s.recordFree(ctx, userID, product, q)
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, entitlement.ErrPaymentRequired
	}

	var purchase *models.Purchase
	created := false
	var order *models.PaymentOrder
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, errLock := s.findOrder(tx, userID, req.OrderID, true)
		if errors.Is(errLock, entitlement.ErrNotFound) {
			return entitlement.ErrPaymentRequired
		}
		if errLock != nil {
			return errLock
		}
		order = locked
		if locked.ProductID != product.ID {
			return entitlement.Invalid("order_id", "order belongs to another product")
		}
		if locked.Status != models.OrderStatusVerified {
			return entitlement.ErrPaymentRequired
		}
		if locked.Amount.LessThan(q.Payable) {
			return entitlement.ErrPaymentRequired
		}

		existing, errExisting := s.purchaseForOrder(tx, locked.ID)
		if errExisting == nil {
			purchase = existing
			return nil
		}
		if !errors.Is(errExisting, entitlement.ErrNotFound) {
			return errExisting
		}
		recorded, errFinalize := s.finalizeOrder(tx, locked, s.now().UTC())
		if errFinalize != nil {
			return errFinalize
		}
		purchase = recorded
		created = true
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	if created {
		s.afterPurchase(ctx, purchase, order.ReferralCode, "paid")
	}
	return purchase, nil
}

// recordFree records a zero-amount purchase and grants access.
func (s *Service) recordFree(ctx context.Context, userID uint64, product *models.Product, q billing.Quote) (*models.Purchase, error) {
	purchase := models.Purchase{
		UserID:    userID,
		ProductID: product.ID,
		Amount:    q.Payable,
		Currency:  q.Currency,
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&purchase).Error; errCreate != nil {
			return fmt.Errorf("checkout: record purchase: %w", errCreate)
		}
		_, errGrant := entitlement.GrantAccess(tx, userID, product, &purchase.ID, s.now())
		return errGrant
	})
	if errTx != nil {
		return nil, errTx
	}
	s.afterPurchase(ctx, &purchase, q.ReferralCode, "free")
	return &purchase, nil
}

// afterPurchase emits the purchase event and metrics. Publish failures are logged only.
func (s *Service) afterPurchase(ctx context.Context, purchase *models.Purchase, referralCode, kind string) {
	metrics.Purchases.WithLabelValues(kind).Inc()
	event := events.PurchaseCompleted{
		PurchaseID:     purchase.ID,
		UserID:         purchase.UserID,
		ProductID:      purchase.ProductID,
		PaymentOrderID: purchase.PaymentOrderID,
		Amount:         purchase.Amount,
		Currency:       purchase.Currency,
		ReferralCode:   referralCode,
		OccurredAt:     s.now().UTC(),
	}
	if errPublish := s.publisher.Publish(ctx, events.RoutingPurchaseCompleted, event); errPublish != nil {
		log.WithError(errPublish).WithField("purchase_id", purchase.ID).Warn("checkout: publish purchase event failed")
	}
	log.WithFields(log.Fields{"purchase_id": purchase.ID, "user_id": purchase.UserID, "product_id": purchase.ProductID, "kind": kind}).Info("checkout: purchase recorded")
}

// Cancel closes a CREATED order as CANCELLED, or FAILED when the gateway
// reported an error. An AUTHORIZED order already carries a gateway payment
// and can only be settled by VerifyPayment.
func (s *Service) Cancel(ctx context.Context, userID uint64, gatewayOrderID string, failed bool, reason string) (*models.PaymentOrder, error) {
	order, err := s.findOrder(s.db.WithContext(ctx), userID, gatewayOrderID, false)
	if err != nil {
		return nil, err
	}
	target := models.OrderStatusCancelled
	if failed {
		target = models.OrderStatusFailed
	}
	switch order.Status {
	case models.OrderStatusVerified:
		return nil, entitlement.Invalid("order_id", "order is already paid")
	case models.OrderStatusAuthorized:
		return nil, entitlement.Invalid("order_id", "payment is awaiting verification")
	case models.OrderStatusCreated:
	default:
		return order, nil
	}
	res := s.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusCreated).
		Updates(map[string]any{
			"status":         target,
			"failure_reason": strings.TrimSpace(reason),
			"updated_at":     s.now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("checkout: cancel order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.findOrder(s.db.WithContext(ctx), userID, gatewayOrderID, false)
	}
	order.Status = target
	order.FailureReason = strings.TrimSpace(reason)
	metrics.CheckoutOrders.WithLabelValues(string(target)).Inc()
	return order, nil
}

// ListPurchases returns the user's purchases, newest first.
func (s *Service) ListPurchases(ctx context.Context, userID uint64) ([]models.Purchase, error) {
	var rows []models.Purchase
	if errFind := s.db.WithContext(ctx).Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("checkout: list purchases: %w", errFind)
	}
	return rows, nil
}

// ListOrders returns the user's payment orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID uint64) ([]models.PaymentOrder, error) {
	var rows []models.PaymentOrder
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("checkout: list orders: %w", errFind)
	}
	return rows, nil
}

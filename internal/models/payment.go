package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the payment order lifecycle state.
type OrderStatus string

// OrderStatus constants.
const (
	// OrderStatusCreated means the gateway order is open and awaiting payment.
	OrderStatusCreated OrderStatus = "CREATED"
	// OrderStatusAuthorized means the client reported a signed gateway response.
	OrderStatusAuthorized OrderStatus = "AUTHORIZED"
	// OrderStatusVerified means the signature was validated server side.
	OrderStatusVerified OrderStatus = "VERIFIED"
	// OrderStatusFailed means the gateway or verification failed.
	OrderStatusFailed OrderStatus = "FAILED"
	// OrderStatusCancelled means the user dismissed the payment or it expired.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Open reports whether the order can still be paid or verified.
func (s OrderStatus) Open() bool {
	return s == OrderStatusCreated || s == OrderStatusAuthorized
}

// AcceptsSignature reports whether a valid gateway signature may still
// finalize the order. A cancelled order can have been paid after the user
// dismissed the modal or after the sweeper expired it.
func (s OrderStatus) AcceptsSignature() bool {
	return s.Open() || s == OrderStatusCancelled
}

// PaymentOrder is one checkout attempt against the payment gateway.
type PaymentOrder struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID    uint64   `gorm:"not null;index" json:"user_id"`                 // Paying user.
	ProductID uint64   `gorm:"not null;index" json:"product_id"`              // Product being bought.
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // Product relation.
	User      *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`       // User relation.
	Receipt   string   `gorm:"type:varchar(64);unique" json:"receipt"`        // Local receipt id sent to the gateway.

	GatewayOrderID   string `gorm:"type:varchar(128);not null;uniqueIndex" json:"gateway_order_id"` // Gateway order id.
	GatewayPaymentID string `gorm:"type:varchar(128)" json:"gateway_payment_id"`                    // Gateway payment id once authorized.

	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`     // Payable amount in currency units.
	AmountMinor int64           `gorm:"not null" json:"amount_minor"`                  // Payable amount in minor units.
	Currency    string          `gorm:"type:varchar(8);not null" json:"currency"`      // ISO currency code.
	Status      OrderStatus     `gorm:"type:varchar(16);not null;index" json:"status"` // Lifecycle state.

	IncludeOffer   bool            `gorm:"not null;default:false" json:"include_offer"`        // Whether the default offer was requested.
	ReferralCode   string          `gorm:"type:varchar(32)" json:"referral_code"`              // Referral code actually applied.
	ListPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"list_price"`      // Quote snapshot: list price.
	CurrentPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"current_price"`   // Quote snapshot: current price.
	OfferDiscount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"offer_discount"`  // Quote snapshot: default-offer discount.
	FriendDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"friend_discount"` // Quote snapshot: friend discount.

	FailureReason string     `gorm:"type:text" json:"failure_reason"` // Why the order failed or was cancelled.
	VerifiedAt    *time.Time `json:"verified_at"`                     // Signature verification time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`       // Last update timestamp.
}

// Purchase is a finalized product purchase, paid or free.
type Purchase struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID    uint64   `gorm:"not null;index" json:"user_id"`                 // Buyer.
	ProductID uint64   `gorm:"not null;index" json:"product_id"`              // Bought product.
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // Product relation.

	PaymentOrderID *uint64 `gorm:"uniqueIndex" json:"payment_order_id"` // Verified order; nil for free grants.

	Amount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"` // Amount paid in currency units.
	Currency string          `gorm:"type:varchar(8);not null" json:"currency"`  // ISO currency code.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"` // Creation timestamp.
}

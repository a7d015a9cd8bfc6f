package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a purchasable item such as a course bundle or a mock-test pass.
type Product struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Title       string `gorm:"type:text;not null" json:"title"` // Display title.
	Description string `gorm:"type:text" json:"description"`    // Long description.

	ListPrice       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"list_price"` // Price before any offer.
	SalePrice       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"sale_price"` // Current selling price; zero means unset.
	DiscountPercent float64         `gorm:"not null;default:0" json:"discount_percent"`              // Explicit offer percent; zero means derive.

	AccessDays   int    `gorm:"not null;default:0" json:"access_days"` // Access window after purchase; zero is lifetime.
	ThumbnailURL string `gorm:"type:text" json:"thumbnail_url"`        // Thumbnail image reference.

	Active bool `gorm:"not null;index" json:"active"` // Whether the product can be bought.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// ProductAccess records a user's entitlement to a product.
type ProductAccess struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID    uint64 `gorm:"not null;uniqueIndex:idx_product_accesses_user_product,priority:1" json:"user_id"`          // Entitled user.
	ProductID uint64 `gorm:"not null;uniqueIndex:idx_product_accesses_user_product,priority:2;index" json:"product_id"` // Unlocked product.

	PurchaseID *uint64 `gorm:"index" json:"purchase_id"` // Purchase that last granted or extended access.

	GrantedAt time.Time  `gorm:"not null" json:"granted_at"` // First grant time.
	ExpiresAt *time.Time `json:"expires_at"`                 // Expiry; nil means lifetime access.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// ActiveAt reports whether the access is valid at t.
func (a *ProductAccess) ActiveAt(t time.Time) bool {
	if a == nil {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(t)
}

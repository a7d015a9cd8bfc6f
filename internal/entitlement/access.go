package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coachline/coachline/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GrantAccess gives userID access to product, extending any existing grant.
//
// Lifetime products (AccessDays == 0) stay lifetime. For timed products the
// new expiry is max(now, current expiry) + AccessDays, so buying again while
// entitled adds a full window. Call it inside the purchase transaction.
func GrantAccess(tx *gorm.DB, userID uint64, product *models.Product, purchaseID *uint64, now time.Time) (*models.ProductAccess, error) {
	if tx == nil || product == nil {
		return nil, errors.New("entitlement: grant: nil argument")
	}
	now = now.UTC()

	// Insert first so two first-time grants cannot both miss the row and
	// collide on idx_product_accesses_user_product. The loser falls through
	// to the locked extend below.
	fresh := models.ProductAccess{
		UserID:     userID,
		ProductID:  product.ID,
		PurchaseID: purchaseID,
		GrantedAt:  now,
		ExpiresAt:  extendExpiry(nil, product.AccessDays, now, true),
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoNothing: true,
	}).Create(&fresh)
	if res.Error != nil {
		return nil, fmt.Errorf("entitlement: create access: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return &fresh, nil
	}

	var access models.ProductAccess
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND product_id = ?", userID, product.ID).
		First(&access).Error; errFind != nil {
		return nil, fmt.Errorf("entitlement: load access: %w", errFind)
	}

	access.ExpiresAt = extendExpiry(access.ExpiresAt, product.AccessDays, now, false)
	if purchaseID != nil {
		access.PurchaseID = purchaseID
	}
	if errSave := tx.Model(&access).Updates(map[string]any{
		"expires_at":  access.ExpiresAt,
		"purchase_id": access.PurchaseID,
		"updated_at":  now,
	}).Error; errSave != nil {
		return nil, fmt.Errorf("entitlement: extend access: %w", errSave)
	}
	return &access, nil
}

// extendExpiry computes the expiry after one more purchase.
func extendExpiry(current *time.Time, accessDays int, now time.Time, fresh bool) *time.Time {
	if accessDays <= 0 {
		return nil
	}
	if !fresh && current == nil {
		// Already lifetime.
		return nil
	}
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	next := base.AddDate(0, 0, accessDays)
	return &next
}

// HasActiveAccess reports whether userID holds unexpired access to productID.
func HasActiveAccess(ctx context.Context, db *gorm.DB, userID, productID uint64, now time.Time) (bool, error) {
	var access models.ProductAccess
	errFind := db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&access).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if errFind != nil {
		return false, fmt.Errorf("entitlement: load access: %w", errFind)
	}
	return access.ActiveAt(now), nil
}

// ActiveProductIDs returns the products userID can currently use.
func ActiveProductIDs(ctx context.Context, db *gorm.DB, userID uint64, now time.Time) ([]uint64, error) {
	var ids []uint64
	if errFind := db.WithContext(ctx).Model(&models.ProductAccess{}).
		Where("user_id = ? AND (expires_at IS NULL OR expires_at > ?)", userID, now.UTC()).
		Pluck("product_id", &ids).Error; errFind != nil {
		return nil, fmt.Errorf("entitlement: list access: %w", errFind)
	}
	return ids, nil
}

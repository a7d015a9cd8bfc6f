// Package referral resolves and issues the friend codes users share.
package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/security"
	"gorm.io/gorm"
)

// codeLength is the length of generated referral codes.
const codeLength = 8

// Normalize trims and upper-cases a user supplied code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve returns the active user owning code, or nil when the code does not apply.
func Resolve(ctx context.Context, db *gorm.DB, code string) (*models.User, error) {
	code = Normalize(code)
	if code == "" {
		return nil, nil
	}
	var user models.User
	errFind := db.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if errFind != nil {
		return nil, fmt.Errorf("referral: resolve: %w", errFind)
	}
	if !user.CanSignIn() {
		return nil, nil
	}
	return &user, nil
}

// ResolveFor is Resolve that also drops a user's own code.
func ResolveFor(ctx context.Context, db *gorm.DB, userID uint64, code string) (*models.User, error) {
	referrer, err := Resolve(ctx, db, code)
	if err != nil || referrer == nil {
		return nil, err
	}
	if referrer.ID == userID {
		return nil, nil
	}
	return referrer, nil
}

// NewCode generates a referral code not yet held by any user.
func NewCode(ctx context.Context, db *gorm.DB) (string, error) {
	for i := 0; i < 5; i++ {
		code, err := security.GenerateCode(codeLength)
		if err != nil {
			return "", err
		}
		var count int64
		if errCount := db.WithContext(ctx).Model(&models.User{}).Where("referral_code = ?", code).Count(&count).Error; errCount != nil {
			return "", fmt.Errorf("referral: check code: %w", errCount)
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", errors.New("referral: could not allocate a unique code")
}

// Stats summarizes a user's referrals.
type Stats struct {
	Code      string `json:"code"`
	Referrals int64  `json:"referrals"`
}

// StatsFor counts the users who registered with userID's code.
func StatsFor(ctx context.Context, db *gorm.DB, user *models.User) (Stats, error) {
	stats := Stats{Code: user.ReferralCode}
	if user.ReferralCode == "" {
		return stats, nil
	}
	if errCount := db.WithContext(ctx).Model(&models.User{}).
		Where("referred_by_code = ?", user.ReferralCode).
		Count(&stats.Referrals).Error; errCount != nil {
		return stats, fmt.Errorf("referral: count: %w", errCount)
	}
	return stats, nil
}

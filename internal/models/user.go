package models

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

// Role constants. A user holds exactly one role; ADMIN does not imply STUDENT.
const (
	// RoleStudent is a learner account.
	RoleStudent Role = "STUDENT"
	// RoleAdmin is a back-office account.
	RoleAdmin Role = "ADMIN"
)

// ParseRole normalizes a role string and reports whether it is known.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// User represents a student or admin account.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex" json:"username"` // Unique login name.
	Name     string `gorm:"type:text" json:"name"`                          // Display name.
	Email    string `gorm:"type:text;index" json:"email"`                   // Contact email.
	Phone    string `gorm:"type:text" json:"phone"`                         // Contact phone.
	Password string `gorm:"type:text;not null" json:"-"`                    // Hashed password.

	Role Role `gorm:"type:varchar(16);not null;default:'STUDENT';index" json:"role"` // Account role.

	Active   bool `gorm:"not null" json:"active"`                 // Whether the account is activated.
	Disabled bool `gorm:"not null;default:false" json:"disabled"` // Blocks sign-in when true.

	TOTPSecret string `gorm:"type:text" json:"-"` // TOTP secret for admin MFA.

	ReferralCode   string `gorm:"type:varchar(32);not null;uniqueIndex" json:"referral_code"` // Code this user shares with friends.
	ReferredByCode string `gorm:"type:varchar(32);index" json:"referred_by_code"`             // Code used at registration, if any.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// CanSignIn reports whether the account may authenticate.
func (u *User) CanSignIn() bool {
	return u != nil && u.Active && !u.Disabled
}

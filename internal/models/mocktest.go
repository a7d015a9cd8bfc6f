package models

import (
	"time"

	"gorm.io/datatypes"
)

// Question is one multiple-choice item of a mock test.
type Question struct {
	ID      string   `json:"id"`               // Stable question identifier.
	Prompt  string   `json:"prompt"`           // Question text.
	Options []string `json:"options"`          // Answer options.
	Answer  int      `json:"answer"`           // Index of the correct option.
	Marks   int      `json:"marks,omitempty"`  // Marks awarded; zero counts as one.
}

// MockTest is a timed practice test students register for.
type MockTest struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Title       string `gorm:"type:text;not null" json:"title"` // Display title.
	Description string `gorm:"type:text" json:"description"`    // Long description.

	ProductID *uint64  `gorm:"index" json:"product_id"`                       // Product that unlocks unlimited attempts.
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // Product relation.

	FreeAttemptLimit *int `gorm:"" json:"free_attempt_limit"`                 // Free attempts; nil falls back to the site default.
	DurationMinutes  int  `gorm:"not null;default:0" json:"duration_minutes"` // Time limit; zero means untimed.

	Questions datatypes.JSONSlice[Question] `gorm:"type:json" json:"questions"` // Question bank with answer key.

	Active bool `gorm:"not null;index" json:"active"` // Whether students can register.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// Registration links a student to a mock test and tracks free attempts.
type Registration struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	UserID     uint64    `gorm:"not null;uniqueIndex:idx_registrations_user_test,priority:1" json:"user_id"`            // Registered user.
	MockTestID uint64    `gorm:"not null;uniqueIndex:idx_registrations_user_test,priority:2;index" json:"mock_test_id"` // Mock test.
	MockTest   *MockTest `gorm:"foreignKey:MockTestID" json:"mock_test,omitempty"`                                      // Mock test relation.
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`                                               // User relation.

	FreeAttemptLimit int `gorm:"not null" json:"free_attempt_limit"`      // Free attempts granted.
	UsedAttempts     int `gorm:"not null;default:0" json:"used_attempts"` // Free attempts consumed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// RemainingAttempts returns the free attempts left, never negative.
func (r *Registration) RemainingAttempts() int {
	if r == nil {
		return 0
	}
	remaining := r.FreeAttemptLimit - r.UsedAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Attempt is one sitting of a mock test.
type Attempt struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	RegistrationID uint64 `gorm:"not null;index" json:"registration_id"` // Owning registration.
	UserID         uint64 `gorm:"not null;index" json:"user_id"`         // Candidate.
	MockTestID     uint64 `gorm:"not null;index" json:"mock_test_id"`    // Mock test taken.

	Paid bool `gorm:"not null;default:false" json:"paid"` // Started under paid access rather than the free quota.

	StartedAt   time.Time  `gorm:"not null" json:"started_at"` // Start time.
	SubmittedAt *time.Time `json:"submitted_at"`               // Submission time; nil while in progress.

	Answers  datatypes.JSONMap `gorm:"type:json" json:"answers"`            // Question id to chosen option index.
	Score    int               `gorm:"not null;default:0" json:"score"`     // Marks obtained.
	MaxScore int               `gorm:"not null;default:0" json:"max_score"` // Marks available.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
}

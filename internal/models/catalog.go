package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Class is a course made of ordered lessons.
type Class struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Title        string `gorm:"type:text;not null" json:"title"` // Display title.
	Description  string `gorm:"type:text" json:"description"`    // Long description.
	Instructor   string `gorm:"type:text" json:"instructor"`     // Instructor name.
	ThumbnailURL string `gorm:"type:text" json:"thumbnail_url"`  // Thumbnail image reference.

	ProductID *uint64  `gorm:"index" json:"product_id"`                       // Product that unlocks the full class.
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // Product relation.

	Lessons []Lesson `gorm:"foreignKey:ClassID" json:"lessons,omitempty"` // Lessons ordered by position.

	Active bool `gorm:"not null;index" json:"active"` // Whether the class is listed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// Lesson is one unit of a class.
type Lesson struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	ClassID  uint64 `gorm:"not null;index" json:"class_id"`     // Owning class.
	Title    string `gorm:"type:text;not null" json:"title"`    // Display title.
	Body     string `gorm:"type:text" json:"body"`              // Lesson notes.
	VideoURL string `gorm:"type:text" json:"video_url"`         // Video reference.
	Position int    `gorm:"not null;default:0" json:"position"` // Sort position inside the class.

	FreePreview bool `gorm:"not null;default:false" json:"free_preview"` // Visible without purchase.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// Plan is a pricing card shown on the plans page.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Title       string                      `gorm:"type:text;not null" json:"title"`          // Display title.
	Description string                      `gorm:"type:text" json:"description"`             // Long description.
	Price       decimal.Decimal             `gorm:"type:decimal(12,2);not null" json:"price"` // Display price.
	Features    datatypes.JSONSlice[string] `gorm:"type:json" json:"features"`                // Bullet points.

	ProductID *uint64 `gorm:"index" json:"product_id"` // Product bought from this plan.

	SortOrder int  `gorm:"not null;default:0" json:"sort_order"` // Display order.
	Active    bool `gorm:"not null;index" json:"active"`         // Whether the plan is shown.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

// Slider is a home page banner.
type Slider struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Title    string `gorm:"type:text" json:"title"`              // Caption.
	ImageURL string `gorm:"type:text;not null" json:"image_url"` // Banner image reference.
	LinkURL  string `gorm:"type:text" json:"link_url"`           // Click-through target.

	SortOrder int  `gorm:"not null;default:0" json:"sort_order"` // Display order.
	Active    bool `gorm:"not null;index" json:"active"`         // Whether the banner is shown.

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
}

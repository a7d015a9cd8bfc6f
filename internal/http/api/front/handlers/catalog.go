package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/coachline/coachline/internal/billing"
	"github.com/coachline/coachline/internal/entitlement"
	"github.com/coachline/coachline/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CatalogHandler serves the public catalog: banners, plans, products, and classes.
type CatalogHandler struct {
	db *gorm.DB
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(db *gorm.DB) *CatalogHandler {
	return &CatalogHandler{db: db}
}

// productDTO is the public view of a product with derived pricing.
type productDTO struct {
	ID              uint64          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	ListPrice       decimal.Decimal `json:"list_price"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	DiscountPercent int             `json:"discount_percent"`
	AccessDays      int             `json:"access_days"`
	ThumbnailURL    string          `json:"thumbnail_url"`
}

func toProductDTO(p *models.Product) productDTO {
	return productDTO{
		ID:              p.ID,
		Title:           p.Title,
		Description:     p.Description,
		ListPrice:       p.ListPrice,
		SalePrice:       p.SalePrice,
		CurrentPrice:    billing.CurrentPrice(p.ListPrice, p.SalePrice),
		DiscountPercent: billing.ProductDiscountPercent(p),
		AccessDays:      p.AccessDays,
		ThumbnailURL:    p.ThumbnailURL,
	}
}

// Sliders lists active home page banners.
func (h *CatalogHandler) Sliders(c *gin.Context) {
	var rows []models.Slider
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("active = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query sliders failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sliders": rows})
}

// Plans lists active pricing plans.
func (h *CatalogHandler) Plans(c *gin.Context) {
	var rows []models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("active = ?", true).
		Order("sort_order ASC, id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query plans failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": rows})
}

// Products lists active products with their derived discount.
func (h *CatalogHandler) Products(c *gin.Context) {
	var rows []models.Product
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("active = ?", true).
		Order("id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query products failed"})
		return
	}
	resp := make([]productDTO, 0, len(rows))
	for i := range rows {
		resp = append(resp, toProductDTO(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"products": resp})
}

// Product returns one active product.
func (h *CatalogHandler) Product(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var product models.Product
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND active = ?", id, true).
		First(&product).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query product failed"})
		return
	}
	c.JSON(http.StatusOK, toProductDTO(&product))
}

// classDTO is the list view of a class.
type classDTO struct {
	ID           uint64      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Instructor   string      `json:"instructor"`
	ThumbnailURL string      `json:"thumbnail_url"`
	Product      *productDTO `json:"product,omitempty"`
}

func toClassDTO(class *models.Class) classDTO {
	dto := classDTO{
		ID:           class.ID,
		Title:        class.Title,
		Description:  class.Description,
		Instructor:   class.Instructor,
		ThumbnailURL: class.ThumbnailURL,
	}
	if class.Product != nil {
		p := toProductDTO(class.Product)
		dto.Product = &p
	}
	return dto
}

// lessonDTO hides the lesson content unless the caller may watch it.
type lessonDTO struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Position    int    `json:"position"`
	FreePreview bool   `json:"free_preview"`
	Locked      bool   `json:"locked"`
	Body        string `json:"body,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
}

// Classes lists active classes.
func (h *CatalogHandler) Classes(c *gin.Context) {
	var rows []models.Class
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Product").
		Where("active = ?", true).
		Order("id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query classes failed"})
		return
	}
	resp := make([]classDTO, 0, len(rows))
	for i := range rows {
		resp = append(resp, toClassDTO(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"classes": resp})
}

// Class returns a class with its lessons. Free-preview lessons are open to
// everyone; the rest need active access to the class product. A class with
// no product is free.
func (h *CatalogHandler) Class(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var class models.Class
	if errFind := h.db.WithContext(ctx).
		Preload("Product").
		Preload("Lessons", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC, id ASC") }).
		Where("id = ? AND active = ?", id, true).
		First(&class).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "class not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query class failed"})
		return
	}

	entitled := class.ProductID == nil
	if !entitled {
		has, errAccess := entitlement.HasActiveAccess(ctx, h.db, userID, *class.ProductID, time.Now().UTC())
		if errAccess != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query access failed"})
			return
		}
		entitled = has
	}

	lessons := make([]lessonDTO, 0, len(class.Lessons))
	for _, lesson := range class.Lessons {
		dto := lessonDTO{
			ID:          lesson.ID,
			Title:       lesson.Title,
			Position:    lesson.Position,
			FreePreview: lesson.FreePreview,
		}
		if entitled || lesson.FreePreview {
			dto.Body = lesson.Body
			dto.VideoURL = lesson.VideoURL
		} else {
			dto.Locked = true
		}
		lessons = append(lessons, dto)
	}

	c.JSON(http.StatusOK, gin.H{
		"class":    toClassDTO(&class),
		"entitled": entitled,
		"lessons":  lessons,
	})
}

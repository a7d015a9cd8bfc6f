package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/coachline/coachline/internal/billing"
	"github.com/coachline/coachline/internal/cache"
	dbutil "github.com/coachline/coachline/internal/db"
	"github.com/coachline/coachline/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProductHandler manages purchasable products.
type ProductHandler struct {
	db    *gorm.DB           // Database handle for product queries.
	cache cache.ProductCache // Invalidated on every write.
}

// NewProductHandler wires a product handler with its dependencies.
func NewProductHandler(db *gorm.DB, productCache cache.ProductCache) *ProductHandler {
	if productCache == nil {
		productCache = cache.Noop{}
	}
	return &ProductHandler{db: db, cache: productCache}
}

// productRequest captures create and update payloads. Nil fields are left unchanged on update.
type productRequest struct {
	Title           *string          `json:"title"`            // Display title.
	Description     *string          `json:"description"`      // Long description.
	ListPrice       *decimal.Decimal `json:"list_price"`       // Price before any offer.
	SalePrice       *decimal.Decimal `json:"sale_price"`       // Current selling price.
	DiscountPercent *float64         `json:"discount_percent"` // Explicit offer percent.
	AccessDays      *int             `json:"access_days"`      // Access window; zero is lifetime.
	ThumbnailURL    *string          `json:"thumbnail_url"`    // Thumbnail reference.
	Active          *bool            `json:"active"`           // Whether the product can be bought.
}

// validate checks the supplied fields and returns the column updates.
func (r *productRequest) validate() (map[string]any, string) {
	updates := map[string]any{}
	if r.Title != nil {
		title := strings.TrimSpace(*r.Title)
		if title == "" {
			return nil, "title cannot be empty"
		}
		updates["title"] = title
	}
	if r.Description != nil {
		updates["description"] = strings.TrimSpace(*r.Description)
	}
	if r.ListPrice != nil {
		if r.ListPrice.IsNegative() {
			return nil, "list_price cannot be negative"
		}
		updates["list_price"] = r.ListPrice.Round(2)
	}
	if r.SalePrice != nil {
		if r.SalePrice.IsNegative() {
			return nil, "sale_price cannot be negative"
		}
		updates["sale_price"] = r.SalePrice.Round(2)
	}
	if r.DiscountPercent != nil {
		if *r.DiscountPercent < 0 || *r.DiscountPercent > 100 {
			return nil, "discount_percent must be between 0 and 100"
		}
		updates["discount_percent"] = *r.DiscountPercent
	}
	if r.AccessDays != nil {
		if *r.AccessDays < 0 {
			return nil, "access_days cannot be negative"
		}
		updates["access_days"] = *r.AccessDays
	}
	if r.ThumbnailURL != nil {
		updates["thumbnail_url"] = strings.TrimSpace(*r.ThumbnailURL)
	}
	if r.Active != nil {
		updates["active"] = *r.Active
	}
	return updates, ""
}

// formatProduct adds the derived pricing to a product row.
func formatProduct(p *models.Product) gin.H {
	return gin.H{
		"id":                 p.ID,
		"title":              p.Title,
		"description":        p.Description,
		"list_price":         p.ListPrice,
		"sale_price":         p.SalePrice,
		"discount_percent":   p.DiscountPercent,
		"effective_discount": billing.ProductDiscountPercent(p),
		"current_price":      billing.CurrentPrice(p.ListPrice, p.SalePrice),
		"access_days":        p.AccessDays,
		"thumbnail_url":      p.ThumbnailURL,
		"active":             p.Active,
		"created_at":         p.CreatedAt,
		"updated_at":         p.UpdatedAt,
	}
}

// Create persists a new product.
func (h *ProductHandler) Create(c *gin.Context) {
	var body productRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Title == nil || body.ListPrice == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and list_price are required"})
		return
	}
	if _, msg := body.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	product := models.Product{
		Title:     strings.TrimSpace(*body.Title),
		ListPrice: body.ListPrice.Round(2),
		Active:    true,
	}
	if body.Description != nil {
		product.Description = strings.TrimSpace(*body.Description)
	}
	if body.SalePrice != nil {
		product.SalePrice = body.SalePrice.Round(2)
	}
	if body.DiscountPercent != nil {
		product.DiscountPercent = *body.DiscountPercent
	}
	if body.AccessDays != nil {
		product.AccessDays = *body.AccessDays
	}
	if body.ThumbnailURL != nil {
		product.ThumbnailURL = strings.TrimSpace(*body.ThumbnailURL)
	}
	if body.Active != nil {
		product.Active = *body.Active
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&product).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create product failed"})
		return
	}
	c.JSON(http.StatusCreated, formatProduct(&product))
}

// List returns products, optionally filtered by title.
func (h *ProductHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Product{})
	if title := strings.TrimSpace(c.Query("title")); title != "" {
		cond, args := dbutil.ContainsAny(h.db, title, "title")
		q = q.Where(cond, args...)
	}
	var rows []models.Product
	if errFind := q.Order("id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list products failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatProduct(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}

// Get fetches a single product.
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var product models.Product
	if errFind := h.db.WithContext(c.Request.Context()).First(&product, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, formatProduct(&product))
}

// Update applies field changes and drops the cached copy.
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body productRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	updates, msg := body.validate()
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.invalidate(c, id)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete deactivates a product. Purchases and access rows keep referring to it.
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Product{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	h.invalidate(c, id)
	c.Status(http.StatusNoContent)
}

func (h *ProductHandler) invalidate(c *gin.Context, id uint64) {
	if errCache := h.cache.InvalidateProduct(c.Request.Context(), id); errCache != nil {
		log.WithError(errCache).WithField("product_id", id).Warn("admin: product cache invalidation failed")
	}
}

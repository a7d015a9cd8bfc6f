package handlers

import (
	"net/http"
	"strings"

	"github.com/coachline/coachline/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanHandler manages pricing cards.
type PlanHandler struct {
	db *gorm.DB
}

// NewPlanHandler constructs a plan handler.
func NewPlanHandler(db *gorm.DB) *PlanHandler {
	return &PlanHandler{db: db}
}

type planRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Features    *[]string        `json:"features"`
	ProductID   *uint64          `json:"product_id"`
	SortOrder   *int             `json:"sort_order"`
	Active      *bool            `json:"active"`
}

func cleanFeatures(in []string) datatypes.JSONSlice[string] {
	out := make([]string, 0, len(in))
	for _, f := range in {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return datatypes.JSONSlice[string](out)
}

// Create persists a new plan.
func (h *PlanHandler) Create(c *gin.Context) {
	var body planRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Title == nil || strings.TrimSpace(*body.Title) == "" || body.Price == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and price are required"})
		return
	}
	if body.Price.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price cannot be negative"})
		return
	}
	plan := models.Plan{
		Title:     strings.TrimSpace(*body.Title),
		Price:     body.Price.Round(2),
		ProductID: productRef(body.ProductID),
		Active:    true,
	}
	if !productExists(c, h.db, plan.ProductID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product not found"})
		return
	}
	if body.Description != nil {
		plan.Description = strings.TrimSpace(*body.Description)
	}
	if body.Features != nil {
		plan.Features = cleanFeatures(*body.Features)
	}
	if body.SortOrder != nil {
		plan.SortOrder = *body.SortOrder
	}
	if body.Active != nil {
		plan.Active = *body.Active
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&plan).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create plan failed"})
		return
	}
	c.JSON(http.StatusCreated, plan)
}

// List returns every plan in display order.
func (h *PlanHandler) List(c *gin.Context) {
	var rows []models.Plan
	if errFind := h.db.WithContext(c.Request.Context()).Order("sort_order ASC, id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list plans failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": rows})
}

// Update modifies plan fields.
func (h *PlanHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body planRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
			return
		}
		updates["title"] = title
	}
	if body.Description != nil {
		updates["description"] = strings.TrimSpace(*body.Description)
	}
	if body.Price != nil {
		if body.Price.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price cannot be negative"})
			return
		}
		updates["price"] = body.Price.Round(2)
	}
	if body.Features != nil {
		updates["features"] = cleanFeatures(*body.Features)
	}
	if body.ProductID != nil {
		ref := productRef(body.ProductID)
		if !productExists(c, h.db, ref) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "product not found"})
			return
		}
		updates["product_id"] = ref
	}
	if body.SortOrder != nil {
		updates["sort_order"] = *body.SortOrder
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Plan{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a plan.
func (h *PlanHandler) Delete(c *gin.Context) {
	deleteByID(c, h.db, &models.Plan{})
}

// SliderHandler manages home page banners.
type SliderHandler struct {
	db *gorm.DB
}

// NewSliderHandler constructs a slider handler.
func NewSliderHandler(db *gorm.DB) *SliderHandler {
	return &SliderHandler{db: db}
}

type sliderRequest struct {
	Title     *string `json:"title"`
	ImageURL  *string `json:"image_url"`
	LinkURL   *string `json:"link_url"`
	SortOrder *int    `json:"sort_order"`
	Active    *bool   `json:"active"`
}

// Create persists a new slider.
func (h *SliderHandler) Create(c *gin.Context) {
	var body sliderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ImageURL == nil || strings.TrimSpace(*body.ImageURL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image_url is required"})
		return
	}
	slider := models.Slider{ImageURL: strings.TrimSpace(*body.ImageURL), Active: true}
	if body.Title != nil {
		slider.Title = strings.TrimSpace(*body.Title)
	}
	if body.LinkURL != nil {
		slider.LinkURL = strings.TrimSpace(*body.LinkURL)
	}
	if body.SortOrder != nil {
		slider.SortOrder = *body.SortOrder
	}
	if body.Active != nil {
		slider.Active = *body.Active
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&slider).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create slider failed"})
		return
	}
	c.JSON(http.StatusCreated, slider)
}

// List returns every slider in display order.
func (h *SliderHandler) List(c *gin.Context) {
	var rows []models.Slider
	if errFind := h.db.WithContext(c.Request.Context()).Order("sort_order ASC, id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list sliders failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sliders": rows})
}

// Update modifies slider fields.
func (h *SliderHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body sliderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if body.Title != nil {
		updates["title"] = strings.TrimSpace(*body.Title)
	}
	if body.ImageURL != nil {
		imageURL := strings.TrimSpace(*body.ImageURL)
		if imageURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image_url cannot be empty"})
			return
		}
		updates["image_url"] = imageURL
	}
	if body.LinkURL != nil {
		updates["link_url"] = strings.TrimSpace(*body.LinkURL)
	}
	if body.SortOrder != nil {
		updates["sort_order"] = *body.SortOrder
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Slider{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a slider.
func (h *SliderHandler) Delete(c *gin.Context) {
	deleteByID(c, h.db, &models.Slider{})
}

// deleteByID hard-deletes the row named by :id.
func deleteByID(c *gin.Context, db *gorm.DB, model any) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := db.WithContext(c.Request.Context()).Delete(model, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

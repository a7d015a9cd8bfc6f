package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/coachline/coachline/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ClassHandler manages classes and their lessons.
type ClassHandler struct {
	db *gorm.DB // Database handle for class and lesson queries.
}

// NewClassHandler constructs a class handler.
func NewClassHandler(db *gorm.DB) *ClassHandler {
	return &ClassHandler{db: db}
}

// classRequest captures class create and update payloads.
type classRequest struct {
	Title        *string `json:"title"`         // Display title.
	Description  *string `json:"description"`   // Long description.
	Instructor   *string `json:"instructor"`    // Instructor name.
	ThumbnailURL *string `json:"thumbnail_url"` // Thumbnail reference.
	ProductID    *uint64 `json:"product_id"`    // Unlocking product; zero clears it.
	Active       *bool   `json:"active"`        // Listing flag.
}

// productRef turns a zero id into nil.
func productRef(id *uint64) *uint64 {
	if id == nil || *id == 0 {
		return nil
	}
	v := *id
	return &v
}

// productExists reports whether the referenced product is present.
func productExists(c *gin.Context, db *gorm.DB, id *uint64) bool {
	if id == nil {
		return true
	}
	var count int64
	if errCount := db.WithContext(c.Request.Context()).Model(&models.Product{}).Where("id = ?", *id).Count(&count).Error; errCount != nil {
		return false
	}
	return count > 0
}

// Create persists a new class.
func (h *ClassHandler) Create(c *gin.Context) {
	var body classRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Title == nil || strings.TrimSpace(*body.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	class := models.Class{
		Title:     strings.TrimSpace(*body.Title),
		ProductID: productRef(body.ProductID),
		Active:    true,
	}
	if !productExists(c, h.db, class.ProductID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product not found"})
		return
	}
	if body.Description != nil {
		class.Description = strings.TrimSpace(*body.Description)
	}
	if body.Instructor != nil {
		class.Instructor = strings.TrimSpace(*body.Instructor)
	}
	if body.ThumbnailURL != nil {
		class.ThumbnailURL = strings.TrimSpace(*body.ThumbnailURL)
	}
	if body.Active != nil {
		class.Active = *body.Active
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&class).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create class failed"})
		return
	}
	c.JSON(http.StatusCreated, class)
}

// List returns all classes including inactive ones.
func (h *ClassHandler) List(c *gin.Context) {
	var rows []models.Class
	if errFind := h.db.WithContext(c.Request.Context()).Order("id DESC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list classes failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": rows})
}

// Get returns a class with its lessons.
func (h *ClassHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var class models.Class
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Lessons", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC, id ASC") }).
		First(&class, id).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, class)
}

// Update modifies class fields.
func (h *ClassHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body classRequest
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
	if body.Instructor != nil {
		updates["instructor"] = strings.TrimSpace(*body.Instructor)
	}
	if body.ThumbnailURL != nil {
		updates["thumbnail_url"] = strings.TrimSpace(*body.ThumbnailURL)
	}
	if body.ProductID != nil {
		ref := productRef(body.ProductID)
		if !productExists(c, h.db, ref) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "product not found"})
			return
		}
		updates["product_id"] = ref
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Class{}).Where("id = ?", id).Updates(updates)
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

// Delete removes a class and its lessons.
func (h *ClassHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var affected int64
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errLessons := tx.Where("class_id = ?", id).Delete(&models.Lesson{}).Error; errLessons != nil {
			return errLessons
		}
		res := tx.Delete(&models.Class{}, id)
		affected = res.RowsAffected
		return res.Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// lessonRequest captures lesson create and update payloads.
type lessonRequest struct {
	Title       *string `json:"title"`        // Display title.
	Body        *string `json:"body"`         // Lesson notes.
	VideoURL    *string `json:"video_url"`    // Video reference.
	Position    *int    `json:"position"`     // Sort position.
	FreePreview *bool   `json:"free_preview"` // Visible without purchase.
}

// CreateLesson appends a lesson to a class.
func (h *ClassHandler) CreateLesson(c *gin.Context) {
	classID, ok := parseID(c)
	if !ok {
		return
	}
	var body lessonRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Title == nil || strings.TrimSpace(*body.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	ctx := c.Request.Context()
	var class models.Class
	if errFind := h.db.WithContext(ctx).Select("id").First(&class, classID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "class not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	lesson := models.Lesson{ClassID: class.ID, Title: strings.TrimSpace(*body.Title)}
	if body.Body != nil {
		lesson.Body = *body.Body
	}
	if body.VideoURL != nil {
		lesson.VideoURL = strings.TrimSpace(*body.VideoURL)
	}
	if body.FreePreview != nil {
		lesson.FreePreview = *body.FreePreview
	}
	if body.Position != nil {
		lesson.Position = *body.Position
	} else {
		// Append after the current last lesson.
		maxPos := -1
		if errMax := h.db.WithContext(ctx).Model(&models.Lesson{}).
			Where("class_id = ?", class.ID).
			Select("COALESCE(MAX(position), -1)").
			Scan(&maxPos).Error; errMax == nil {
			lesson.Position = maxPos + 1
		}
	}
	if errCreate := h.db.WithContext(ctx).Create(&lesson).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create lesson failed"})
		return
	}
	c.JSON(http.StatusCreated, lesson)
}

// UpdateLesson modifies lesson fields.
func (h *ClassHandler) UpdateLesson(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body lessonRequest
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
	if body.Body != nil {
		updates["body"] = *body.Body
	}
	if body.VideoURL != nil {
		updates["video_url"] = strings.TrimSpace(*body.VideoURL)
	}
	if body.Position != nil {
		updates["position"] = *body.Position
	}
	if body.FreePreview != nil {
		updates["free_preview"] = *body.FreePreview
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Lesson{}).Where("id = ?", id).Updates(updates)
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

// DeleteLesson removes a lesson.
func (h *ClassHandler) DeleteLesson(c *gin.Context) {
	deleteByID(c, h.db, &models.Lesson{})
}

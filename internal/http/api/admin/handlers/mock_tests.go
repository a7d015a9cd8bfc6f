package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	internalhttp "github.com/coachline/coachline/internal/http"
	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/quota"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MockTestHandler manages mock tests and their registrations.
type MockTestHandler struct {
	db  *gorm.DB       // Database handle for mock test queries.
	svc *quota.Service // Adjusts registration limits.
}

// NewMockTestHandler constructs a mock test handler.
func NewMockTestHandler(db *gorm.DB, svc *quota.Service) *MockTestHandler {
	return &MockTestHandler{db: db, svc: svc}
}

// mockTestRequest captures create and update payloads.
type mockTestRequest struct {
	Title            *string            `json:"title"`              // Display title.
	Description      *string            `json:"description"`        // Long description.
	ProductID        *uint64            `json:"product_id"`         // Unlocking product; zero clears it.
	FreeAttemptLimit *int               `json:"free_attempt_limit"` // Per-test free limit; negative clears it.
	DurationMinutes  *int               `json:"duration_minutes"`   // Time limit; zero is untimed.
	Questions        *[]models.Question `json:"questions"`          // Full question bank with answers.
	Active           *bool              `json:"active"`             // Whether students can register.
}

// validateQuestions checks ids are unique and every answer indexes an option.
func validateQuestions(questions []models.Question) error {
	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		id := strings.TrimSpace(q.ID)
		if id == "" {
			return fmt.Errorf("question %d: id is required", i+1)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("question %s: duplicate id", id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("question %s: prompt is required", id)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %s: at least two options are required", id)
		}
		if q.Answer < 0 || q.Answer >= len(q.Options) {
			return fmt.Errorf("question %s: answer out of range", id)
		}
		if q.Marks < 0 {
			return fmt.Errorf("question %s: marks cannot be negative", id)
		}
	}
	return nil
}

func normalizeQuestions(in []models.Question) datatypes.JSONSlice[models.Question] {
	out := make([]models.Question, len(in))
	for i, q := range in {
		q.ID = strings.TrimSpace(q.ID)
		out[i] = q
	}
	return datatypes.JSONSlice[models.Question](out)
}

// limitRef turns a negative limit into nil so the site default applies.
func limitRef(limit *int) *int {
	if limit == nil || *limit < 0 {
		return nil
	}
	v := *limit
	return &v
}

// Create persists a new mock test.
func (h *MockTestHandler) Create(c *gin.Context) {
	var body mockTestRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Title == nil || strings.TrimSpace(*body.Title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	mt := models.MockTest{
		Title:            strings.TrimSpace(*body.Title),
		ProductID:        productRef(body.ProductID),
		FreeAttemptLimit: limitRef(body.FreeAttemptLimit),
		Active:           true,
	}
	if !productExists(c, h.db, mt.ProductID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product not found"})
		return
	}
	if body.Description != nil {
		mt.Description = strings.TrimSpace(*body.Description)
	}
	if body.DurationMinutes != nil {
		if *body.DurationMinutes < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_minutes cannot be negative"})
			return
		}
		mt.DurationMinutes = *body.DurationMinutes
	}
	if body.Questions != nil {
		if errQuestions := validateQuestions(*body.Questions); errQuestions != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errQuestions.Error()})
			return
		}
		mt.Questions = normalizeQuestions(*body.Questions)
	}
	if body.Active != nil {
		mt.Active = *body.Active
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&mt).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create mock test failed"})
		return
	}
	c.JSON(http.StatusCreated, mt)
}

// List returns mock tests without their question banks.
func (h *MockTestHandler) List(c *gin.Context) {
	var rows []models.MockTest
	if errFind := h.db.WithContext(c.Request.Context()).
		Omit("questions").
		Order("id DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list mock tests failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mock_tests": rows})
}

// Get returns a mock test including the answer key.
func (h *MockTestHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var mt models.MockTest
	if errFind := h.db.WithContext(c.Request.Context()).First(&mt, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, mt)
}

// Update modifies mock test fields. Existing registrations keep their limits.
func (h *MockTestHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body mockTestRequest
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
	if body.ProductID != nil {
		ref := productRef(body.ProductID)
		if !productExists(c, h.db, ref) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "product not found"})
			return
		}
		updates["product_id"] = ref
	}
	if body.FreeAttemptLimit != nil {
		updates["free_attempt_limit"] = limitRef(body.FreeAttemptLimit)
	}
	if body.DurationMinutes != nil {
		if *body.DurationMinutes < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_minutes cannot be negative"})
			return
		}
		updates["duration_minutes"] = *body.DurationMinutes
	}
	if body.Questions != nil {
		if errQuestions := validateQuestions(*body.Questions); errQuestions != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errQuestions.Error()})
			return
		}
		updates["questions"] = normalizeQuestions(*body.Questions)
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.MockTest{}).Where("id = ?", id).Updates(updates)
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

// Delete deactivates a mock test. Attempts and registrations are kept.
func (h *MockTestHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.MockTest{}).
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
	c.Status(http.StatusNoContent)
}

// Registrations lists the students registered for a mock test.
func (h *MockTestHandler) Registrations(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	q := h.db.WithContext(c.Request.Context()).Model(&models.Registration{}).Where("mock_test_id = ?", id)

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count registrations failed"})
		return
	}
	var rows []models.Registration
	if errFind := q.Preload("User").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list registrations failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		item := gin.H{
			"id":                 r.ID,
			"user_id":            r.UserID,
			"mock_test_id":       r.MockTestID,
			"free_attempt_limit": r.FreeAttemptLimit,
			"used_attempts":      r.UsedAttempts,
			"remaining_attempts": r.RemainingAttempts(),
			"created_at":         r.CreatedAt,
		}
		if r.User != nil {
			item["username"] = r.User.Username
			item["name"] = r.User.Name
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"registrations": out, "total": total})
}

// UpdateRegistration sets a registration's free attempt limit.
func (h *MockTestHandler) UpdateRegistration(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body struct {
		FreeAttemptLimit *int `json:"free_attempt_limit"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.FreeAttemptLimit == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "free_attempt_limit is required"})
		return
	}
	reg, err := h.svc.SetLimit(c.Request.Context(), id, *body.FreeAttemptLimit)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                 reg.ID,
		"free_attempt_limit": reg.FreeAttemptLimit,
		"used_attempts":      reg.UsedAttempts,
		"remaining_attempts": reg.RemainingAttempts(),
	})
}

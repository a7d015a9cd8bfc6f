package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/coachline/coachline/internal/entitlement"
	internalhttp "github.com/coachline/coachline/internal/http"
	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/quota"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// MockTestHandler serves mock-test registration and attempts.
type MockTestHandler struct {
	db  *gorm.DB
	svc *quota.Service
}

// NewMockTestHandler constructs a MockTestHandler.
func NewMockTestHandler(db *gorm.DB, svc *quota.Service) *MockTestHandler {
	return &MockTestHandler{db: db, svc: svc}
}

// mockTestDTO is the public view of a mock test.
type mockTestDTO struct {
	ID               uint64  `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	ProductID        *uint64 `json:"product_id,omitempty"`
	DurationMinutes  int     `json:"duration_minutes"`
	QuestionCount    int     `json:"question_count"`
	FreeAttemptLimit *int    `json:"free_attempt_limit,omitempty"`
}

// questionDTO is a question without its answer key.
type questionDTO struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Marks   int      `json:"marks"`
}

func toMockTestDTO(mt *models.MockTest) mockTestDTO {
	return mockTestDTO{
		ID:               mt.ID,
		Title:            mt.Title,
		Description:      mt.Description,
		ProductID:        mt.ProductID,
		DurationMinutes:  mt.DurationMinutes,
		QuestionCount:    len(mt.Questions),
		FreeAttemptLimit: mt.FreeAttemptLimit,
	}
}

// paperFor strips the answer key from the question bank.
func paperFor(questions []models.Question) []questionDTO {
	out := make([]questionDTO, 0, len(questions))
	for _, q := range questions {
		marks := q.Marks
		if marks <= 0 {
			marks = 1
		}
		out = append(out, questionDTO{ID: q.ID, Prompt: q.Prompt, Options: q.Options, Marks: marks})
	}
	return out
}

// List returns active mock tests.
func (h *MockTestHandler) List(c *gin.Context) {
	var rows []models.MockTest
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("active = ?", true).
		Order("id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query mock tests failed"})
		return
	}
	resp := make([]mockTestDTO, 0, len(rows))
	for i := range rows {
		resp = append(resp, toMockTestDTO(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"mock_tests": resp})
}

// Register signs the user up for a mock test.
func (h *MockTestHandler) Register(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	reg, created, err := h.svc.Register(c.Request.Context(), userID, id)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"registration":       reg,
		"remaining_attempts": reg.RemainingAttempts(),
	})
}

// Status reports the user's quota for a mock test.
func (h *MockTestHandler) Status(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	st, err := h.svc.Status(c.Request.Context(), userID, id)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Start opens an attempt and returns the question paper.
func (h *MockTestHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	attempt, err := h.svc.StartAttempt(c.Request.Context(), userID, id)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	var mt models.MockTest
	if errFind := h.db.WithContext(c.Request.Context()).First(&mt, attempt.MockTestID).Error; errFind != nil {
		internalhttp.RespondError(c, errFind)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"attempt":          attempt,
		"duration_minutes": mt.DurationMinutes,
		"questions":        paperFor(mt.Questions),
	})
}

// submitRequest carries the chosen option per question id.
type submitRequest struct {
	Answers quota.Answers `json:"answers"`
}

// Submit scores an attempt.
func (h *MockTestHandler) Submit(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	attemptID, ok := parseIDParam(c, "attemptID")
	if !ok {
		return
	}
	var body submitRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	attempt, err := h.svc.SubmitAttempt(c.Request.Context(), userID, attemptID, body.Answers)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempt": attempt})
}

// Attempts lists the user's attempts, optionally for one mock test.
func (h *MockTestHandler) Attempts(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var mockTestID uint64
	if raw := c.Query("mock_test_id"); raw != "" {
		parsed, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			internalhttp.RespondError(c, entitlement.Invalid("mock_test_id", "must be a number"))
			return
		}
		mockTestID = parsed
	}
	rows, err := h.svc.ListAttempts(c.Request.Context(), userID, mockTestID)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": rows})
}

// Attempt returns one attempt with its question paper.
func (h *MockTestHandler) Attempt(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	attemptID, ok := parseIDParam(c, "attemptID")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var attempt models.Attempt
	if errFind := h.db.WithContext(ctx).Where("id = ? AND user_id = ?", attemptID, userID).First(&attempt).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			internalhttp.RespondError(c, entitlement.ErrNotFound)
			return
		}
		internalhttp.RespondError(c, errFind)
		return
	}
	var mt models.MockTest
	if errFind := h.db.WithContext(ctx).First(&mt, attempt.MockTestID).Error; errFind != nil {
		internalhttp.RespondError(c, errFind)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attempt":   attempt,
		"mock_test": toMockTestDTO(&mt),
		"questions": paperFor(mt.Questions),
	})
}

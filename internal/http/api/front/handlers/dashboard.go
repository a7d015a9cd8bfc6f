package handlers

import (
	"net/http"
	"time"

	"github.com/coachline/coachline/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DashboardHandler serves the student's own summary.
type DashboardHandler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db, now: time.Now}
}

// kpiResponse defines the KPI response payload.
type kpiResponse struct {
	ActiveProducts     int64           `json:"active_products"`
	TotalSpent         decimal.Decimal `json:"total_spent"`
	MtdAttempts        int64           `json:"mtd_attempts"`
	AttemptsTrend      float64         `json:"attempts_trend"`
	AvgScorePercent    float64         `json:"avg_score_percent"`
	RegisteredTests    int64           `json:"registered_tests"`
	InProgressAttempts int64           `json:"in_progress_attempts"`
}

// KPI returns the signed-in student's headline numbers.
func (h *DashboardHandler) KPI(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	db := h.db.WithContext(ctx)

	now := h.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	var out kpiResponse
	if errCount := db.Model(&models.ProductAccess{}).
		Where("user_id = ? AND (expires_at IS NULL OR expires_at > ?)", userID, now).
		Count(&out.ActiveProducts).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query access failed"})
		return
	}

	var amounts []decimal.Decimal
	if errPluck := db.Model(&models.Purchase{}).Where("user_id = ?", userID).Pluck("amount", &amounts).Error; errPluck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query purchases failed"})
		return
	}
	out.TotalSpent = decimal.Zero
	for _, amount := range amounts {
		out.TotalSpent = out.TotalSpent.Add(amount)
	}

	var lastMonthAttempts int64
	db.Model(&models.Attempt{}).
		Where("user_id = ? AND started_at >= ?", userID, monthStart).
		Count(&out.MtdAttempts)
	db.Model(&models.Attempt{}).
		Where("user_id = ? AND started_at >= ? AND started_at < ?", userID, lastMonthStart, monthStart).
		Count(&lastMonthAttempts)
	out.AttemptsTrend = calcTrend(float64(lastMonthAttempts), float64(out.MtdAttempts))

	var scores struct {
		Score    int64
		MaxScore int64
	}
	db.Model(&models.Attempt{}).
		Select("COALESCE(SUM(score), 0) AS score, COALESCE(SUM(max_score), 0) AS max_score").
		Where("user_id = ? AND submitted_at IS NOT NULL", userID).
		Scan(&scores)
	if scores.MaxScore > 0 {
		out.AvgScorePercent = float64(scores.Score) / float64(scores.MaxScore) * 100
	}

	db.Model(&models.Registration{}).Where("user_id = ?", userID).Count(&out.RegisteredTests)
	db.Model(&models.Attempt{}).
		Where("user_id = ? AND submitted_at IS NULL", userID).
		Count(&out.InProgressAttempts)

	c.JSON(http.StatusOK, out)
}

// scorePoint is one submitted attempt on the score history chart.
type scorePoint struct {
	AttemptID   uint64    `json:"attempt_id"`
	MockTestID  uint64    `json:"mock_test_id"`
	Title       string    `json:"title"`
	SubmittedAt time.Time `json:"submitted_at"`
	Percent     float64   `json:"percent"`
}

// ScoreHistory lists the student's last submitted attempts, oldest first.
func (h *DashboardHandler) ScoreHistory(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var rows []struct {
		ID          uint64
		MockTestID  uint64
		Title       string
		SubmittedAt time.Time
		Score       int
		MaxScore    int
	}
	if errFind := h.db.WithContext(c.Request.Context()).
		Table("attempts").
		Select("attempts.id, attempts.mock_test_id, mock_tests.title, attempts.submitted_at, attempts.score, attempts.max_score").
		Joins("JOIN mock_tests ON mock_tests.id = attempts.mock_test_id").
		Where("attempts.user_id = ? AND attempts.submitted_at IS NOT NULL", userID).
		Order("attempts.submitted_at DESC, attempts.id DESC").
		Limit(20).
		Scan(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query attempts failed"})
		return
	}

	points := make([]scorePoint, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		point := scorePoint{
			AttemptID:   row.ID,
			MockTestID:  row.MockTestID,
			Title:       row.Title,
			SubmittedAt: row.SubmittedAt,
		}
		if row.MaxScore > 0 {
			point.Percent = float64(row.Score) / float64(row.MaxScore) * 100
		}
		points = append(points, point)
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

// calcTrend returns percent change from prev to current.
func calcTrend(prev, current float64) float64 {
	if prev == 0 {
		if current > 0 {
			return 100.0
		}
		return 0.0
	}
	return (current - prev) / prev * 100
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coachline/coachline/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DashboardHandler serves admin dashboard analytics endpoints.
type DashboardHandler struct {
	db *gorm.DB // Database handle for sales analytics.
}

// NewDashboardHandler constructs a dashboard handler with database access.
func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// kpiResponse defines the KPI response payload.
type kpiResponse struct {
	TodayRevenue    decimal.Decimal  `json:"today_revenue"`     // Revenue from purchases today.
	RevenueTrend    float64          `json:"revenue_trend"`     // Trend vs yesterday.
	TodayPurchases  int64            `json:"today_purchases"`   // Purchases today.
	MtdRevenue      decimal.Decimal  `json:"mtd_revenue"`       // Month-to-date revenue.
	MtdRevenueTrend float64          `json:"mtd_revenue_trend"` // Trend vs the same span last month.
	NewStudents     int64            `json:"new_students"`      // Students registered today.
	StudentsTrend   float64          `json:"students_trend"`    // Trend vs yesterday.
	TodayAttempts   int64            `json:"today_attempts"`    // Mock test attempts started today.
	OrdersByStatus  map[string]int64 `json:"orders_by_status"`  // Open and closed order counts.
}

type revenueRow struct {
	Revenue decimal.Decimal
	Count   int64
}

// revenueBetween sums purchase amounts in [from, to).
func (h *DashboardHandler) revenueBetween(c *gin.Context, from, to time.Time) revenueRow {
	var row revenueRow
	h.db.WithContext(c.Request.Context()).Model(&models.Purchase{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Select("COALESCE(SUM(amount), 0) AS revenue, COUNT(*) AS count").
		Scan(&row)
	return row
}

func (h *DashboardHandler) countBetween(c *gin.Context, model any, column string, from, to time.Time, extra ...any) int64 {
	var count int64
	q := h.db.WithContext(c.Request.Context()).Model(model).
		Where(column+" >= ? AND "+column+" < ?", from, to)
	if len(extra) == 2 {
		q = q.Where(extra[0], extra[1])
	}
	q.Count(&count)
	return count
}

// KPI returns sales and activity numbers for today and the current month.
func (h *DashboardHandler) KPI(c *gin.Context) {
	loc := time.Local
	now := time.Now().In(loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	todayRevenue := h.revenueBetween(c, today, tomorrow)
	yesterdayRevenue := h.revenueBetween(c, yesterday, today)
	mtd := h.revenueBetween(c, monthStart, tomorrow)

	lastMonthStart := monthStart.AddDate(0, -1, 0)
	lastMonthSameDay := lastMonthStart.AddDate(0, 0, now.Day())
	if lastMonthSameDay.After(monthStart) {
		lastMonthSameDay = monthStart
	}
	lastMtd := h.revenueBetween(c, lastMonthStart, lastMonthSameDay)

	studentFilter := []any{"role = ?", models.RoleStudent}
	newStudents := h.countBetween(c, &models.User{}, "created_at", today, tomorrow, studentFilter...)
	yesterdayStudents := h.countBetween(c, &models.User{}, "created_at", yesterday, today, studentFilter...)
	attempts := h.countBetween(c, &models.Attempt{}, "started_at", today, tomorrow)

	var statusRows []struct {
		Status string
		Count  int64
	}
	h.db.WithContext(c.Request.Context()).Model(&models.PaymentOrder{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&statusRows)
	byStatus := make(map[string]int64, len(statusRows))
	for _, row := range statusRows {
		byStatus[row.Status] = row.Count
	}

	c.JSON(http.StatusOK, kpiResponse{
		TodayRevenue:    todayRevenue.Revenue,
		RevenueTrend:    calcTrend(yesterdayRevenue.Revenue.InexactFloat64(), todayRevenue.Revenue.InexactFloat64()),
		TodayPurchases:  todayRevenue.Count,
		MtdRevenue:      mtd.Revenue,
		MtdRevenueTrend: calcTrend(lastMtd.Revenue.InexactFloat64(), mtd.Revenue.InexactFloat64()),
		NewStudents:     newStudents,
		StudentsTrend:   calcTrend(float64(yesterdayStudents), float64(newStudents)),
		TodayAttempts:   attempts,
		OrdersByStatus:  byStatus,
	})
}

// TopProducts ranks products by revenue over the last days (default 30).
func (h *DashboardHandler) TopProducts(c *gin.Context) {
	days := 30
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 && parsed <= 366 {
			days = parsed
		}
	}
	since := time.Now().AddDate(0, 0, -days)

	var rows []struct {
		ProductID uint64          `json:"product_id"`
		Title     string          `json:"title"`
		Purchases int64           `json:"purchases"`
		Revenue   decimal.Decimal `json:"revenue"`
	}
	if errScan := h.db.WithContext(c.Request.Context()).
		Table("purchases").
		Joins("JOIN products ON products.id = purchases.product_id").
		Where("purchases.created_at >= ?", since).
		Select("purchases.product_id AS product_id, products.title AS title, COUNT(*) AS purchases, COALESCE(SUM(purchases.amount), 0) AS revenue").
		Group("purchases.product_id, products.title").
		Order("revenue DESC").
		Limit(10).
		Scan(&rows).Error; errScan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "products": rows})
}

func calcTrend(prev, current float64) float64 {
	if prev == 0 {
		if current > 0 {
			return 100.0
		}
		return 0.0
	}
	return (current - prev) / prev * 100
}

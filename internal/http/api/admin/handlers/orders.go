package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/coachline/coachline/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// OrderHandler exposes payment orders and purchases read-only.
type OrderHandler struct {
	db *gorm.DB
}

// NewOrderHandler constructs an order handler.
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

// userFilter reads an optional user_id query parameter.
func userFilter(c *gin.Context) (uint64, bool) {
	raw := strings.TrimSpace(c.Query("user_id"))
	if raw == "" {
		return 0, true
	}
	id, errParse := strconv.ParseUint(raw, 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return 0, false
	}
	return id, true
}

// Orders lists payment orders filtered by status and user.
func (h *OrderHandler) Orders(c *gin.Context) {
	userID, ok := userFilter(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	q := h.db.WithContext(c.Request.Context()).Model(&models.PaymentOrder{})
	if userID > 0 {
		q = q.Where("user_id = ?", userID)
	}
	if rawStatus := strings.ToUpper(strings.TrimSpace(c.Query("status"))); rawStatus != "" {
		switch status := models.OrderStatus(rawStatus); status {
		case models.OrderStatusCreated, models.OrderStatusAuthorized, models.OrderStatusVerified,
			models.OrderStatusFailed, models.OrderStatusCancelled:
			q = q.Where("status = ?", status)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count orders failed"})
		return
	}
	var rows []models.PaymentOrder
	if errFind := q.Preload("Product").
		Preload("User").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list orders failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": rows, "total": total})
}

// Purchases lists finalized purchases.
func (h *OrderHandler) Purchases(c *gin.Context) {
	userID, ok := userFilter(c)
	if !ok {
		return
	}
	limit, offset := pageParams(c)
	q := h.db.WithContext(c.Request.Context()).Model(&models.Purchase{})
	if userID > 0 {
		q = q.Where("user_id = ?", userID)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count purchases failed"})
		return
	}
	var rows []models.Purchase
	if errFind := q.Preload("Product").Order("id DESC").Limit(limit).Offset(offset).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list purchases failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": rows, "total": total})
}

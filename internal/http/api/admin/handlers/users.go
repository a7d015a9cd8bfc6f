package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	dbutil "github.com/coachline/coachline/internal/db"
	"github.com/coachline/coachline/internal/entitlement"
	"github.com/coachline/coachline/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UserHandler manages student and admin accounts.
type UserHandler struct {
	db *gorm.DB
}

// NewUserHandler constructs a user handler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// List returns users filtered by search text and role.
func (h *UserHandler) List(c *gin.Context) {
	limit, offset := pageParams(c)
	q := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		cond, args := dbutil.ContainsAny(h.db, search, "username", "name", "email")
		q = q.Where(cond, args...)
	}
	if rawRole := strings.TrimSpace(c.Query("role")); rawRole != "" {
		role, ok := models.ParseRole(rawRole)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		q = q.Where("role = ?", role)
	}

	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count users failed"})
		return
	}
	var rows []models.User
	if errFind := q.Order("id DESC").Limit(limit).Offset(offset).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": rows, "total": total})
}

// Update toggles account flags and role.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	adminID, _ := readAdminIDFromContext(c)
	var body struct {
		Active   *bool   `json:"active"`
		Disabled *bool   `json:"disabled"`
		Role     *string `json:"role"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if body.Active != nil {
		updates["active"] = *body.Active
	}
	if body.Disabled != nil {
		if *body.Disabled && id == adminID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot disable yourself"})
			return
		}
		updates["disabled"] = *body.Disabled
	}
	if body.Role != nil {
		role, okRole := models.ParseRole(*body.Role)
		if !okRole {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		if role != models.RoleAdmin && id == adminID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot demote yourself"})
			return
		}
		updates["role"] = role
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	log.WithFields(log.Fields{"admin_id": adminID, "user_id": id, "updates": updates}).Info("admin: user updated")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GrantAccess gives a user access to a product without payment.
func (h *UserHandler) GrantAccess(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body struct {
		ProductID uint64 `json:"product_id"`
	}
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.ProductID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}

	ctx := c.Request.Context()
	var user models.User
	if errFind := h.db.WithContext(ctx).Select("id").First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var product models.Product
	if errFind := h.db.WithContext(ctx).First(&product, body.ProductID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var access *models.ProductAccess
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		granted, errGrant := entitlement.GrantAccess(tx, user.ID, &product, nil, time.Now().UTC())
		access = granted
		return errGrant
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "grant access failed"})
		return
	}
	adminID, _ := readAdminIDFromContext(c)
	log.WithFields(log.Fields{"admin_id": adminID, "user_id": user.ID, "product_id": product.ID}).Info("admin: access granted")
	c.JSON(http.StatusOK, access)
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/coachline/coachline/internal/config"
	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler handles admin authentication endpoints.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// loginRequest defines the request body for admin login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Code     string `json:"code"` // TOTP code, required once enrolled.
}

// Login authenticates an admin. Admins with TOTP enrolled must send a valid code.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	var admin models.User
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("username = ? AND role = ?", username, models.RoleAdmin).
		First(&admin).Error; errFind != nil {
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !security.CheckPassword(admin.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !admin.CanSignIn() {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin account is disabled"})
		return
	}

	if secret := strings.TrimSpace(admin.TOTPSecret); secret != "" {
		code := strings.TrimSpace(body.Code)
		if code == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "mfa required"})
			return
		}
		if !totp.Validate(code, secret) {
			log.WithField("admin", admin.Username).Warn("admin login: invalid totp code")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
			return
		}
	}

	h.respondWithAdminToken(c, admin)
}

// respondWithAdminToken issues a JWT for the admin and writes the login payload.
func (h *AuthHandler) respondWithAdminToken(c *gin.Context, admin models.User) {
	token, errToken := security.GenerateToken(h.jwtCfg.Secret, admin.ID, admin.Username, admin.Role, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"admin_id": admin.ID,
		"username": admin.Username,
		"role":     admin.Role,
		"token":    token,
	})
}

// Me returns the signed-in admin.
func (h *AuthHandler) Me(c *gin.Context) {
	adminID, ok := readAdminIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var admin models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, adminID).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"admin_id":    admin.ID,
		"username":    admin.Username,
		"name":        admin.Name,
		"email":       admin.Email,
		"role":        admin.Role,
		"mfa_enabled": strings.TrimSpace(admin.TOTPSecret) != "",
	})
}

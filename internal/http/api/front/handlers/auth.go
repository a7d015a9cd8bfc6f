package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coachline/coachline/internal/config"
	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/referral"
	"github.com/coachline/coachline/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler handles student registration and login.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// registerRequest defines the request body for student registration.
type registerRequest struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
}

// Register creates a student account. A valid referral code is remembered;
// an unknown one is ignored rather than rejected.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username"})
		return
	}
	if errPassword := security.ValidatePassword(body.Password); errPassword != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errPassword.Error()})
		return
	}

	ctx := c.Request.Context()
	var exists models.User
	if errCheck := h.db.WithContext(ctx).Where("username = ?", username).First(&exists).Error; errCheck == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	} else if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	code, errCode := referral.NewCode(ctx, h.db)
	if errCode != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "allocate referral code failed"})
		return
	}

	referredBy := ""
	if referrer, errResolve := referral.Resolve(ctx, h.db, body.ReferralCode); errResolve != nil {
		log.WithError(errResolve).Warn("register: resolve referral code failed")
	} else if referrer != nil {
		referredBy = referrer.ReferralCode
	}

	now := time.Now().UTC()
	user := models.User{
		Username:       username,
		Name:           strings.TrimSpace(body.Name),
		Email:          strings.TrimSpace(body.Email),
		Phone:          strings.TrimSpace(body.Phone),
		Password:       hash,
		Role:           models.RoleStudent,
		Active:         true,
		ReferralCode:   code,
		ReferredByCode: referredBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if errCreate := h.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"referral_code": user.ReferralCode,
		"referred_by":   user.ReferredByCode,
	})
}

// loginRequest defines the request body for login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates a student and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing username or password"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", username).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !security.CheckPassword(user.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !user.CanSignIn() {
		c.JSON(http.StatusForbidden, gin.H{"error": "user disabled"})
		return
	}
	// Admin tokens come only from /v0/admin/login, which enforces TOTP.
	if user.Role == models.RoleAdmin {
		log.WithField("user_id", user.ID).Warn("front login refused for admin account")
		c.JSON(http.StatusForbidden, gin.H{"error": "admin accounts sign in at /v0/admin/login"})
		return
	}

	h.respondWithUserToken(c, user)
}

// respondWithUserToken issues a JWT for user and writes the login payload.
func (h *AuthHandler) respondWithUserToken(c *gin.Context, user models.User) {
	token, errToken := security.GenerateToken(h.jwtCfg.Secret, user.ID, user.Username, user.Role, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  user.ID,
		"username": user.Username,
		"name":     user.Name,
		"role":     user.Role,
		"token":    token,
	})
}

package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// pendingTOTPTTL bounds how long an unconfirmed secret is kept.
const pendingTOTPTTL = 10 * time.Minute

// pendingTOTP holds secrets handed out by PrepareTOTP until the admin proves
// possession with a code.
type pendingTOTP struct {
	mu    sync.Mutex
	items map[uint64]pendingSecret
	now   func() time.Time
}

type pendingSecret struct {
	secret  string
	expires time.Time
}

func newPendingTOTP(now func() time.Time) *pendingTOTP {
	return &pendingTOTP{items: make(map[uint64]pendingSecret), now: now}
}

func (p *pendingTOTP) put(adminID uint64, secret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for id, entry := range p.items {
		if now.After(entry.expires) {
			delete(p.items, id)
		}
	}
	p.items[adminID] = pendingSecret{secret: secret, expires: now.Add(pendingTOTPTTL)}
}

// take returns and removes the pending secret when code matches it. The
// secret stays pending after a wrong code so the admin can retry.
func (p *pendingTOTP) take(adminID uint64, code string) (secret string, found bool, valid bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.items[adminID]
	if !ok {
		return "", false, false
	}
	if p.now().After(entry.expires) {
		delete(p.items, adminID)
		return "", false, false
	}
	if !totp.Validate(code, entry.secret) {
		return "", true, false
	}
	delete(p.items, adminID)
	return entry.secret, true, true
}

func (p *pendingTOTP) drop(adminID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, adminID)
}

// MFAHandler handles TOTP enrollment for admins.
type MFAHandler struct {
	db      *gorm.DB
	pending *pendingTOTP
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(db *gorm.DB) *MFAHandler {
	return &MFAHandler{db: db, pending: newPendingTOTP(time.Now)}
}

// loadAdmin reads the signed-in admin, writing the error response itself.
func (h *MFAHandler) loadAdmin(c *gin.Context) (*models.User, bool) {
	adminID, ok := readAdminIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
		return nil, false
	}
	var admin models.User
	if errFind := h.db.WithContext(c.Request.Context()).
		Select("id", "username", "email", "totp_secret").
		First(&admin, adminID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return nil, false
	}
	return &admin, true
}

// Status returns whether the admin has TOTP enabled.
func (h *MFAHandler) Status(c *gin.Context) {
	admin, ok := h.loadAdmin(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"totp_enabled": strings.TrimSpace(admin.TOTPSecret) != ""})
}

// PrepareTOTP issues a fresh secret and QR code. Nothing changes on the
// account until ConfirmTOTP.
func (h *MFAHandler) PrepareTOTP(c *gin.Context) {
	admin, ok := h.loadAdmin(c)
	if !ok {
		return
	}
	if strings.TrimSpace(admin.TOTPSecret) != "" {
		c.JSON(http.StatusConflict, gin.H{"error": "totp already enabled"})
		return
	}

	account := admin.Username
	if email := strings.TrimSpace(admin.Email); email != "" {
		account = email
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      settings.String(settings.SiteNameKey, settings.DefaultSiteName),
		AccountName: account,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate totp secret failed"})
		return
	}
	h.pending.put(admin.ID, key.Secret())

	qrImage := ""
	if img, errImage := key.Image(220, 220); errImage == nil {
		var buf bytes.Buffer
		if errEncode := png.Encode(&buf, img); errEncode == nil {
			qrImage = "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"secret":      key.Secret(),
		"otpauth_url": key.URL(),
		"qr_image":    qrImage,
		"expires_in":  int(pendingTOTPTTL.Seconds()),
	})
}

// totpCodeRequest carries a six-digit authenticator code.
type totpCodeRequest struct {
	Code string `json:"code"`
}

func bindTOTPCode(c *gin.Context) (string, bool) {
	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return "", false
	}
	code := strings.TrimSpace(body.Code)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code"})
		return "", false
	}
	return code, true
}

// ConfirmTOTP stores the pending secret once the admin proves possession.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	admin, ok := h.loadAdmin(c)
	if !ok {
		return
	}
	code, ok := bindTOTPCode(c)
	if !ok {
		return
	}

	secret, found, valid := h.pending.take(admin.ID, code)
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "totp setup expired"})
		return
	}
	if !valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", admin.ID).
		Updates(map[string]any{"totp_secret": secret, "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	log.WithField("admin_id", admin.ID).Info("admin totp enabled")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DisableTOTP removes the admin's secret. A current code is required so a
// stolen session token alone cannot turn MFA off.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	admin, ok := h.loadAdmin(c)
	if !ok {
		return
	}
	h.pending.drop(admin.ID)
	if strings.TrimSpace(admin.TOTPSecret) == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	code, ok := bindTOTPCode(c)
	if !ok {
		return
	}
	if !totp.Validate(code, admin.TOTPSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid code"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", admin.ID).
		Updates(map[string]any{"totp_secret": "", "updated_at": time.Now().UTC()}).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	log.WithField("admin_id", admin.ID).Info("admin totp disabled")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

package handlers

import (
	"net/http"

	"github.com/coachline/coachline/internal/checkout"
	"github.com/coachline/coachline/internal/settings"
	"github.com/gin-gonic/gin"
)

// publicConfigResponse is what the front UI needs before anyone signs in.
type publicConfigResponse struct {
	SiteName              string  `json:"site_name"`
	BuyNowURL             string  `json:"buy_now_url,omitempty"`
	Currency              string  `json:"currency"`
	PaymentKeyID          string  `json:"payment_key_id,omitempty"`
	FriendDiscountPercent float64 `json:"friend_discount_percent"`
	DefaultFreeAttempts   int     `json:"default_free_attempts"`
}

// ConfigHandler serves public site configuration.
type ConfigHandler struct {
	checkout *checkout.Service
}

// NewConfigHandler constructs a ConfigHandler. svc may be nil, in which case
// the default currency is reported and no payment key.
func NewConfigHandler(svc *checkout.Service) *ConfigHandler {
	return &ConfigHandler{checkout: svc}
}

// Get returns public configuration read from the settings snapshot.
func (h *ConfigHandler) Get(c *gin.Context) {
	resp := publicConfigResponse{
		SiteName:              settings.String(settings.SiteNameKey, settings.DefaultSiteName),
		BuyNowURL:             settings.String(settings.BuyNowURLKey, ""),
		Currency:              checkout.DefaultCurrency,
		FriendDiscountPercent: settings.Float(settings.FriendDiscountPercentKey, settings.DefaultFriendDiscountPercent),
		DefaultFreeAttempts:   settings.Int(settings.DefaultFreeAttemptsKey, settings.DefaultFreeAttempts),
	}
	if h.checkout != nil {
		resp.Currency = h.checkout.Currency()
		resp.PaymentKeyID = h.checkout.GatewayKeyID()
	}
	c.JSON(http.StatusOK, resp)
}

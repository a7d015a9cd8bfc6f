package handlers

import (
	"net/http"

	"github.com/coachline/coachline/internal/checkout"
	internalhttp "github.com/coachline/coachline/internal/http"
	"github.com/gin-gonic/gin"
)

// CheckoutHandler exposes pricing previews and the payment order lifecycle.
type CheckoutHandler struct {
	svc *checkout.Service
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(svc *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{svc: svc}
}

// Preview prices a product for the current user.
func (h *CheckoutHandler) Preview(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var body checkout.PreviewRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	q, err := h.svc.Preview(c.Request.Context(), userID, body)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": q})
}

// CreateOrder opens a gateway order, or grants access when nothing is due.
func (h *CheckoutHandler) CreateOrder(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var body checkout.PreviewRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	result, err := h.svc.CreateOrder(c.Request.Context(), userID, body)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	status := http.StatusCreated
	if result.Free {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// authorizeRequest is the client callback after the gateway widget closes.
type authorizeRequest struct {
	PaymentID string `json:"payment_id"`
}

// Authorize records that the gateway reported a payment for the order.
func (h *CheckoutHandler) Authorize(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var body authorizeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	order, err := h.svc.MarkAuthorized(c.Request.Context(), userID, c.Param("id"), body.PaymentID)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// Verify checks the gateway signature and records the purchase.
func (h *CheckoutHandler) Verify(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var body checkout.VerifyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	purchase, err := h.svc.VerifyPayment(c.Request.Context(), userID, body)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchase": purchase})
}

// cancelRequest closes an open order.
type cancelRequest struct {
	Failed bool   `json:"failed"`
	Reason string `json:"reason"`
}

// Cancel closes an open order as cancelled or failed.
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var body cancelRequest
	if c.Request.ContentLength != 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	order, err := h.svc.Cancel(c.Request.Context(), userID, c.Param("id"), body.Failed, body.Reason)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// Purchase finalizes a checkout against a verified order.
func (h *CheckoutHandler) Purchase(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var body checkout.PurchaseRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	purchase, err := h.svc.Purchase(c.Request.Context(), userID, body)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchase": purchase})
}

// Purchases lists the user's purchases.
func (h *CheckoutHandler) Purchases(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListPurchases(c.Request.Context(), userID)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": rows})
}

// Orders lists the user's payment orders.
func (h *CheckoutHandler) Orders(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	rows, err := h.svc.ListOrders(c.Request.Context(), userID)
	if err != nil {
		internalhttp.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": rows})
}

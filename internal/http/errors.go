package http

import (
	"errors"
	"net/http"

	"github.com/coachline/coachline/internal/entitlement"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Error codes returned alongside the message so clients can branch without parsing text.
const (
	CodeNotFound                  = "NOT_FOUND"
	CodeRegistrationRequired      = "REGISTRATION_REQUIRED"
	CodeAttemptsExhausted         = "ATTEMPTS_EXHAUSTED"
	CodePaymentRequired           = "PAYMENT_REQUIRED"
	CodePaymentVerificationFailed = "PAYMENT_VERIFICATION_FAILED"
	CodeValidation                = "VALIDATION_ERROR"
	CodeInternal                  = "INTERNAL"
)

// StatusFor maps a domain error to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, entitlement.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, entitlement.ErrRegistrationRequired):
		return http.StatusForbidden, CodeRegistrationRequired
	case errors.Is(err, entitlement.ErrAttemptsExhausted):
		return http.StatusConflict, CodeAttemptsExhausted
	case errors.Is(err, entitlement.ErrPaymentRequired):
		return http.StatusPaymentRequired, CodePaymentRequired
	case errors.Is(err, entitlement.ErrPaymentVerificationFailed):
		return http.StatusBadRequest, CodePaymentVerificationFailed
	case errors.Is(err, entitlement.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// RespondError writes err as a JSON error body. Unknown errors are logged and
// reported with a generic message.
func RespondError(c *gin.Context, err error) {
	status, code := StatusFor(err)
	body := gin.H{"error": err.Error(), "code": code}

	var exhausted *entitlement.AttemptsExhaustedError
	if errors.As(err, &exhausted) {
		body["redirect_url"] = exhausted.RedirectURL
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		body["error"] = "internal error"
	}
	c.AbortWithStatusJSON(status, body)
}

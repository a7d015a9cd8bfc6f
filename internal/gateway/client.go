// Package gateway talks to the hosted payment gateway: it opens orders and
// verifies the signed payment response the browser receives.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the gateway REST endpoint.
const DefaultBaseURL = "https://api.razorpay.com/v1"

// ErrNotConfigured means no key pair was supplied.
var ErrNotConfigured = errors.New("gateway: credentials not configured")

// Order is the gateway's view of an opened order.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Client calls the gateway order API with basic auth.
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a gateway client; an empty baseURL uses DefaultBaseURL.
func NewClient(keyID, keySecret, baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// KeyID is the public key the browser checkout widget needs.
func (c *Client) KeyID() string {
	return c.keyID
}

// createOrderRequest is the POST /orders body.
type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// apiError is the gateway error envelope.
type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder opens an order for amountMinor minor units.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*Order, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, ErrNotConfigured
	}
	if amountMinor <= 0 {
		return nil, fmt.Errorf("gateway: create order: non-positive amount %d", amountMinor)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(createOrderRequest{Amount: amountMinor, Currency: currency, Receipt: receipt}); err != nil {
		return nil, fmt.Errorf("gateway: encode order: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", &buf)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: create order: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("gateway: create order: %s: %s", resp.Status, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("gateway: create order: unexpected status %s", resp.Status)
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("gateway: decode order: %w", err)
	}
	if order.ID == "" {
		return nil, errors.New("gateway: create order: empty order id")
	}
	return &order, nil
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" under secret.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the payment signature in constant time.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	if c.keySecret == "" || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := Sign(c.keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_1", user)
		assert.Equal(t, "secret_1", pass)

		var body createOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(64000), body.Amount)
		assert.Equal(t, "INR", body.Currency)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Order{ID: "order_abc", Amount: body.Amount, Currency: body.Currency, Receipt: body.Receipt, Status: "created"})
	}))
	defer srv.Close()

	client := NewClient("key_1", "secret_1", srv.URL)
	order, err := client.CreateOrder(context.Background(), 64000, "INR", "rcpt_1")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, "rcpt_1", order.Receipt)
	assert.Equal(t, "key_1", client.KeyID())
}

func TestCreateOrderSurfacesGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", "s", srv.URL).CreateOrder(context.Background(), 1, "INR", "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount too small")
}

func TestCreateOrderRequiresCredentials(t *testing.T) {
	_, err := NewClient("", "", "").CreateOrder(context.Background(), 100, "INR", "r")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestVerifySignature(t *testing.T) {
	client := NewClient("k", "shh", "")
	sig := Sign("shh", "order_1", "pay_1")

	assert.True(t, client.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, client.VerifySignature("order_1", "pay_2", sig))
	assert.False(t, client.VerifySignature("order_1", "pay_1", Sign("other", "order_1", "pay_1")))
	assert.False(t, client.VerifySignature("order_1", "pay_1", ""))
}

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePurchaseCompleted(t *testing.T) {
	orderID := uint64(11)
	msg, err := Encode(PurchaseCompleted{
		PurchaseID:     5,
		UserID:         2,
		ProductID:      3,
		PaymentOrderID: &orderID,
		Amount:         decimal.RequireFromString("640"),
		Currency:       "INR",
		OccurredAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "640", decoded["amount"])
	assert.Equal(t, float64(11), decoded["payment_order_id"])
	assert.NotContains(t, decoded, "referral_code")
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Publish(context.Background(), RoutingPurchaseCompleted, PurchaseCompleted{PurchaseID: 1}))
	got := r.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, RoutingPurchaseCompleted, got[0].RoutingKey)
}

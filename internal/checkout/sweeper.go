package checkout

import (
	"context"
	"time"

	"github.com/coachline/coachline/internal/metrics"
	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultSweepInterval = 5 * time.Minute

// OrderSweeper periodically cancels CREATED orders nobody paid for.
type OrderSweeper struct {
	db       *gorm.DB
	interval time.Duration
	now      func() time.Time
}

// NewOrderSweeper builds a sweeper; a non-positive interval uses five minutes.
func NewOrderSweeper(db *gorm.DB, interval time.Duration) *OrderSweeper {
	if db == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &OrderSweeper{db: db, interval: interval, now: time.Now}
}

// Start launches the sweep loop in a background goroutine.
func (s *OrderSweeper) Start(ctx context.Context) {
	if s == nil {
		return
	}
	go s.run(ctx)
	log.Infof("order sweeper started (interval=%s)", s.interval)
}

func (s *OrderSweeper) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.SweepOnce(ctx); err != nil {
			log.WithError(err).Warn("order sweeper: sweep failed")
		}
		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// SweepOnce cancels CREATED orders older than ORDER_TTL_MINUTES and reports how many.
func (s *OrderSweeper) SweepOnce(ctx context.Context) (int64, error) {
	ttlMinutes := settings.Int(settings.OrderTTLMinutesKey, settings.DefaultOrderTTLMinutes)
	if ttlMinutes <= 0 {
		return 0, nil
	}
	now := s.now().UTC()
	cutoff := now.Add(-time.Duration(ttlMinutes) * time.Minute)

	res := s.db.WithContext(ctx).Model(&models.PaymentOrder{}).
		Where("status = ? AND created_at < ?", models.OrderStatusCreated, cutoff).
		Updates(map[string]any{
			"status":         models.OrderStatusCancelled,
			"failure_reason": "expired",
			"updated_at":     now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		metrics.CheckoutOrders.WithLabelValues("EXPIRED").Add(float64(res.RowsAffected))
		log.Infof("order sweeper: cancelled %d stale orders (cutoff=%s)", res.RowsAffected, cutoff.Format(time.RFC3339))
	}
	return res.RowsAffected, nil
}

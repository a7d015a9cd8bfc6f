// Package quota gates mock-test attempts: paid users go straight through,
// everyone else spends one free attempt per start.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coachline/coachline/internal/entitlement"
	"github.com/coachline/coachline/internal/metrics"
	"github.com/coachline/coachline/internal/models"
	"github.com/coachline/coachline/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// fallbackBuyNowURL is used when neither settings nor config name a target.
const fallbackBuyNowURL = "/plans"

// Service tracks registrations and attempts.
type Service struct {
	db        *gorm.DB
	buyNowURL string
	now       func() time.Time
}

// NewService builds a quota Service. buyNowURL is the configured redirect
// target when the BUY_NOW_URL setting is unset.
func NewService(db *gorm.DB, buyNowURL string) *Service {
	return &Service{db: db, buyNowURL: strings.TrimSpace(buyNowURL), now: time.Now}
}

// loadMockTest returns an active mock test.
func (s *Service) loadMockTest(ctx context.Context, mockTestID uint64) (*models.MockTest, error) {
	if mockTestID == 0 {
		return nil, entitlement.Invalid("mock_test_id", "is required")
	}
	var mt models.MockTest
	if errFind := s.db.WithContext(ctx).Where("id = ? AND active = ?", mockTestID, true).First(&mt).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, entitlement.ErrNotFound
		}
		return nil, fmt.Errorf("quota: load mock test: %w", errFind)
	}
	return &mt, nil
}

// findRegistration returns the user's registration or ErrRegistrationRequired.
func (s *Service) findRegistration(ctx context.Context, userID, mockTestID uint64) (*models.Registration, error) {
	var reg models.Registration
	errFind := s.db.WithContext(ctx).Where("user_id = ? AND mock_test_id = ?", userID, mockTestID).First(&reg).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, entitlement.ErrRegistrationRequired
	}
	if errFind != nil {
		return nil, fmt.Errorf("quota: load registration: %w", errFind)
	}
	return &reg, nil
}

// freeLimit is the mock test's own limit, else the site default.
func freeLimit(mt *models.MockTest) int {
	limit := settings.Int(settings.DefaultFreeAttemptsKey, settings.DefaultFreeAttempts)
	if mt.FreeAttemptLimit != nil {
		limit = *mt.FreeAttemptLimit
	}
	if limit < 0 {
		return 0
	}
	return limit
}

// Register signs the user up for a mock test. Registering twice returns the
// existing row; created reports whether a new row was inserted.
func (s *Service) Register(ctx context.Context, userID, mockTestID uint64) (reg *models.Registration, created bool, err error) {
	mt, err := s.loadMockTest(ctx, mockTestID)
	if err != nil {
		return nil, false, err
	}
	row := models.Registration{UserID: userID, MockTestID: mt.ID, FreeAttemptLimit: freeLimit(mt)}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, false, fmt.Errorf("quota: register: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.WithFields(log.Fields{"user_id": userID, "mock_test_id": mt.ID, "limit": row.FreeAttemptLimit}).Info("quota: registered")
		return &row, true, nil
	}
	existing, err := s.findRegistration(ctx, userID, mt.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// paid reports whether the user holds active access to the mock test's product.
func (s *Service) paid(ctx context.Context, userID uint64, mt *models.MockTest) (bool, error) {
	if mt.ProductID == nil {
		return false, nil
	}
	return entitlement.HasActiveAccess(ctx, s.db, userID, *mt.ProductID, s.now())
}

// RedirectURL is where to send a user who ran out of free attempts.
func (s *Service) RedirectURL(mt *models.MockTest) string {
	target := settings.String(settings.BuyNowURLKey, s.buyNowURL)
	if target == "" {
		target = fallbackBuyNowURL
	}
	productID := ""
	if mt != nil && mt.ProductID != nil {
		productID = strconv.FormatUint(*mt.ProductID, 10)
	}
	return strings.ReplaceAll(target, "{product_id}", productID)
}

// Status summarizes a user's quota for one mock test.
type Status struct {
	MockTestID        uint64 `json:"mock_test_id"`
	Registered        bool   `json:"registered"`
	Paid              bool   `json:"paid"`
	FreeAttemptLimit  int    `json:"free_attempt_limit"`
	UsedAttempts      int    `json:"used_attempts"`
	RemainingAttempts int    `json:"remaining_attempts"`
	BuyNowURL         string `json:"buy_now_url,omitempty"`
}

// Status reports registration and quota state without changing it.
func (s *Service) Status(ctx context.Context, userID, mockTestID uint64) (*Status, error) {
	mt, err := s.loadMockTest(ctx, mockTestID)
	if err != nil {
		return nil, err
	}
	paid, err := s.paid(ctx, userID, mt)
	if err != nil {
		return nil, err
	}
	st := &Status{MockTestID: mt.ID, Paid: paid, FreeAttemptLimit: freeLimit(mt)}
	reg, err := s.findRegistration(ctx, userID, mt.ID)
	switch {
	case errors.Is(err, entitlement.ErrRegistrationRequired):
		st.RemainingAttempts = st.FreeAttemptLimit
	case err != nil:
		return nil, err
	default:
		st.Registered = true
		st.FreeAttemptLimit = reg.FreeAttemptLimit
		st.UsedAttempts = reg.UsedAttempts
		st.RemainingAttempts = reg.RemainingAttempts()
	}
	if !paid && st.RemainingAttempts == 0 {
		st.BuyNowURL = s.RedirectURL(mt)
	}
	return st, nil
}

// StartAttempt opens a new attempt.
//
// Paid users bypass the quota. Others consume one free attempt through a
// conditional increment that runs in the same transaction as the attempt
// insert, so two racing starts at the limit cannot both succeed.
func (s *Service) StartAttempt(ctx context.Context, userID, mockTestID uint64) (*models.Attempt, error) {
	mt, err := s.loadMockTest(ctx, mockTestID)
	if err != nil {
		return nil, err
	}
	reg, err := s.findRegistration(ctx, userID, mt.ID)
	if err != nil {
		return nil, err
	}
	paid, err := s.paid(ctx, userID, mt)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	attempt := models.Attempt{
		RegistrationID: reg.ID,
		UserID:         userID,
		MockTestID:     mt.ID,
		Paid:           paid,
		StartedAt:      now,
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !paid {
			res := tx.Model(&models.Registration{}).
				Where("id = ? AND used_attempts < free_attempt_limit", reg.ID).
				Updates(map[string]any{
					"used_attempts": gorm.Expr("used_attempts + ?", 1),
					"updated_at":    now,
				})
			if res.Error != nil {
				return fmt.Errorf("quota: consume attempt: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return &entitlement.AttemptsExhaustedError{RedirectURL: s.RedirectURL(mt)}
			}
		}
		if errCreate := tx.Create(&attempt).Error; errCreate != nil {
			return fmt.Errorf("quota: create attempt: %w", errCreate)
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, entitlement.ErrAttemptsExhausted) {
			metrics.Attempts.WithLabelValues("exhausted").Inc()
		}
		return nil, errTx
	}
	outcome := "free"
	if paid {
		outcome = "paid"
	}
	metrics.Attempts.WithLabelValues(outcome).Inc()
	return &attempt, nil
}

// Answers maps question id to the chosen option index.
type Answers map[string]int

// SubmitAttempt scores an in-progress attempt against the answer key. An
// attempt can be submitted once.
func (s *Service) SubmitAttempt(ctx context.Context, userID, attemptID uint64, answers Answers) (*models.Attempt, error) {
	var out models.Attempt
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", attemptID, userID).
			First(&out).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return entitlement.ErrNotFound
			}
			return fmt.Errorf("quota: load attempt: %w", errFind)
		}
		if out.SubmittedAt != nil {
			return entitlement.Invalid("attempt_id", "attempt already submitted")
		}

		var mt models.MockTest
		if errFind := tx.First(&mt, out.MockTestID).Error; errFind != nil {
			return fmt.Errorf("quota: load mock test: %w", errFind)
		}
		score, maxScore := Score(mt.Questions, answers)

		stored := datatypes.JSONMap{}
		for id, choice := range answers {
			stored[id] = choice
		}
		now := s.now().UTC()
		if errUpdate := tx.Model(&out).Updates(map[string]any{
			"answers":      stored,
			"score":        score,
			"max_score":    maxScore,
			"submitted_at": now,
		}).Error; errUpdate != nil {
			return fmt.Errorf("quota: save attempt: %w", errUpdate)
		}
		out.Answers = stored
		out.Score = score
		out.MaxScore = maxScore
		out.SubmittedAt = &now
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &out, nil
}

// Score returns marks obtained and marks available. Unanswered questions score zero.
func Score(questions []models.Question, answers Answers) (score, maxScore int) {
	for _, q := range questions {
		marks := q.Marks
		if marks <= 0 {
			marks = 1
		}
		maxScore += marks
		if choice, ok := answers[q.ID]; ok && choice == q.Answer {
			score += marks
		}
	}
	return score, maxScore
}

// ListAttempts returns the user's attempts for a mock test, newest first.
// A zero mockTestID lists attempts across all tests.
func (s *Service) ListAttempts(ctx context.Context, userID, mockTestID uint64) ([]models.Attempt, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if mockTestID != 0 {
		q = q.Where("mock_test_id = ?", mockTestID)
	}
	var rows []models.Attempt
	if errFind := q.Order("started_at DESC, id DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("quota: list attempts: %w", errFind)
	}
	return rows, nil
}

// SetLimit changes a registration's free attempt limit.
func (s *Service) SetLimit(ctx context.Context, registrationID uint64, limit int) (*models.Registration, error) {
	if limit < 0 {
		return nil, entitlement.Invalid("free_attempt_limit", "must not be negative")
	}
	res := s.db.WithContext(ctx).Model(&models.Registration{}).
		Where("id = ?", registrationID).
		Updates(map[string]any{"free_attempt_limit": limit, "updated_at": s.now().UTC()})
	if res.Error != nil {
		return nil, fmt.Errorf("quota: set limit: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, entitlement.ErrNotFound
	}
	var reg models.Registration
	if errFind := s.db.WithContext(ctx).First(&reg, registrationID).Error; errFind != nil {
		return nil, fmt.Errorf("quota: reload registration: %w", errFind)
	}
	return &reg, nil
}

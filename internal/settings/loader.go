package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coachline/coachline/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Refresh reloads all settings from the database into the in-memory snapshot.
//
// Call it at process startup; readers see fallbacks until the first refresh.
func Refresh(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return fmt.Errorf("settings: load: %w", errFind)
	}

	values := make(map[string]json.RawMessage, len(rows))
	newest := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = row.Value
		if row.UpdatedAt.After(newest) {
			newest = row.UpdatedAt
		}
	}

	Store(newest, values)
	return nil
}

// Put upserts one setting and refreshes the snapshot. updatedBy is the admin
// making the change; zero records no author.
func Put(ctx context.Context, db *gorm.DB, key string, value json.RawMessage, updatedBy uint64) error {
	key = strings.TrimSpace(key)
	if !IsKnownKey(key) {
		return fmt.Errorf("settings: unknown key %q", key)
	}
	if !json.Valid(value) {
		return fmt.Errorf("settings: value for %s is not valid json", key)
	}
	row := models.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if updatedBy != 0 {
		row.UpdatedBy = &updatedBy
	}
	if errSave := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
	}).Create(&row).Error; errSave != nil {
		return fmt.Errorf("settings: save %s: %w", key, errSave)
	}
	return Refresh(ctx, db)
}

// Rows returns the stored settings, ordered by key.
func Rows(ctx context.Context, db *gorm.DB) ([]models.Setting, error) {
	var rows []models.Setting
	if errFind := db.WithContext(ctx).Order("key ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("settings: list: %w", errFind)
	}
	return rows, nil
}

package db

import (
	"fmt"

	"github.com/coachline/coachline/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the platform owns.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductAccess{},
		&models.PaymentOrder{},
		&models.Purchase{},
		&models.MockTest{},
		&models.Registration{},
		&models.Attempt{},
		&models.Class{},
		&models.Lesson{},
		&models.Plan{},
		&models.Slider{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}

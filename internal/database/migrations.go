package database

import (
	"gorm.io/gorm"

	"github.com/tripbill/tripbill/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Trip{},
		&models.TripMember{},
		&models.TripInvitation{},
		&models.CacheEntry{},
	)
}

package database

import (
	"gorm.io/gorm"

	"github.com/retroboardhq/retroboard/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Retrospective{},
		&models.RetroItem{},
		&models.ItemGroup{},
		&models.Participant{},
		&models.ActionItem{},
		&models.VoteSubmission{},
	)
}

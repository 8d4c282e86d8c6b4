package database

import (
	"fmt"
	"log/slog"

	"acessonucleo-hub/internal/domain/credentials"
	"acessonucleo-hub/internal/domain/identity"
	"acessonucleo-hub/internal/domain/subscribers"
	"acessonucleo-hub/internal/domain/webhooks"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(dsn string, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("connected and migrated")
	return db, nil
}

// Migrate creates or updates every table the portal owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&identity.Identity{},
		&identity.ResetToken{},
		&subscribers.Subscriber{},
		&subscribers.AuditLog{},
		&credentials.SharedCredential{},
		&webhooks.Event{},
	); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"time"

	"acessonucleo-hub/internal/domain/subscribers"

	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, email, action string) error {
	entry := subscribers.AuditLog{
		UserEmail: subscribers.NormalizeEmail(email),
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&entry).Error
}

// Recent returns the newest entries first, optionally for a single email.
func (r *AuditRepository) Recent(ctx context.Context, email string, limit int) ([]subscribers.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.db.WithContext(ctx).Order("timestamp DESC").Limit(limit)
	if email != "" {
		q = q.Where("usuario_email = ?", subscribers.NormalizeEmail(email))
	}

	var out []subscribers.AuditLog
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

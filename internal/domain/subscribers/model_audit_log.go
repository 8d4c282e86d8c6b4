package subscribers

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog is an append-only record of lifecycle and admin actions.
type AuditLog struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserEmail string    `gorm:"column:usuario_email;not null;index" json:"usuario_email"`
	Action    string    `gorm:"column:acao;type:text;not null" json:"acao"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

func (AuditLog) TableName() string { return "logs" }

func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	return nil
}

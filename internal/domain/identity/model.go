package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProviderLocal   = "local"
	ProviderGoogle  = "google"
	ProviderWebhook = "webhook"
)

// Identity is the authentication record a Subscriber row points to via user_id.
type Identity struct {
	ID             string  `gorm:"type:uuid;primaryKey"`
	Email          string  `gorm:"not null;uniqueIndex:idx_identities_email"`
	PasswordHash   *string `gorm:"column:password_hash"`
	AuthProvider   string  `gorm:"type:varchar(20);not null;default:'local'"`
	GoogleSub      *string `gorm:"uniqueIndex:idx_identities_google_sub"`
	EmailConfirmed bool    `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i *Identity) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	i.Email = strings.ToLower(strings.TrimSpace(i.Email))
	return nil
}

// ResetToken is a single-use password reset grant. Only the SHA-256 of the
// emailed token is stored.
type ResetToken struct {
	ID         uint      `gorm:"primaryKey"`
	IdentityID string    `gorm:"type:uuid;not null;index"`
	TokenHash  string    `gorm:"type:char(64);not null;uniqueIndex"`
	ExpiresAt  time.Time `gorm:"not null"`
	CreatedAt  time.Time
}

func (ResetToken) TableName() string { return "password_reset_tokens" }

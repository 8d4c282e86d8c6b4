package credentials

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SharedCredential is the single AdsPower login handed to active subscribers.
// It is overwritten in place; LastUpdated is the freshness signal.
type SharedCredential struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	LoginEmail  string    `gorm:"column:email_login;not null" json:"email_login"`
	Password    string    `gorm:"column:senha_atual;not null" json:"senha_atual"`
	LastUpdated time.Time `gorm:"column:ultima_atualizacao;not null" json:"ultima_atualizacao"`
}

func (SharedCredential) TableName() string { return "credenciais_adspower" }

func (c *SharedCredential) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

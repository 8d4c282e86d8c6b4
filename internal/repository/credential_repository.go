package repository

import (
	"context"
	"errors"
	"time"

	"acessonucleo-hub/internal/domain/credentials"

	"gorm.io/gorm"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Current(ctx context.Context) (*credentials.SharedCredential, error) {
	var cred credentials.SharedCredential
	if err := r.db.WithContext(ctx).Order("ultima_atualizacao DESC").First(&cred).Error; err != nil {
		return nil, translate(err)
	}
	return &cred, nil
}

// Save overwrites the single credential row, creating it on first use.
func (r *CredentialRepository) Save(ctx context.Context, loginEmail, password string, at time.Time) (*credentials.SharedCredential, error) {
	var cred credentials.SharedCredential

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Order("ultima_atualizacao DESC").First(&cred).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cred = credentials.SharedCredential{LoginEmail: loginEmail, Password: password, LastUpdated: at.UTC()}
			return tx.Create(&cred).Error
		}
		if err != nil {
			return err
		}

		cred.LoginEmail = loginEmail
		cred.Password = password
		cred.LastUpdated = at.UTC()
		return tx.Save(&cred).Error
	})
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

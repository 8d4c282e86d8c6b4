package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"acessonucleo-hub/internal/domain/identity"
	"acessonucleo-hub/internal/domain/subscribers"

	"gorm.io/gorm"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*identity.Identity, error) {
	var ident identity.Identity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ident).Error; err != nil {
		return nil, translate(err)
	}
	return &ident, nil
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	var ident identity.Identity
	if err := r.db.WithContext(ctx).Where("email = ?", subscribers.NormalizeEmail(email)).First(&ident).Error; err != nil {
		return nil, translate(err)
	}
	return &ident, nil
}

func (r *IdentityRepository) FindByGoogleSub(ctx context.Context, sub string) (*identity.Identity, error) {
	var ident identity.Identity
	if err := r.db.WithContext(ctx).Where("google_sub = ?", sub).First(&ident).Error; err != nil {
		return nil, translate(err)
	}
	return &ident, nil
}

func (r *IdentityRepository) LinkGoogle(ctx context.Context, id, sub string) error {
	return r.db.WithContext(ctx).Model(&identity.Identity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"google_sub": sub, "email_confirmed": true}).Error
}

// Provision creates the identity and its pending subscriber row in one
// transaction. A subscriber row already carrying the email but no identity is
// linked instead of duplicated.
func (r *IdentityRepository) Provision(ctx context.Context, ident *identity.Identity, name string, role subscribers.Role) (*subscribers.Subscriber, error) {
	var sub *subscribers.Subscriber

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ident).Error; err != nil {
			return fmt.Errorf("create identity: %w", err)
		}

		var existing subscribers.Subscriber
		err := tx.Where("email = ? AND user_id IS NULL", ident.Email).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Update("user_id", ident.ID).Error; err != nil {
				return fmt.Errorf("link subscriber: %w", err)
			}
			existing.UserID = &ident.ID
			sub = &existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		sub = subscribers.New(ident.ID, ident.Email, name, role)
		if err := tx.Create(sub).Error; err != nil {
			return fmt.Errorf("create subscriber: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return sub, nil
}

func (r *IdentityRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res := r.db.WithContext(ctx).Model(&identity.Identity{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateResetToken replaces any outstanding reset token of the identity.
func (r *IdentityRepository) CreateResetToken(ctx context.Context, identityID, tokenHash string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("identity_id = ?", identityID).Delete(&identity.ResetToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&identity.ResetToken{IdentityID: identityID, TokenHash: tokenHash, ExpiresAt: expiresAt.UTC()}).Error
	})
}

// ConsumeResetToken deletes the token and returns its identity id. Expired
// tokens are deleted too but reported as ErrNotFound.
func (r *IdentityRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var token identity.ResetToken
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token_hash = ?", tokenHash).First(&token).Error; err != nil {
			return err
		}
		return tx.Delete(&token).Error
	})
	if err != nil {
		return "", translate(err)
	}
	if token.ExpiresAt.Before(now) {
		return "", ErrNotFound
	}
	return token.IdentityID, nil
}

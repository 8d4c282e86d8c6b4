package repository

import (
	"context"
	"fmt"
	"time"

	"acessonucleo-hub/internal/domain/subscribers"

	"gorm.io/gorm"
)

type SubscriberRepository struct {
	db *gorm.DB
}

func NewSubscriberRepository(db *gorm.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func (r *SubscriberRepository) FindByID(ctx context.Context, id string) (*subscribers.Subscriber, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *SubscriberRepository) FindByUserID(ctx context.Context, userID string) (*subscribers.Subscriber, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *SubscriberRepository) FindByEmail(ctx context.Context, email string) (*subscribers.Subscriber, error) {
	return r.first(ctx, "email = ?", subscribers.NormalizeEmail(email))
}

func (r *SubscriberRepository) first(ctx context.Context, query string, arg any) (*subscribers.Subscriber, error) {
	var sub subscribers.Subscriber
	if err := r.db.WithContext(ctx).Where(query, arg).First(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

// List returns subscribers newest first, optionally filtered by status.
func (r *SubscriberRepository) List(ctx context.Context, status subscribers.Status) ([]subscribers.Subscriber, error) {
	q := r.db.WithContext(ctx).Model(&subscribers.Subscriber{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var out []subscribers.Subscriber
	if err := q.Order("criado_em DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Activate is the lifecycle write used by payment events.
func (r *SubscriberRepository) Activate(ctx context.Context, id, planLabel string, expiresAt time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":         subscribers.StatusActive,
		"plano":          planLabel,
		"data_expiracao": expiresAt.UTC(),
	})
}

// SuspendIfActive only touches rows still active and still expired at asOf, so
// repeated calls are no-ops and a renewal committed in between wins.
func (r *SubscriberRepository) SuspendIfActive(ctx context.Context, id string, asOf time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&subscribers.Subscriber{}).
		Where("id = ? AND status = ?", id, subscribers.StatusActive).
		Where("data_expiracao IS NOT NULL AND data_expiracao < ?", asOf.UTC()).
		Update("status", subscribers.StatusSuspended)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ApproveIfPending activates a pending row for the given identity.
func (r *SubscriberRepository) ApproveIfPending(ctx context.Context, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&subscribers.Subscriber{}).
		Where("user_id = ? AND status = ?", userID, subscribers.StatusPending).
		Update("status", subscribers.StatusActive)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *SubscriberRepository) UpdateStatus(ctx context.Context, id string, status subscribers.Status, note *string) error {
	updates := map[string]interface{}{"status": status}
	if note != nil {
		updates["observacao_admin"] = *note
	}
	return r.update(ctx, id, updates)
}

func (r *SubscriberRepository) SetPlan(ctx context.Context, id, planLabel string, expiresAt time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"plano":          planLabel,
		"data_expiracao": expiresAt.UTC(),
	})
}

// SetExpiration stores expiresAt; nil clears it (no expiration enforced).
func (r *SubscriberRepository) SetExpiration(ctx context.Context, id string, expiresAt *time.Time) error {
	var value interface{}
	if expiresAt != nil {
		value = expiresAt.UTC()
	}
	return r.update(ctx, id, map[string]interface{}{"data_expiracao": value})
}

func (r *SubscriberRepository) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&subscribers.Subscriber{}).
		Where("user_id = ?", userID).
		Update("ultimo_login", at.UTC()).Error
}

func (r *SubscriberRepository) update(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&subscribers.Subscriber{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update subscriber %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type StatusPlanCount struct {
	Status subscribers.Status
	Plan   *string
	Count  int64
}

func (r *SubscriberRepository) CountByStatusAndPlan(ctx context.Context) ([]StatusPlanCount, error) {
	var out []StatusPlanCount
	err := r.db.WithContext(ctx).
		Model(&subscribers.Subscriber{}).
		Select("status, plano AS plan, COUNT(*) AS count").
		Where("role = ?", subscribers.RoleSubscriber).
		Group("status, plano").
		Scan(&out).Error
	return out, err
}

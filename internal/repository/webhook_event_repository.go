package repository

import (
	"context"
	"errors"
	"time"

	"acessonucleo-hub/internal/domain/webhooks"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Claim is the outcome of registering a delivery in the ledger.
type Claim int

const (
	// Claimed means the caller owns this delivery and must Finish it.
	Claimed Claim = iota
	AlreadyProcessed
	// InFlight means another worker is processing the same key right now.
	InFlight
)

// abandoned deliveries become claimable again after this long
const inFlightTimeout = 5 * time.Minute

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Begin records a delivery keyed on (provider, key). A failed or abandoned
// earlier attempt is reclaimed; ev.ID is always set to the ledger row.
func (r *WebhookEventRepository) Begin(ctx context.Context, ev *webhooks.Event) (Claim, error) {
	db := r.db.WithContext(ctx)

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		return Claimed, nil
	}

	now := time.Now().UTC()
	res = db.Model(&webhooks.Event{}).
		Where("provider = ? AND delivery_key = ? AND processed_at IS NULL", ev.Provider, ev.DeliveryKey).
		Where("processing_error <> '' OR updated_at < ?", now.Add(-inFlightTimeout)).
		Updates(map[string]interface{}{"processing_error": "", "updated_at": now})
	if res.Error != nil {
		return 0, res.Error
	}

	var existing webhooks.Event
	if err := db.Where("provider = ? AND delivery_key = ?", ev.Provider, ev.DeliveryKey).First(&existing).Error; err != nil {
		return 0, translate(err)
	}
	ev.ID = existing.ID

	switch {
	case res.RowsAffected > 0:
		return Claimed, nil
	case existing.ProcessedAt != nil:
		return AlreadyProcessed, nil
	default:
		return InFlight, nil
	}
}

// Finish marks the delivery done, or stores procErr so a replay retries it.
func (r *WebhookEventRepository) Finish(ctx context.Context, id uint, procErr error) error {
	updates := map[string]interface{}{}
	if procErr != nil {
		updates["processed_at"] = nil
		updates["processing_error"] = procErr.Error()
	} else {
		updates["processed_at"] = time.Now().UTC()
		updates["processing_error"] = ""
	}

	res := r.db.WithContext(ctx).Model(&webhooks.Event{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

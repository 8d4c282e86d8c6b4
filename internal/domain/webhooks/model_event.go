package webhooks

import "time"

// Event is the delivery ledger used to acknowledge replays of the same provider
// delivery without touching subscriber state again.
type Event struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;uniqueIndex:ux_webhook_events_provider_key,priority:1" json:"provider"`
	DeliveryKey     string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_events_provider_key,priority:2" json:"delivery_key"`
	EventKind       string     `gorm:"type:varchar(64);not null;index" json:"event_kind"`
	Email           string     `gorm:"index" json:"email"`
	PayloadJSON     string     `gorm:"type:text" json:"payload_json"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Event) TableName() string { return "webhook_events" }

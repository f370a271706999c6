package models

import "time"

// Webhook provider constants used across webhook-related models.
const (
	WebhookProviderClerk  = "clerk"
	WebhookProviderStripe = "stripe"
)

// WebhookEvent stores provider webhook deliveries with deduplication
// metadata for idempotent processing.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_delivery,unique,priority:1;index" json:"provider"`
	DeliveryID      string     `gorm:"type:varchar(191);not null;default:'';index:ux_webhook_events_provider_delivery,unique,priority:2" json:"delivery_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:text;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	ProcessedAt     *time.Time `gorm:"type:timestamptz;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

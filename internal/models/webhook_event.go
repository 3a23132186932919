package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	WebhookResultProcessed = "processed"
	WebhookResultIgnored   = "ignored"
	WebhookResultError     = "error"
)

// PaymentWebhookEvent keeps one row per authenticated gateway callback.
type PaymentWebhookEvent struct {
	BaseModel
	Provider      string         `gorm:"size:32;not null" json:"provider"`
	EventType     string         `gorm:"size:32" json:"event_type"`
	TransactionID string         `gorm:"index" json:"transaction_id"`
	OrderID       string         `gorm:"index" json:"order_id"`
	PaymentID     *uuid.UUID     `gorm:"type:uuid;index" json:"payment_id"`
	Payload       datatypes.JSON `json:"payload"`
	Result        string         `gorm:"size:16" json:"result"`
	Error         string         `json:"error"`
	ReceivedAt    time.Time      `json:"received_at"`
}

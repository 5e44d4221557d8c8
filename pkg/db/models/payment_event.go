package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentEvent is the idempotency marker for a processed provider event.
// The unique provider_event_id constraint is what makes applying an event
// at-most-once: the marker insert shares a transaction with the mutation it
// guards.
type PaymentEvent struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProviderEventID string    `gorm:"column:provider_event_id;not null;uniqueIndex:ux_payment_events_provider_event_id"`
	Type            string    `gorm:"column:type;not null"`
	UserID          string    `gorm:"column:user_id;not null;index"`
	OfferingID      string    `gorm:"column:offering_id"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentEvent) TableName() string {
	return "payment_events"
}

func (e *PaymentEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditPurchase is one append-only audit row per applied credit grant.
type CreditPurchase struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID           string    `gorm:"column:user_id;not null;index"`
	OfferingID       string    `gorm:"column:offering_id;not null"`
	CreditAmount     int64     `gorm:"column:credit_amount;not null"`
	PriceRef         string    `gorm:"column:price_ref;not null"`
	SessionID        string    `gorm:"column:session_id;not null;index"`
	AmountTotalCents int64     `gorm:"column:amount_total_cents;not null"`
	Currency         string    `gorm:"column:currency;not null;default:'usd'"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CreditPurchase) TableName() string {
	return "credit_purchases"
}

func (p *CreditPurchase) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

package models

import "time"

// SubscriptionStatus tracks whether a user's recurring plan is active.
// Mutated only by the webhook reconciler; activation and deactivation follow
// the same idempotency discipline as credit grants.
type SubscriptionStatus struct {
	UserID                 string     `gorm:"column:user_id;primaryKey"`
	Active                 bool       `gorm:"column:active;not null;default:false"`
	PriceRef               string     `gorm:"column:price_ref"`
	ProviderSubscriptionID string     `gorm:"column:provider_subscription_id"`
	SessionID              string     `gorm:"column:session_id"`
	ActivatedAt            *time.Time `gorm:"column:activated_at"`
	DeactivatedAt          *time.Time `gorm:"column:deactivated_at"`
	CreatedAt              time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (SubscriptionStatus) TableName() string {
	return "subscription_statuses"
}

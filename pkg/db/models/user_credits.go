package models

import "time"

// UserCredits is the per-user spendable balance. total_earned only ever
// grows; available is total_earned minus whatever the consumption path has
// spent.
type UserCredits struct {
	UserID         string     `gorm:"column:user_id;primaryKey"`
	Available      int64      `gorm:"column:available;not null;default:0"`
	TotalEarned    int64      `gorm:"column:total_earned;not null;default:0"`
	LastPurchaseAt *time.Time `gorm:"column:last_purchase_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserCredits) TableName() string {
	return "user_credits"
}

package ledger

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/promptforge/promptforge-backend/pkg/db/models"
)

// Repository manages persistence for the credit ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEventMarker(ctx context.Context, marker *models.PaymentEvent) error
	LockUserCredits(ctx context.Context, userID string) (*models.UserCredits, error)
	CreateUserCredits(ctx context.Context, credits *models.UserCredits) error
	UpdateUserCredits(ctx context.Context, credits *models.UserCredits) error
	CreatePurchase(ctx context.Context, purchase *models.CreditPurchase) error
	GetUserCredits(ctx context.Context, userID string) (*models.UserCredits, error)
	LockSubscriptionStatus(ctx context.Context, userID string) (*models.SubscriptionStatus, error)
	CreateSubscriptionStatus(ctx context.Context, status *models.SubscriptionStatus) error
	UpdateSubscriptionStatus(ctx context.Context, status *models.SubscriptionStatus) error
	FindSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.SubscriptionStatus, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// locked applies a row lock on dialects that support it. sqlite has no
// row-level locks; its single-writer model covers the same ground.
func (r *repository) locked(ctx context.Context) *gorm.DB {
	conn := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "sqlite" {
		return conn
	}
	return conn.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *repository) CreateEventMarker(ctx context.Context, marker *models.PaymentEvent) error {
	return r.db.WithContext(ctx).Create(marker).Error
}

func (r *repository) LockUserCredits(ctx context.Context, userID string) (*models.UserCredits, error) {
	var credits models.UserCredits
	if err := r.locked(ctx).
		Where("user_id = ?", userID).
		First(&credits).Error; err != nil {
		return nil, err
	}
	return &credits, nil
}

func (r *repository) CreateUserCredits(ctx context.Context, credits *models.UserCredits) error {
	return r.db.WithContext(ctx).Create(credits).Error
}

func (r *repository) UpdateUserCredits(ctx context.Context, credits *models.UserCredits) error {
	return r.db.WithContext(ctx).Save(credits).Error
}

func (r *repository) CreatePurchase(ctx context.Context, purchase *models.CreditPurchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) GetUserCredits(ctx context.Context, userID string) (*models.UserCredits, error) {
	var credits models.UserCredits
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&credits).Error; err != nil {
		return nil, err
	}
	return &credits, nil
}

func (r *repository) LockSubscriptionStatus(ctx context.Context, userID string) (*models.SubscriptionStatus, error) {
	var status models.SubscriptionStatus
	if err := r.locked(ctx).
		Where("user_id = ?", userID).
		First(&status).Error; err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *repository) CreateSubscriptionStatus(ctx context.Context, status *models.SubscriptionStatus) error {
	return r.db.WithContext(ctx).Create(status).Error
}

func (r *repository) UpdateSubscriptionStatus(ctx context.Context, status *models.SubscriptionStatus) error {
	return r.db.WithContext(ctx).Save(status).Error
}

func (r *repository) FindSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.SubscriptionStatus, error) {
	var status models.SubscriptionStatus
	if err := r.locked(ctx).
		Where("provider_subscription_id = ?", providerSubscriptionID).
		First(&status).Error; err != nil {
		return nil, err
	}
	return &status, nil
}

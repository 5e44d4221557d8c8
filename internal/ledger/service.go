package ledger

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/promptforge/promptforge-backend/pkg/config"
	"github.com/promptforge/promptforge-backend/pkg/db"
	"github.com/promptforge/promptforge-backend/pkg/db/models"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
)

// ErrDuplicateEvent signals that the provider event was already applied.
// Callers treat it as success: the ledger state the event wanted already
// exists.
var ErrDuplicateEvent = stdErrors.New("payment event already applied")

const markerConstraint = "ux_payment_events_provider_event_id"

// Service applies payment events to the credit ledger. Every mutation is
// keyed by a provider event id and lands at most once, no matter how many
// times the same event is delivered.
type Service interface {
	ApplyCredit(ctx context.Context, input ApplyCreditInput) (*models.UserCredits, error)
	SetSubscriptionActive(ctx context.Context, input ActivateSubscriptionInput) error
	SetSubscriptionInactive(ctx context.Context, input DeactivateSubscriptionInput) (bool, error)
	GetCredits(ctx context.Context, userID string) (*models.UserCredits, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo          Repository
	tx            txRunner
	retryAttempts uint64
	retryBackoff  time.Duration
}

// ApplyCreditInput is the immutable description of one credit grant.
type ApplyCreditInput struct {
	ProviderEventID  string
	EventType        string
	UserID           string
	OfferingID       string
	CreditAmount     int64
	PriceRef         string
	SessionID        string
	AmountTotalCents int64
	Currency         string
}

// ActivateSubscriptionInput marks a user's recurring plan active.
type ActivateSubscriptionInput struct {
	ProviderEventID        string
	EventType              string
	UserID                 string
	PriceRef               string
	ProviderSubscriptionID string
	SessionID              string
}

// DeactivateSubscriptionInput marks a plan inactive, addressed by the
// provider's subscription id because cancellation events carry no user.
type DeactivateSubscriptionInput struct {
	ProviderEventID        string
	EventType              string
	ProviderSubscriptionID string
}

// NewService wires the ledger service.
func NewService(repo Repository, tx txRunner, cfg config.LedgerConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	return &service{
		repo:          repo,
		tx:            tx,
		retryAttempts: uint64(attempts),
		retryBackoff:  backoff,
	}, nil
}

func (s *service) ApplyCredit(ctx context.Context, input ApplyCreditInput) (*models.UserCredits, error) {
	if strings.TrimSpace(input.ProviderEventID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider event id required")
	}
	if strings.TrimSpace(input.UserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if strings.TrimSpace(input.OfferingID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offering id required")
	}
	if input.CreditAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}

	var applied *models.UserCredits
	err := s.runGuarded(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		marker := &models.PaymentEvent{
			ProviderEventID: input.ProviderEventID,
			Type:            input.EventType,
			UserID:          input.UserID,
			OfferingID:      input.OfferingID,
		}
		if err := repo.CreateEventMarker(ctx, marker); err != nil {
			if db.IsUniqueViolation(err, markerConstraint) {
				return ErrDuplicateEvent
			}
			return err
		}

		credits, err := repo.LockUserCredits(ctx, input.UserID)
		created := false
		if err != nil {
			if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			credits = &models.UserCredits{UserID: input.UserID}
			created = true
		}

		now := time.Now().UTC()
		credits.Available += input.CreditAmount
		credits.TotalEarned += input.CreditAmount
		credits.LastPurchaseAt = &now

		if created {
			err = repo.CreateUserCredits(ctx, credits)
		} else {
			err = repo.UpdateUserCredits(ctx, credits)
		}
		if err != nil {
			return err
		}

		currency := strings.ToLower(strings.TrimSpace(input.Currency))
		if currency == "" {
			currency = "usd"
		}
		if err := repo.CreatePurchase(ctx, &models.CreditPurchase{
			UserID:           input.UserID,
			OfferingID:       input.OfferingID,
			CreditAmount:     input.CreditAmount,
			PriceRef:         input.PriceRef,
			SessionID:        input.SessionID,
			AmountTotalCents: input.AmountTotalCents,
			Currency:         currency,
		}); err != nil {
			return err
		}

		applied = credits
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func (s *service) SetSubscriptionActive(ctx context.Context, input ActivateSubscriptionInput) error {
	if strings.TrimSpace(input.ProviderEventID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider event id required")
	}
	if strings.TrimSpace(input.UserID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	return s.runGuarded(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		marker := &models.PaymentEvent{
			ProviderEventID: input.ProviderEventID,
			Type:            input.EventType,
			UserID:          input.UserID,
		}
		if err := repo.CreateEventMarker(ctx, marker); err != nil {
			if db.IsUniqueViolation(err, markerConstraint) {
				return ErrDuplicateEvent
			}
			return err
		}

		status, err := repo.LockSubscriptionStatus(ctx, input.UserID)
		created := false
		if err != nil {
			if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			status = &models.SubscriptionStatus{UserID: input.UserID}
			created = true
		}

		now := time.Now().UTC()
		status.Active = true
		status.PriceRef = input.PriceRef
		status.ProviderSubscriptionID = input.ProviderSubscriptionID
		status.SessionID = input.SessionID
		status.ActivatedAt = &now
		status.DeactivatedAt = nil

		if created {
			return repo.CreateSubscriptionStatus(ctx, status)
		}
		return repo.UpdateSubscriptionStatus(ctx, status)
	})
}

// SetSubscriptionInactive returns false without error when no subscription
// matches: a cancellation for a user this ledger never saw is acknowledged,
// not retried.
func (s *service) SetSubscriptionInactive(ctx context.Context, input DeactivateSubscriptionInput) (bool, error) {
	if strings.TrimSpace(input.ProviderEventID) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "provider event id required")
	}
	if strings.TrimSpace(input.ProviderSubscriptionID) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "provider subscription id required")
	}

	deactivated := false
	err := s.runGuarded(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		status, err := repo.FindSubscriptionByProviderID(ctx, input.ProviderSubscriptionID)
		if err != nil && !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		marker := &models.PaymentEvent{
			ProviderEventID: input.ProviderEventID,
			Type:            input.EventType,
		}
		if status != nil {
			marker.UserID = status.UserID
		}
		if err := repo.CreateEventMarker(ctx, marker); err != nil {
			if db.IsUniqueViolation(err, markerConstraint) {
				return ErrDuplicateEvent
			}
			return err
		}
		if status == nil {
			return nil
		}

		now := time.Now().UTC()
		status.Active = false
		status.DeactivatedAt = &now
		if err := repo.UpdateSubscriptionStatus(ctx, status); err != nil {
			return err
		}
		deactivated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deactivated, nil
}

func (s *service) GetCredits(ctx context.Context, userID string) (*models.UserCredits, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	credits, err := s.repo.GetUserCredits(ctx, userID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return &models.UserCredits{UserID: userID}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user credits")
	}
	return credits, nil
}

// runGuarded executes the transaction with a bounded retry on lock and
// serialization conflicts. Exhausting the budget maps to a retryable
// dependency error so the provider redelivers later.
//
// A unique violation escaping the transaction fn is also retried: the
// marker's own violation is converted to ErrDuplicateEvent inside the fn,
// so a raw one means two transactions raced to create the same credits or
// subscription row. FOR UPDATE cannot block on a row that does not exist
// yet, so the loser re-runs and takes the update path.
func (s *service) runGuarded(ctx context.Context, fn func(tx *gorm.DB) error) error {
	backoff := retry.WithMaxRetries(s.retryAttempts, retry.NewConstant(s.retryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.tx.WithTx(ctx, fn); err != nil {
			if db.IsSerializationFailure(err) || db.IsUniqueViolation(err, "") {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err == nil {
		return nil
	}
	if stdErrors.Is(err, ErrDuplicateEvent) {
		return ErrDuplicateEvent
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ledger unavailable")
}

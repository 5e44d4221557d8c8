package catalog

import (
	"fmt"
	"strings"

	"github.com/promptforge/promptforge-backend/pkg/config"
	"github.com/promptforge/promptforge-backend/pkg/enums"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
)

// Offering is one purchasable unit with its price reference already resolved
// for the environment the process runs in.
type Offering struct {
	ID           string
	Kind         enums.OfferingKind
	CreditAmount int64
	PriceRef     string
}

// Catalog is the read-only offering lookup. Built once at startup; the
// environment selector is fixed for the process lifetime.
type Catalog struct {
	environment string
	offerings   map[string]Offering
}

// New validates the configured offerings and binds them to the given
// environment (test or live).
func New(environment string, offerings []config.OfferingConfig) (*Catalog, error) {
	env := strings.TrimSpace(strings.ToLower(environment))
	if env != "test" && env != "live" {
		return nil, fmt.Errorf("catalog environment must be \"test\" or \"live\", got %q", environment)
	}
	if len(offerings) == 0 {
		return nil, fmt.Errorf("at least one offering is required")
	}

	resolved := make(map[string]Offering, len(offerings))
	for _, o := range offerings {
		id := strings.TrimSpace(o.ID)
		if id == "" {
			return nil, fmt.Errorf("offering id is required")
		}
		if _, exists := resolved[id]; exists {
			return nil, fmt.Errorf("duplicate offering id %q", id)
		}

		kind, err := enums.ParseOfferingKind(o.Kind)
		if err != nil {
			return nil, fmt.Errorf("offering %q: %w", id, err)
		}

		switch kind {
		case enums.OfferingKindCreditPack:
			if o.CreditAmount <= 0 {
				return nil, fmt.Errorf("offering %q: credit packs require a positive credit amount", id)
			}
		case enums.OfferingKindSubscription:
			if o.CreditAmount != 0 {
				return nil, fmt.Errorf("offering %q: subscriptions must not carry a credit amount", id)
			}
		}

		priceRef := strings.TrimSpace(o.TestPriceRef)
		if env == "live" {
			priceRef = strings.TrimSpace(o.LivePriceRef)
		}
		if strings.TrimSpace(o.TestPriceRef) == "" || strings.TrimSpace(o.LivePriceRef) == "" {
			return nil, fmt.Errorf("offering %q: both test and live price refs are required", id)
		}

		resolved[id] = Offering{
			ID:           id,
			Kind:         kind,
			CreditAmount: o.CreditAmount,
			PriceRef:     priceRef,
		}
	}

	return &Catalog{environment: env, offerings: resolved}, nil
}

// Environment reports which price partition the catalog was bound to.
func (c *Catalog) Environment() string {
	return c.environment
}

// Resolve returns the offering for the given id. Unknown ids are a caller
// error, never a default offering.
func (c *Catalog) Resolve(offeringID string) (Offering, error) {
	id := strings.TrimSpace(offeringID)
	if id == "" {
		return Offering{}, pkgerrors.New(pkgerrors.CodeValidation, "offering id is required")
	}
	offering, ok := c.offerings[id]
	if !ok {
		return Offering{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown offering").
			WithDetails(map[string]string{"offering_id": id})
	}
	return offering, nil
}

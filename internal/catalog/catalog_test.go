package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/promptforge-backend/pkg/config"
	"github.com/promptforge/promptforge-backend/pkg/enums"
	pkgerrors "github.com/promptforge/promptforge-backend/pkg/errors"
)

func validOfferings() []config.OfferingConfig {
	return []config.OfferingConfig{
		{
			ID:           "credits_50",
			Kind:         "credit_pack",
			CreditAmount: 50,
			TestPriceRef: "price_test_50",
			LivePriceRef: "price_live_50",
		},
		{
			ID:           "pro_monthly",
			Kind:         "subscription",
			TestPriceRef: "price_test_pro",
			LivePriceRef: "price_live_pro",
		},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		offerings   []config.OfferingConfig
		wantErr     string
	}{
		{
			name:        "valid test environment",
			environment: "test",
			offerings:   validOfferings(),
		},
		{
			name:        "valid live environment",
			environment: "live",
			offerings:   validOfferings(),
		},
		{
			name:        "invalid environment",
			environment: "staging",
			offerings:   validOfferings(),
			wantErr:     "catalog environment",
		},
		{
			name:        "empty offerings",
			environment: "test",
			offerings:   nil,
			wantErr:     "at least one offering",
		},
		{
			name:        "missing id",
			environment: "test",
			offerings: []config.OfferingConfig{
				{Kind: "credit_pack", CreditAmount: 10, TestPriceRef: "a", LivePriceRef: "b"},
			},
			wantErr: "offering id is required",
		},
		{
			name:        "duplicate id",
			environment: "test",
			offerings: append(validOfferings(), config.OfferingConfig{
				ID: "credits_50", Kind: "credit_pack", CreditAmount: 10,
				TestPriceRef: "a", LivePriceRef: "b",
			}),
			wantErr: "duplicate offering id",
		},
		{
			name:        "unknown kind",
			environment: "test",
			offerings: []config.OfferingConfig{
				{ID: "x", Kind: "donation", TestPriceRef: "a", LivePriceRef: "b"},
			},
			wantErr: "invalid offering kind",
		},
		{
			name:        "credit pack without amount",
			environment: "test",
			offerings: []config.OfferingConfig{
				{ID: "x", Kind: "credit_pack", TestPriceRef: "a", LivePriceRef: "b"},
			},
			wantErr: "positive credit amount",
		},
		{
			name:        "subscription with amount",
			environment: "test",
			offerings: []config.OfferingConfig{
				{ID: "x", Kind: "subscription", CreditAmount: 5, TestPriceRef: "a", LivePriceRef: "b"},
			},
			wantErr: "must not carry a credit amount",
		},
		{
			name:        "missing live price ref",
			environment: "test",
			offerings: []config.OfferingConfig{
				{ID: "x", Kind: "credit_pack", CreditAmount: 10, TestPriceRef: "a"},
			},
			wantErr: "both test and live price refs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.environment, tt.offerings)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.environment, c.Environment())
		})
	}
}

func TestResolvePriceRefPartition(t *testing.T) {
	testCatalog, err := New("test", validOfferings())
	require.NoError(t, err)
	liveCatalog, err := New("live", validOfferings())
	require.NoError(t, err)

	fromTest, err := testCatalog.Resolve("credits_50")
	require.NoError(t, err)
	assert.Equal(t, "price_test_50", fromTest.PriceRef)
	assert.Equal(t, enums.OfferingKindCreditPack, fromTest.Kind)
	assert.Equal(t, int64(50), fromTest.CreditAmount)

	fromLive, err := liveCatalog.Resolve("credits_50")
	require.NoError(t, err)
	assert.Equal(t, "price_live_50", fromLive.PriceRef)
	// Same offering identity and kind regardless of partition.
	assert.Equal(t, fromTest.ID, fromLive.ID)
	assert.Equal(t, fromTest.Kind, fromLive.Kind)
	assert.Equal(t, fromTest.CreditAmount, fromLive.CreditAmount)
}

func TestResolveUnknown(t *testing.T) {
	c, err := New("test", validOfferings())
	require.NoError(t, err)

	_, err = c.Resolve("credits_9000")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	_, err = c.Resolve("  ")
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

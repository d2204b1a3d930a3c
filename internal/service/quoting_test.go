package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krish/fieldserve/internal/model"
	"github.com/krish/fieldserve/internal/repository"
	"github.com/krish/fieldserve/internal/service"
)

func TestSuggestQuote_PricingConfig(t *testing.T) {
	cfg := &model.PricingConfig{
		BaseRate:  50,
		PerKmRate: 5,
	}
	req := &model.ServiceRequest{
		ServiceType: model.ServiceTowing, // flat 3 km proxy
		IsEmergency: false,
	}

	bd, err := service.SuggestQuote(cfg, req)
	require.NoError(t, err)

	// (50 + 3*5) * 1.0 = 65.00
	assert.Equal(t, model.MethodPricingConfig, bd.Method)
	assert.Equal(t, 50.0, bd.BaseRate)
	assert.Equal(t, 3.0, bd.DistanceKm)
	assert.Equal(t, 15.0, bd.DistanceCost)
	assert.Equal(t, 1.0, bd.UrgencyMultiplier)
	assert.Equal(t, 65.0, bd.Total)
}

func TestSuggestQuote_MinimumFeeClamp(t *testing.T) {
	cfg := &model.PricingConfig{
		BaseRate:   50,
		PerKmRate:  5,
		MinimumFee: 100,
	}
	req := &model.ServiceRequest{ServiceType: model.ServiceTowing}

	bd, err := service.SuggestQuote(cfg, req)
	require.NoError(t, err)

	// Raw total would be 65.00; the minimum fee wins.
	assert.Equal(t, 100.0, bd.Total)
	assert.Equal(t, 100.0, bd.MinimumFee)
}

func TestSuggestQuote_EmergencyDefaultMultiplier(t *testing.T) {
	cfg := &model.PricingConfig{BaseRate: 50, PerKmRate: 5}
	req := &model.ServiceRequest{
		ServiceType: model.ServiceTowing,
		IsEmergency: true,
	}

	bd, err := service.SuggestQuote(cfg, req)
	require.NoError(t, err)

	// (50 + 15) * 1.5 = 97.50
	assert.Equal(t, 1.5, bd.UrgencyMultiplier)
	assert.Equal(t, 97.5, bd.Total)
}

func TestSuggestQuote_ConfiguredMultiplierWins(t *testing.T) {
	cfg := &model.PricingConfig{
		BaseRate:           50,
		PerKmRate:          5,
		UrgencyMultipliers: map[string]float64{"emergency": 2.0},
	}
	req := &model.ServiceRequest{
		ServiceType: model.ServiceTowing,
		IsEmergency: true,
	}

	bd, err := service.SuggestQuote(cfg, req)
	require.NoError(t, err)

	assert.Equal(t, 2.0, bd.UrgencyMultiplier)
	assert.Equal(t, 130.0, bd.Total)
}

func TestSuggestQuote_DistanceProxies(t *testing.T) {
	cfg := &model.PricingConfig{BaseRate: 0, PerKmRate: 1}

	tests := []struct {
		name   string
		req    *model.ServiceRequest
		wantKm float64
	}{
		{
			name: "snow small",
			req: &model.ServiceRequest{
				ServiceType: model.ServiceSnowPlowing,
				Details:     model.ServiceDetails{SnowPlowing: &model.SnowPlowingDetails{AreaSize: model.SizeSmall}},
			},
			wantKm: 2,
		},
		{
			name: "snow large",
			req: &model.ServiceRequest{
				ServiceType: model.ServiceSnowPlowing,
				Details:     model.ServiceDetails{SnowPlowing: &model.SnowPlowingDetails{AreaSize: model.SizeLarge}},
			},
			wantKm: 8,
		},
		{
			name: "hauling medium",
			req: &model.ServiceRequest{
				ServiceType: model.ServiceHauling,
				Details:     model.ServiceDetails{Hauling: &model.HaulingDetails{LoadSize: model.SizeMedium}},
			},
			wantKm: 6,
		},
		{
			name:   "courier flat",
			req:    &model.ServiceRequest{ServiceType: model.ServiceCourier},
			wantKm: 3,
		},
		{
			name:   "snow without payload falls back to flat",
			req:    &model.ServiceRequest{ServiceType: model.ServiceSnowPlowing},
			wantKm: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bd, err := service.SuggestQuote(cfg, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKm, bd.DistanceKm)
		})
	}
}

func TestSuggestQuote_BudgetMidpointFallback(t *testing.T) {
	req := &model.ServiceRequest{
		ServiceType: model.ServiceSnowPlowing,
		BudgetRange: "$80-$120",
	}

	bd, err := service.SuggestQuote(nil, req)
	require.NoError(t, err)

	assert.Equal(t, model.MethodCustomerBudget, bd.Method)
	assert.Equal(t, 100.0, bd.Total)
}

func TestSuggestQuote_BudgetUnparseable(t *testing.T) {
	for _, budget := range []string{"", "cheap please", "$50", "50-100", "$a-$b"} {
		req := &model.ServiceRequest{BudgetRange: budget}

		bd, err := service.SuggestQuote(nil, req)
		require.ErrorIs(t, err, service.ErrBudgetUnparseable, "budget %q", budget)
		// The zero total means "cannot quote", never a valid $0 amount.
		assert.Equal(t, 0.0, bd.Total)
	}
}

func TestSuggestQuote_NeverNegative(t *testing.T) {
	cfg := &model.PricingConfig{BaseRate: 0, PerKmRate: 0, MinimumFee: 0}
	req := &model.ServiceRequest{ServiceType: model.ServiceTowing}

	bd, err := service.SuggestQuote(cfg, req)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, bd.Total, 0.0)
}

func TestSuggest_UsesStoreConfig(t *testing.T) {
	store := repository.NewMemoryStore()
	op := store.AddOperator(&model.Operator{
		Name:     "A-1 Towing",
		Tier:     model.TierEquipped,
		Services: []model.ServiceType{model.ServiceTowing},
	})
	store.SetPricingConfig(&model.PricingConfig{
		OperatorID:  op.ID,
		ServiceType: model.ServiceTowing,
		BaseRate:    50,
		PerKmRate:   5,
	})

	quoting := service.NewQuotingService(store)
	req := &model.ServiceRequest{ServiceType: model.ServiceTowing}

	bd, err := quoting.Suggest(context.Background(), req, op)
	require.NoError(t, err)
	assert.Equal(t, 65.0, bd.Total)
}

func TestSuggest_FallsBackWithoutConfig(t *testing.T) {
	store := repository.NewMemoryStore()
	op := store.AddOperator(&model.Operator{
		Name:     "Shovel Crew",
		Tier:     model.TierManual,
		Services: []model.ServiceType{model.ServiceSnowPlowing},
	})

	quoting := service.NewQuotingService(store)
	req := &model.ServiceRequest{
		ServiceType: model.ServiceSnowPlowing,
		BudgetRange: "$60-$100",
	}

	bd, err := quoting.Suggest(context.Background(), req, op)
	require.NoError(t, err)
	assert.Equal(t, model.MethodCustomerBudget, bd.Method)
	assert.Equal(t, 80.0, bd.Total)
}

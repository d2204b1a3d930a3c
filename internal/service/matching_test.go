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

// Downtown Montreal; offsets in latitude degrees give ~1.11 km per 0.01°.
var downtown = model.Location{Lat: 45.5019, Lng: -73.5674}

func towRequest(coords *model.Location) *model.ServiceRequest {
	return &model.ServiceRequest{
		ID:          1,
		ServiceType: model.ServiceTowing,
		Coords:      coords,
		Status:      model.RequestPending,
	}
}

func towOperator(name string, tier model.OperatorTier, home *model.Location) model.Operator {
	return model.Operator{
		Name:     name,
		Tier:     tier,
		Home:     home,
		Online:   true,
		Services: []model.ServiceType{model.ServiceTowing},
	}
}

func TestEligibleFromPool_RadiusBoundary(t *testing.T) {
	req := towRequest(&downtown)

	near := model.Location{Lat: downtown.Lat + 0.040, Lng: downtown.Lng} // ~4.4 km
	far := model.Location{Lat: downtown.Lat + 0.060, Lng: downtown.Lng}  // ~6.7 km

	pool := []model.Operator{
		towOperator("near manual", model.TierManual, &near),
		towOperator("far manual", model.TierManual, &far),
		towOperator("far equipped", model.TierEquipped, &far), // 15 km radius
	}

	eligible := service.EligibleFromPool(req, pool)

	names := make([]string, 0, len(eligible))
	for _, op := range eligible {
		names = append(names, op.Name)
	}
	assert.ElementsMatch(t, []string{"near manual", "far equipped"}, names)
}

func TestEligibleFromPool_ProfessionalIgnoresDistance(t *testing.T) {
	req := towRequest(&downtown)

	acrossTheCountry := model.Location{Lat: 49.2827, Lng: -123.1207} // Vancouver
	pool := []model.Operator{
		towOperator("pro", model.TierProfessional, &acrossTheCountry),
	}

	eligible := service.EligibleFromPool(req, pool)
	require.Len(t, eligible, 1)
	assert.Equal(t, "pro", eligible[0].Name)
}

func TestEligibleFromPool_OfflineAndWrongService(t *testing.T) {
	req := towRequest(&downtown)

	offline := towOperator("offline", model.TierProfessional, &downtown)
	offline.Online = false

	plower := towOperator("plower", model.TierProfessional, &downtown)
	plower.Services = []model.ServiceType{model.ServiceSnowPlowing}

	eligible := service.EligibleFromPool(req, []model.Operator{offline, plower})
	assert.Empty(t, eligible)
}

func TestEligibleFromPool_MissingCoordinates(t *testing.T) {
	// An operator without home coordinates never matches, whatever the
	// tier: an unlimited radius does not excuse an unplaceable operator.
	req := towRequest(&downtown)
	pool := []model.Operator{
		towOperator("manual no home", model.TierManual, nil),
		towOperator("pro no home", model.TierProfessional, nil),
	}

	assert.Empty(t, service.EligibleFromPool(req, pool))

	// A request without coordinates is only shown to unlimited-radius tiers.
	blindReq := towRequest(nil)
	blindPool := []model.Operator{
		towOperator("manual", model.TierManual, &downtown),
		towOperator("equipped", model.TierEquipped, &downtown),
		towOperator("pro", model.TierProfessional, &downtown),
	}

	eligible := service.EligibleFromPool(blindReq, blindPool)
	require.Len(t, eligible, 1)
	assert.Equal(t, "pro", eligible[0].Name)
}

func TestEligibleOperators_FromStore(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddOperator(&model.Operator{
		Name:     "city tow",
		Tier:     model.TierEquipped,
		Home:     &downtown,
		Online:   true,
		Services: []model.ServiceType{model.ServiceTowing},
	})

	req, err := store.CreateRequest(context.Background(), towRequest(&downtown))
	require.NoError(t, err)

	matcher := service.NewMatchingService(store, store)

	eligible, err := matcher.EligibleOperators(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Len(t, eligible, 1)

	_, err = matcher.EligibleOperators(context.Background(), 9999)
	assert.ErrorIs(t, err, service.ErrRequestNotFound)
}

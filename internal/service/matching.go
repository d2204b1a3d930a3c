// Package service contains the core business logic for the marketplace:
// operator matching, auto-quoting, and the request lifecycle.
package service

import (
	"context"
	"errors"
	"log"

	"github.com/krish/fieldserve/internal/model"
	"github.com/krish/fieldserve/pkg/geo"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	ErrRequestNotFound  = errors.New("service request not found")
	ErrOperatorNotFound = errors.New("operator not found")
)

// ─── MatchingService ────────────────────────────────────────

// MatchingService decides which operators are eligible to see and accept
// a service request.
//
// Algorithm: for each online operator offering the requested service,
// compute the haversine distance from the operator's home coordinates to
// the request and include the operator iff its tier radius is unlimited
// or the distance is within it. No ranking; any sort by price or rating
// is a presentation concern.
type MatchingService struct {
	requests  RequestStore
	operators OperatorStore
}

// NewMatchingService creates a matching service backed by the given stores.
func NewMatchingService(requests RequestStore, operators OperatorStore) *MatchingService {
	return &MatchingService{requests: requests, operators: operators}
}

// EligibleOperators returns the operators eligible for the given request.
func (s *MatchingService) EligibleOperators(ctx context.Context, requestID int64) ([]model.Operator, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	pool, err := s.operators.ListOperators(ctx)
	if err != nil {
		return nil, err
	}

	eligible := EligibleFromPool(req, pool)
	log.Printf("[match] request #%d (%s): %d of %d operators eligible",
		req.ID, req.ServiceType, len(eligible), len(pool))

	return eligible, nil
}

// EligibleFromPool is the pure matching filter over an operator pool
// snapshot. Exposed separately so callers holding their own snapshot
// (and tests) can run the filter without a store round trip.
func EligibleFromPool(req *model.ServiceRequest, pool []model.Operator) []model.Operator {
	eligible := make([]model.Operator, 0, len(pool))
	for _, op := range pool {
		if !op.Online || !op.Offers(req.ServiceType) {
			continue
		}

		// An operator with missing coordinates is excluded rather than
		// treated as an error, regardless of tier.
		if op.Home == nil {
			continue
		}

		radius := op.Tier.OperatingRadiusKm()

		// Unlimited-radius operators match regardless of distance. This
		// also makes them the only match for requests without coordinates
		// (conservative policy: a request we cannot place on the map is
		// not shown to radius-limited tiers).
		if radius == nil {
			eligible = append(eligible, op)
			continue
		}

		if req.Coords == nil {
			continue
		}

		if geo.WithinKm(*op.Home, *req.Coords, *radius) {
			eligible = append(eligible, op)
		}
	}
	return eligible
}

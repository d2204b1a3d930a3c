package service

import (
	"context"
	"errors"
	"log"
	"math"
	"regexp"
	"strconv"

	"github.com/krish/fieldserve/internal/model"
)

// ─── Errors ─────────────────────────────────────────────────

var (
	// ErrNoPricingConfig is returned by PricingStore implementations when
	// no configuration exists for a (operator, service) pair. The quoting
	// service handles it locally by falling back to the customer budget.
	ErrNoPricingConfig = errors.New("no pricing configuration for this operator and service")

	// ErrBudgetUnparseable is returned when the budget-midpoint fallback
	// cannot parse the customer's budget range. The accompanying amount is
	// 0 and must be treated as "insufficient information to quote", never
	// as a valid $0 quote.
	ErrBudgetUnparseable = errors.New("customer budget range is unparseable")
)

// ─── Urgency defaults ───────────────────────────────────────

const (
	urgencyKeyEmergency = "emergency"
	urgencyKeyScheduled = "scheduled"

	DefaultEmergencyMultiplier = 1.5
	DefaultScheduledMultiplier = 1.0
)

// ─── Distance proxies ───────────────────────────────────────
//
// The calculator never routes; it maps the coarse size bucket in the
// request's detail payload to a fixed per-service kilometer proxy.

const defaultProxyKm = 3.0

var snowProxyKm = map[model.SizeTier]float64{
	model.SizeSmall:  2,
	model.SizeMedium: 4,
	model.SizeLarge:  8,
}

var haulProxyKm = map[model.SizeTier]float64{
	model.SizeSmall:  3,
	model.SizeMedium: 6,
	model.SizeLarge:  10,
}

// proxyDistanceKm estimates the distance proxy for a request.
func proxyDistanceKm(req *model.ServiceRequest) float64 {
	switch req.ServiceType {
	case model.ServiceSnowPlowing:
		if req.Details.SnowPlowing != nil {
			if km, ok := snowProxyKm[req.Details.SnowPlowing.AreaSize]; ok {
				return km
			}
		}
	case model.ServiceHauling:
		if req.Details.Hauling != nil {
			if km, ok := haulProxyKm[req.Details.Hauling.LoadSize]; ok {
				return km
			}
		}
	}
	// Towing, courier, and anything without a usable payload use the flat default.
	return defaultProxyKm
}

// budgetRangePattern matches the customer-stated "$min-$max" encoding.
var budgetRangePattern = regexp.MustCompile(`^\$(\d+(?:\.\d+)?)\s*-\s*\$(\d+(?:\.\d+)?)$`)

// ─── QuotingService ─────────────────────────────────────────

// QuotingService produces suggested quote amounts with a transparent
// breakdown for audit and display.
//
// Formula (when a pricing config exists):
//
//	total = (baseRate + proxyKm × perKmRate) × urgencyMultiplier
//
// clamped up to minimumFee and rounded to cents. Without a config, the
// suggestion is the midpoint of the customer's budget range.
type QuotingService struct {
	pricing PricingStore
}

// NewQuotingService creates a quoting service over the given pricing store.
func NewQuotingService(pricing PricingStore) *QuotingService {
	return &QuotingService{pricing: pricing}
}

// Suggest computes the suggested quote for an operator reviewing a request.
func (s *QuotingService) Suggest(ctx context.Context, req *model.ServiceRequest, op *model.Operator) (*model.QuoteBreakdown, error) {
	cfg, err := s.pricing.GetPricingConfig(ctx, op.ID, req.ServiceType)
	if err != nil && !errors.Is(err, ErrNoPricingConfig) {
		return nil, err
	}

	bd, err := SuggestQuote(cfg, req)
	if err != nil {
		return bd, err
	}

	log.Printf("[quote] request #%d operator #%d: $%.2f via %s",
		req.ID, op.ID, bd.Total, bd.Method)
	return bd, nil
}

// SuggestQuote is the pure auto-quote calculator. cfg may be nil, in which
// case the customer budget midpoint is used. It never returns a negative
// total; a zero total only accompanies ErrBudgetUnparseable.
func SuggestQuote(cfg *model.PricingConfig, req *model.ServiceRequest) (*model.QuoteBreakdown, error) {
	if cfg == nil {
		return budgetMidpoint(req.BudgetRange)
	}

	distKm := proxyDistanceKm(req)
	mult := urgencyMultiplier(cfg, req.IsEmergency)
	distCost := distKm * cfg.PerKmRate

	total := (cfg.BaseRate + distCost) * mult
	if total < cfg.MinimumFee {
		total = cfg.MinimumFee
	}

	return &model.QuoteBreakdown{
		Method:            model.MethodPricingConfig,
		BaseRate:          cfg.BaseRate,
		DistanceKm:        distKm,
		DistanceCost:      round2(distCost),
		UrgencyMultiplier: mult,
		MinimumFee:        cfg.MinimumFee,
		Total:             round2(total),
	}, nil
}

// budgetMidpoint parses "$min-$max" and returns its arithmetic midpoint.
// On parse failure the breakdown carries a zero total alongside
// ErrBudgetUnparseable so the caller can surface the error.
func budgetMidpoint(budgetRange string) (*model.QuoteBreakdown, error) {
	bd := &model.QuoteBreakdown{Method: model.MethodCustomerBudget}

	m := budgetRangePattern.FindStringSubmatch(budgetRange)
	if m == nil {
		return bd, ErrBudgetUnparseable
	}

	lo, err1 := strconv.ParseFloat(m[1], 64)
	hi, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return bd, ErrBudgetUnparseable
	}

	bd.Total = round2((lo + hi) / 2)
	return bd, nil
}

func urgencyMultiplier(cfg *model.PricingConfig, emergency bool) float64 {
	key, def := urgencyKeyScheduled, DefaultScheduledMultiplier
	if emergency {
		key, def = urgencyKeyEmergency, DefaultEmergencyMultiplier
	}
	if m, ok := cfg.UrgencyMultipliers[key]; ok {
		return m
	}
	return def
}

// round2 rounds to two decimal places (cents).
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

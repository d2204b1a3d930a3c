package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/krish/fieldserve/internal/model"
)

// PricingUpserter persists an operator's pricing configuration.
type PricingUpserter interface {
	UpsertPricingConfig(ctx context.Context, cfg *model.PricingConfig) error
}

// PricingHandler handles operator pricing-configuration HTTP requests.
type PricingHandler struct {
	pricing PricingUpserter
}

// NewPricingHandler creates a new handler for the pricing endpoints.
func NewPricingHandler(pricing PricingUpserter) *PricingHandler {
	return &PricingHandler{pricing: pricing}
}

type upsertPricingBody struct {
	ServiceType        string             `json:"service_type"`
	BaseRate           float64            `json:"base_rate"`
	PerKmRate          float64            `json:"per_km_rate"`
	MinimumFee         float64            `json:"minimum_fee"`
	UrgencyMultipliers map[string]float64 `json:"urgency_multipliers"`
}

// UpsertPricing handles PUT /api/v1/operators/{id}/pricing
func (h *PricingHandler) UpsertPricing(w http.ResponseWriter, r *http.Request) {
	operatorID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid operator id: must be an integer"})
		return
	}

	var body upsertPricingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	serviceType := model.ServiceType(body.ServiceType)
	if !serviceType.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid service_type: must be one of snow_plowing, towing, hauling, courier",
		})
		return
	}
	if body.BaseRate < 0 || body.PerKmRate < 0 || body.MinimumFee < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rates must not be negative"})
		return
	}
	for k, v := range body.UrgencyMultipliers {
		if v <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "urgency multiplier for " + k + " must be positive"})
			return
		}
	}

	cfg := &model.PricingConfig{
		OperatorID:         operatorID,
		ServiceType:        serviceType,
		BaseRate:           body.BaseRate,
		PerKmRate:          body.PerKmRate,
		MinimumFee:         body.MinimumFee,
		UrgencyMultipliers: body.UrgencyMultipliers,
	}

	if err := h.pricing.UpsertPricingConfig(r.Context(), cfg); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

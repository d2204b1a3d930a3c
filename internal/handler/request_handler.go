package handler

import (
	"encoding/json"
	"net/http"

	"github.com/krish/fieldserve/internal/model"
	"github.com/krish/fieldserve/internal/service"
)

// RequestHandler handles service-request HTTP requests.
type RequestHandler struct {
	requests  service.RequestStore
	events    service.EventStore
	lifecycle *service.LifecycleService
}

// NewRequestHandler creates a new handler for the request endpoints.
func NewRequestHandler(requests service.RequestStore, events service.EventStore, lifecycle *service.LifecycleService) *RequestHandler {
	return &RequestHandler{requests: requests, events: events, lifecycle: lifecycle}
}

type createRequestBody struct {
	CustomerID  int64           `json:"customer_id"`
	ServiceType string          `json:"service_type"`
	IsEmergency bool            `json:"is_emergency"`
	Description string          `json:"description"`
	Address     string          `json:"address"`
	Lat         *float64        `json:"lat"`
	Lng         *float64        `json:"lng"`
	Details     json.RawMessage `json:"details"`
	BudgetRange string          `json:"budget_range"`
}

type actorBody struct {
	OperatorID int64 `json:"operator_id"`
}

type cancelBody struct {
	Actor string `json:"actor"`
}

// CreateRequest handles POST /api/v1/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if body.CustomerID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_id is required"})
		return
	}

	serviceType := model.ServiceType(body.ServiceType)
	if !serviceType.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid service_type: must be one of snow_plowing, towing, hauling, courier",
		})
		return
	}

	if (body.Lat == nil) != (body.Lng == nil) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lng must be provided together"})
		return
	}

	details, err := model.DecodeDetails(serviceType, body.Details)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid details: " + err.Error()})
		return
	}

	req := &model.ServiceRequest{
		CustomerID:  body.CustomerID,
		ServiceType: serviceType,
		IsEmergency: body.IsEmergency,
		Description: body.Description,
		Address:     body.Address,
		Details:     details,
		BudgetRange: body.BudgetRange,
		Status:      model.RequestPending,
	}
	if body.Lat != nil && body.Lng != nil {
		req.Coords = &model.Location{Lat: *body.Lat, Lng: *body.Lng}
	}

	created, err := h.requests.CreateRequest(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// GetRequest handles GET /api/v1/requests/{id}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request id: must be an integer"})
		return
	}

	req, err := h.requests.GetRequest(r.Context(), requestID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// GetEvents handles GET /api/v1/requests/{id}/events
//
// Returns the request's status history, oldest first.
func (h *RequestHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request id: must be an integer"})
		return
	}

	if _, err := h.requests.GetRequest(r.Context(), requestID); err != nil {
		writeServiceError(w, err)
		return
	}

	events, err := h.events.ListEventsByRequest(r.Context(), requestID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": requestID,
		"events":     events,
	})
}

// StartWork handles POST /api/v1/requests/{id}/start
func (h *RequestHandler) StartWork(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request id: must be an integer"})
		return
	}

	var body actorBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OperatorID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operator_id is required"})
		return
	}

	req, err := h.lifecycle.StartWork(r.Context(), requestID, body.OperatorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// CompleteWork handles POST /api/v1/requests/{id}/complete
func (h *RequestHandler) CompleteWork(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request id: must be an integer"})
		return
	}

	var body actorBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OperatorID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operator_id is required"})
		return
	}

	req, err := h.lifecycle.CompleteWork(r.Context(), requestID, body.OperatorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// Cancel handles POST /api/v1/requests/{id}/cancel
//
// The actor defaults to customer; an operator cancel notifies the
// customer and vice versa.
func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request id: must be an integer"})
		return
	}

	var body cancelBody
	// An empty body means a customer cancel.
	json.NewDecoder(r.Body).Decode(&body)

	actor := model.ActorCustomer
	switch body.Actor {
	case "", string(model.ActorCustomer):
	case string(model.ActorOperator):
		actor = model.ActorOperator
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "actor must be customer or operator"})
		return
	}

	req, err := h.lifecycle.Cancel(r.Context(), requestID, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

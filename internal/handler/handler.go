// Package handler contains HTTP request handlers for the marketplace API.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/krish/fieldserve/internal/service"
)

// MatchHandler handles operator-matching HTTP requests.
type MatchHandler struct {
	matcher *service.MatchingService
}

// NewMatchHandler creates a new handler wired to the matching service.
func NewMatchHandler(matcher *service.MatchingService) *MatchHandler {
	return &MatchHandler{matcher: matcher}
}

// EligibleOperators handles GET /api/v1/requests/{id}/operators
//
// Returns the operators eligible to see and accept the request: online,
// offering the service, and within their tier's operating radius.
func (h *MatchHandler) EligibleOperators(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request id: must be an integer",
		})
		return
	}

	operators, err := h.matcher.EligibleOperators(r.Context(), requestID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": requestID,
		"operators":  operators,
	})
}

// writeJSON is a helper that writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// pathID parses an int64 path variable.
func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)[name], 10, 64)
}

// writeServiceError maps service-layer errors to HTTP responses:
// 404 for missing entities, 409 for status conflicts, 403 for
// wrong-operator actions, 422 when a quote cannot be suggested.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRequestNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":   "not_found",
			"message": "Service request not found.",
		})
	case errors.Is(err, service.ErrOperatorNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":   "not_found",
			"message": "Operator not found.",
		})
	case errors.Is(err, service.ErrQuoteNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":   "not_found",
			"message": "Quote not found.",
		})
	case errors.Is(err, service.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "illegal_transition",
			"message": "The request's current status does not allow this action.",
		})
	case errors.Is(err, service.ErrStaleRequest):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "conflict",
			"message": "The request changed concurrently. Please retry.",
		})
	case errors.Is(err, service.ErrDuplicateSentQuote):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "duplicate_quote",
			"message": "You already have a sent quote on this request.",
		})
	case errors.Is(err, service.ErrQuoteNotSent):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":   "quote_not_sent",
			"message": "This quote is no longer in sent state.",
		})
	case errors.Is(err, service.ErrNotAssignedOperator):
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":   "not_assigned",
			"message": "Only the assigned operator may do this.",
		})
	case errors.Is(err, service.ErrBudgetUnparseable):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":   "unquotable",
			"message": "No pricing configuration and the budget range is unparseable; cannot suggest an amount.",
		})
	default:
		log.Printf("[handler] unexpected error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal_error",
		})
	}
}

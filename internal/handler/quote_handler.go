package handler

import (
	"encoding/json"
	"net/http"

	"github.com/krish/fieldserve/internal/service"
)

// QuoteHandler handles quoting HTTP requests.
type QuoteHandler struct {
	requests  service.RequestStore
	quotes    service.QuoteStore
	operators service.OperatorStore
	quoting   *service.QuotingService
	lifecycle *service.LifecycleService
}

// NewQuoteHandler creates a new handler for the quote endpoints.
func NewQuoteHandler(
	requests service.RequestStore,
	quotes service.QuoteStore,
	operators service.OperatorStore,
	quoting *service.QuotingService,
	lifecycle *service.LifecycleService,
) *QuoteHandler {
	return &QuoteHandler{
		requests:  requests,
		quotes:    quotes,
		operators: operators,
		quoting:   quoting,
		lifecycle: lifecycle,
	}
}

type submitQuoteBody struct {
	OperatorID int64    `json:"operator_id"`
	Amount     *float64 `json:"amount"`
	Notes      string   `json:"notes"`
}

type withdrawQuoteBody struct {
	OperatorID int64 `json:"operator_id"`
}

type previewQuoteBody struct {
	RequestID  int64 `json:"request_id"`
	OperatorID int64 `json:"operator_id"`
}

// SubmitQuote handles POST /api/v1/requests/{id}/quotes
//
// A nil amount asks for the auto-quote suggestion; the computed breakdown
// is stored alongside the quote.
func (h *QuoteHandler) SubmitQuote(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request id: must be an integer"})
		return
	}

	var body submitQuoteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.OperatorID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operator_id is required"})
		return
	}
	if body.Amount != nil && *body.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive when provided"})
		return
	}

	quote, err := h.lifecycle.SubmitQuote(r.Context(), requestID, body.OperatorID, body.Amount, body.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, quote)
}

// ListQuotes handles GET /api/v1/requests/{id}/quotes
func (h *QuoteHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request id: must be an integer"})
		return
	}

	if _, err := h.requests.GetRequest(r.Context(), requestID); err != nil {
		writeServiceError(w, err)
		return
	}

	quotes, err := h.quotes.ListQuotesByRequest(r.Context(), requestID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": requestID,
		"quotes":     quotes,
	})
}

// AcceptQuote handles POST /api/v1/quotes/{id}/accept
func (h *QuoteHandler) AcceptQuote(w http.ResponseWriter, r *http.Request) {
	quoteID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quote id: must be an integer"})
		return
	}

	outcome, err := h.lifecycle.AcceptQuote(r.Context(), quoteID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quote":             outcome.Quote,
		"request_id":        outcome.RequestID,
		"superseded_quotes": outcome.Superseded,
	})
}

// WithdrawQuote handles POST /api/v1/quotes/{id}/withdraw
func (h *QuoteHandler) WithdrawQuote(w http.ResponseWriter, r *http.Request) {
	quoteID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quote id: must be an integer"})
		return
	}

	var body withdrawQuoteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OperatorID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operator_id is required"})
		return
	}

	quote, err := h.lifecycle.WithdrawQuote(r.Context(), quoteID, body.OperatorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// DeclineQuote handles POST /api/v1/quotes/{id}/decline
func (h *QuoteHandler) DeclineQuote(w http.ResponseWriter, r *http.Request) {
	quoteID, err := pathID(r, "id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quote id: must be an integer"})
		return
	}

	quote, err := h.lifecycle.DeclineQuote(r.Context(), quoteID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// PreviewQuote handles POST /api/v1/quotes/preview
//
// Computes the suggested amount and breakdown for an operator on a request
// without creating a quote or touching the request's status.
func (h *QuoteHandler) PreviewQuote(w http.ResponseWriter, r *http.Request) {
	var body previewQuoteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.RequestID <= 0 || body.OperatorID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request_id and operator_id are required"})
		return
	}

	req, err := h.requests.GetRequest(r.Context(), body.RequestID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	op, err := h.operators.GetOperator(r.Context(), body.OperatorID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	breakdown, err := h.quoting.Suggest(r.Context(), req, op)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, breakdown)
}

package service

import (
	"context"

	"github.com/krish/fieldserve/internal/model"
)

// Store interfaces consumed by the services. The pgx repositories in
// internal/repository implement them for production; the in-memory
// implementations back tests and local runs.

// RequestStore reads and transitions service requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, req *model.ServiceRequest) (*model.ServiceRequest, error)
	GetRequest(ctx context.Context, id int64) (*model.ServiceRequest, error)
	// TransitionRequest updates the status only if the row still holds
	// `from` (compare-and-swap). operatorID, when non-nil, assigns the
	// request to that operator in the same write.
	TransitionRequest(ctx context.Context, id int64, from, to model.RequestStatus, operatorID *int64) error
}

// QuoteStore owns quote persistence, including the transactional
// accept-with-supersede sequence.
type QuoteStore interface {
	// CreateQuote inserts a 'sent' quote, but only while the request is
	// still quotable (pending or quoted); a request that moved on in the
	// meantime is reported as ErrStaleRequest.
	CreateQuote(ctx context.Context, q *model.Quote) (*model.Quote, error)
	GetQuote(ctx context.Context, id int64) (*model.Quote, error)
	ListQuotesByRequest(ctx context.Context, requestID int64) ([]model.Quote, error)
	// AcceptQuote atomically marks the quote accepted, supersedes sibling
	// 'sent' quotes, and moves the request to 'accepted' with the quote's
	// operator assigned. The storage layer holds the row locks across the
	// read-decide-write sequence so exactly one quote wins.
	AcceptQuote(ctx context.Context, quoteID int64) (*AcceptOutcome, error)
	// WithdrawQuote marks a 'sent' quote operator_withdrawn.
	WithdrawQuote(ctx context.Context, quoteID, operatorID int64) (*model.Quote, error)
	// DeclineQuote marks a 'sent' quote declined (customer action).
	DeclineQuote(ctx context.Context, quoteID int64) (*model.Quote, error)
}

// AcceptOutcome reports what the accept transaction changed.
type AcceptOutcome struct {
	Quote      *model.Quote        `json:"quote"`
	RequestID  int64               `json:"request_id"`
	CustomerID int64               `json:"customer_id"`
	FromStatus model.RequestStatus `json:"-"`
	Superseded int                 `json:"superseded_quotes"`
}

// OperatorStore reads operator snapshots and records completion stats.
type OperatorStore interface {
	GetOperator(ctx context.Context, id int64) (*model.Operator, error)
	ListOperators(ctx context.Context) ([]model.Operator, error)
	RecordCompletion(ctx context.Context, operatorID int64, earnings float64) error
}

// PricingStore reads per-(operator, service) pricing configurations.
// A missing configuration is reported as ErrNoPricingConfig, not a failure.
type PricingStore interface {
	GetPricingConfig(ctx context.Context, operatorID int64, st model.ServiceType) (*model.PricingConfig, error)
}

// EventStore appends immutable status events and notification records.
type EventStore interface {
	AppendEvent(ctx context.Context, ev *model.StatusEvent) (*model.StatusEvent, error)
	CreateNotification(ctx context.Context, n *model.Notification) (*model.Notification, error)
	ListEventsByRequest(ctx context.Context, requestID int64) ([]model.StatusEvent, error)
}

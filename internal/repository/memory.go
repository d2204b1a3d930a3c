package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/krish/fieldserve/internal/model"
	"github.com/krish/fieldserve/internal/service"
)

// MemoryStore is an in-memory implementation of every store interface the
// services consume. It backs the tests and local runs without Postgres and
// mirrors the pg repositories' semantics, including the accept-with-
// supersede sequence and the compare-and-swap transition.
type MemoryStore struct {
	// AppendEventErr, when set, is returned by AppendEvent; tests use it
	// to exercise the event-persistence failure path.
	AppendEventErr error

	mu sync.Mutex

	requests      map[int64]*model.ServiceRequest
	quotes        map[int64]*model.Quote
	operators     map[int64]*model.Operator
	pricing       map[string]*model.PricingConfig
	events        []model.StatusEvent
	notifications []model.Notification

	nextRequestID  int64
	nextQuoteID    int64
	nextOperatorID int64
	nextEventID    int64
	nextNoteID     int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:  make(map[int64]*model.ServiceRequest),
		quotes:    make(map[int64]*model.Quote),
		operators: make(map[int64]*model.Operator),
		pricing:   make(map[string]*model.PricingConfig),
	}
}

// Compile-time interface checks.
var (
	_ service.RequestStore  = (*MemoryStore)(nil)
	_ service.QuoteStore    = (*MemoryStore)(nil)
	_ service.OperatorStore = (*MemoryStore)(nil)
	_ service.PricingStore  = (*MemoryStore)(nil)
	_ service.EventStore    = (*MemoryStore)(nil)
)

// ─── RequestStore ───────────────────────────────────────────

func (m *MemoryStore) CreateRequest(_ context.Context, req *model.ServiceRequest) (*model.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRequestID++
	req.ID = m.nextRequestID
	req.Status = model.RequestPending
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt

	stored := *req
	m.requests[req.ID] = &stored
	return req, nil
}

func (m *MemoryStore) GetRequest(_ context.Context, id int64) (*model.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, service.ErrRequestNotFound
	}
	out := *req
	return &out, nil
}

func (m *MemoryStore) TransitionRequest(_ context.Context, id int64, from, to model.RequestStatus, operatorID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return service.ErrRequestNotFound
	}
	if req.Status != from {
		return service.ErrStaleRequest
	}
	req.Status = to
	if operatorID != nil {
		req.OperatorID = operatorID
	}
	req.UpdatedAt = time.Now()
	return nil
}

// ─── QuoteStore ─────────────────────────────────────────────

func (m *MemoryStore) CreateQuote(_ context.Context, q *model.Quote) (*model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Same guard as the pg repository: a quote only lands on a request
	// that is still quotable.
	req, ok := m.requests[q.RequestID]
	if !ok {
		return nil, service.ErrRequestNotFound
	}
	if req.Status != model.RequestPending && req.Status != model.RequestQuoted {
		return nil, service.ErrStaleRequest
	}

	for _, existing := range m.quotes {
		if existing.RequestID == q.RequestID &&
			existing.OperatorID == q.OperatorID &&
			existing.Status == model.QuoteSent {
			return nil, service.ErrDuplicateSentQuote
		}
	}

	m.nextQuoteID++
	q.ID = m.nextQuoteID
	q.Status = model.QuoteSent
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt

	stored := *q
	m.quotes[q.ID] = &stored
	return q, nil
}

func (m *MemoryStore) GetQuote(_ context.Context, id int64) (*model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[id]
	if !ok {
		return nil, service.ErrQuoteNotFound
	}
	out := *q
	return &out, nil
}

func (m *MemoryStore) ListQuotesByRequest(_ context.Context, requestID int64) ([]model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var quotes []model.Quote
	// Iterate in ID order so listings are deterministic.
	for id := int64(1); id <= m.nextQuoteID; id++ {
		if q, ok := m.quotes[id]; ok && q.RequestID == requestID {
			quotes = append(quotes, *q)
		}
	}
	return quotes, nil
}

func (m *MemoryStore) AcceptQuote(_ context.Context, quoteID int64) (*service.AcceptOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[quoteID]
	if !ok {
		return nil, service.ErrQuoteNotFound
	}
	if q.Status != model.QuoteSent {
		return nil, service.ErrQuoteNotSent
	}

	req, ok := m.requests[q.RequestID]
	if !ok {
		return nil, service.ErrRequestNotFound
	}
	if req.Status != model.RequestQuoted {
		return nil, service.ErrStaleRequest
	}

	q.Status = model.QuoteAccepted
	q.UpdatedAt = time.Now()

	superseded := 0
	for _, sibling := range m.quotes {
		if sibling.RequestID == q.RequestID && sibling.ID != quoteID && sibling.Status == model.QuoteSent {
			sibling.Status = model.QuoteSuperseded
			sibling.UpdatedAt = time.Now()
			superseded++
		}
	}

	fromStatus := req.Status
	req.Status = model.RequestAccepted
	opID := q.OperatorID
	req.OperatorID = &opID
	req.UpdatedAt = time.Now()

	accepted := *q
	return &service.AcceptOutcome{
		Quote:      &accepted,
		RequestID:  req.ID,
		CustomerID: req.CustomerID,
		FromStatus: fromStatus,
		Superseded: superseded,
	}, nil
}

func (m *MemoryStore) WithdrawQuote(_ context.Context, quoteID, operatorID int64) (*model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[quoteID]
	if !ok {
		return nil, service.ErrQuoteNotFound
	}
	if q.OperatorID != operatorID {
		return nil, service.ErrNotAssignedOperator
	}
	if q.Status != model.QuoteSent {
		return nil, service.ErrQuoteNotSent
	}

	q.Status = model.QuoteWithdrawn
	q.UpdatedAt = time.Now()
	out := *q
	return &out, nil
}

func (m *MemoryStore) DeclineQuote(_ context.Context, quoteID int64) (*model.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quotes[quoteID]
	if !ok {
		return nil, service.ErrQuoteNotFound
	}
	if q.Status != model.QuoteSent {
		return nil, service.ErrQuoteNotSent
	}

	q.Status = model.QuoteDeclined
	q.UpdatedAt = time.Now()
	out := *q
	return &out, nil
}

// ─── OperatorStore ──────────────────────────────────────────

// AddOperator seeds an operator, assigning an ID when none is set.
func (m *MemoryStore) AddOperator(op *model.Operator) *model.Operator {
	m.mu.Lock()
	defer m.mu.Unlock()

	if op.ID == 0 {
		m.nextOperatorID++
		op.ID = m.nextOperatorID
	} else if op.ID > m.nextOperatorID {
		m.nextOperatorID = op.ID
	}
	op.CreatedAt = time.Now()
	op.UpdatedAt = op.CreatedAt

	stored := *op
	m.operators[op.ID] = &stored
	return op
}

func (m *MemoryStore) GetOperator(_ context.Context, id int64) (*model.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.operators[id]
	if !ok {
		return nil, service.ErrOperatorNotFound
	}
	out := *op
	return &out, nil
}

func (m *MemoryStore) ListOperators(_ context.Context) ([]model.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pool := make([]model.Operator, 0, len(m.operators))
	for id := int64(1); id <= m.nextOperatorID; id++ {
		if op, ok := m.operators[id]; ok {
			pool = append(pool, *op)
		}
	}
	return pool, nil
}

func (m *MemoryStore) RecordCompletion(_ context.Context, operatorID int64, earnings float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.operators[operatorID]
	if !ok {
		return service.ErrOperatorNotFound
	}
	op.JobsCompleted++
	op.TotalEarnings += earnings
	op.UpdatedAt = time.Now()
	return nil
}

// ─── PricingStore ───────────────────────────────────────────

func memPricingKey(operatorID int64, st model.ServiceType) string {
	return fmt.Sprintf("%d:%s", operatorID, st)
}

// SetPricingConfig seeds a pricing configuration.
func (m *MemoryStore) SetPricingConfig(cfg *model.PricingConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *cfg
	m.pricing[memPricingKey(cfg.OperatorID, cfg.ServiceType)] = &stored
}

func (m *MemoryStore) GetPricingConfig(_ context.Context, operatorID int64, st model.ServiceType) (*model.PricingConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.pricing[memPricingKey(operatorID, st)]
	if !ok {
		return nil, service.ErrNoPricingConfig
	}
	out := *cfg
	return &out, nil
}

// ─── EventStore ─────────────────────────────────────────────

func (m *MemoryStore) AppendEvent(_ context.Context, ev *model.StatusEvent) (*model.StatusEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendEventErr != nil {
		return nil, m.AppendEventErr
	}

	m.nextEventID++
	ev.ID = m.nextEventID
	ev.CreatedAt = time.Now()
	m.events = append(m.events, *ev)
	return ev, nil
}

func (m *MemoryStore) CreateNotification(_ context.Context, n *model.Notification) (*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextNoteID++
	n.ID = m.nextNoteID
	n.CreatedAt = time.Now()
	m.notifications = append(m.notifications, *n)
	return n, nil
}

func (m *MemoryStore) ListEventsByRequest(_ context.Context, requestID int64) ([]model.StatusEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []model.StatusEvent
	for _, ev := range m.events {
		if ev.RequestID == requestID {
			events = append(events, ev)
		}
	}
	return events, nil
}

// Notifications returns a copy of every stored notification (test helper).
func (m *MemoryStore) Notifications() []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/krish/fieldserve/internal/model"
	"github.com/krish/fieldserve/internal/notify"
)

// ─── Lifecycle Errors ───────────────────────────────────────

var (
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrDuplicateSentQuote is returned when an operator already has a
	// 'sent' quote on the request. At most one per (request, operator).
	ErrDuplicateSentQuote = errors.New("operator already has a sent quote on this request")

	// ErrQuoteNotSent is returned when accepting or withdrawing a quote
	// that is no longer in 'sent' state.
	ErrQuoteNotSent = errors.New("quote is not in sent state")

	// ErrNotAssignedOperator is returned when someone other than the
	// assigned operator tries to start or complete the work.
	ErrNotAssignedOperator = errors.New("operator is not assigned to this request")

	// ErrStaleRequest is returned when the request's status changed under
	// a compare-and-swap transition attempt.
	ErrStaleRequest = errors.New("request status changed concurrently")
)

// ─── LifecycleService ───────────────────────────────────────

// LifecycleService drives every service-request status change through the
// transition table in transitions.go. Each mutation appends exactly one
// StatusEvent before any notification is created; notification fan-out is
// best-effort and never rolls back the transition.
type LifecycleService struct {
	requests  RequestStore
	quotes    QuoteStore
	operators OperatorStore
	events    EventStore
	quoting   *QuotingService
	publisher notify.Publisher
}

// NewLifecycleService wires the lifecycle over its stores and publisher.
func NewLifecycleService(
	requests RequestStore,
	quotes QuoteStore,
	operators OperatorStore,
	events EventStore,
	quoting *QuotingService,
	publisher notify.Publisher,
) *LifecycleService {
	return &LifecycleService{
		requests:  requests,
		quotes:    quotes,
		operators: operators,
		events:    events,
		quoting:   quoting,
		publisher: publisher,
	}
}

// ─── Quote submission ───────────────────────────────────────

// SubmitQuote records an operator's quote on a request. When amount is nil
// the auto-quote suggestion is used (and its breakdown retained). The first
// quote moves the request from pending to quoted; later quotes leave it
// quoted but still produce an event and a customer notification.
func (s *LifecycleService) SubmitQuote(
	ctx context.Context,
	requestID, operatorID int64,
	amount *float64,
	notes string,
) (*model.Quote, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	next, err := NextStatus(req.Status, model.EventQuoteSubmitted)
	if err != nil {
		return nil, err
	}

	op, err := s.operators.GetOperator(ctx, operatorID)
	if err != nil {
		return nil, ErrOperatorNotFound
	}

	quote := &model.Quote{
		RequestID:  requestID,
		OperatorID: operatorID,
		Tier:       op.Tier,
		Notes:      notes,
		Status:     model.QuoteSent,
	}

	if amount != nil {
		quote.Amount = *amount
	} else {
		bd, err := s.quoting.Suggest(ctx, req, op)
		if err != nil {
			// Unparseable budget (or store failure): there is no valid
			// amount to quote with. Surface it, don't send a $0 quote.
			return nil, err
		}
		quote.Amount = bd.Total
		quote.Breakdown = bd
	}

	quote, err = s.quotes.CreateQuote(ctx, quote)
	if err != nil {
		return nil, err
	}

	if req.Status == model.RequestPending {
		if err := s.requests.TransitionRequest(ctx, requestID, req.Status, next, nil); err != nil {
			return nil, err
		}
	}

	ev := s.appendEvent(ctx, req, model.ActorOperator, model.EventQuoteSubmitted, next, map[string]string{
		"quote_id": fmt.Sprintf("%d", quote.ID),
		"amount":   fmt.Sprintf("%.2f", quote.Amount),
	})
	s.emit(ctx, ev, "New quote received",
		fmt.Sprintf("An operator quoted $%.2f for your %s request.", quote.Amount, req.ServiceType),
		req.CustomerID)

	log.Printf("[lifecycle] request #%d: quote #%d submitted by operator #%d ($%.2f)",
		requestID, quote.ID, operatorID, quote.Amount)

	return quote, nil
}

// WithdrawQuote marks a sent quote operator_withdrawn. The request stays
// quoted; the customer is told the quote is gone.
func (s *LifecycleService) WithdrawQuote(ctx context.Context, quoteID, operatorID int64) (*model.Quote, error) {
	quote, err := s.quotes.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, ErrQuoteNotFound
	}

	req, err := s.requests.GetRequest(ctx, quote.RequestID)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	next, err := NextStatus(req.Status, model.EventQuoteWithdrawn)
	if err != nil {
		return nil, err
	}

	quote, err = s.quotes.WithdrawQuote(ctx, quoteID, operatorID)
	if err != nil {
		return nil, err
	}

	ev := s.appendEvent(ctx, req, model.ActorOperator, model.EventQuoteWithdrawn, next, map[string]string{
		"quote_id": fmt.Sprintf("%d", quoteID),
	})
	s.emit(ctx, ev, "Quote withdrawn",
		fmt.Sprintf("An operator withdrew their quote on your %s request.", req.ServiceType),
		req.CustomerID)

	return quote, nil
}

// DeclineQuote is the customer explicitly turning down a sent quote. The
// request stays quoted (other quotes remain live); the operator is told.
func (s *LifecycleService) DeclineQuote(ctx context.Context, quoteID int64) (*model.Quote, error) {
	quote, err := s.quotes.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, ErrQuoteNotFound
	}

	req, err := s.requests.GetRequest(ctx, quote.RequestID)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	next, err := NextStatus(req.Status, model.EventQuoteDeclined)
	if err != nil {
		return nil, err
	}

	quote, err = s.quotes.DeclineQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	ev := s.appendEvent(ctx, req, model.ActorCustomer, model.EventQuoteDeclined, next, map[string]string{
		"quote_id": fmt.Sprintf("%d", quoteID),
	})
	s.emit(ctx, ev, "Quote declined",
		fmt.Sprintf("The customer declined your $%.2f quote.", quote.Amount),
		quote.OperatorID)

	return quote, nil
}

// ─── Acceptance ─────────────────────────────────────────────

// AcceptQuote is the customer accepting exactly one quote. The quote store
// holds row locks across the read-decide-write sequence: the winning quote
// becomes accepted, sibling sent quotes are superseded, and the request
// moves to accepted with the operator assigned, all in one transaction.
func (s *LifecycleService) AcceptQuote(ctx context.Context, quoteID int64) (*AcceptOutcome, error) {
	quote, err := s.quotes.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, ErrQuoteNotFound
	}

	req, err := s.requests.GetRequest(ctx, quote.RequestID)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	next, err := NextStatus(req.Status, model.EventQuoteAccepted)
	if err != nil {
		return nil, err
	}

	outcome, err := s.quotes.AcceptQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	ev := s.appendEvent(ctx, req, model.ActorCustomer, model.EventQuoteAccepted, next, map[string]string{
		"quote_id":          fmt.Sprintf("%d", quoteID),
		"superseded_quotes": fmt.Sprintf("%d", outcome.Superseded),
	})
	s.emit(ctx, ev, "Quote accepted",
		fmt.Sprintf("Your $%.2f quote was accepted. The job is yours.", outcome.Quote.Amount),
		outcome.Quote.OperatorID)

	log.Printf("[lifecycle] request #%d: quote #%d accepted, %d sibling quote(s) superseded",
		req.ID, quoteID, outcome.Superseded)

	return outcome, nil
}

// ─── Work progress ──────────────────────────────────────────

// StartWork moves an accepted request to in_progress. Only the assigned
// operator may start.
func (s *LifecycleService) StartWork(ctx context.Context, requestID, operatorID int64) (*model.ServiceRequest, error) {
	return s.advance(ctx, requestID, operatorID, model.EventWorkStarted,
		"Work started", "Your operator has started the job.")
}

// CompleteWork moves an in_progress request to completed and updates the
// operator's aggregate stats from the accepted quote amount.
func (s *LifecycleService) CompleteWork(ctx context.Context, requestID, operatorID int64) (*model.ServiceRequest, error) {
	req, err := s.advance(ctx, requestID, operatorID, model.EventWorkCompleted,
		"Job completed", "Your operator marked the job as done.")
	if err != nil {
		return nil, err
	}

	// Aggregate stats are bookkeeping, not part of the transition: a
	// failure here is logged, not surfaced.
	if amount, ok := s.acceptedAmount(ctx, requestID); ok {
		if err := s.operators.RecordCompletion(ctx, operatorID, amount); err != nil {
			log.Printf("[lifecycle] request #%d: stats update for operator #%d failed: %v",
				requestID, operatorID, err)
		}
	}

	return req, nil
}

// advance is the shared path for operator-driven progress transitions.
func (s *LifecycleService) advance(
	ctx context.Context,
	requestID, operatorID int64,
	event model.EventType,
	title, body string,
) (*model.ServiceRequest, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, ErrRequestNotFound
	}
	if req.OperatorID == nil || *req.OperatorID != operatorID {
		return nil, ErrNotAssignedOperator
	}

	next, err := NextStatus(req.Status, event)
	if err != nil {
		return nil, err
	}

	if err := s.requests.TransitionRequest(ctx, requestID, req.Status, next, nil); err != nil {
		return nil, err
	}

	ev := s.appendEvent(ctx, req, model.ActorOperator, event, next, nil)
	s.emit(ctx, ev, title, body, req.CustomerID)

	req.Status = next
	return req, nil
}

// ─── Cancellation ───────────────────────────────────────────

// Cancel moves a non-terminal, non-in-progress request to cancelled and
// notifies the counterparty.
func (s *LifecycleService) Cancel(ctx context.Context, requestID int64, actor model.ActorRole) (*model.ServiceRequest, error) {
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, ErrRequestNotFound
	}

	next, err := NextStatus(req.Status, model.EventCancelled)
	if err != nil {
		return nil, err
	}

	if err := s.requests.TransitionRequest(ctx, requestID, req.Status, next, nil); err != nil {
		return nil, err
	}

	ev := s.appendEvent(ctx, req, actor, model.EventCancelled, next, nil)

	// Notify whoever didn't cancel.
	switch actor {
	case model.ActorOperator:
		s.emit(ctx, ev, "Request cancelled", "The operator cancelled the job.", req.CustomerID)
	default:
		if req.OperatorID != nil {
			s.emit(ctx, ev, "Request cancelled", "The customer cancelled the job.", *req.OperatorID)
		}
	}

	log.Printf("[lifecycle] request #%d cancelled by %s (was %s)", requestID, actor, req.Status)

	req.Status = next
	return req, nil
}

// ─── Event + notification plumbing ──────────────────────────

// appendEvent records the StatusEvent for a transition. Event persistence
// failures are logged but do not abort the already-applied transition; the
// nil return tells emit there is no causal event to hang notifications on.
func (s *LifecycleService) appendEvent(
	ctx context.Context,
	req *model.ServiceRequest,
	actor model.ActorRole,
	event model.EventType,
	to model.RequestStatus,
	metadata map[string]string,
) *model.StatusEvent {
	ev, err := s.events.AppendEvent(ctx, &model.StatusEvent{
		RequestID: req.ID,
		Actor:     actor,
		Event:     event,
		From:      req.Status,
		To:        to,
		Metadata:  metadata,
	})
	if err != nil {
		log.Printf("[lifecycle] request #%d: append %s event failed: %v", req.ID, event, err)
		return nil
	}
	return ev
}

// emit stores one notification row per recipient and fans the messages out
// through the publisher. Per-recipient failures are collected and logged;
// the caller's transition is never affected. A nil event (persistence
// failed) skips emission entirely: every notification must be traceable to
// a stored StatusEvent.
func (s *LifecycleService) emit(
	ctx context.Context,
	ev *model.StatusEvent,
	title, body string,
	userIDs ...int64,
) []notify.DeliveryResult {
	if ev == nil {
		log.Printf("[notify] skipping %d recipient(s): causal event was not persisted", len(userIDs))
		return nil
	}

	results := make([]notify.DeliveryResult, 0, len(userIDs))
	msgs := make([]notify.Message, 0, len(userIDs))

	for _, uid := range userIDs {
		n := &model.Notification{
			UserID:    uid,
			Title:     title,
			Body:      body,
			RequestID: ev.RequestID,
			EventID:   ev.ID,
		}
		if _, err := s.events.CreateNotification(ctx, n); err != nil {
			log.Printf("[notify] store notification for user #%d failed: %v", uid, err)
			results = append(results, notify.DeliveryResult{UserID: uid, Err: err})
			continue
		}
		msgs = append(msgs, notify.Message{
			UserID:    uid,
			Title:     title,
			Body:      body,
			RequestID: ev.RequestID,
			EventID:   ev.ID,
		})
	}

	return append(results, notify.FanOut(ctx, s.publisher, msgs)...)
}

// acceptedAmount finds the accepted quote's amount for a request.
func (s *LifecycleService) acceptedAmount(ctx context.Context, requestID int64) (float64, bool) {
	quotes, err := s.quotes.ListQuotesByRequest(ctx, requestID)
	if err != nil {
		log.Printf("[lifecycle] request #%d: list quotes failed: %v", requestID, err)
		return 0, false
	}
	for _, q := range quotes {
		if q.Status == model.QuoteAccepted {
			return q.Amount, true
		}
	}
	return 0, false
}

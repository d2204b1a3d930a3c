package service

import (
	"errors"
	"fmt"

	"github.com/krish/fieldserve/internal/model"
)

// ErrInvalidTransition is returned when an event is not legal from the
// request's current status. The request is left untouched; illegal
// transitions are rejected, never coerced to the nearest legal state.
var ErrInvalidTransition = errors.New("illegal status transition")

// transitions is the single source of truth for the request lifecycle:
// status × event → next status. Anything absent from the table is illegal.
//
//	pending → quoted → accepted → in_progress → completed
//	cancelled is reachable from pending, quoted, and accepted only.
//
// A quote_submitted, quote_withdrawn, or quote_declined on an
// already-quoted request keeps the status at quoted; the event is still
// recorded so the notification it produces stays traceable.
var transitions = map[model.RequestStatus]map[model.EventType]model.RequestStatus{
	model.RequestPending: {
		model.EventQuoteSubmitted: model.RequestQuoted,
		model.EventCancelled:      model.RequestCancelled,
	},
	model.RequestQuoted: {
		model.EventQuoteSubmitted: model.RequestQuoted,
		model.EventQuoteWithdrawn: model.RequestQuoted,
		model.EventQuoteDeclined:  model.RequestQuoted,
		model.EventQuoteAccepted:  model.RequestAccepted,
		model.EventCancelled:      model.RequestCancelled,
	},
	model.RequestAccepted: {
		model.EventWorkStarted: model.RequestInProgress,
		model.EventCancelled:   model.RequestCancelled,
	},
	model.RequestInProgress: {
		model.EventWorkCompleted: model.RequestCompleted,
	},
	// completed and cancelled are terminal.
}

// NextStatus returns the status a request moves to when `event` fires from
// `current`, or ErrInvalidTransition if the table has no such edge.
func NextStatus(current model.RequestStatus, event model.EventType) (model.RequestStatus, error) {
	next, ok := transitions[current][event]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, current)
	}
	return next, nil
}

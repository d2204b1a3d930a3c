package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krish/fieldserve/internal/model"
	"github.com/krish/fieldserve/internal/notify"
	"github.com/krish/fieldserve/internal/repository"
	"github.com/krish/fieldserve/internal/service"
)

type fixture struct {
	store     *repository.MemoryStore
	collector *notify.Collector
	lifecycle *service.LifecycleService
}

func newFixture() *fixture {
	store := repository.NewMemoryStore()
	collector := notify.NewCollector()
	quoting := service.NewQuotingService(store)
	lifecycle := service.NewLifecycleService(store, store, store, store, quoting, collector)
	return &fixture{store: store, collector: collector, lifecycle: lifecycle}
}

func (f *fixture) seedOperator(name string) *model.Operator {
	return f.store.AddOperator(&model.Operator{
		Name:     name,
		Tier:     model.TierEquipped,
		Online:   true,
		Services: []model.ServiceType{model.ServiceSnowPlowing, model.ServiceTowing},
	})
}

func (f *fixture) seedRequest(t *testing.T, customerID int64) *model.ServiceRequest {
	t.Helper()
	req, err := f.store.CreateRequest(context.Background(), &model.ServiceRequest{
		CustomerID:  customerID,
		ServiceType: model.ServiceSnowPlowing,
		BudgetRange: "$60-$100",
	})
	require.NoError(t, err)
	return req
}

func amount(v float64) *float64 { return &v }

func TestNextStatus_Table(t *testing.T) {
	tests := []struct {
		from  model.RequestStatus
		event model.EventType
		to    model.RequestStatus
		ok    bool
	}{
		{model.RequestPending, model.EventQuoteSubmitted, model.RequestQuoted, true},
		{model.RequestPending, model.EventCancelled, model.RequestCancelled, true},
		{model.RequestPending, model.EventQuoteAccepted, "", false},
		{model.RequestPending, model.EventWorkStarted, "", false},
		{model.RequestPending, model.EventWorkCompleted, "", false},
		{model.RequestQuoted, model.EventQuoteSubmitted, model.RequestQuoted, true},
		{model.RequestQuoted, model.EventQuoteWithdrawn, model.RequestQuoted, true},
		{model.RequestQuoted, model.EventQuoteDeclined, model.RequestQuoted, true},
		{model.RequestQuoted, model.EventQuoteAccepted, model.RequestAccepted, true},
		{model.RequestPending, model.EventQuoteDeclined, "", false},
		{model.RequestAccepted, model.EventQuoteDeclined, "", false},
		{model.RequestAccepted, model.EventWorkStarted, model.RequestInProgress, true},
		{model.RequestAccepted, model.EventCancelled, model.RequestCancelled, true},
		{model.RequestInProgress, model.EventWorkCompleted, model.RequestCompleted, true},
		{model.RequestInProgress, model.EventCancelled, "", false},
		{model.RequestCompleted, model.EventQuoteSubmitted, "", false},
		{model.RequestCancelled, model.EventQuoteSubmitted, "", false},
	}

	for _, tt := range tests {
		next, err := service.NextStatus(tt.from, tt.event)
		if tt.ok {
			require.NoError(t, err, "%s on %s", tt.event, tt.from)
			assert.Equal(t, tt.to, next)
		} else {
			assert.ErrorIs(t, err, service.ErrInvalidTransition, "%s on %s", tt.event, tt.from)
		}
	}
}

func TestSubmitQuote_MovesPendingToQuoted(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("plow co")
	req := f.seedRequest(t, 42)

	quote, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, amount(75), "before noon")
	require.NoError(t, err)
	assert.Equal(t, 75.0, quote.Amount)
	assert.Equal(t, model.QuoteSent, quote.Status)

	got, err := f.store.GetRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestQuoted, got.Status)

	// Exactly one event, then one customer notification for it.
	events, err := f.store.ListEventsByRequest(context.Background(), req.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventQuoteSubmitted, events[0].Event)
	assert.Equal(t, model.RequestPending, events[0].From)
	assert.Equal(t, model.RequestQuoted, events[0].To)

	sent := f.collector.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(42), sent[0].UserID)
	assert.Equal(t, events[0].ID, sent[0].EventID)
}

func TestSubmitQuote_AutoQuoteFromBudget(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("plow co")
	req := f.seedRequest(t, 42) // "$60-$100", no pricing config

	quote, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, nil, "")
	require.NoError(t, err)

	assert.Equal(t, 80.0, quote.Amount)
	require.NotNil(t, quote.Breakdown)
	assert.Equal(t, model.MethodCustomerBudget, quote.Breakdown.Method)
}

func TestSubmitQuote_AutoQuoteFromPricingConfig(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("tow co")
	f.store.SetPricingConfig(&model.PricingConfig{
		OperatorID:  op.ID,
		ServiceType: model.ServiceTowing,
		BaseRate:    50,
		PerKmRate:   5,
	})

	req, err := f.store.CreateRequest(context.Background(), &model.ServiceRequest{
		CustomerID:  7,
		ServiceType: model.ServiceTowing,
	})
	require.NoError(t, err)

	quote, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, nil, "")
	require.NoError(t, err)

	assert.Equal(t, 65.0, quote.Amount)
	require.NotNil(t, quote.Breakdown)
	assert.Equal(t, model.MethodPricingConfig, quote.Breakdown.Method)
}

func TestSubmitQuote_UnquotableLeavesRequestUntouched(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("plow co")

	req, err := f.store.CreateRequest(context.Background(), &model.ServiceRequest{
		CustomerID:  42,
		ServiceType: model.ServiceSnowPlowing,
		BudgetRange: "whatever's fair",
	})
	require.NoError(t, err)

	_, err = f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, nil, "")
	require.ErrorIs(t, err, service.ErrBudgetUnparseable)

	// No quote, no transition, no event, no notification.
	quotes, err := f.store.ListQuotesByRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Empty(t, quotes)

	got, _ := f.store.GetRequest(context.Background(), req.ID)
	assert.Equal(t, model.RequestPending, got.Status)

	events, _ := f.store.ListEventsByRequest(context.Background(), req.ID)
	assert.Empty(t, events)
	assert.Empty(t, f.collector.Sent())
}

func TestSubmitQuote_DuplicateSentRejected(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("plow co")
	req := f.seedRequest(t, 42)

	_, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, amount(75), "")
	require.NoError(t, err)

	_, err = f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, amount(70), "")
	assert.ErrorIs(t, err, service.ErrDuplicateSentQuote)
}

func TestSubmitQuote_RepeatQuoteKeepsQuoted(t *testing.T) {
	f := newFixture()
	first := f.seedOperator("first")
	second := f.seedOperator("second")
	req := f.seedRequest(t, 42)

	_, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, first.ID, amount(75), "")
	require.NoError(t, err)
	_, err = f.lifecycle.SubmitQuote(context.Background(), req.ID, second.ID, amount(70), "")
	require.NoError(t, err)

	got, _ := f.store.GetRequest(context.Background(), req.ID)
	assert.Equal(t, model.RequestQuoted, got.Status)

	events, _ := f.store.ListEventsByRequest(context.Background(), req.ID)
	require.Len(t, events, 2)
	// The second event records a quoted→quoted edge.
	assert.Equal(t, model.RequestQuoted, events[1].From)
	assert.Equal(t, model.RequestQuoted, events[1].To)
}

func TestAcceptQuote_SupersedesSiblings(t *testing.T) {
	f := newFixture()
	winner := f.seedOperator("winner")
	loser := f.seedOperator("loser")
	req := f.seedRequest(t, 42)

	winning, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, winner.ID, amount(75), "")
	require.NoError(t, err)
	losing, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, loser.ID, amount(90), "")
	require.NoError(t, err)

	outcome, err := f.lifecycle.AcceptQuote(context.Background(), winning.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Superseded)
	assert.Equal(t, model.QuoteAccepted, outcome.Quote.Status)

	got, _ := f.store.GetRequest(context.Background(), req.ID)
	assert.Equal(t, model.RequestAccepted, got.Status)
	require.NotNil(t, got.OperatorID)
	assert.Equal(t, winner.ID, *got.OperatorID)

	superseded, err := f.store.GetQuote(context.Background(), losing.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteSuperseded, superseded.Status)

	// A second accept must fail: the request already left quoted.
	_, err = f.lifecycle.AcceptQuote(context.Background(), losing.ID)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	// The winning operator was notified.
	sent := f.collector.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, winner.ID, sent[len(sent)-1].UserID)
}

func TestWithdrawQuote(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("plow co")
	stranger := f.seedOperator("stranger")
	req := f.seedRequest(t, 42)

	quote, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, amount(75), "")
	require.NoError(t, err)

	_, err = f.lifecycle.WithdrawQuote(context.Background(), quote.ID, stranger.ID)
	assert.ErrorIs(t, err, service.ErrNotAssignedOperator)

	withdrawn, err := f.lifecycle.WithdrawQuote(context.Background(), quote.ID, op.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteWithdrawn, withdrawn.Status)

	// The request stays quoted; other operators may still bid.
	got, _ := f.store.GetRequest(context.Background(), req.ID)
	assert.Equal(t, model.RequestQuoted, got.Status)
}

func TestDeclineQuote(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("plow co")
	req := f.seedRequest(t, 42)

	quote, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, amount(75), "")
	require.NoError(t, err)

	declined, err := f.lifecycle.DeclineQuote(context.Background(), quote.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteDeclined, declined.Status)

	// The request stays quoted; other operators may still bid.
	got, _ := f.store.GetRequest(context.Background(), req.ID)
	assert.Equal(t, model.RequestQuoted, got.Status)

	events, _ := f.store.ListEventsByRequest(context.Background(), req.ID)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventQuoteDeclined, events[1].Event)
	assert.Equal(t, model.RequestQuoted, events[1].From)
	assert.Equal(t, model.RequestQuoted, events[1].To)

	// The declined operator hears about it.
	sent := f.collector.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, op.ID, sent[len(sent)-1].UserID)

	// A quote can only be declined while it is still sent.
	_, err = f.lifecycle.DeclineQuote(context.Background(), quote.ID)
	assert.ErrorIs(t, err, service.ErrQuoteNotSent)
}

func TestCreateQuote_StaleRequestRejectedByStore(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("plow co")
	req := f.seedRequest(t, 42)

	_, err := f.lifecycle.Cancel(context.Background(), req.ID, model.ActorCustomer)
	require.NoError(t, err)

	// Bypass the service-layer status check, as a submit racing the cancel
	// would: the store itself must refuse to attach a quote to a request
	// that is no longer quotable.
	_, err = f.store.CreateQuote(context.Background(), &model.Quote{
		RequestID:  req.ID,
		OperatorID: op.ID,
		Tier:       op.Tier,
		Amount:     75,
	})
	assert.ErrorIs(t, err, service.ErrStaleRequest)

	quotes, err := f.store.ListQuotesByRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Empty(t, quotes)
}

func TestEventPersistenceFailureSkipsNotifications(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("plow co")
	req := f.seedRequest(t, 42)

	f.store.AppendEventErr = assert.AnError

	// The transition and the quote survive an audit-trail write failure.
	quote, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, amount(75), "")
	require.NoError(t, err)
	assert.Equal(t, model.QuoteSent, quote.Status)

	got, _ := f.store.GetRequest(context.Background(), req.ID)
	assert.Equal(t, model.RequestQuoted, got.Status)

	// But no notification goes out without a stored event to anchor it.
	assert.Empty(t, f.collector.Sent())
	assert.Empty(t, f.store.Notifications())
}

func TestStartAndCompleteWork(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("plow co")
	other := f.seedOperator("other")
	req := f.seedRequest(t, 42)

	quote, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, amount(75), "")
	require.NoError(t, err)
	_, err = f.lifecycle.AcceptQuote(context.Background(), quote.ID)
	require.NoError(t, err)

	// Only the assigned operator may start.
	_, err = f.lifecycle.StartWork(context.Background(), req.ID, other.ID)
	assert.ErrorIs(t, err, service.ErrNotAssignedOperator)

	started, err := f.lifecycle.StartWork(context.Background(), req.ID, op.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestInProgress, started.Status)

	// in_progress cannot be cancelled.
	_, err = f.lifecycle.Cancel(context.Background(), req.ID, model.ActorCustomer)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)

	completed, err := f.lifecycle.CompleteWork(context.Background(), req.ID, op.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestCompleted, completed.Status)

	// Completion updates the operator's aggregates from the accepted amount.
	opAfter, err := f.store.GetOperator(context.Background(), op.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, opAfter.JobsCompleted)
	assert.Equal(t, 75.0, opAfter.TotalEarnings)

	// Full history: submit, accept, start, complete.
	events, _ := f.store.ListEventsByRequest(context.Background(), req.ID)
	require.Len(t, events, 4)
	assert.Equal(t, model.EventWorkCompleted, events[3].Event)
}

func TestCancel_NotifiesCounterparty(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("plow co")
	req := f.seedRequest(t, 42)

	quote, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, amount(75), "")
	require.NoError(t, err)
	_, err = f.lifecycle.AcceptQuote(context.Background(), quote.ID)
	require.NoError(t, err)

	cancelled, err := f.lifecycle.Cancel(context.Background(), req.ID, model.ActorCustomer)
	require.NoError(t, err)
	assert.Equal(t, model.RequestCancelled, cancelled.Status)

	// The assigned operator hears about the customer's cancel.
	sent := f.collector.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, op.ID, sent[len(sent)-1].UserID)

	// Terminal: nothing else is legal.
	_, err = f.lifecycle.Cancel(context.Background(), req.ID, model.ActorCustomer)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestCancel_ByCustomerBeforeAssignment(t *testing.T) {
	f := newFixture()
	req := f.seedRequest(t, 42)

	notesBefore := len(f.store.Notifications())

	cancelled, err := f.lifecycle.Cancel(context.Background(), req.ID, model.ActorCustomer)
	require.NoError(t, err)
	assert.Equal(t, model.RequestCancelled, cancelled.Status)

	// No operator assigned, so nobody to notify.
	assert.Len(t, f.store.Notifications(), notesBefore)
}

func TestNotificationFailureDoesNotAbortTransition(t *testing.T) {
	f := newFixture()
	op := f.seedOperator("plow co")
	req := f.seedRequest(t, 42)

	f.collector.FailFor[42] = assert.AnError

	_, err := f.lifecycle.SubmitQuote(context.Background(), req.ID, op.ID, amount(75), "")
	require.NoError(t, err)

	got, _ := f.store.GetRequest(context.Background(), req.ID)
	assert.Equal(t, model.RequestQuoted, got.Status)

	// The event is still there even though delivery failed.
	events, _ := f.store.ListEventsByRequest(context.Background(), req.ID)
	assert.Len(t, events, 1)
}

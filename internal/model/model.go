// Package model contains domain models for the service marketplace.
// These structs map to the PostgreSQL schema defined in migrations/001_create_schema.up.sql.
package model

import "time"

// ─── Enums ──────────────────────────────────────────────────

type ServiceType string

const (
	ServiceSnowPlowing ServiceType = "snow_plowing"
	ServiceTowing      ServiceType = "towing"
	ServiceHauling     ServiceType = "hauling"
	ServiceCourier     ServiceType = "courier"
)

// Valid reports whether st is one of the supported service types.
func (st ServiceType) Valid() bool {
	switch st {
	case ServiceSnowPlowing, ServiceTowing, ServiceHauling, ServiceCourier:
		return true
	}
	return false
}

type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestQuoted     RequestStatus = "quoted"
	RequestAccepted   RequestStatus = "accepted"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestCancelled  RequestStatus = "cancelled"
)

type QuoteStatus string

const (
	QuoteSent       QuoteStatus = "sent"
	QuoteAccepted   QuoteStatus = "accepted"
	QuoteDeclined   QuoteStatus = "declined"
	QuoteWithdrawn  QuoteStatus = "operator_withdrawn"
	QuoteSuperseded QuoteStatus = "superseded"
)

type ActorRole string

const (
	ActorCustomer ActorRole = "customer"
	ActorOperator ActorRole = "operator"
	ActorSystem   ActorRole = "system"
)

// EventType names a lifecycle event applied to a service request.
type EventType string

const (
	EventQuoteSubmitted EventType = "quote_submitted"
	EventQuoteWithdrawn EventType = "quote_withdrawn"
	EventQuoteDeclined  EventType = "quote_declined"
	EventQuoteAccepted  EventType = "quote_accepted"
	EventWorkStarted    EventType = "work_started"
	EventWorkCompleted  EventType = "work_completed"
	EventCancelled      EventType = "cancelled"
)

// ─── Operator tiers ─────────────────────────────────────────

// OperatorTier is an operator's service class. Each tier carries an
// operating-radius ceiling (nil = unlimited) and a pricing multiplier.
type OperatorTier string

const (
	TierManual       OperatorTier = "manual"
	TierEquipped     OperatorTier = "equipped"
	TierProfessional OperatorTier = "professional"
)

var tierRadiusKm = map[OperatorTier]float64{
	TierManual:   5,
	TierEquipped: 15,
}

var tierMultiplier = map[OperatorTier]float64{
	TierManual:       1.0,
	TierEquipped:     1.25,
	TierProfessional: 1.5,
}

// OperatingRadiusKm returns the tier's radius ceiling in kilometers,
// or nil for unlimited-radius tiers (professional).
func (t OperatorTier) OperatingRadiusKm() *float64 {
	if r, ok := tierRadiusKm[t]; ok {
		return &r
	}
	return nil
}

// PriceMultiplier returns the tier's pricing multiplier, defaulting to 1.0
// for unknown tiers.
func (t OperatorTier) PriceMultiplier() float64 {
	if m, ok := tierMultiplier[t]; ok {
		return m
	}
	return 1.0
}

// ─── Location ───────────────────────────────────────────────

// Location represents a WGS-84 geographic point.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ─── Domain Models ──────────────────────────────────────────

// ServiceRequest maps to the `service_requests` table.
//
// A request is created by a customer, mutated only through the lifecycle
// service, and never deleted; it ends in a terminal status.
type ServiceRequest struct {
	ID          int64          `json:"id"`
	CustomerID  int64          `json:"customer_id"`
	OperatorID  *int64         `json:"operator_id,omitempty"` // nil until a quote is accepted
	ServiceType ServiceType    `json:"service_type"`
	IsEmergency bool           `json:"is_emergency"`
	Description string         `json:"description"`
	Address     string         `json:"address"`
	Coords      *Location      `json:"coords,omitempty"` // nil when geocoding failed or was skipped
	Details     ServiceDetails `json:"details"`
	BudgetRange string         `json:"budget_range"` // customer-stated "$min-$max"
	Status      RequestStatus  `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Quote maps to the `quotes` table.
//
// At most one quote per (request, operator) pair may be in 'sent' state;
// the quote repository enforces this transactionally.
type Quote struct {
	ID         int64           `json:"id"`
	RequestID  int64           `json:"request_id"`
	OperatorID int64           `json:"operator_id"`
	Tier       OperatorTier    `json:"tier"` // tier at time of quoting
	Amount     float64         `json:"amount"`
	Breakdown  *QuoteBreakdown `json:"breakdown,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	Status     QuoteStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// QuoteMethod records which path produced a suggested amount.
type QuoteMethod string

const (
	MethodPricingConfig  QuoteMethod = "pricing_config"
	MethodCustomerBudget QuoteMethod = "customer_budget"
)

// QuoteBreakdown is the transparent audit trail of an auto-quote.
type QuoteBreakdown struct {
	Method            QuoteMethod `json:"method"`
	BaseRate          float64     `json:"base_rate"`
	DistanceKm        float64     `json:"distance_km"`
	DistanceCost      float64     `json:"distance_cost"`
	UrgencyMultiplier float64     `json:"urgency_multiplier"`
	MinimumFee        float64     `json:"minimum_fee"`
	Total             float64     `json:"total"`
}

// PricingConfig holds one operator's pricing parameters for one service.
type PricingConfig struct {
	OperatorID  int64       `json:"operator_id"`
	ServiceType ServiceType `json:"service_type"`
	BaseRate    float64     `json:"base_rate"`
	PerKmRate   float64     `json:"per_km_rate"`
	MinimumFee  float64     `json:"minimum_fee"`
	// UrgencyMultipliers is keyed by "emergency" / "scheduled".
	// Missing keys default to 1.5 and 1.0 respectively.
	UrgencyMultipliers map[string]float64 `json:"urgency_multipliers,omitempty"`
}

// Operator maps to the `operators` table.
type Operator struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Tier          OperatorTier  `json:"tier"`
	Home          *Location     `json:"home,omitempty"` // nil when coordinates are missing/unparseable
	Online        bool          `json:"online"`
	Services      []ServiceType `json:"services"`
	JobsCompleted int           `json:"jobs_completed"`
	TotalEarnings float64       `json:"total_earnings"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Offers reports whether the operator offers the given service.
func (o *Operator) Offers(st ServiceType) bool {
	for _, s := range o.Services {
		if s == st {
			return true
		}
	}
	return false
}

// StatusEvent is an immutable, append-only record of one lifecycle event.
// Notifications always reference the StatusEvent that caused them.
type StatusEvent struct {
	ID        int64             `json:"id"`
	RequestID int64             `json:"request_id"`
	Actor     ActorRole         `json:"actor"`
	Event     EventType         `json:"event"`
	From      RequestStatus     `json:"from"`
	To        RequestStatus     `json:"to"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Notification is one recipient-facing message produced by a StatusEvent.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	RequestID int64     `json:"request_id"`
	EventID   int64     `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Package notify delivers per-recipient notifications produced by request
// lifecycle transitions. Delivery is best-effort: every recipient is
// attempted, individual failures are recorded and logged, and the caller's
// transition is never failed or rolled back on delivery errors.
package notify

import (
	"context"
	"log"
	"sync"
)

// Message is one recipient-facing notification payload.
type Message struct {
	UserID    int64  `json:"user_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	RequestID int64  `json:"request_id"`
	EventID   int64  `json:"event_id"` // the StatusEvent that caused this message
}

// Publisher sends a single message to one recipient's channel.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// DeliveryResult is the outcome of one delivery attempt.
type DeliveryResult struct {
	UserID int64
	Err    error
}

// Failed reports whether the delivery attempt failed.
func (r DeliveryResult) Failed() bool { return r.Err != nil }

// FanOut attempts every message and collects per-recipient outcomes.
// Independent recipients carry no ordering guarantee relative to each other.
func FanOut(ctx context.Context, p Publisher, msgs []Message) []DeliveryResult {
	results := make([]DeliveryResult, 0, len(msgs))
	for _, msg := range msgs {
		err := p.Publish(ctx, msg)
		if err != nil {
			log.Printf("[notify] delivery to user #%d failed: %v", msg.UserID, err)
		}
		results = append(results, DeliveryResult{UserID: msg.UserID, Err: err})
	}
	return results
}

// ─── Test double ────────────────────────────────────────────

// Collector is an in-memory Publisher that records every message.
type Collector struct {
	mu   sync.Mutex
	sent []Message

	// FailFor causes Publish to fail for the listed user IDs.
	FailFor map[int64]error
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{FailFor: make(map[int64]error)}
}

// Publish records the message, or fails if the recipient is in FailFor.
func (c *Collector) Publish(_ context.Context, msg Message) error {
	if err, ok := c.FailFor[msg.UserID]; ok {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (c *Collector) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krish/fieldserve/internal/model"
)

// EventRepository appends status events and notification records.
// Both tables are append-only; nothing here mutates or deletes.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new event repository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// AppendEvent records one status transition.
func (r *EventRepository) AppendEvent(ctx context.Context, ev *model.StatusEvent) (*model.StatusEvent, error) {
	var metadata []byte
	if ev.Metadata != nil {
		var err error
		metadata, err = json.Marshal(ev.Metadata)
		if err != nil {
			return nil, fmt.Errorf("append event: marshal metadata: %w", err)
		}
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO status_events (request_id, actor, event, from_status, to_status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, ev.RequestID, ev.Actor, ev.Event, ev.From, ev.To, metadata).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append event for request %d: %w", ev.RequestID, err)
	}

	return ev, nil
}

// CreateNotification records one recipient-facing notification.
func (r *EventRepository) CreateNotification(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, title, body, request_id, event_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0))
		RETURNING id, created_at
	`, n.UserID, n.Title, n.Body, n.RequestID, n.EventID).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create notification for user %d: %w", n.UserID, err)
	}
	return n, nil
}

// ListEventsByRequest returns a request's status history, oldest first.
func (r *EventRepository) ListEventsByRequest(ctx context.Context, requestID int64) ([]model.StatusEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, request_id, actor, event, from_status, to_status, metadata, created_at
		FROM status_events
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list events for request %d: %w", requestID, err)
	}
	defer rows.Close()

	var events []model.StatusEvent
	for rows.Next() {
		var (
			ev       model.StatusEvent
			metadata []byte
		)
		if err := rows.Scan(
			&ev.ID, &ev.RequestID, &ev.Actor, &ev.Event,
			&ev.From, &ev.To, &metadata, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode event metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

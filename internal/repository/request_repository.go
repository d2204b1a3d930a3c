// Package repository provides PostgreSQL access for the marketplace.
//
// All multi-row decisions (quote acceptance, status transitions) happen
// inside transactions with row-level locks (SELECT ... FOR UPDATE) so the
// read-decide-write sequences are race-free.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krish/fieldserve/internal/model"
	"github.com/krish/fieldserve/internal/service"
)

// RequestRepository handles CRUD and status transitions for service requests.
type RequestRepository struct {
	pool *pgxpool.Pool
}

// NewRequestRepository creates a new repository backed by the given PG pool.
func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

// CreateRequest inserts a new pending service request.
func (r *RequestRepository) CreateRequest(
	ctx context.Context,
	req *model.ServiceRequest,
) (*model.ServiceRequest, error) {
	details, err := json.Marshal(req.Details)
	if err != nil {
		return nil, fmt.Errorf("create request: marshal details: %w", err)
	}

	var lat, lng *float64
	if req.Coords != nil {
		lat, lng = &req.Coords.Lat, &req.Coords.Lng
	}

	query := `
		INSERT INTO service_requests (
			customer_id, service_type, is_emergency, description,
			address, lat, lng, details, budget_range, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')
		RETURNING id, created_at, updated_at
	`
	err = r.pool.QueryRow(ctx, query,
		req.CustomerID, req.ServiceType, req.IsEmergency, req.Description,
		req.Address, lat, lng, details, req.BudgetRange,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Status = model.RequestPending
	return req, nil
}

// GetRequest fetches a service request by ID.
func (r *RequestRepository) GetRequest(ctx context.Context, id int64) (*model.ServiceRequest, error) {
	query := `
		SELECT id, customer_id, operator_id, service_type, is_emergency,
		       description, address, lat, lng, details, budget_range,
		       status, created_at, updated_at
		FROM service_requests
		WHERE id = $1
	`
	req := &model.ServiceRequest{}
	var (
		lat, lng *float64
		details  []byte
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&req.ID, &req.CustomerID, &req.OperatorID, &req.ServiceType, &req.IsEmergency,
		&req.Description, &req.Address, &lat, &lng, &details, &req.BudgetRange,
		&req.Status, &req.CreatedAt, &req.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request %d: %w", id, err)
	}

	if lat != nil && lng != nil {
		req.Coords = &model.Location{Lat: *lat, Lng: *lng}
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &req.Details); err != nil {
			return nil, fmt.Errorf("get request %d: decode details: %w", id, err)
		}
	}

	return req, nil
}

// TransitionRequest moves the request from `from` to `to` as a single
// compare-and-swap UPDATE. A zero-row update means the status changed
// under us and is reported as ErrStaleRequest.
func (r *RequestRepository) TransitionRequest(
	ctx context.Context,
	id int64,
	from, to model.RequestStatus,
	operatorID *int64,
) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE service_requests
		SET status = $3,
		    operator_id = COALESCE($4, operator_id),
		    updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to, operatorID)
	if err != nil {
		return fmt.Errorf("transition request %d %s→%s: %w", id, from, to, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrStaleRequest
	}
	return nil
}

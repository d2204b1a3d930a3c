package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krish/fieldserve/internal/model"
	"github.com/krish/fieldserve/internal/service"
)

// OperatorRepository reads operator snapshots and records completion stats.
// Operator account management itself (signup, tier review) lives elsewhere;
// this repository is the read side the matching and lifecycle paths need.
type OperatorRepository struct {
	pool *pgxpool.Pool
}

// NewOperatorRepository creates a new operator repository.
func NewOperatorRepository(pool *pgxpool.Pool) *OperatorRepository {
	return &OperatorRepository{pool: pool}
}

const operatorColumns = `
	id, name, tier, home_lat, home_lng, online, services,
	jobs_completed, total_earnings, created_at, updated_at
`

// GetOperator fetches a single operator by ID.
func (r *OperatorRepository) GetOperator(ctx context.Context, id int64) (*model.Operator, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id)

	op, err := scanOperator(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrOperatorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get operator %d: %w", id, err)
	}
	return op, nil
}

// ListOperators returns the full operator pool snapshot. Eligibility
// filtering (online, service, tier radius) happens in the matching service.
func (r *OperatorRepository) ListOperators(ctx context.Context) ([]model.Operator, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+operatorColumns+` FROM operators ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	var pool []model.Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operator: %w", err)
		}
		pool = append(pool, *op)
	}
	return pool, rows.Err()
}

// RecordCompletion bumps the operator's aggregate stats after a completed job.
func (r *OperatorRepository) RecordCompletion(ctx context.Context, operatorID int64, earnings float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE operators
		SET jobs_completed = jobs_completed + 1,
		    total_earnings = total_earnings + $2,
		    updated_at = now()
		WHERE id = $1
	`, operatorID, earnings)
	if err != nil {
		return fmt.Errorf("record completion for operator %d: %w", operatorID, err)
	}
	if tag.RowsAffected() == 0 {
		return service.ErrOperatorNotFound
	}
	return nil
}

func scanOperator(row pgx.Row) (*model.Operator, error) {
	op := &model.Operator{}
	var (
		lat, lng *float64
		services []string
	)
	err := row.Scan(
		&op.ID, &op.Name, &op.Tier, &lat, &lng, &op.Online, &services,
		&op.JobsCompleted, &op.TotalEarnings, &op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat != nil && lng != nil {
		op.Home = &model.Location{Lat: *lat, Lng: *lng}
	}
	op.Services = make([]model.ServiceType, len(services))
	for i, s := range services {
		op.Services[i] = model.ServiceType(s)
	}

	return op, nil
}

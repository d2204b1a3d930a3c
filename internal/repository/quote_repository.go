package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krish/fieldserve/internal/model"
	"github.com/krish/fieldserve/internal/service"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// QuoteRepository handles quote persistence, including the transactional
// accept-with-supersede sequence.
type QuoteRepository struct {
	pool *pgxpool.Pool
}

// NewQuoteRepository creates a new quote repository.
func NewQuoteRepository(pool *pgxpool.Pool) *QuoteRepository {
	return &QuoteRepository{pool: pool}
}

// CreateQuote inserts a new sent quote. The partial unique index on
// (request_id, operator_id) WHERE status = 'sent' enforces the at-most-one
// sent quote per pair invariant; a violation maps to ErrDuplicateSentQuote.
//
// The insert is conditional on the request still being quotable (pending
// or quoted), so a cancel racing the service-layer status check cannot
// leave an orphaned quote on a cancelled request; the race maps to
// ErrStaleRequest.
func (r *QuoteRepository) CreateQuote(ctx context.Context, q *model.Quote) (*model.Quote, error) {
	var breakdown []byte
	if q.Breakdown != nil {
		var err error
		breakdown, err = json.Marshal(q.Breakdown)
		if err != nil {
			return nil, fmt.Errorf("create quote: marshal breakdown: %w", err)
		}
	}

	query := `
		INSERT INTO quotes (request_id, operator_id, tier, amount, breakdown, notes, status)
		SELECT $1, $2, $3, $4, $5, $6, 'sent'
		FROM service_requests
		WHERE id = $1 AND status IN ('pending', 'quoted')
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		q.RequestID, q.OperatorID, q.Tier, q.Amount, breakdown, q.Notes,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrStaleRequest
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, service.ErrDuplicateSentQuote
		}
		return nil, fmt.Errorf("create quote: %w", err)
	}

	q.Status = model.QuoteSent
	return q, nil
}

// GetQuote fetches a quote by ID.
func (r *QuoteRepository) GetQuote(ctx context.Context, id int64) (*model.Quote, error) {
	query := `
		SELECT id, request_id, operator_id, tier, amount, breakdown, notes,
		       status, created_at, updated_at
		FROM quotes
		WHERE id = $1
	`
	q, err := scanQuote(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrQuoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quote %d: %w", id, err)
	}
	return q, nil
}

// ListQuotesByRequest returns all quotes for a request, oldest first.
func (r *QuoteRepository) ListQuotesByRequest(ctx context.Context, requestID int64) ([]model.Quote, error) {
	query := `
		SELECT id, request_id, operator_id, tier, amount, breakdown, notes,
		       status, created_at, updated_at
		FROM quotes
		WHERE request_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list quotes for request %d: %w", requestID, err)
	}
	defer rows.Close()

	var quotes []model.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, *q)
	}
	return quotes, rows.Err()
}

// AcceptQuote performs the complete acceptance in a single transaction.
//
// Concurrency strategy: pessimistic locking. The request row lock
// serializes concurrent accepts; the loser re-reads a request that is no
// longer 'quoted' and rolls back with ErrStaleRequest.
func (r *QuoteRepository) AcceptQuote(ctx context.Context, quoteID int64) (*service.AcceptOutcome, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("accept quote: begin tx: %w", err)
	}
	// No-op if the tx was committed.
	defer tx.Rollback(ctx)

	// ── Step 1: lock the quote row ──────────────────────
	var (
		requestID  int64
		operatorID int64
		status     model.QuoteStatus
	)
	err = tx.QueryRow(ctx, `
		SELECT request_id, operator_id, status
		FROM quotes
		WHERE id = $1
		FOR UPDATE
	`, quoteID).Scan(&requestID, &operatorID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrQuoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("accept quote: lock quote %d: %w", quoteID, err)
	}
	if status != model.QuoteSent {
		return nil, service.ErrQuoteNotSent
	}

	// ── Step 2: lock the request row ────────────────────
	var (
		customerID int64
		reqStatus  model.RequestStatus
	)
	err = tx.QueryRow(ctx, `
		SELECT customer_id, status
		FROM service_requests
		WHERE id = $1
		FOR UPDATE
	`, requestID).Scan(&customerID, &reqStatus)
	if err != nil {
		return nil, fmt.Errorf("accept quote: lock request %d: %w", requestID, err)
	}
	if reqStatus != model.RequestQuoted {
		return nil, service.ErrStaleRequest
	}

	// ── Step 3: promote the winner ──────────────────────
	_, err = tx.Exec(ctx, `
		UPDATE quotes SET status = 'accepted', updated_at = now() WHERE id = $1
	`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("accept quote: promote quote %d: %w", quoteID, err)
	}

	// ── Step 4: supersede sibling sent quotes ───────────
	tag, err := tx.Exec(ctx, `
		UPDATE quotes
		SET status = 'superseded', updated_at = now()
		WHERE request_id = $1 AND id != $2 AND status = 'sent'
	`, requestID, quoteID)
	if err != nil {
		return nil, fmt.Errorf("accept quote: supersede siblings: %w", err)
	}

	// ── Step 5: move the request to accepted ────────────
	_, err = tx.Exec(ctx, `
		UPDATE service_requests
		SET status = 'accepted', operator_id = $2, updated_at = now()
		WHERE id = $1
	`, requestID, operatorID)
	if err != nil {
		return nil, fmt.Errorf("accept quote: update request %d: %w", requestID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("accept quote: commit: %w", err)
	}

	quote, err := r.GetQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	return &service.AcceptOutcome{
		Quote:      quote,
		RequestID:  requestID,
		CustomerID: customerID,
		FromStatus: reqStatus,
		Superseded: int(tag.RowsAffected()),
	}, nil
}

// WithdrawQuote marks one of the operator's own sent quotes withdrawn.
func (r *QuoteRepository) WithdrawQuote(ctx context.Context, quoteID, operatorID int64) (*model.Quote, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("withdraw quote: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		owner  int64
		status model.QuoteStatus
	)
	err = tx.QueryRow(ctx, `
		SELECT operator_id, status FROM quotes WHERE id = $1 FOR UPDATE
	`, quoteID).Scan(&owner, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrQuoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("withdraw quote: lock quote %d: %w", quoteID, err)
	}
	if owner != operatorID {
		return nil, service.ErrNotAssignedOperator
	}
	if status != model.QuoteSent {
		return nil, service.ErrQuoteNotSent
	}

	_, err = tx.Exec(ctx, `
		UPDATE quotes SET status = 'operator_withdrawn', updated_at = now() WHERE id = $1
	`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("withdraw quote %d: %w", quoteID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("withdraw quote: commit: %w", err)
	}

	return r.GetQuote(ctx, quoteID)
}

// DeclineQuote marks a sent quote declined by the customer.
func (r *QuoteRepository) DeclineQuote(ctx context.Context, quoteID int64) (*model.Quote, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("decline quote: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status model.QuoteStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM quotes WHERE id = $1 FOR UPDATE
	`, quoteID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrQuoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("decline quote: lock quote %d: %w", quoteID, err)
	}
	if status != model.QuoteSent {
		return nil, service.ErrQuoteNotSent
	}

	_, err = tx.Exec(ctx, `
		UPDATE quotes SET status = 'declined', updated_at = now() WHERE id = $1
	`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("decline quote %d: %w", quoteID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("decline quote: commit: %w", err)
	}

	return r.GetQuote(ctx, quoteID)
}

// scanQuote scans one quote row, decoding the breakdown JSON when present.
func scanQuote(row pgx.Row) (*model.Quote, error) {
	q := &model.Quote{}
	var breakdown []byte
	err := row.Scan(
		&q.ID, &q.RequestID, &q.OperatorID, &q.Tier, &q.Amount,
		&breakdown, &q.Notes, &q.Status, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(breakdown) > 0 {
		q.Breakdown = &model.QuoteBreakdown{}
		if err := json.Unmarshal(breakdown, q.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	return q, nil
}

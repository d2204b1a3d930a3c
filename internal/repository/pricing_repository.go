package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/krish/fieldserve/internal/model"
	"github.com/krish/fieldserve/internal/service"
)

// PricingRepository reads per-(operator, service) pricing configurations
// through a Redis cache-aside fast path. Configs change rarely and are read
// on every quote suggestion, so a short TTL keeps the DB quiet.
type PricingRepository struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

// NewPricingRepository creates a new pricing repository.
func NewPricingRepository(pool *pgxpool.Pool, redis *redis.Client) *PricingRepository {
	return &PricingRepository{pool: pool, redis: redis}
}

const (
	pricingKeyPrefix = "pricing:"
	pricingCacheTTL  = 5 * time.Minute
)

func pricingKey(operatorID int64, st model.ServiceType) string {
	return fmt.Sprintf("%s%d:%s", pricingKeyPrefix, operatorID, st)
}

// GetPricingConfig returns the config for (operator, service), or
// service.ErrNoPricingConfig when none exists.
//
// Strategy:
//  1. Try Redis (fast path).
//  2. On miss, query Postgres, then cache fire-and-forget.
func (r *PricingRepository) GetPricingConfig(
	ctx context.Context,
	operatorID int64,
	st model.ServiceType,
) (*model.PricingConfig, error) {
	key := pricingKey(operatorID, st)

	// ── Fast path: Redis cache ──────────────────────────
	if cached, err := r.redis.Get(ctx, key).Bytes(); err == nil {
		cfg := &model.PricingConfig{}
		if err := json.Unmarshal(cached, cfg); err == nil {
			return cfg, nil
		}
		// Corrupt cache entry: fall through to the DB and rewrite it.
		log.Printf("[pricing] dropping corrupt cache entry %s", key)
	}

	// ── Slow path: Postgres ─────────────────────────────
	cfg := &model.PricingConfig{OperatorID: operatorID, ServiceType: st}
	var multipliers []byte
	err := r.pool.QueryRow(ctx, `
		SELECT base_rate, per_km_rate, minimum_fee, urgency_multipliers
		FROM pricing_configs
		WHERE operator_id = $1 AND service_type = $2
	`, operatorID, st).Scan(&cfg.BaseRate, &cfg.PerKmRate, &cfg.MinimumFee, &multipliers)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, service.ErrNoPricingConfig
	}
	if err != nil {
		return nil, fmt.Errorf("get pricing config %d/%s: %w", operatorID, st, err)
	}

	if len(multipliers) > 0 {
		if err := json.Unmarshal(multipliers, &cfg.UrgencyMultipliers); err != nil {
			return nil, fmt.Errorf("get pricing config %d/%s: decode multipliers: %w", operatorID, st, err)
		}
	}

	// Cache fire-and-forget; a failed write just means a DB hit next time.
	if body, err := json.Marshal(cfg); err == nil {
		_ = r.redis.Set(ctx, key, body, pricingCacheTTL).Err()
	}

	return cfg, nil
}

// UpsertPricingConfig writes the config and invalidates its cache entry.
func (r *PricingRepository) UpsertPricingConfig(ctx context.Context, cfg *model.PricingConfig) error {
	multipliers, err := json.Marshal(cfg.UrgencyMultipliers)
	if err != nil {
		return fmt.Errorf("upsert pricing config: marshal multipliers: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO pricing_configs (operator_id, service_type, base_rate, per_km_rate, minimum_fee, urgency_multipliers)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (operator_id, service_type)
		DO UPDATE SET base_rate = EXCLUDED.base_rate,
		              per_km_rate = EXCLUDED.per_km_rate,
		              minimum_fee = EXCLUDED.minimum_fee,
		              urgency_multipliers = EXCLUDED.urgency_multipliers,
		              updated_at = now()
	`, cfg.OperatorID, cfg.ServiceType, cfg.BaseRate, cfg.PerKmRate, cfg.MinimumFee, multipliers)
	if err != nil {
		return fmt.Errorf("upsert pricing config %d/%s: %w", cfg.OperatorID, cfg.ServiceType, err)
	}

	_ = r.redis.Del(ctx, pricingKey(cfg.OperatorID, cfg.ServiceType)).Err()
	return nil
}

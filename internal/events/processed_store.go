package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessedStore records webhook deliveries that were already handled,
// so transport-level retries short-circuit before any routing happens.
type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ProcessedStore struct {
	pool rowQuerier
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec rowQuerier) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// AlreadyProcessed checks if this delivery id has been handled before.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, provider, deliveryID string) (bool, error) {
	query := `SELECT 1 FROM processed_webhooks WHERE provider = $1 AND delivery_id = $2`
	var exists int
	if err := s.pool.QueryRow(ctx, query, provider, deliveryID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts a delivery id for the provider, returning false
// if it already exists.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, deliveryID string) (bool, error) {
	query := `
		INSERT INTO processed_webhooks (provider, delivery_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, provider, deliveryID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists exchanges to the exchanges table.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, ex *Exchange) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exchanges (id, channel, author, prompt, reply, provider, outcome, latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ex.ID, ex.Channel, ex.Author, ex.Prompt, ex.Reply, ex.Provider, ex.Outcome, ex.LatencyMs, ex.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting exchange: %w", err)
	}
	return nil
}

// Recent returns the latest exchanges, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Exchange, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, channel, author, prompt, reply, provider, outcome, latency_ms, created_at
		 FROM exchanges ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.ID, &ex.Channel, &ex.Author, &ex.Prompt, &ex.Reply,
			&ex.Provider, &ex.Outcome, &ex.LatencyMs, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, rows.Err()
}

// CountByOutcome aggregates exchange outcomes since a cutoff.
func (r *Repository) CountByOutcome(ctx context.Context, hours int) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT outcome, COUNT(*) FROM exchanges
		 WHERE created_at > now() - make_interval(hours => $1)
		 GROUP BY outcome`,
		hours,
	)
	if err != nil {
		return nil, fmt.Errorf("counting exchanges: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var n int64
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning outcome count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plutoshop/shop-api/internal/domain/stats"
)

var _ stats.Repository = (*StatsRepository)(nil)

// StatsRepository computes dashboard aggregates from the orders table.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository returns a StatsRepository that uses the given pool.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// Summary returns order counts by status, total paid revenue, and paid
// revenue bucketed by calendar month.
func (r *StatsRepository) Summary(ctx context.Context) (*stats.Summary, error) {
	var s stats.Summary
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'Pending'),
			COUNT(*) FILTER (WHERE status = 'Completed'),
			COUNT(*) FILTER (WHERE status = 'Cancelled'),
			COALESCE(SUM(total) FILTER (WHERE payment_status = 'Paid'), 0)
		FROM orders`,
	).Scan(&s.TotalOrders, &s.PendingOrders, &s.CompletedOrders, &s.CancelledOrders, &s.PaidRevenue)
	if err != nil {
		return nil, errors.Wrap(err, "order counts")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('month', created_at) AS month, SUM(total)
		FROM orders
		WHERE payment_status = 'Paid'
		GROUP BY month
		ORDER BY month`)
	if err != nil {
		return nil, errors.Wrap(err, "monthly revenue")
	}
	defer rows.Close()

	for rows.Next() {
		var m stats.MonthlyRevenue
		if err := rows.Scan(&m.Month, &m.Total); err != nil {
			return nil, errors.Wrap(err, "scan monthly revenue")
		}
		s.Monthly = append(s.Monthly, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Package stats aggregates order figures for the admin dashboard.
package stats

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyRevenue is the paid order total for one calendar month.
type MonthlyRevenue struct {
	Month time.Time       `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// Summary holds the dashboard aggregates.
type Summary struct {
	TotalOrders     int              `json:"total_orders"`
	PendingOrders   int              `json:"pending_orders"`
	CompletedOrders int              `json:"completed_orders"`
	CancelledOrders int              `json:"cancelled_orders"`
	PaidRevenue     decimal.Decimal  `json:"paid_revenue"`
	Monthly         []MonthlyRevenue `json:"monthly"`
}

// Repository computes dashboard aggregates from storage.
type Repository interface {
	Summary(ctx context.Context) (*Summary, error)
}

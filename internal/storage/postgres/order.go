package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plutoshop/shop-api/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Every
// method that moves stock or the order total runs in one transaction scoped
// to the single order being changed; products are adjusted with clamped
// single-statement updates so concurrent writers never observe negative
// stock.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, customer_name, email, phone_number, address,
	delivery_date, notes, total, status, payment_method, payment_status,
	COALESCE(payment_intent, ''), created_at, updated_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.CustomerName, &o.Email, &o.PhoneNumber, &o.Address,
		&o.DeliveryDate, &o.Notes, &o.Total, &o.Status, &o.PaymentMethod,
		&o.PaymentStatus, &o.PaymentIntent, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create persists the order and its line items, decrementing each product's
// stock by the item quantity clamped at zero, all in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, customer_name, email, phone_number, address,
			delivery_date, notes, total, status, payment_method, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.CustomerName, o.Email, o.PhoneNumber, o.Address,
		o.DeliveryDate, o.Notes, o.Total, o.Status, o.PaymentMethod, o.PaymentStatus,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)`,
			it.ID, o.ID, it.ProductID, it.Quantity, it.Price,
		); err != nil {
			return errors.Wrapf(err, "insert order item %q", it.ProductID)
		}

		ct, err := tx.Exec(ctx, `
			UPDATE products
			SET stock = GREATEST(stock - $2, 0), updated_at = now()
			WHERE id = $1`,
			it.ProductID, it.Quantity,
		)
		if err != nil {
			return errors.Wrapf(err, "decrement stock for %q", it.ProductID)
		}
		if ct.RowsAffected() == 0 {
			return errors.Errorf("product %s disappeared during order create", it.ProductID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Get returns one order with its line items, or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, r.pool, id)
}

func getOrder(ctx context.Context, q rowQuerier, id string) (*order.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order items")
	}
	defer rows.Close()

	for rows.Next() {
		var it order.LineItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// List returns all orders with their line items, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	var out []order.Order
	index := make(map[string]int)
	ids := make([]string, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		index[o.ID] = len(out)
		ids = append(ids, o.ID)
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	itemRows, err := r.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it order.LineItem
		if err := itemRows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		if i, ok := index[it.OrderID]; ok {
			out[i].Items = append(out[i].Items, it)
		}
	}
	return out, itemRows.Err()
}

// FindByPaymentIntent resolves an order by its provider reference.
func (r *OrderRepository) FindByPaymentIntent(ctx context.Context, ref string) (*order.Order, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM orders WHERE payment_intent = $1`, ref).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find order by intent %q", ref)
	}
	return r.Get(ctx, id)
}

// UpdateItemQuantity applies only the quantity delta to the product's stock,
// clamped at zero, then recomputes the order total, all in one transaction.
func (r *OrderRepository) UpdateItemQuantity(ctx context.Context, orderID, itemID string, quantity int) (*order.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		productID string
		oldQty    int
	)
	err = tx.QueryRow(ctx, `
		SELECT product_id, quantity FROM order_items
		WHERE id = $1 AND order_id = $2
		FOR UPDATE`, itemID, orderID).Scan(&productID, &oldQty)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrItemNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock order item")
	}

	if delta := quantity - oldQty; delta != 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET stock = GREATEST(stock - $2, 0), updated_at = now()
			WHERE id = $1`,
			productID, delta,
		); err != nil {
			return nil, errors.Wrap(err, "adjust stock")
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE order_items SET quantity = $3 WHERE id = $1 AND order_id = $2`,
		itemID, orderID, quantity,
	); err != nil {
		return nil, errors.Wrap(err, "update item quantity")
	}

	if err := recomputeTotal(ctx, tx, orderID); err != nil {
		return nil, err
	}

	o, err := getOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return o, nil
}

// RemoveItem deletes the line item, restores its full quantity to the
// product's stock, and recomputes the order total.
func (r *OrderRepository) RemoveItem(ctx context.Context, orderID, itemID string) (*order.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		productID string
		qty       int
	)
	err = tx.QueryRow(ctx, `
		DELETE FROM order_items WHERE id = $1 AND order_id = $2
		RETURNING product_id, quantity`, itemID, orderID).Scan(&productID, &qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrItemNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "delete order item")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`, productID, qty,
	); err != nil {
		return nil, errors.Wrap(err, "restore stock")
	}

	if err := recomputeTotal(ctx, tx, orderID); err != nil {
		return nil, err
	}

	o, err := getOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}
	return o, nil
}

func recomputeTotal(ctx context.Context, tx pgx.Tx, orderID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE orders SET total = (
			SELECT COALESCE(SUM(quantity * price), 0)
			FROM order_items WHERE order_id = $1
		), updated_at = now()
		WHERE id = $1`, orderID)
	if err != nil {
		return errors.Wrap(err, "recompute total")
	}
	return nil
}

// SetStatus updates only the status column.
func (r *OrderRepository) SetStatus(ctx context.Context, orderID string, status order.Status) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		orderID, status)
	if err != nil {
		return errors.Wrapf(err, "set status for %q", orderID)
	}
	if ct.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Cancel conditionally transitions the order to Cancelled and restores stock
// for all its line items. The guard on the status column means an order is
// restocked exactly once no matter how many callers race on it.
func (r *OrderRepository) Cancel(ctx context.Context, orderID string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status = 'Cancelled', updated_at = now()
		WHERE id = $1 AND status <> 'Cancelled'`, orderID)
	if err != nil {
		return false, errors.Wrapf(err, "cancel order %q", orderID)
	}
	if ct.RowsAffected() == 0 {
		// Already cancelled, or missing entirely.
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
			return false, errors.Wrap(err, "check order exists")
		}
		if !exists {
			return false, order.ErrNotFound
		}
		return false, nil
	}

	// Restore per product, summed over line items in case a product appears
	// on more than one line.
	if _, err := tx.Exec(ctx, `
		UPDATE products p
		SET stock = p.stock + s.qty, updated_at = now()
		FROM (
			SELECT product_id, SUM(quantity) AS qty
			FROM order_items WHERE order_id = $1
			GROUP BY product_id
		) s
		WHERE p.id = s.product_id`, orderID,
	); err != nil {
		return false, errors.Wrap(err, "restore stock")
	}

	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit")
	}
	return true, nil
}

// SetPaymentIntent stores the provider reference and resets payment status to
// Pending.
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, orderID, ref string) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET payment_intent = NULLIF($2, ''), payment_status = 'Pending', updated_at = now()
		WHERE id = $1`, orderID, ref)
	if err != nil {
		return errors.Wrapf(err, "set payment intent for %q", orderID)
	}
	if ct.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// MarkPaid conditionally sets payment_status to Paid. A second call for the
// same order reports false with no side effect.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE orders SET payment_status = 'Paid', updated_at = now()
		WHERE id = $1 AND payment_status <> 'Paid'`, orderID)
	if err != nil {
		return false, errors.Wrapf(err, "mark order %q paid", orderID)
	}
	return ct.RowsAffected() > 0, nil
}

// MarkPaymentFailed sets payment_status to Failed unless the payment already
// settled.
func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE orders SET payment_status = 'Failed', updated_at = now()
		WHERE id = $1 AND payment_status NOT IN ('Paid', 'Failed')`, orderID)
	if err != nil {
		return false, errors.Wrapf(err, "mark order %q payment failed", orderID)
	}
	return ct.RowsAffected() > 0, nil
}

// FindStale returns unpaid pending orders created before the cutoff, oldest
// first. Line items are not loaded; Cancel restocks them in SQL.
func (r *OrderRepository) FindStale(ctx context.Context, cutoff time.Time, limit int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE payment_status = 'Pending' AND status = 'Pending' AND created_at <= $1
		ORDER BY created_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, errors.Wrap(err, "find stale orders")
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plutoshop/shop-api/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productColumns = `id, name, description, image_url, price, stock, uom,
	is_best_seller, is_best_offer, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.Price, &p.Stock,
		&p.Unit, &p.IsBestSeller, &p.IsBestOffer, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns all products, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	var out []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetByID returns one product or product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return p, nil
}

// GetByIDs batch-fetches products in a single query. Missing ids are simply
// absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	defer rows.Close()

	var out []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (id, name, description, image_url, price, stock, uom,
			is_best_seller, is_best_offer, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.ImageURL, p.Price, p.Stock, p.Unit,
		p.IsBestSeller, p.IsBestOffer, p.IsActive,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "create product %q", p.Name)
	}
	return nil
}

// Upsert inserts the product or refreshes its catalog fields when the id
// already exists. Stock is only set on first insert; re-running a seed or
// feed ingest must not reset ledger-managed stock.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (id, name, description, image_url, price, stock, uom,
			is_best_seller, is_best_offer, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name           = EXCLUDED.name,
			description    = EXCLUDED.description,
			image_url      = EXCLUDED.image_url,
			price          = EXCLUDED.price,
			uom            = EXCLUDED.uom,
			is_best_seller = EXCLUDED.is_best_seller,
			is_best_offer  = EXCLUDED.is_best_offer,
			is_active      = EXCLUDED.is_active,
			updated_at     = now()`,
		p.ID, p.Name, p.Description, p.ImageURL, p.Price, p.Stock, p.Unit,
		p.IsBestSeller, p.IsBestOffer, p.IsActive,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

// Update applies the non-nil catalog fields and returns the updated row.
// Stock is never touched here; it belongs to the order ledger.
func (r *ProductRepository) Update(ctx context.Context, id string, upd product.Update) (*product.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `
		UPDATE products SET
			name           = COALESCE($2, name),
			description    = COALESCE($3, description),
			image_url      = COALESCE($4, image_url),
			price          = COALESCE($5, price),
			uom            = COALESCE($6, uom),
			is_best_seller = COALESCE($7, is_best_seller),
			is_best_offer  = COALESCE($8, is_best_offer),
			is_active      = COALESCE($9, is_active),
			updated_at     = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, upd.Name, upd.Description, upd.ImageURL, upd.Price, upd.Unit,
		upd.IsBestSeller, upd.IsBestOffer, upd.IsActive,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, product.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "update product %q", id)
	}
	return p, nil
}

// Delete removes a product from the catalog.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete product %q", id)
	}
	if ct.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

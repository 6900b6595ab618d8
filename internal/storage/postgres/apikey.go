package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plutoshop/shop-api/internal/domain/auth"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.Repository backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up an API key by its HMAC-SHA256 hex hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.Key, error) {
	var k auth.Key
	err := r.pool.QueryRow(ctx,
		`SELECT key_hash, label FROM api_keys WHERE key_hash = $1`, hash,
	).Scan(&k.KeyHash, &k.Label)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find api key")
	}
	return &k, nil
}

// Insert stores a new API key hash. Used by the seed command.
func (r *APIKeyRepository) Insert(ctx context.Context, k *auth.Key) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_keys (key_hash, label)
		VALUES ($1, $2)
		ON CONFLICT (key_hash) DO NOTHING`,
		k.KeyHash, k.Label)
	if err != nil {
		return errors.Wrap(err, "insert api key")
	}
	return nil
}

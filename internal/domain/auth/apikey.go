package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no API key matches the given hash.
var ErrNotFound = errors.New("api key not found")

// Key is a stored admin API key. Only the HMAC-SHA256 hash of the key
// material is persisted.
type Key struct {
	KeyHash string
	Label   string
}

// Repository defines lookup operations for API keys.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Key, error)
}

package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Valid units of measure for a product.
const (
	UnitPieces   = "pcs"
	UnitKilogram = "kg"
	UnitLitre    = "litre"
	UnitBox      = "box"
	UnitPack     = "pack"
)

// ValidUnit reports whether uom is one of the accepted units of measure.
func ValidUnit(uom string) bool {
	switch uom {
	case UnitPieces, UnitKilogram, UnitLitre, UnitBox, UnitPack:
		return true
	}
	return false
}

// Product represents a catalog item available for purchase. Stock is mutated
// only through the order ledger, never directly by catalog updates.
type Product struct {
	ID           string
	Name         string
	Description  string
	ImageURL     string
	Price        decimal.Decimal
	Stock        int
	Unit         string
	IsBestSeller bool
	IsBestOffer  bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Update holds the mutable catalog fields for a product update. Nil fields
// are left unchanged. Stock is deliberately absent: it belongs to the ledger.
type Update struct {
	Name         *string
	Description  *string
	ImageURL     *string
	Price        *decimal.Decimal
	Unit         *string
	IsBestSeller *bool
	IsBestOffer  *bool
	IsActive     *bool
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, id string, upd Update) (*Product, error)
	Delete(ctx context.Context, id string) error
}

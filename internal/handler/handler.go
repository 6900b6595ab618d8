// Package handler exposes the HTTP API: product catalog, orders and the
// ledger operations behind them, checkout sessions, the payment webhook and
// admin statistics.
package handler

import (
	"context"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/plutoshop/shop-api/internal/cache"
	"github.com/plutoshop/shop-api/internal/domain/auth"
	"github.com/plutoshop/shop-api/internal/domain/order"
	"github.com/plutoshop/shop-api/internal/domain/product"
	"github.com/plutoshop/shop-api/internal/domain/stats"
	"github.com/plutoshop/shop-api/internal/payment"
)

// Orders is the slice of the order ledger the HTTP layer uses.
type Orders interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	Get(ctx context.Context, orderID string) (*order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
	UpdateStatus(ctx context.Context, orderID string, to order.Status) (*order.Order, error)
	UpdateLineItem(ctx context.Context, orderID, itemID string, quantity int) (*order.Order, error)
	RemoveLineItem(ctx context.Context, orderID, itemID string) (*order.Order, error)
}

// Handler wires HTTP routes to the domain services.
type Handler struct {
	products product.Repository
	orders   Orders
	payments *payment.Service
	stats    stats.Repository
	keys     auth.Repository
	cache    *cache.Cache
	pepper   []byte
	lg       *zap.Logger
}

// Config carries the handler dependencies. Cache may be nil; the status
// endpoint then always reads through to storage.
type Config struct {
	Products product.Repository
	Orders   Orders
	Payments *payment.Service
	Stats    stats.Repository
	Keys     auth.Repository
	Cache    *cache.Cache
	Pepper   string
	Logger   *zap.Logger
}

// New creates a Handler.
func New(cfg Config) *Handler {
	return &Handler{
		products: cfg.Products,
		orders:   cfg.Orders,
		payments: cfg.Payments,
		stats:    cfg.Stats,
		keys:     cfg.Keys,
		cache:    cfg.Cache,
		pepper:   []byte(cfg.Pepper),
		lg:       cfg.Logger,
	}
}

// Routes mounts all API routes on a fresh router. Catalog reads, order
// placement and the payment endpoints are public; mutating catalog and admin
// operations require an API key.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{productID}", h.getProduct)

		r.Post("/orders", h.createOrder)
		r.Get("/orders/{orderID}", h.getOrder)
		r.Get("/orders/{orderID}/status", h.getOrderStatus)
		r.Post("/orders/{orderID}/payment", h.createCheckoutSession)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAPIKey)

			r.Post("/products", h.createProduct)
			r.Put("/products/{productID}", h.updateProduct)
			r.Delete("/products/{productID}", h.deleteProduct)

			r.Get("/orders", h.listOrders)
			r.Patch("/orders/{orderID}/status", h.updateOrderStatus)
			r.Put("/orders/{orderID}/items/{itemID}", h.updateOrderItem)
			r.Delete("/orders/{orderID}/items/{itemID}", h.removeOrderItem)

			r.Get("/stats", h.getStats)
		})
	})

	r.Post("/webhooks/stripe", h.stripeWebhook)

	return r
}

// Package cache provides the Redis-backed pieces that are allowed to fail:
// an order-status read cache, webhook event dedup, and the realtime order
// event channel. Every operation is best effort; callers never depend on
// Redis for correctness.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/plutoshop/shop-api/internal/domain/order"
)

// StatusSnapshot is the cached view of an order's state.
type StatusSnapshot struct {
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
}

// Cache wraps a Redis client. It implements order.EventPublisher and
// payment.Deduper.
type Cache struct {
	rdb *redis.Client
	lg  *zap.Logger
}

// New connects a Cache to the Redis instance at addr.
func New(addr string, lg *zap.Logger) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &Cache{rdb: rdb, lg: lg}
}

// Close releases the underlying client.
func (c *Cache) Close() error { return c.rdb.Close() }

// Ping checks connectivity, for readiness probes.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// OrderStatus returns the cached snapshot for an order, or ok=false on miss
// or Redis failure.
func (c *Cache) OrderStatus(ctx context.Context, orderID string) (StatusSnapshot, bool) {
	var snap StatusSnapshot
	raw, err := c.rdb.Get(ctx, fmt.Sprintf(keyOrderStatus, orderID)).Bytes()
	if err != nil {
		return snap, false
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, false
	}
	return snap, true
}

// SetOrderStatus caches an order's state snapshot.
func (c *Cache) SetOrderStatus(ctx context.Context, orderID string, snap StatusSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf(keyOrderStatus, orderID), raw, ttlStatusCache).Err(); err != nil {
		c.lg.Debug("order status cache write failed", zap.Error(err))
	}
}

// InvalidateOrderStatus drops the cached snapshot after a mutation.
func (c *Cache) InvalidateOrderStatus(ctx context.Context, orderID string) {
	if err := c.rdb.Del(ctx, fmt.Sprintf(keyOrderStatus, orderID)).Err(); err != nil {
		c.lg.Debug("order status cache invalidate failed", zap.Error(err))
	}
}

// SeenEvent reports whether the webhook event id was already applied. Redis
// failures report false: the event is processed again, which is safe because
// all transitions are conditional.
func (c *Cache) SeenEvent(ctx context.Context, eventID string) bool {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf(keyEventSeen, eventID)).Result()
	if err != nil {
		c.lg.Debug("event dedup check failed", zap.Error(err))
		return false
	}
	return n > 0
}

// MarkEventSeen records the event id. Callers record only after the event
// applied: an id written before a failed delivery would make the provider's
// retry look like a duplicate.
func (c *Cache) MarkEventSeen(ctx context.Context, eventID string) {
	if err := c.rdb.Set(ctx, fmt.Sprintf(keyEventSeen, eventID), "1", ttlEventSeen).Err(); err != nil {
		c.lg.Debug("event dedup record failed", zap.Error(err))
	}
}

// Publish sends an order lifecycle event to the realtime channel. Delivery
// failures are logged and dropped.
func (c *Cache) Publish(ctx context.Context, ev order.Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := c.rdb.Publish(ctx, ChannelOrderEvents, raw).Err(); err != nil {
		c.lg.Debug("order event publish failed",
			zap.String("type", ev.Type),
			zap.String("order_id", ev.OrderID),
			zap.Error(err),
		)
	}
}

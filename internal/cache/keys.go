package cache

import "time"

const (
	// Cached order status: order_status:{order_id} -> JSON snapshot.
	keyOrderStatus = "order_status:%s"

	// Webhook event dedup: stripe:event:{event_id}.
	keyEventSeen = "stripe:event:%s"

	// ChannelOrderEvents carries order lifecycle events for realtime
	// subscribers.
	ChannelOrderEvents = "orders.events"
)

var (
	ttlStatusCache = 5 * time.Minute
	ttlEventSeen   = 48 * time.Hour
)

package redisx

import "time"

const (
	// idem:order:create:{buyer_id}:{idempotency_key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// order_status:{order_id} -> {"order_id","order_number","status","updated_at"}
	KeyOrderStatus = "order_status:%s"

	// stock:{product_id} -> commerce.StockView JSON
	KeyStock = "stock:%s"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLStock       = 10 * time.Minute
	TTLDedup       = 48 * time.Hour
)

// Package projector keeps the Redis read model (order status, stock
// snapshots) in step with the lifecycle events on Kafka.
package projector

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
	kafkax "github.com/ariefcatur/b2b-commerce/internal/kafka"
	"github.com/ariefcatur/b2b-commerce/internal/redisx"
)

// Topics the projector subscribes to.
var Topics = []string{commerce.TopicOrder, commerce.TopicStock}

// OrderStatusView is the cached shape served by GET /orders/{id}/status.
type OrderStatusView struct {
	OrderID     string               `json:"order_id"`
	OrderNumber string               `json:"order_number"`
	BuyerID     string               `json:"buyer_id"`
	SellerID    string               `json:"seller_id"`
	Status      commerce.OrderStatus `json:"status"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func StatusView(o commerce.Order) OrderStatusView {
	return OrderStatusView{
		OrderID: o.ID, OrderNumber: o.OrderNumber, BuyerID: o.BuyerID, SellerID: o.SellerID,
		Status: o.Status, UpdatedAt: o.UpdatedAt,
	}
}

type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type Service struct {
	Cache       Cache
	Log         *zap.Logger
	ServiceName string
}

// Handle is installed as the consumer handler.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		s.Log.Warn("skipping undecodable message", zap.String("topic", m.Topic), zap.Error(err))
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	first, err := s.Cache.Claim(ctx, dkey, redisx.TTLDedup)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	if err := s.apply(ctx, env); err != nil {
		// release the claim so the redelivery is not swallowed
		_ = s.Cache.Del(ctx, dkey)
		return err
	}
	return nil
}

func (s *Service) apply(ctx context.Context, env commerce.Envelope) error {
	switch env.EventType {
	case commerce.EventOrderCreated, commerce.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[commerce.OrderPayload](env)
		if err != nil {
			return err
		}
		return s.projectOrder(ctx, p)
	case commerce.EventStockChanged:
		p, err := kafkax.UnwrapPayload[commerce.StockPayload](env)
		if err != nil {
			return err
		}
		view := commerce.StockView{
			ProductID:     p.ProductID,
			DeclaredStock: p.DeclaredStock,
			ReservedStock: p.ReservedStock,
			Remaining:     p.Remaining,
			Status:        p.StockStatus,
			Active:        p.Active,
		}
		return s.Cache.SetJSON(ctx, fmt.Sprintf(redisx.KeyStock, p.ProductID), view, redisx.TTLStock)
	}
	return nil
}

// projectOrder never moves a cached status backwards in time.
func (s *Service) projectOrder(ctx context.Context, p commerce.OrderPayload) error {
	key := fmt.Sprintf(redisx.KeyOrderStatus, p.OrderID)
	var cur OrderStatusView
	hit, err := s.Cache.GetJSON(ctx, key, &cur)
	if err != nil {
		return err
	}
	if hit && cur.UpdatedAt.After(p.UpdatedAt) {
		s.Log.Debug("stale order event ignored", zap.String("order_id", p.OrderID), zap.String("status", string(p.Status)))
		return nil
	}
	view := OrderStatusView{
		OrderID: p.OrderID, OrderNumber: p.OrderNumber, BuyerID: p.BuyerID, SellerID: p.SellerID,
		Status: p.Status, UpdatedAt: p.UpdatedAt,
	}
	if err := s.Cache.SetJSON(ctx, key, view, redisx.TTLStatusCache); err != nil {
		return err
	}
	s.Log.Debug("order status projected", zap.String("order_id", p.OrderID), zap.String("status", string(p.Status)))
	return nil
}

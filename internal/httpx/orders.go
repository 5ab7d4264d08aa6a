package httpx

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
	"github.com/ariefcatur/b2b-commerce/internal/projector"
	"github.com/ariefcatur/b2b-commerce/internal/redisx"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type createOrderResp struct {
	commerce.Order
	Idempotent bool `json:"idempotent"`
}

func (a *API) registerOrders(r chi.Router) {
	r.Post("/orders", a.createOrder)
	r.Post("/orders/from-inquiry/{inquiryId}", a.createOrderFromInquiry)
	r.Get("/orders", a.listOrders)
	r.Get("/orders/{id}", a.getOrder)
	r.Get("/orders/{id}/status", a.getOrderStatus)
	r.Put("/orders/{id}/status", a.updateOrderStatus)
}

// createOrder places a direct buyer order. A repeated Idempotency-Key from
// the same buyer returns the order created the first time. Redis only
// short-circuits the lookup; the key is stored on the order under a unique
// index, so concurrent retries still resolve to one order.
func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	var in commerce.OrderInput
	if !decode(w, r, &in) {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	actor := actorFrom(ctx)

	key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if key == "" {
		o, err := a.Engine.Orders.CreateDirect(ctx, actor, in)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		a.cacheStatus(r, o)
		writeJSON(w, http.StatusCreated, createOrderResp{Order: o})
		return
	}

	cacheKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, actor.ID, key)
	if orderID, ok, err := a.Cache.Get(ctx, cacheKey); err == nil && ok {
		o, err := a.Engine.Orders.Get(ctx, actor, orderID)
		if err == nil {
			writeJSON(w, http.StatusOK, createOrderResp{Order: o, Idempotent: true})
			return
		}
		a.Log.Warn("stale idempotency key", zap.String("order_id", orderID), zap.Error(err))
	}

	o, replayed, err := a.Engine.Orders.CreateDirectOnce(ctx, actor, key, in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.Cache.Set(ctx, cacheKey, o.ID, redisx.TTLIdempotency); err != nil {
		a.Log.Warn("cache idempotency key", zap.String("order_id", o.ID), zap.Error(err))
	}
	if replayed {
		writeJSON(w, http.StatusOK, createOrderResp{Order: o, Idempotent: true})
		return
	}
	a.cacheStatus(r, o)
	writeJSON(w, http.StatusCreated, createOrderResp{Order: o})
}

func (a *API) createOrderFromInquiry(w http.ResponseWriter, r *http.Request) {
	var in commerce.OrderInput
	if !decodeOptional(w, r, &in) {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	o, err := a.Engine.Orders.CreateFromInquiry(ctx, actorFrom(ctx), chi.URLParam(r, "inquiryId"), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.cacheStatus(r, o)
	writeJSON(w, http.StatusCreated, createOrderResp{Order: o})
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()
	out, err := a.Engine.Orders.List(ctx, actorFrom(ctx))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []commerce.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()
	o, err := a.Engine.Orders.Get(ctx, actorFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus tries the projected cache first, then the store.
func (a *API) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := reqCtx(r)
	defer cancel()
	actor := actorFrom(ctx)

	var view projector.OrderStatusView
	hit, err := a.Cache.GetJSON(ctx, fmt.Sprintf(redisx.KeyOrderStatus, id), &view)
	if err != nil {
		a.Log.Warn("order status cache read", zap.String("order_id", id), zap.Error(err))
	}
	if hit {
		if actor.ID != view.BuyerID && actor.ID != view.SellerID {
			a.writeError(w, r, commerce.ErrAccessDenied)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	o, err := a.Engine.Orders.Get(ctx, actor, id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.cacheStatus(r, o)
	writeJSON(w, http.StatusOK, projector.StatusView(o))
}

func (a *API) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status commerce.OrderStatus `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	to := commerce.OrderStatus(strings.ToUpper(string(req.Status)))
	change, err := a.Engine.Orders.UpdateStatus(ctx, actorFrom(ctx), chi.URLParam(r, "id"), to)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.cacheStatus(r, change.Order)
	writeJSON(w, http.StatusOK, change)
}

func (a *API) cacheStatus(r *http.Request, o commerce.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	if err := a.Cache.SetJSON(r.Context(), key, projector.StatusView(o), redisx.TTLStatusCache); err != nil {
		a.Log.Warn("order status cache write", zap.String("order_id", o.ID), zap.Error(err))
	}
}

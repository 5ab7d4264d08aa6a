package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
	"github.com/ariefcatur/b2b-commerce/internal/redisx"
)

type productView struct {
	commerce.Product
	Remaining   int                  `json:"remaining_stock"`
	StockStatus commerce.StockStatus `json:"stock_status"`
}

func viewProduct(p commerce.Product) productView {
	return productView{Product: p, Remaining: p.Remaining(), StockStatus: p.StockStatus()}
}

func viewProducts(ps []commerce.Product) []productView {
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, viewProduct(p))
	}
	return out
}

func (a *API) registerProducts(r chi.Router) {
	r.Get("/products", a.listProducts)
	r.Post("/products", a.createProduct)
	r.Get("/products/{id}", a.getProduct)
	r.Get("/products/{id}/stock", a.getStock)
	r.Put("/products/{id}", a.updateProduct)
	r.Put("/products/{id}/active", a.setProductActive)
	r.Delete("/products/{id}", a.deleteProduct)
	r.Get("/seller/products", a.listSellerProducts)
}

func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()
	ps, err := a.Engine.Products.ListActive(ctx)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProducts(ps))
}

func (a *API) listSellerProducts(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.IsSeller() {
		a.writeError(w, r, commerce.ErrAccessDenied)
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	ps, err := a.Engine.Products.ListBySeller(ctx, actor.ID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProducts(ps))
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()
	p, err := a.Engine.Products.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(p))
}

// getStock serves the projected snapshot when present and falls back to the store.
func (a *API) getStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := reqCtx(r)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyStock, id)
	var cached commerce.StockView
	if hit, err := a.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		writeJSON(w, http.StatusOK, cached)
		return
	} else if err != nil {
		a.Log.Warn("stock cache read", zap.String("product_id", id), zap.Error(err))
	}

	view, err := a.Engine.Stock.Snapshot(ctx, id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	_ = a.Cache.SetJSON(ctx, key, view, redisx.TTLStock)
	writeJSON(w, http.StatusOK, view)
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var in commerce.ProductInput
	if !decode(w, r, &in) {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	p, err := a.Engine.Products.Create(ctx, actorFrom(ctx), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewProduct(p))
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request) {
	var patch commerce.ProductPatch
	if !decode(w, r, &patch) {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	p, err := a.Engine.Products.Update(ctx, actorFrom(ctx), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.dropStock(r, p.ID)
	writeJSON(w, http.StatusOK, viewProduct(p))
}

func (a *API) setProductActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	p, err := a.Engine.Products.SetActive(ctx, actorFrom(ctx), chi.URLParam(r, "id"), req.Active)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.dropStock(r, p.ID)
	writeJSON(w, http.StatusOK, viewProduct(p))
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := reqCtx(r)
	defer cancel()
	if err := a.Engine.Products.Delete(ctx, actorFrom(ctx), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	a.dropStock(r, id)
	w.WriteHeader(http.StatusNoContent)
}

// dropStock evicts a stock snapshot this process knows is stale.
func (a *API) dropStock(r *http.Request, productID string) {
	_ = a.Cache.Del(r.Context(), fmt.Sprintf(redisx.KeyStock, productID))
}

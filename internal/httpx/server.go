package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
	"github.com/ariefcatur/b2b-commerce/internal/redisx"
)

// API serves the commerce workflows over HTTP.
type API struct {
	Engine *commerce.Engine
	Cache  *redisx.Cache // optional read-through cache
	Log    *zap.Logger
	// RateLimit is requests per second per actor; 0 disables limiting.
	RateLimit float64
}

func NewRouter(api *API) *chi.Mux {
	if api.Log == nil {
		api.Log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, accessLog(api.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(withActor)
		if api.RateLimit > 0 {
			r.Use(newActorLimiter(api.RateLimit, int(api.RateLimit)+1).middleware)
		}
		api.registerProducts(r)
		api.registerInquiries(r)
		api.registerOrders(r)
		api.registerInvoices(r)
		r.Get("/currencies", api.listCurrencies)
	})
	return r
}

type currencyView struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
}

func (a *API) listCurrencies(w http.ResponseWriter, r *http.Request) {
	codes := commerce.SupportedCurrencies()
	out := make([]currencyView, 0, len(codes))
	for _, c := range codes {
		out = append(out, currencyView{Code: c, Symbol: commerce.CurrencySymbol(c)})
	}
	writeJSON(w, http.StatusOK, out)
}

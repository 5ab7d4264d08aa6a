package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
)

func (a *API) registerInvoices(r chi.Router) {
	r.Post("/invoices", a.generateInvoice)
	r.Get("/invoices", a.listInvoices)
	r.Get("/invoices/{id}", a.getInvoice)
	r.Put("/invoices/{id}/confirm", a.confirmInvoice)
	r.Put("/invoices/{id}/cancel", a.cancelInvoice)
	r.Get("/invoices/{id}/document", a.invoiceDocument)
}

func (a *API) generateInvoice(w http.ResponseWriter, r *http.Request) {
	var in commerce.GenerateInput
	if !decode(w, r, &in) {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	inv, err := a.Engine.Invoices.Generate(ctx, actorFrom(ctx), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (a *API) listInvoices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()
	out, err := a.Engine.Invoices.List(ctx, actorFrom(ctx))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []commerce.Invoice{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getInvoice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()
	inv, err := a.Engine.Invoices.Get(ctx, actorFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (a *API) confirmInvoice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()
	inv, err := a.Engine.Invoices.Confirm(ctx, actorFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.dropStock(r, inv.ProductID)
	writeJSON(w, http.StatusOK, inv)
}

func (a *API) cancelInvoice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()
	inv, err := a.Engine.Invoices.Cancel(ctx, actorFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.dropStock(r, inv.ProductID)
	writeJSON(w, http.StatusOK, inv)
}

func (a *API) invoiceDocument(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()
	b, err := a.Engine.Invoices.Document(ctx, actorFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

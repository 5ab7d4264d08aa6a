package httpx

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
)

func (a *API) registerInquiries(r chi.Router) {
	r.Post("/inquiries", a.createInquiry)
	r.Get("/inquiries", a.listInquiries)
	r.Get("/inquiries/{id}", a.getInquiry)
	r.Put("/inquiries/{id}", a.editInquiry)
	r.Delete("/inquiries/{id}", a.deleteInquiry)
	r.Post("/inquiries/{id}/reply", a.replyInquiry)
	r.Put("/inquiries/{id}/status", a.setInquiryStatus)
}

func (a *API) createInquiry(w http.ResponseWriter, r *http.Request) {
	var in commerce.InquiryInput
	if !decode(w, r, &in) {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	inq, err := a.Engine.Inquiries.Create(ctx, actorFrom(ctx), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.dropStock(r, inq.ProductID)
	writeJSON(w, http.StatusCreated, inq)
}

func (a *API) listInquiries(w http.ResponseWriter, r *http.Request) {
	status := commerce.InquiryStatus(strings.ToUpper(r.URL.Query().Get("status")))
	ctx, cancel := reqCtx(r)
	defer cancel()
	out, err := a.Engine.Inquiries.List(ctx, actorFrom(ctx), status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []commerce.Inquiry{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getInquiry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()
	inq, err := a.Engine.Inquiries.Get(ctx, actorFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inq)
}

func (a *API) editInquiry(w http.ResponseWriter, r *http.Request) {
	var patch commerce.InquiryPatch
	if !decode(w, r, &patch) {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	inq, err := a.Engine.Inquiries.Edit(ctx, actorFrom(ctx), chi.URLParam(r, "id"), patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.dropStock(r, inq.ProductID)
	writeJSON(w, http.StatusOK, inq)
}

func (a *API) deleteInquiry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := reqCtx(r)
	defer cancel()
	if err := a.Engine.Inquiries.Delete(ctx, actorFrom(ctx), chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type replyReq struct {
	Message string                 `json:"message"`
	Status  commerce.InquiryStatus `json:"status,omitempty"`
}

// replyInquiry routes to the seller or buyer reply depending on the caller.
func (a *API) replyInquiry(w http.ResponseWriter, r *http.Request) {
	var req replyReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	actor := actorFrom(ctx)
	id := chi.URLParam(r, "id")

	var (
		inq commerce.Inquiry
		err error
	)
	if actor.IsSeller() {
		inq, err = a.Engine.Inquiries.Reply(ctx, actor, id, req.Message, commerce.InquiryStatus(strings.ToUpper(string(req.Status))))
	} else {
		inq, err = a.Engine.Inquiries.BuyerReply(ctx, actor, id, req.Message)
	}
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inq)
}

func (a *API) setInquiryStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status commerce.InquiryStatus `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := reqCtx(r)
	defer cancel()
	status := commerce.InquiryStatus(strings.ToUpper(string(req.Status)))
	inq, err := a.Engine.Inquiries.SetStatus(ctx, actorFrom(ctx), chi.URLParam(r, "id"), status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inq)
}

package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
	"github.com/ariefcatur/b2b-commerce/internal/document"
	"github.com/ariefcatur/b2b-commerce/internal/memstore"
	"github.com/ariefcatur/b2b-commerce/internal/redisx"
)

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T, rateLimit float64) *client {
	t.Helper()
	return newCachedTestServer(t, rateLimit, nil)
}

func newCachedTestServer(t *testing.T, rateLimit float64, cache *redisx.Cache) *client {
	t.Helper()
	store, err := memstore.New()
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	engine := commerce.New(commerce.Options{Store: store, Renderer: document.NewHTML(), Logger: log})
	srv := httptest.NewServer(NewRouter(&API{Engine: engine, Cache: cache, Log: log, RateLimit: rateLimit}))
	t.Cleanup(srv.Close)
	return &client{t: t, srv: srv}
}

func (c *client) do(method, path string, actor commerce.Actor, body any, out any) int {
	c.t.Helper()
	return c.doWith(method, path, actor, nil, body, out)
}

func (c *client) doWith(method, path string, actor commerce.Actor, hdr http.Header, body any, out any) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	require.NoError(c.t, err)
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if actor.ID != "" {
		req.Header.Set(HeaderActorID, actor.ID)
		req.Header.Set(HeaderActorRole, string(actor.Role))
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

var (
	seller = commerce.Actor{ID: "seller-1", Role: commerce.RoleSeller}
	buyer  = commerce.Actor{ID: "buyer-1", Role: commerce.RoleBuyer}
	other  = commerce.Actor{ID: "buyer-2", Role: commerce.RoleBuyer}
)

func TestHealthzNeedsNoActor(t *testing.T) {
	c := newTestServer(t, 0)
	res, err := http.Get(c.srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/products", commerce.Actor{}, nil, nil))
	assert.Equal(t, http.StatusUnauthorized,
		c.do(http.MethodGet, "/products", commerce.Actor{ID: "x", Role: "ADMIN"}, nil, nil))
}

func TestLifecycleOverHTTP(t *testing.T) {
	c := newTestServer(t, 0)

	var p productView
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/products", seller,
		map[string]any{"name": "Turmeric", "price": "100", "min_quantity": 5, "declared_stock": 100}, &p))
	assert.True(t, p.Active)
	assert.Equal(t, 100, p.Remaining)

	var inq commerce.Inquiry
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/inquiries", buyer,
		map[string]any{"product_id": p.ID, "quantity": 10, "message": "need 10", "buyer_country": "us"}, &inq))
	assert.Equal(t, commerce.InquiryNew, inq.Status)

	var stock commerce.StockView
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/products/"+p.ID+"/stock", buyer, nil, &stock))
	assert.Equal(t, 10, stock.ReservedStock)

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/inquiries/"+inq.ID+"/reply", seller,
		map[string]any{"message": "ok"}, &inq))
	assert.Equal(t, commerce.InquiryReplied, inq.Status)

	var order createOrderResp
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/orders/from-inquiry/"+inq.ID, seller, nil, &order))
	assert.Equal(t, "1000", order.TotalAmount.String())

	// second conversion of the same inquiry conflicts
	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/orders/from-inquiry/"+inq.ID, seller, nil, nil))

	var change commerce.StatusChange
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/orders/"+order.ID+"/status", seller,
		map[string]any{"status": "confirmed"}, &change))
	require.True(t, change.InvoiceGenerated)
	require.NotNil(t, change.Invoice)
	assert.Equal(t, commerce.InvoiceDraft, change.Invoice.Status)

	var status map[string]any
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/orders/"+order.ID+"/status", buyer, nil, &status))
	assert.Equal(t, "CONFIRMED", status["status"])
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodGet, "/orders/"+order.ID+"/status", other, nil, nil))

	var inv commerce.Invoice
	require.Equal(t, http.StatusOK, c.do(http.MethodPut, "/invoices/"+change.Invoice.ID+"/confirm", seller, nil, &inv))
	assert.Equal(t, commerce.InvoiceConfirmed, inv.Status)

	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/products/"+p.ID, buyer, nil, &p))
	assert.Equal(t, 90, p.DeclaredStock)
	assert.Equal(t, 0, p.ReservedStock)

	req, err := http.NewRequest(http.MethodGet, c.srv.URL+"/invoices/"+inv.ID+"/document", nil)
	require.NoError(t, err)
	req.Header.Set(HeaderActorID, buyer.ID)
	req.Header.Set(HeaderActorRole, string(buyer.Role))
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/html")
	body, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(body), inv.InvoiceNumber)
	assert.Contains(t, string(body), "US")
}

func TestErrorMapping(t *testing.T) {
	c := newTestServer(t, 0)

	var p productView
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/products", seller,
		map[string]any{"name": "Cardamom", "price": 40, "declared_stock": 5}, &p))

	var body errorBody
	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/inquiries", buyer,
		map[string]any{"product_id": p.ID, "quantity": 6}, &body))
	assert.Contains(t, body.Error, "insufficient stock")

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/products", seller,
		map[string]any{"name": " "}, nil))
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodPost, "/products", buyer,
		map[string]any{"name": "x"}, nil))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/inquiries/missing", buyer, nil, nil))
	assert.Equal(t, http.StatusForbidden, c.do(http.MethodPut, "/products/"+p.ID, commerce.Actor{ID: "seller-2", Role: commerce.RoleSeller},
		map[string]any{"name": "stolen"}, nil))

	var order createOrderResp
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/orders", buyer,
		map[string]any{"product_id": p.ID, "final_quantity": 2}, &order))
	assert.Equal(t, http.StatusConflict, c.do(http.MethodPut, "/orders/"+order.ID+"/status", seller,
		map[string]any{"status": "SHIPPED"}, nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPut, "/orders/"+order.ID+"/status", seller,
		map[string]any{"status": "LOST"}, nil))

	req, err := http.NewRequest(http.MethodPost, c.srv.URL+"/products", bytes.NewBufferString("{"))
	require.NoError(t, err)
	req.Header.Set(HeaderActorID, seller.ID)
	req.Header.Set(HeaderActorRole, string(seller.Role))
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestListsAreScopedToCaller(t *testing.T) {
	c := newTestServer(t, 0)
	var p productView
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/products", seller,
		map[string]any{"name": "Pepper", "price": 10, "declared_stock": 50}, &p))
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/inquiries", buyer,
		map[string]any{"product_id": p.ID, "quantity": 1}, nil))

	var mine, theirs []commerce.Inquiry
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/inquiries?status=new", buyer, nil, &mine))
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/inquiries", other, nil, &theirs))
	assert.Len(t, mine, 1)
	assert.Empty(t, theirs)

	var currencies []currencyView
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/currencies", buyer, nil, &currencies))
	assert.NotEmpty(t, currencies)
}

func TestRateLimitPerActor(t *testing.T) {
	c := newTestServer(t, 1)
	codes := map[int]int{}
	for i := 0; i < 5; i++ {
		codes[c.do(http.MethodGet, "/currencies", buyer, nil, nil)]++
	}
	assert.Positive(t, codes[http.StatusTooManyRequests])
	// another actor has its own bucket
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/currencies", other, nil, nil))
}

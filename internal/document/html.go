// Package document renders invoices as standalone HTML documents that a
// browser or an HTML-to-PDF converter can print.
package document

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
)

const layout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Invoice.InvoiceNumber}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 40px; }
.header { text-align: center; margin-bottom: 30px; }
.number { font-size: 24px; font-weight: bold; color: #2563eb; }
.section-title { font-weight: bold; font-size: 14px; margin: 20px 0 10px; }
table { width: 100%; border-collapse: collapse; }
td, th { padding: 8px; border: 1px solid #e2e8f0; text-align: left; }
.totals { text-align: right; margin-top: 20px; }
.footer { margin-top: 40px; text-align: center; color: #64748b; font-size: 12px; }
</style>
</head>
<body>
<div class="header">
  <h1>INVOICE</h1>
  <div class="number">{{.Invoice.InvoiceNumber}}</div>
  <div>Date: {{date .Invoice.CreatedAt}}</div>
  <div>Status: {{.Invoice.Status}}</div>
  {{with .OrderNumber}}<div>Order: {{.}}</div>{{end}}
</div>

<div class="section-title">PARTIES</div>
<table>
  <tr><td>Seller</td><td>{{.Invoice.SellerID}}</td></tr>
  <tr><td>Buyer</td><td>{{.Invoice.BuyerID}}</td></tr>
  <tr><td>Buyer country</td><td>{{or .BuyerCountry "N/A"}}</td></tr>
</table>

<div class="section-title">PRODUCT DETAILS</div>
<table>
  <thead><tr><th>Product</th><th>Category</th><th>Quantity</th><th>Unit price</th><th>Total</th></tr></thead>
  <tbody><tr>
    <td>{{or .Product.Name .Invoice.ProductID}}</td>
    <td>{{or .Product.Category "N/A"}}</td>
    <td>{{.Invoice.Quantity}}</td>
    <td>{{money .Invoice.UnitPrice .Invoice.Currency}}</td>
    <td>{{money .Invoice.TotalPrice .Invoice.Currency}}</td>
  </tr></tbody>
</table>

<div class="totals">
  <div>Subtotal: {{money .Invoice.TotalPrice .Invoice.Currency}}</div>
  <div>Shipping{{with .Invoice.ShippingMethod}} ({{.}}){{end}}: {{money .Invoice.ShippingCost .Invoice.Currency}}</div>
  <div><strong>Total: {{money .Invoice.TotalAmount .Invoice.Currency}}</strong></div>
  {{with .Invoice.ConvertedAmount}}<div>Approx. {{money . $.Invoice.ConvertedCurrency}}</div>{{end}}
</div>

<div class="footer">Computer generated invoice.</div>
</body>
</html>
`

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal, currency string) string {
		return strings.TrimSpace(commerce.CurrencySymbol(currency)) + d.StringFixed(2)
	},
	"date": func(t time.Time) string { return t.Format("02 Jan 2006") },
}

// HTML implements commerce.Renderer.
type HTML struct {
	tmpl *template.Template
}

var _ commerce.Renderer = (*HTML)(nil)

func NewHTML() *HTML {
	return &HTML{tmpl: template.Must(template.New("invoice").Funcs(funcs).Parse(layout))}
}

func (h *HTML) Render(ctx context.Context, doc commerce.InvoiceDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package commerce

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventInquiryCreated     = "InquiryCreated"
	EventInquiryUpdated     = "InquiryUpdated"
	EventInquiryReplied     = "InquiryReplied"
	EventInquiryDeleted     = "InquiryDeleted"
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventInvoiceGenerated   = "InvoiceGenerated"
	EventInvoiceConfirmed   = "InvoiceConfirmed"
	EventInvoiceCancelled   = "InvoiceCancelled"
	EventStockChanged       = "StockChanged"
)

const (
	TopicInquiry = "commerce.inquiry"
	TopicOrder   = "commerce.order"
	TopicInvoice = "commerce.invoice"
	TopicStock   = "commerce.stock"
)

// Partition key = aggregate id, so events of one aggregate stay ordered.
func PartitionKey(id string) []byte { return []byte(id) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // aggregate id
	Payload       json.RawMessage `json:"payload"`
}

// Event is what workflows emit after commit; the publisher wraps it in an Envelope.
type Event struct {
	Topic       string
	Type        string
	AggregateID string
	Payload     any
}

// Publisher must not block the caller on broker I/O.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

type InquiryPayload struct {
	InquiryID string        `json:"inquiry_id"`
	ProductID string        `json:"product_id"`
	BuyerID   string        `json:"buyer_id"`
	SellerID  string        `json:"seller_id"`
	Quantity  int           `json:"quantity"`
	Status    InquiryStatus `json:"status"`
}

type OrderPayload struct {
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	InquiryID   string      `json:"inquiry_id,omitempty"`
	BuyerID     string      `json:"buyer_id"`
	SellerID    string      `json:"seller_id"`
	Status      OrderStatus `json:"status"`
	PrevStatus  OrderStatus `json:"prev_status,omitempty"`
	TotalAmount string      `json:"total_amount"`
	Currency    string      `json:"currency"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type InvoicePayload struct {
	InvoiceID     string        `json:"invoice_id"`
	InvoiceNumber string        `json:"invoice_number"`
	OrderID       string        `json:"order_id"`
	Status        InvoiceStatus `json:"status"`
	Quantity      int           `json:"quantity"`
	TotalAmount   string        `json:"total_amount"`
}

type StockPayload struct {
	ProductID     string      `json:"product_id"`
	Operation     string      `json:"operation"` // reserve | release | deduct | restore | adjust
	Quantity      int         `json:"quantity"`
	DeclaredStock int         `json:"declared_stock"`
	ReservedStock int         `json:"reserved_stock"`
	Remaining     int         `json:"remaining"`
	StockStatus   StockStatus `json:"stock_status"`
	Active        bool        `json:"active"`
}

func inquiryEvent(typ string, in Inquiry) Event {
	return Event{Topic: TopicInquiry, Type: typ, AggregateID: in.ID, Payload: InquiryPayload{
		InquiryID: in.ID, ProductID: in.ProductID, BuyerID: in.BuyerID, SellerID: in.SellerID,
		Quantity: in.Quantity, Status: in.Status,
	}}
}

func orderEvent(typ string, o Order, prev OrderStatus) Event {
	return Event{Topic: TopicOrder, Type: typ, AggregateID: o.ID, Payload: OrderPayload{
		OrderID: o.ID, OrderNumber: o.OrderNumber, InquiryID: o.InquiryID,
		BuyerID: o.BuyerID, SellerID: o.SellerID, Status: o.Status,
		PrevStatus: prev, TotalAmount: o.TotalAmount.StringFixed(2), Currency: o.Currency,
		UpdatedAt: o.UpdatedAt,
	}}
}

func invoiceEvent(typ string, inv Invoice) Event {
	return Event{Topic: TopicInvoice, Type: typ, AggregateID: inv.ID, Payload: InvoicePayload{
		InvoiceID: inv.ID, InvoiceNumber: inv.InvoiceNumber, OrderID: inv.OrderID,
		Status: inv.Status, Quantity: inv.Quantity, TotalAmount: inv.TotalAmount.StringFixed(2),
	}}
}

func stockEvent(op string, qty int, p Product) Event {
	return Event{Topic: TopicStock, Type: EventStockChanged, AggregateID: p.ID, Payload: StockPayload{
		ProductID: p.ID, Operation: op, Quantity: qty, DeclaredStock: p.DeclaredStock,
		ReservedStock: p.ReservedStock, Remaining: p.Remaining(), StockStatus: p.StockStatus(),
		Active: p.Active,
	}}
}

type traceKey struct{}

// WithTraceID attaches the request id that ends up in published envelopes.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}

package commerce

type InquiryStatus string

const (
	InquiryNew       InquiryStatus = "NEW"
	InquiryReplied   InquiryStatus = "REPLIED"
	InquiryClosed    InquiryStatus = "CLOSED"
	InquiryConverted InquiryStatus = "CONVERTED"
)

type OrderStatus string

const (
	OrderCreated   OrderStatus = "CREATED"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceConfirmed InvoiceStatus = "CONFIRMED"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
)

// REPLIED -> NEW happens when the buyer answers a seller reply.
var inquiryNext = map[InquiryStatus]map[InquiryStatus]bool{
	InquiryNew:       {InquiryReplied: true, InquiryClosed: true, InquiryConverted: true},
	InquiryReplied:   {InquiryNew: true, InquiryClosed: true, InquiryConverted: true},
	InquiryClosed:    {},
	InquiryConverted: {},
}

var orderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderCreated:   {OrderConfirmed: true, OrderCancelled: true},
	OrderConfirmed: {OrderShipped: true, OrderCancelled: true},
	OrderShipped:   {OrderCompleted: true, OrderCancelled: true},
	OrderCompleted: {},
	OrderCancelled: {},
}

var invoiceNext = map[InvoiceStatus]map[InvoiceStatus]bool{
	InvoiceDraft:     {InvoiceConfirmed: true, InvoiceCancelled: true},
	InvoiceConfirmed: {InvoiceCancelled: true},
	InvoiceCancelled: {},
}

var (
	InquiryStatuses = []InquiryStatus{InquiryNew, InquiryReplied, InquiryClosed, InquiryConverted}
	OrderStatuses   = []OrderStatus{OrderCreated, OrderConfirmed, OrderShipped, OrderCompleted, OrderCancelled}
	InvoiceStatuses = []InvoiceStatus{InvoiceDraft, InvoiceConfirmed, InvoiceCancelled}
)

func CanTransitionInquiry(from, to InquiryStatus) bool { return inquiryNext[from][to] }
func CanTransitionOrder(from, to OrderStatus) bool     { return orderNext[from][to] }
func CanTransitionInvoice(from, to InvoiceStatus) bool { return invoiceNext[from][to] }

func (s InquiryStatus) Valid() bool {
	_, ok := inquiryNext[s]
	return ok
}

func (s OrderStatus) Valid() bool {
	_, ok := orderNext[s]
	return ok
}

func (s InvoiceStatus) Valid() bool {
	_, ok := invoiceNext[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s InquiryStatus) Terminal() bool { return len(inquiryNext[s]) == 0 }
func (s OrderStatus) Terminal() bool   { return len(orderNext[s]) == 0 }

func checkOrderTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return validationf("unknown order status %q", to)
	}
	if !CanTransitionOrder(from, to) {
		return &TransitionError{Entity: "order", From: string(from), To: string(to)}
	}
	return nil
}

func checkInquiryTransition(from, to InquiryStatus) error {
	if !to.Valid() {
		return validationf("unknown inquiry status %q", to)
	}
	if !CanTransitionInquiry(from, to) {
		return &TransitionError{Entity: "inquiry", From: string(from), To: string(to)}
	}
	return nil
}

func checkInvoiceTransition(from, to InvoiceStatus) error {
	if !CanTransitionInvoice(from, to) {
		return &TransitionError{Entity: "invoice", From: string(from), To: string(to)}
	}
	return nil
}

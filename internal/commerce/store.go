package commerce

import (
	"context"
	"time"
)

// Store is the persistence port. InTx runs fn in one transaction that commits
// when fn returns nil and rolls back otherwise. Implementations must map
// missing rows to ErrNotFound and unique-constraint conflicts to ErrDuplicate.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	ReadTx(ctx context.Context, fn func(tx Reader) error) error
}

type Reader interface {
	Product(ctx context.Context, id string) (Product, error)
	Products(ctx context.Context, f ProductFilter) ([]Product, error)
	CountActiveProducts(ctx context.Context, sellerID string) (int, error)

	Inquiry(ctx context.Context, id string) (Inquiry, error)
	Inquiries(ctx context.Context, f InquiryFilter) ([]Inquiry, error)

	Order(ctx context.Context, id string) (Order, error)
	OrderByInquiry(ctx context.Context, inquiryID string) (Order, error)
	OrderByIdempotencyKey(ctx context.Context, buyerID, key string) (Order, error)
	Orders(ctx context.Context, f PartyFilter) ([]Order, error)

	Invoice(ctx context.Context, id string) (Invoice, error)
	InvoiceByOrder(ctx context.Context, orderID string) (Invoice, error)
	Invoices(ctx context.Context, f PartyFilter) ([]Invoice, error)
}

// Tx adds locking reads and writes. Lock* reads hold the row until the
// transaction ends.
type Tx interface {
	Reader

	LockProduct(ctx context.Context, id string) (Product, error)
	InsertProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error

	LockInquiry(ctx context.Context, id string) (Inquiry, error)
	InsertInquiry(ctx context.Context, in Inquiry) error
	UpdateInquiry(ctx context.Context, in Inquiry) error
	DeleteInquiry(ctx context.Context, id string) error

	LockOrder(ctx context.Context, id string) (Order, error)
	InsertOrder(ctx context.Context, o Order) error
	UpdateOrder(ctx context.Context, o Order) error

	LockInvoice(ctx context.Context, id string) (Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) error
	UpdateInvoice(ctx context.Context, inv Invoice) error

	// NextSequence atomically increments and returns the counter for (name, day).
	NextSequence(ctx context.Context, name string, day time.Time) (int64, error)
}

type ProductFilter struct {
	SellerID   string
	ActiveOnly bool
	// deleted products are skipped unless set
	IncludeDeleted bool
}

type InquiryFilter struct {
	BuyerID  string
	SellerID string
	Status   InquiryStatus
}

// PartyFilter selects rows by buyer or seller; empty fields match all.
type PartyFilter struct {
	BuyerID  string
	SellerID string
}

func (f ProductFilter) Match(p Product) bool {
	if f.SellerID != "" && p.SellerID != f.SellerID {
		return false
	}
	if f.ActiveOnly && !p.Active {
		return false
	}
	return f.IncludeDeleted || !p.Deleted
}

func (f InquiryFilter) Match(in Inquiry) bool {
	if f.BuyerID != "" && in.BuyerID != f.BuyerID {
		return false
	}
	if f.SellerID != "" && in.SellerID != f.SellerID {
		return false
	}
	return f.Status == "" || in.Status == f.Status
}

func (f PartyFilter) Match(buyerID, sellerID string) bool {
	if f.BuyerID != "" && buyerID != f.BuyerID {
		return false
	}
	return f.SellerID == "" || sellerID == f.SellerID
}

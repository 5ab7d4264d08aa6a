package commerce

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderInput struct {
	InquiryID     string           `json:"inquiry_id,omitempty"`
	ProductID     string           `json:"product_id"`
	FinalQuantity int              `json:"final_quantity"`
	FinalPrice    *decimal.Decimal `json:"final_price,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	ShippingTerms string           `json:"shipping_terms,omitempty"`
	ShippingCost  *decimal.Decimal `json:"shipping_cost,omitempty"`
}

// StatusChange is the result of UpdateStatus. Invoice is set when the
// transition produced (or found) the order's invoice.
type StatusChange struct {
	Order            Order    `json:"order"`
	Invoice          *Invoice `json:"invoice,omitempty"`
	InvoiceGenerated bool     `json:"invoice_generated"`
}

type OrderWorkflow struct {
	*base
	invoices *InvoiceWorkflow
}

// CreateDirect places a buyer order. With an inquiry id the inquiry must
// belong to the buyer and becomes CONVERTED.
func (w *OrderWorkflow) CreateDirect(ctx context.Context, buyer Actor, in OrderInput) (Order, error) {
	o, _, err := w.createDirect(ctx, buyer, "", in)
	return o, err
}

// MaxIdempotencyKeyLen bounds the client key stored with an order.
const MaxIdempotencyKeyLen = 128

// CreateDirectOnce is CreateDirect keyed by a client retry key. A repeated
// key from the same buyer returns the order it created first, with replayed
// set, and changes nothing.
func (w *OrderWorkflow) CreateDirectOnce(ctx context.Context, buyer Actor, key string, in OrderInput) (o Order, replayed bool, err error) {
	if key == "" {
		return Order{}, false, validationf("idempotency key is required")
	}
	if len(key) > MaxIdempotencyKeyLen {
		return Order{}, false, validationf("idempotency key longer than %d bytes", MaxIdempotencyKeyLen)
	}
	o, replayed, err = w.createDirect(ctx, buyer, key, in)
	if errors.Is(err, ErrDuplicate) {
		// a concurrent request with the same key won the unique index
		if prev, lerr := w.byIdempotencyKey(ctx, buyer.ID, key); lerr == nil {
			return prev, true, nil
		}
	}
	return o, replayed, err
}

func (w *OrderWorkflow) byIdempotencyKey(ctx context.Context, buyerID, key string) (Order, error) {
	var out Order
	err := w.read(ctx, func(r Reader) error {
		o, err := r.OrderByIdempotencyKey(ctx, buyerID, key)
		out = o
		return err
	})
	return out, err
}

func (w *OrderWorkflow) createDirect(ctx context.Context, buyer Actor, key string, in OrderInput) (Order, bool, error) {
	if !buyer.IsBuyer() {
		return Order{}, false, ErrAccessDenied
	}
	var (
		out      Order
		replayed bool
	)
	err := w.write(ctx, func(tx Tx, ob *outbox) error {
		if key != "" {
			prev, err := tx.OrderByIdempotencyKey(ctx, buyer.ID, key)
			if err == nil {
				out, replayed = prev, true
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		var inq *Inquiry
		if in.InquiryID != "" {
			i, err := tx.LockInquiry(ctx, in.InquiryID)
			if err != nil {
				return err
			}
			if i.BuyerID != buyer.ID {
				return ErrAccessDenied
			}
			if in.ProductID == "" {
				in.ProductID = i.ProductID
			}
			if i.ProductID != in.ProductID {
				return validationf("inquiry %s is for a different product", i.ID)
			}
			inq = &i
		}
		if in.ProductID == "" {
			return validationf("product_id is required")
		}
		p, err := tx.Product(ctx, in.ProductID)
		if err != nil {
			return err
		}
		o, err := w.build(ctx, tx, p, buyer.ID, in)
		if err != nil {
			return err
		}
		o.IdempotencyKey = key
		out, err = w.insert(ctx, tx, ob, o, inq)
		return err
	})
	if err != nil {
		return Order{}, false, err
	}
	if replayed {
		w.log.Info("order replayed", zap.String("order_id", out.ID), zap.String("idempotency_key", key))
		return out, true, nil
	}
	w.log.Info("order created", zap.String("order_id", out.ID), zap.String("order_number", out.OrderNumber))
	return out, false, nil
}

// CreateFromInquiry lets the inquiry's seller turn it into an order. Missing
// terms default to the inquiry quantity and the product price.
func (w *OrderWorkflow) CreateFromInquiry(ctx context.Context, seller Actor, inquiryID string, in OrderInput) (Order, error) {
	if !seller.IsSeller() {
		return Order{}, ErrAccessDenied
	}
	var out Order
	err := w.write(ctx, func(tx Tx, ob *outbox) error {
		inq, err := tx.LockInquiry(ctx, inquiryID)
		if err != nil {
			return err
		}
		if inq.SellerID != seller.ID {
			return ErrAccessDenied
		}
		p, err := tx.Product(ctx, inq.ProductID)
		if err != nil {
			return err
		}
		in.InquiryID = inq.ID
		in.ProductID = inq.ProductID
		if in.FinalQuantity == 0 {
			in.FinalQuantity = inq.Quantity
		}
		if in.ShippingTerms == "" {
			in.ShippingTerms = inq.ShippingOption
		}
		o, err := w.build(ctx, tx, p, inq.BuyerID, in)
		if err != nil {
			return err
		}
		out, err = w.insert(ctx, tx, ob, o, &inq)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	w.log.Info("order created from inquiry",
		zap.String("order_id", out.ID),
		zap.String("inquiry_id", inquiryID),
	)
	return out, nil
}

func (w *OrderWorkflow) build(ctx context.Context, tx Tx, p Product, buyerID string, in OrderInput) (Order, error) {
	if in.FinalQuantity <= 0 {
		return Order{}, validationf("final quantity must be positive")
	}
	price := p.Price
	if in.FinalPrice != nil {
		price = *in.FinalPrice
	}
	if err := checkMoney("final price", price); err != nil {
		return Order{}, err
	}
	shipping := decimal.Zero
	if in.ShippingCost != nil {
		shipping = *in.ShippingCost
	}
	if err := checkMoney("shipping cost", shipping); err != nil {
		return Order{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	now := w.now()
	seq, err := tx.NextSequence(ctx, SeqOrder, now)
	if err != nil {
		return Order{}, fmt.Errorf("order number: %w", err)
	}
	return Order{
		ID:            newID(),
		OrderNumber:   OrderNumber(now, seq),
		InquiryID:     in.InquiryID,
		BuyerID:       buyerID,
		SellerID:      p.SellerID,
		ProductID:     p.ID,
		FinalQuantity: in.FinalQuantity,
		FinalPrice:    price,
		Currency:      currency,
		ShippingTerms: in.ShippingTerms,
		ShippingCost:  shipping,
		TotalAmount:   OrderTotal(price, in.FinalQuantity, shipping),
		Status:        OrderCreated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// insert stores the order and converts the inquiry. The unique index on
// orders.inquiry_id is the final guard against a concurrent second order.
func (w *OrderWorkflow) insert(ctx context.Context, tx Tx, ob *outbox, o Order, inq *Inquiry) (Order, error) {
	if inq != nil {
		if existing, err := tx.OrderByInquiry(ctx, inq.ID); err == nil {
			return Order{}, duplicate("inquiry %s already has order %s", inq.ID, existing.OrderNumber)
		} else if !errors.Is(err, ErrNotFound) {
			return Order{}, err
		}
		if inq.Status == InquiryConverted {
			return Order{}, duplicate("inquiry %s is already converted", inq.ID)
		}
		if err := checkInquiryTransition(inq.Status, InquiryConverted); err != nil {
			return Order{}, err
		}
	}
	if err := tx.InsertOrder(ctx, o); err != nil {
		return Order{}, err
	}
	ob.add(orderEvent(EventOrderCreated, o, ""))
	if inq != nil {
		inq.Status = InquiryConverted
		inq.UpdatedAt = o.CreatedAt
		if err := tx.UpdateInquiry(ctx, *inq); err != nil {
			return Order{}, err
		}
		ob.add(inquiryEvent(EventInquiryUpdated, *inq))
	}
	return o, nil
}

// UpdateStatus moves the order along its status graph. Confirming a CREATED
// order generates its DRAFT invoice in the same transaction.
func (w *OrderWorkflow) UpdateStatus(ctx context.Context, actor Actor, orderID string, to OrderStatus) (StatusChange, error) {
	var out StatusChange
	err := w.write(ctx, func(tx Tx, ob *outbox) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !isParty(actor, o.BuyerID, o.SellerID) {
			return ErrAccessDenied
		}
		if err := checkOrderTransition(o.Status, to); err != nil {
			return err
		}
		prev := o.Status
		o.Status = to
		o.UpdatedAt = w.now()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		ob.add(orderEvent(EventOrderStatusChanged, o, prev))
		out = StatusChange{Order: o}

		if prev == OrderCreated && to == OrderConfirmed {
			inv, created, err := w.invoices.ensureForOrder(ctx, tx, ob, o)
			if err != nil {
				return fmt.Errorf("generate invoice for order %s: %w", o.OrderNumber, err)
			}
			out.Invoice = &inv
			out.InvoiceGenerated = created
		}
		return nil
	})
	if err != nil {
		return StatusChange{}, err
	}
	w.log.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("status", string(to)),
		zap.Bool("invoice_generated", out.InvoiceGenerated),
	)
	return out, nil
}

func (w *OrderWorkflow) Get(ctx context.Context, actor Actor, id string) (Order, error) {
	var out Order
	err := w.read(ctx, func(r Reader) error {
		o, err := r.Order(ctx, id)
		if err != nil {
			return err
		}
		if !isParty(actor, o.BuyerID, o.SellerID) {
			return ErrAccessDenied
		}
		out = o
		return nil
	})
	return out, err
}

func (w *OrderWorkflow) List(ctx context.Context, actor Actor) ([]Order, error) {
	f, err := partyFilter(actor)
	if err != nil {
		return nil, err
	}
	var out []Order
	err = w.read(ctx, func(r Reader) error {
		var err error
		out, err = r.Orders(ctx, f)
		return err
	})
	return out, err
}

func isParty(a Actor, buyerID, sellerID string) bool {
	return a.ID != "" && (a.ID == buyerID || a.ID == sellerID)
}

func partyFilter(a Actor) (PartyFilter, error) {
	switch a.Role {
	case RoleBuyer:
		return PartyFilter{BuyerID: a.ID}, nil
	case RoleSeller:
		return PartyFilter{SellerID: a.ID}, nil
	}
	return PartyFilter{}, ErrAccessDenied
}

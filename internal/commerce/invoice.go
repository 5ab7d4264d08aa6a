package commerce

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type GenerateInput struct {
	OrderID string `json:"order_id"`
	// ShippingMethod only changes the label; amounts always come from the order.
	ShippingMethod  string `json:"shipping_method,omitempty"`
	DisplayCurrency string `json:"display_currency,omitempty"`
}

// Renderer turns an invoice into a printable document.
type Renderer interface {
	Render(ctx context.Context, doc InvoiceDocument) ([]byte, error)
}

type InvoiceDocument struct {
	Invoice      Invoice
	OrderNumber  string
	Product      Product
	BuyerCountry string
}

var ErrRender = errors.New("render invoice document")

type InvoiceWorkflow struct {
	*base
	ledger   *StockLedger
	conv     CurrencyConverter
	renderer Renderer
}

func (w *InvoiceWorkflow) Generate(ctx context.Context, seller Actor, in GenerateInput) (Invoice, error) {
	if !seller.IsSeller() {
		return Invoice{}, ErrAccessDenied
	}
	if in.OrderID == "" {
		return Invoice{}, validationf("order_id is required")
	}
	var out Invoice
	err := w.write(ctx, func(tx Tx, ob *outbox) error {
		o, err := tx.LockOrder(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if o.SellerID != seller.ID {
			return ErrAccessDenied
		}
		if o.Status == OrderCancelled {
			return &TransitionError{Entity: "order", From: string(o.Status), To: "INVOICED"}
		}
		if existing, err := tx.InvoiceByOrder(ctx, o.ID); err == nil {
			return duplicate("order %s already has invoice %s", o.OrderNumber, existing.InvoiceNumber)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		out, err = w.create(ctx, tx, ob, o, in.ShippingMethod, in.DisplayCurrency)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	w.log.Info("invoice generated",
		zap.String("invoice_id", out.ID),
		zap.String("invoice_number", out.InvoiceNumber),
		zap.String("order_id", out.OrderID),
	)
	return out, nil
}

// ensureForOrder returns the order's invoice, generating a DRAFT from the
// order's own terms when there is none yet.
func (w *InvoiceWorkflow) ensureForOrder(ctx context.Context, tx Tx, ob *outbox, o Order) (Invoice, bool, error) {
	existing, err := tx.InvoiceByOrder(ctx, o.ID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Invoice{}, false, err
	}
	inv, err := w.create(ctx, tx, ob, o, "", "")
	if err != nil {
		return Invoice{}, false, err
	}
	return inv, true, nil
}

// create copies every amount verbatim from the order.
func (w *InvoiceWorkflow) create(ctx context.Context, tx Tx, ob *outbox, o Order, shippingMethod, displayCurrency string) (Invoice, error) {
	now := w.now()
	seq, err := tx.NextSequence(ctx, SeqInvoice, now)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoice number: %w", err)
	}
	if strings.TrimSpace(shippingMethod) == "" {
		shippingMethod = o.ShippingTerms
	}
	inv := Invoice{
		ID:             newID(),
		InvoiceNumber:  InvoiceNumber(now, seq),
		OrderID:        o.ID,
		InquiryID:      o.InquiryID,
		SellerID:       o.SellerID,
		BuyerID:        o.BuyerID,
		ProductID:      o.ProductID,
		Quantity:       o.FinalQuantity,
		UnitPrice:      o.FinalPrice,
		TotalPrice:     LineTotal(o.FinalPrice, o.FinalQuantity),
		ShippingMethod: shippingMethod,
		ShippingCost:   o.ShippingCost,
		TotalAmount:    o.TotalAmount,
		Currency:       o.Currency,
		Status:         InvoiceDraft,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	displayCurrency = strings.ToUpper(strings.TrimSpace(displayCurrency))
	if displayCurrency != "" && displayCurrency != inv.Currency {
		amt, err := w.conv.Convert(inv.TotalAmount, inv.Currency, displayCurrency)
		if err != nil {
			// display-only: the invoice is still valid without it
			w.log.Warn("currency conversion failed",
				zap.String("order_id", o.ID),
				zap.String("to", displayCurrency),
				zap.Error(err),
			)
		} else {
			inv.ConvertedAmount = &amt
			inv.ConvertedCurrency = displayCurrency
		}
	}

	if err := tx.InsertInvoice(ctx, inv); err != nil {
		return Invoice{}, err
	}
	ob.add(invoiceEvent(EventInvoiceGenerated, inv))
	return inv, nil
}

// Confirm finalizes a DRAFT invoice and permanently deducts its quantity.
func (w *InvoiceWorkflow) Confirm(ctx context.Context, seller Actor, id string) (Invoice, error) {
	out, err := w.transition(ctx, seller, id, InvoiceConfirmed, func(ctx context.Context, tx Tx, ob *outbox, inv Invoice) error {
		_, err := w.ledger.mutate(ctx, tx, ob, opDeduct, inv.ProductID, inv.Quantity)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	w.log.Info("invoice confirmed", zap.String("invoice_number", out.InvoiceNumber), zap.Int("qty", out.Quantity))
	return out, nil
}

// Cancel voids an invoice. A CONFIRMED invoice returns its deducted quantity
// to the declared total.
func (w *InvoiceWorkflow) Cancel(ctx context.Context, seller Actor, id string) (Invoice, error) {
	out, err := w.transition(ctx, seller, id, InvoiceCancelled, func(ctx context.Context, tx Tx, ob *outbox, inv Invoice) error {
		if inv.Status != InvoiceConfirmed {
			return nil
		}
		_, err := w.ledger.mutate(ctx, tx, ob, opRestore, inv.ProductID, inv.Quantity)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	w.log.Info("invoice cancelled", zap.String("invoice_number", out.InvoiceNumber))
	return out, nil
}

type invoiceEffect func(ctx context.Context, tx Tx, ob *outbox, inv Invoice) error

func (w *InvoiceWorkflow) transition(ctx context.Context, seller Actor, id string, to InvoiceStatus, effect invoiceEffect) (Invoice, error) {
	if !seller.IsSeller() {
		return Invoice{}, ErrAccessDenied
	}
	var out Invoice
	err := w.write(ctx, func(tx Tx, ob *outbox) error {
		inv, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if inv.SellerID != seller.ID {
			return ErrAccessDenied
		}
		if err := checkInvoiceTransition(inv.Status, to); err != nil {
			return err
		}
		// effect sees the status before the change
		if err := effect(ctx, tx, ob, inv); err != nil {
			return err
		}
		inv.Status = to
		inv.UpdatedAt = w.now()
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		typ := EventInvoiceConfirmed
		if to == InvoiceCancelled {
			typ = EventInvoiceCancelled
		}
		ob.add(invoiceEvent(typ, inv))
		out = inv
		return nil
	})
	return out, err
}

func (w *InvoiceWorkflow) Get(ctx context.Context, actor Actor, id string) (Invoice, error) {
	var out Invoice
	err := w.read(ctx, func(r Reader) error {
		inv, err := r.Invoice(ctx, id)
		if err != nil {
			return err
		}
		if !isParty(actor, inv.BuyerID, inv.SellerID) {
			return ErrAccessDenied
		}
		out = inv
		return nil
	})
	return out, err
}

func (w *InvoiceWorkflow) List(ctx context.Context, actor Actor) ([]Invoice, error) {
	f, err := partyFilter(actor)
	if err != nil {
		return nil, err
	}
	var out []Invoice
	err = w.read(ctx, func(r Reader) error {
		var err error
		out, err = r.Invoices(ctx, f)
		return err
	})
	return out, err
}

// Document renders the invoice for either party.
func (w *InvoiceWorkflow) Document(ctx context.Context, actor Actor, id string) ([]byte, error) {
	if w.renderer == nil {
		return nil, fmt.Errorf("%w: no renderer configured", ErrRender)
	}
	var doc InvoiceDocument
	err := w.read(ctx, func(r Reader) error {
		inv, err := r.Invoice(ctx, id)
		if err != nil {
			return err
		}
		if !isParty(actor, inv.BuyerID, inv.SellerID) {
			return ErrAccessDenied
		}
		doc.Invoice = inv
		if o, err := r.Order(ctx, inv.OrderID); err == nil {
			doc.OrderNumber = o.OrderNumber
		}
		if p, err := r.Product(ctx, inv.ProductID); err == nil {
			doc.Product = p
		}
		if inv.InquiryID != "" {
			if in, err := r.Inquiry(ctx, inv.InquiryID); err == nil {
				doc.BuyerCountry = in.BuyerCountry
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b, err := w.renderer.Render(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	return b, nil
}

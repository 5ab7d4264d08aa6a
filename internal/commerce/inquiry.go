package commerce

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const (
	sellerReplyMarker = "\n\n--- Seller Reply ---\n"
	buyerReplyMarker  = "\n\n--- Buyer Reply ---\n"
)

type InquiryInput struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	Message        string `json:"message"`
	ShippingOption string `json:"shipping_option"`
	BuyerCountry   string `json:"buyer_country"`
}

type InquiryPatch struct {
	Quantity       *int    `json:"quantity,omitempty"`
	Message        *string `json:"message,omitempty"`
	ShippingOption *string `json:"shipping_option,omitempty"`
}

// InquiryWorkflow holds stock for an inquiry from creation until it is
// deleted or converted into an order.
type InquiryWorkflow struct {
	*base
	ledger *StockLedger
}

func (w *InquiryWorkflow) Create(ctx context.Context, buyer Actor, in InquiryInput) (Inquiry, error) {
	if !buyer.IsBuyer() {
		return Inquiry{}, ErrAccessDenied
	}
	if in.ProductID == "" {
		return Inquiry{}, validationf("product_id is required")
	}
	var out Inquiry
	err := w.write(ctx, func(tx Tx, ob *outbox) error {
		p, err := tx.Product(ctx, in.ProductID)
		if err != nil {
			return err
		}
		if p.Deleted || !p.Active {
			return validationf("product %s is not available", p.ID)
		}
		if in.Quantity < p.MinQuantity {
			return validationf("minimum quantity is %d, requested %d", p.MinQuantity, in.Quantity)
		}
		if _, err := w.ledger.mutate(ctx, tx, ob, opReserve, p.ID, in.Quantity); err != nil {
			return err
		}
		now := w.now()
		out = Inquiry{
			ID:             newID(),
			BuyerID:        buyer.ID,
			SellerID:       p.SellerID,
			ProductID:      p.ID,
			Quantity:       in.Quantity,
			Message:        in.Message,
			ShippingOption: in.ShippingOption,
			BuyerCountry:   strings.ToUpper(strings.TrimSpace(in.BuyerCountry)),
			Status:         InquiryNew,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertInquiry(ctx, out); err != nil {
			return err
		}
		ob.add(inquiryEvent(EventInquiryCreated, out))
		return nil
	})
	if err != nil {
		return Inquiry{}, err
	}
	w.log.Info("inquiry created",
		zap.String("inquiry_id", out.ID),
		zap.String("product_id", out.ProductID),
		zap.Int("qty", out.Quantity),
	)
	return out, nil
}

// Edit changes an inquiry the seller has not answered yet. A quantity change
// swaps the reservation; if the new amount cannot be held the old one stays.
func (w *InquiryWorkflow) Edit(ctx context.Context, buyer Actor, id string, patch InquiryPatch) (Inquiry, error) {
	var out Inquiry
	err := w.write(ctx, func(tx Tx, ob *outbox) error {
		in, err := w.lockForBuyer(ctx, tx, buyer, id)
		if err != nil {
			return err
		}
		if in.Status != InquiryNew {
			return &TransitionError{Entity: "inquiry", From: string(in.Status), To: "EDITED"}
		}

		if patch.Quantity != nil && *patch.Quantity != in.Quantity {
			p, err := w.swapReservation(ctx, tx, in, *patch.Quantity)
			if err != nil {
				return err
			}
			ob.add(stockEvent(opReserve, *patch.Quantity, p))
			in.Quantity = *patch.Quantity
		}
		if patch.Message != nil {
			in.Message = *patch.Message
		}
		if patch.ShippingOption != nil {
			in.ShippingOption = *patch.ShippingOption
		}
		in.UpdatedAt = w.now()
		if err := tx.UpdateInquiry(ctx, in); err != nil {
			return err
		}
		ob.add(inquiryEvent(EventInquiryUpdated, in))
		out = in
		return nil
	})
	return out, err
}

func (w *InquiryWorkflow) swapReservation(ctx context.Context, tx Tx, in Inquiry, newQty int) (Product, error) {
	p, err := tx.LockProduct(ctx, in.ProductID)
	if err != nil {
		return Product{}, err
	}
	if newQty < p.MinQuantity {
		return Product{}, validationf("minimum quantity is %d, requested %d", p.MinQuantity, newQty)
	}

	before := p
	err = runSteps(w.log,
		step{
			name: "release-previous",
			do:   func() error { return p.release(in.Quantity) },
			undo: func() { p.ReservedStock, p.Active = before.ReservedStock, before.Active },
		},
		step{
			name: "reserve-new",
			do:   func() error { return p.reserve(newQty) },
			undo: func() { _ = p.release(newQty) },
		},
	)
	if err != nil {
		return before, err
	}
	p.UpdatedAt = w.now()
	if err := tx.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (w *InquiryWorkflow) Delete(ctx context.Context, buyer Actor, id string) error {
	return w.write(ctx, func(tx Tx, ob *outbox) error {
		in, err := w.lockForBuyer(ctx, tx, buyer, id)
		if err != nil {
			return err
		}
		if in.Status != InquiryNew {
			return &TransitionError{Entity: "inquiry", From: string(in.Status), To: "DELETED"}
		}
		if in.Quantity > 0 {
			if _, err := w.ledger.mutate(ctx, tx, ob, opRelease, in.ProductID, in.Quantity); err != nil {
				return err
			}
		}
		if err := tx.DeleteInquiry(ctx, in.ID); err != nil {
			return err
		}
		ob.add(inquiryEvent(EventInquiryDeleted, in))
		return nil
	})
}

// Reply appends the seller's answer. Without an explicit status a NEW
// inquiry moves to REPLIED.
func (w *InquiryWorkflow) Reply(ctx context.Context, seller Actor, id, message string, status InquiryStatus) (Inquiry, error) {
	var out Inquiry
	err := w.write(ctx, func(tx Tx, ob *outbox) error {
		in, err := w.lockForSeller(ctx, tx, seller, id)
		if err != nil {
			return err
		}
		if in.Status.Terminal() {
			return &TransitionError{Entity: "inquiry", From: string(in.Status), To: "REPLIED"}
		}
		if strings.TrimSpace(message) != "" {
			in.Message += sellerReplyMarker + message
		}
		switch {
		case status != "" && status != in.Status:
			if err := w.manualStatus(in.Status, status); err != nil {
				return err
			}
			in.Status = status
		case status == "" && in.Status == InquiryNew:
			in.Status = InquiryReplied
		}
		in.UpdatedAt = w.now()
		if err := tx.UpdateInquiry(ctx, in); err != nil {
			return err
		}
		ob.add(inquiryEvent(EventInquiryReplied, in))
		out = in
		return nil
	})
	return out, err
}

// BuyerReply answers a seller reply and puts the inquiry back in the
// seller's queue.
func (w *InquiryWorkflow) BuyerReply(ctx context.Context, buyer Actor, id, message string) (Inquiry, error) {
	if strings.TrimSpace(message) == "" {
		return Inquiry{}, validationf("message is required")
	}
	var out Inquiry
	err := w.write(ctx, func(tx Tx, ob *outbox) error {
		in, err := w.lockForBuyer(ctx, tx, buyer, id)
		if err != nil {
			return err
		}
		if in.Status.Terminal() {
			return &TransitionError{Entity: "inquiry", From: string(in.Status), To: string(InquiryNew)}
		}
		in.Message += buyerReplyMarker + message
		if in.Status == InquiryReplied {
			in.Status = InquiryNew
		}
		in.UpdatedAt = w.now()
		if err := tx.UpdateInquiry(ctx, in); err != nil {
			return err
		}
		ob.add(inquiryEvent(EventInquiryReplied, in))
		out = in
		return nil
	})
	return out, err
}

func (w *InquiryWorkflow) SetStatus(ctx context.Context, seller Actor, id string, status InquiryStatus) (Inquiry, error) {
	var out Inquiry
	err := w.write(ctx, func(tx Tx, ob *outbox) error {
		in, err := w.lockForSeller(ctx, tx, seller, id)
		if err != nil {
			return err
		}
		if err := w.manualStatus(in.Status, status); err != nil {
			return err
		}
		in.Status = status
		in.UpdatedAt = w.now()
		if err := tx.UpdateInquiry(ctx, in); err != nil {
			return err
		}
		ob.add(inquiryEvent(EventInquiryUpdated, in))
		out = in
		return nil
	})
	return out, err
}

// CONVERTED is reserved for order creation.
func (w *InquiryWorkflow) manualStatus(from, to InquiryStatus) error {
	if to == InquiryConverted {
		return &TransitionError{Entity: "inquiry", From: string(from), To: string(to)}
	}
	return checkInquiryTransition(from, to)
}

func (w *InquiryWorkflow) Get(ctx context.Context, actor Actor, id string) (Inquiry, error) {
	var out Inquiry
	err := w.read(ctx, func(r Reader) error {
		in, err := r.Inquiry(ctx, id)
		if err != nil {
			return err
		}
		if !visibleTo(actor, in.BuyerID, in.SellerID) {
			return notFound("inquiry", id)
		}
		out = in
		return nil
	})
	return out, err
}

func (w *InquiryWorkflow) List(ctx context.Context, actor Actor, status InquiryStatus) ([]Inquiry, error) {
	f := InquiryFilter{Status: status}
	switch actor.Role {
	case RoleBuyer:
		f.BuyerID = actor.ID
	case RoleSeller:
		f.SellerID = actor.ID
	default:
		return nil, ErrAccessDenied
	}
	if status != "" && !status.Valid() {
		return nil, validationf("unknown inquiry status %q", status)
	}
	var out []Inquiry
	err := w.read(ctx, func(r Reader) error {
		var err error
		out, err = r.Inquiries(ctx, f)
		return err
	})
	return out, err
}

// Lookups scoped by party report NotFound on a mismatch so ids do not leak.
func (w *InquiryWorkflow) lockForBuyer(ctx context.Context, tx Tx, buyer Actor, id string) (Inquiry, error) {
	in, err := tx.LockInquiry(ctx, id)
	if err != nil {
		return Inquiry{}, err
	}
	if !buyer.IsBuyer() || in.BuyerID != buyer.ID {
		return Inquiry{}, notFound("inquiry", id)
	}
	return in, nil
}

func (w *InquiryWorkflow) lockForSeller(ctx context.Context, tx Tx, seller Actor, id string) (Inquiry, error) {
	in, err := tx.LockInquiry(ctx, id)
	if err != nil {
		return Inquiry{}, err
	}
	if !seller.IsSeller() || in.SellerID != seller.ID {
		return Inquiry{}, notFound("inquiry", id)
	}
	return in, nil
}

func visibleTo(a Actor, buyerID, sellerID string) bool {
	switch a.Role {
	case RoleBuyer:
		return a.ID == buyerID
	case RoleSeller:
		return a.ID == sellerID
	}
	return false
}

package commerce

import (
	"context"

	"go.uber.org/zap"
)

const (
	opReserve = "reserve"
	opRelease = "release"
	opDeduct  = "deduct"
	opRestore = "restore"
	opAdjust  = "adjust"
)

// StockLedger owns declared/reserved counters. Every change goes through a
// locked product row, so concurrent operations on one product are linearized.
type StockLedger struct {
	*base
}

func (l *StockLedger) Reserve(ctx context.Context, productID string, qty int) (Product, error) {
	return l.apply(ctx, opReserve, productID, qty)
}

func (l *StockLedger) Release(ctx context.Context, productID string, qty int) (Product, error) {
	return l.apply(ctx, opRelease, productID, qty)
}

func (l *StockLedger) Deduct(ctx context.Context, productID string, qty int) (Product, error) {
	return l.apply(ctx, opDeduct, productID, qty)
}

func (l *StockLedger) Restore(ctx context.Context, productID string, qty int) (Product, error) {
	return l.apply(ctx, opRestore, productID, qty)
}

// Snapshot returns the product with its derived stock fields.
func (l *StockLedger) Snapshot(ctx context.Context, productID string) (StockView, error) {
	var p Product
	err := l.read(ctx, func(r Reader) error {
		var err error
		p, err = r.Product(ctx, productID)
		return err
	})
	if err != nil {
		return StockView{}, err
	}
	return ViewStock(p), nil
}

func (l *StockLedger) apply(ctx context.Context, op, productID string, qty int) (Product, error) {
	var out Product
	err := l.write(ctx, func(tx Tx, ob *outbox) error {
		p, err := l.mutate(ctx, tx, ob, op, productID, qty)
		out = p
		return err
	})
	return out, err
}

// mutate runs one counter operation inside an open transaction.
func (l *StockLedger) mutate(ctx context.Context, tx Tx, ob *outbox, op, productID string, qty int) (Product, error) {
	p, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	switch op {
	case opReserve:
		err = p.reserve(qty)
	case opRelease:
		err = p.release(qty)
	case opDeduct:
		err = p.deduct(qty)
	case opRestore:
		err = p.restore(qty)
	default:
		return Product{}, validationf("unknown stock operation %q", op)
	}
	if err != nil {
		return Product{}, err
	}
	p.UpdatedAt = l.now()
	if err := tx.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	l.log.Debug("stock changed",
		zap.String("product_id", p.ID),
		zap.String("op", op),
		zap.Int("qty", qty),
		zap.Int("declared", p.DeclaredStock),
		zap.Int("reserved", p.ReservedStock),
	)
	ob.add(stockEvent(op, qty, p))
	return p, nil
}

type StockView struct {
	ProductID     string      `json:"product_id"`
	DeclaredStock int         `json:"declared_stock"`
	ReservedStock int         `json:"reserved_stock"`
	Remaining     int         `json:"remaining"`
	Status        StockStatus `json:"stock_status"`
	Active        bool        `json:"active"`
}

func ViewStock(p Product) StockView {
	return StockView{
		ProductID:     p.ID,
		DeclaredStock: p.DeclaredStock,
		ReservedStock: p.ReservedStock,
		Remaining:     p.Remaining(),
		Status:        p.StockStatus(),
		Active:        p.Active,
	}
}

package commerce

type StockStatus string

const (
	StockIn  StockStatus = "IN_STOCK"
	StockLow StockStatus = "LOW_STOCK"
	StockOut StockStatus = "OUT_OF_STOCK"
)

const LowStockThreshold = 10

// Remaining is the sellable quantity, never negative.
func (p *Product) Remaining() int {
	if r := p.DeclaredStock - p.ReservedStock; r > 0 {
		return r
	}
	return 0
}

func (p *Product) StockStatus() StockStatus {
	switch r := p.Remaining(); {
	case r == 0:
		return StockOut
	case r <= LowStockThreshold:
		return StockLow
	default:
		return StockIn
	}
}

// The counter methods below only touch the in-memory row; callers persist
// it inside the transaction that locked it.

func (p *Product) reserve(qty int) error {
	if err := checkQty(qty); err != nil {
		return err
	}
	if avail := p.Remaining(); avail < qty {
		return &InsufficientStockError{ProductID: p.ID, Requested: qty, Available: avail}
	}
	p.ReservedStock += qty
	p.syncActive()
	return nil
}

func (p *Product) release(qty int) error {
	if err := checkQty(qty); err != nil {
		return err
	}
	p.ReservedStock = clampZero(p.ReservedStock - qty)
	p.syncActive()
	return nil
}

func (p *Product) deduct(qty int) error {
	if err := checkQty(qty); err != nil {
		return err
	}
	p.DeclaredStock = clampZero(p.DeclaredStock - qty)
	p.ReservedStock = clampZero(p.ReservedStock - qty)
	p.syncActive()
	return nil
}

// restore returns deducted units to the declared total. The reservation
// that deduct consumed is not held again: its inquiry is already converted
// and nothing would ever release it.
func (p *Product) restore(qty int) error {
	if err := checkQty(qty); err != nil {
		return err
	}
	p.DeclaredStock += qty
	p.syncActive()
	return nil
}

// syncActive deactivates a product that ran out; it never reactivates.
func (p *Product) syncActive() {
	if p.Remaining() == 0 {
		p.Active = false
	}
}

func checkQty(qty int) error {
	if qty <= 0 {
		return validationf("quantity must be positive, got %d", qty)
	}
	return nil
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

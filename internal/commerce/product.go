package commerce

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ProductInput struct {
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	MinQuantity   int             `json:"min_quantity"`
	DeclaredStock int             `json:"declared_stock"`
}

// ProductPatch updates only the non-nil fields.
type ProductPatch struct {
	Name          *string          `json:"name,omitempty"`
	Category      *string          `json:"category,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	MinQuantity   *int             `json:"min_quantity,omitempty"`
	DeclaredStock *int             `json:"declared_stock,omitempty"`
}

// Catalog manages seller products. Stock counters other than the declared
// total are owned by StockLedger.
type Catalog struct {
	*base
	activeLimit int
}

func (c *Catalog) Create(ctx context.Context, seller Actor, in ProductInput) (Product, error) {
	if !seller.IsSeller() {
		return Product{}, ErrAccessDenied
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Product{}, validationf("name is required")
	}
	if err := checkMoney("price", in.Price); err != nil {
		return Product{}, err
	}
	if in.MinQuantity < 1 {
		in.MinQuantity = 1
	}
	if in.DeclaredStock < 0 {
		return Product{}, validationf("declared stock must not be negative")
	}

	now := c.now()
	p := Product{
		ID:            newID(),
		SellerID:      seller.ID,
		Name:          in.Name,
		Category:      in.Category,
		Description:   in.Description,
		Price:         in.Price,
		MinQuantity:   in.MinQuantity,
		DeclaredStock: in.DeclaredStock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := c.write(ctx, func(tx Tx, ob *outbox) error {
		n, err := tx.CountActiveProducts(ctx, seller.ID)
		if err != nil {
			return err
		}
		// a new product that cannot be active is stored as a draft
		p.Active = p.Remaining() > 0 && n < c.activeLimit
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
		ob.add(stockEvent(opAdjust, p.DeclaredStock, p))
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	c.log.Info("product created", zap.String("product_id", p.ID), zap.String("seller_id", seller.ID))
	return p, nil
}

func (c *Catalog) Update(ctx context.Context, seller Actor, id string, patch ProductPatch) (Product, error) {
	var out Product
	err := c.write(ctx, func(tx Tx, ob *outbox) error {
		p, err := c.owned(ctx, tx, seller, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			if strings.TrimSpace(*patch.Name) == "" {
				return validationf("name is required")
			}
			p.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Category != nil {
			p.Category = *patch.Category
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.Price != nil {
			if err := checkMoney("price", *patch.Price); err != nil {
				return err
			}
			p.Price = *patch.Price
		}
		if patch.MinQuantity != nil {
			if *patch.MinQuantity < 1 {
				return validationf("min quantity must be at least 1")
			}
			p.MinQuantity = *patch.MinQuantity
		}
		stockChanged := false
		if patch.DeclaredStock != nil {
			if *patch.DeclaredStock < p.ReservedStock {
				return validationf("declared stock %d is below reserved stock %d", *patch.DeclaredStock, p.ReservedStock)
			}
			stockChanged = *patch.DeclaredStock != p.DeclaredStock
			p.DeclaredStock = *patch.DeclaredStock
		}
		p.syncActive()
		p.UpdatedAt = c.now()
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		if stockChanged {
			ob.add(stockEvent(opAdjust, p.DeclaredStock, p))
		}
		out = p
		return nil
	})
	return out, err
}

// SetActive toggles availability. Activation needs remaining stock and a
// free slot under the per-seller active limit.
func (c *Catalog) SetActive(ctx context.Context, seller Actor, id string, active bool) (Product, error) {
	var out Product
	err := c.write(ctx, func(tx Tx, ob *outbox) error {
		p, err := c.owned(ctx, tx, seller, id)
		if err != nil {
			return err
		}
		if active && p.Deleted {
			return validationf("product %s is deleted", id)
		}
		if active && p.Remaining() == 0 {
			return validationf("cannot activate product with 0 stock")
		}
		if active && !p.Active {
			n, err := tx.CountActiveProducts(ctx, seller.ID)
			if err != nil {
				return err
			}
			if n >= c.activeLimit {
				return validationf("active product limit (%d) reached", c.activeLimit)
			}
		}
		p.Active = active
		p.UpdatedAt = c.now()
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		ob.add(stockEvent(opAdjust, 0, p))
		out = p
		return nil
	})
	return out, err
}

// Delete is a soft delete: the row stays for orders and invoices that reference it.
func (c *Catalog) Delete(ctx context.Context, seller Actor, id string) error {
	return c.write(ctx, func(tx Tx, ob *outbox) error {
		p, err := c.owned(ctx, tx, seller, id)
		if err != nil {
			return err
		}
		p.Active = false
		p.Deleted = true
		p.UpdatedAt = c.now()
		if err := tx.UpdateProduct(ctx, p); err != nil {
			return err
		}
		ob.add(stockEvent(opAdjust, 0, p))
		return nil
	})
}

func (c *Catalog) Get(ctx context.Context, id string) (Product, error) {
	var p Product
	err := c.read(ctx, func(r Reader) error {
		var err error
		p, err = r.Product(ctx, id)
		return err
	})
	return p, err
}

func (c *Catalog) ListBySeller(ctx context.Context, sellerID string) ([]Product, error) {
	return c.list(ctx, ProductFilter{SellerID: sellerID})
}

func (c *Catalog) ListActive(ctx context.Context) ([]Product, error) {
	return c.list(ctx, ProductFilter{ActiveOnly: true})
}

func (c *Catalog) list(ctx context.Context, f ProductFilter) ([]Product, error) {
	var out []Product
	err := c.read(ctx, func(r Reader) error {
		var err error
		out, err = r.Products(ctx, f)
		return err
	})
	return out, err
}

func (c *Catalog) owned(ctx context.Context, tx Tx, seller Actor, id string) (Product, error) {
	if !seller.IsSeller() {
		return Product{}, ErrAccessDenied
	}
	p, err := tx.LockProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.SellerID != seller.ID {
		return Product{}, ErrAccessDenied
	}
	return p, nil
}

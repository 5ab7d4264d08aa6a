package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
)

const uniqueViolation = "23505"

// Store implements commerce.Store. Lock* reads use SELECT ... FOR UPDATE so
// concurrent workflows on one row queue behind each other until commit.
type Store struct{ DB *pgxpool.Pool }

var _ commerce.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx commerce.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return mapErr(tx.Commit(ctx), "commit", "")
}

func (s *Store) ReadTx(ctx context.Context, fn func(r commerce.Reader) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txStore struct{ tx pgx.Tx }

type scanner interface {
	Scan(dest ...any) error
}

// mapErr translates driver errors into the commerce taxonomy.
func mapErr(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, commerce.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s (%s): %w", kind, pgErr.ConstraintName, commerce.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", kind, err)
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", s, err)
	}
	return d, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// where builds a conjunction of equality predicates, skipping empty values.
func where(pairs ...string) (string, []any) {
	var conds []string
	var args []any
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		args = append(args, pairs[i+1])
		conds = append(conds, fmt.Sprintf("%s = $%d", pairs[i], len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ---- products

const productCols = `id, seller_id, name, category, description, price::text, min_quantity,
	declared_stock, reserved_stock, active, deleted, created_at, updated_at`

func scanProduct(row scanner) (commerce.Product, error) {
	var p commerce.Product
	var price string
	if err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Category, &p.Description, &price,
		&p.MinQuantity, &p.DeclaredStock, &p.ReservedStock, &p.Active, &p.Deleted,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	var err error
	p.Price, err = parseMoney(price)
	return p, err
}

func (t *txStore) Product(ctx context.Context, id string) (commerce.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	return p, mapErr(err, "product", id)
}

func (t *txStore) LockProduct(ctx context.Context, id string) (commerce.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, id))
	return p, mapErr(err, "product", id)
}

func (t *txStore) Products(ctx context.Context, f commerce.ProductFilter) ([]commerce.Product, error) {
	cond, args := where("seller_id", f.SellerID)
	extra := []string{}
	if f.ActiveOnly {
		extra = append(extra, "active")
	}
	if !f.IncludeDeleted {
		extra = append(extra, "NOT deleted")
	}
	if len(extra) > 0 {
		if cond == "" {
			cond = " WHERE " + strings.Join(extra, " AND ")
		} else {
			cond += " AND " + strings.Join(extra, " AND ")
		}
	}
	rows, err := t.tx.Query(ctx, `SELECT `+productCols+` FROM products`+cond+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, mapErr(err, "list products", "")
	}
	defer rows.Close()

	var out []commerce.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *txStore) CountActiveProducts(ctx context.Context, sellerID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE seller_id=$1 AND active AND NOT deleted`, sellerID).Scan(&n)
	return n, mapErr(err, "count products", sellerID)
}

func (t *txStore) InsertProduct(ctx context.Context, p commerce.Product) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO products (id, seller_id, name, category, description, price, min_quantity,
			declared_stock, reserved_stock, active, deleted, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.SellerID, p.Name, p.Category, p.Description, p.Price.String(), p.MinQuantity,
		p.DeclaredStock, p.ReservedStock, p.Active, p.Deleted, p.CreatedAt, p.UpdatedAt)
	return mapErr(err, "insert product", p.ID)
}

func (t *txStore) UpdateProduct(ctx context.Context, p commerce.Product) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET name=$2, category=$3, description=$4, price=$5, min_quantity=$6,
			declared_stock=$7, reserved_stock=$8, active=$9, deleted=$10, updated_at=$11
		WHERE id=$1`,
		p.ID, p.Name, p.Category, p.Description, p.Price.String(), p.MinQuantity,
		p.DeclaredStock, p.ReservedStock, p.Active, p.Deleted, p.UpdatedAt)
	if err != nil {
		return mapErr(err, "update product", p.ID)
	}
	if ct.RowsAffected() != 1 {
		return mapErr(pgx.ErrNoRows, "product", p.ID)
	}
	return nil
}

// ---- inquiries

const inquiryCols = `id, buyer_id, seller_id, product_id, quantity, message, shipping_option,
	buyer_country, status, created_at, updated_at`

func scanInquiry(row scanner) (commerce.Inquiry, error) {
	var in commerce.Inquiry
	var status string
	err := row.Scan(&in.ID, &in.BuyerID, &in.SellerID, &in.ProductID, &in.Quantity, &in.Message,
		&in.ShippingOption, &in.BuyerCountry, &status, &in.CreatedAt, &in.UpdatedAt)
	in.Status = commerce.InquiryStatus(status)
	return in, err
}

func (t *txStore) Inquiry(ctx context.Context, id string) (commerce.Inquiry, error) {
	in, err := scanInquiry(t.tx.QueryRow(ctx, `SELECT `+inquiryCols+` FROM inquiries WHERE id=$1`, id))
	return in, mapErr(err, "inquiry", id)
}

func (t *txStore) LockInquiry(ctx context.Context, id string) (commerce.Inquiry, error) {
	in, err := scanInquiry(t.tx.QueryRow(ctx, `SELECT `+inquiryCols+` FROM inquiries WHERE id=$1 FOR UPDATE`, id))
	return in, mapErr(err, "inquiry", id)
}

func (t *txStore) Inquiries(ctx context.Context, f commerce.InquiryFilter) ([]commerce.Inquiry, error) {
	cond, args := where("buyer_id", f.BuyerID, "seller_id", f.SellerID, "status", string(f.Status))
	rows, err := t.tx.Query(ctx, `SELECT `+inquiryCols+` FROM inquiries`+cond+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, mapErr(err, "list inquiries", "")
	}
	defer rows.Close()

	var out []commerce.Inquiry
	for rows.Next() {
		in, err := scanInquiry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (t *txStore) InsertInquiry(ctx context.Context, in commerce.Inquiry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO inquiries (id, buyer_id, seller_id, product_id, quantity, message,
			shipping_option, buyer_country, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		in.ID, in.BuyerID, in.SellerID, in.ProductID, in.Quantity, in.Message,
		in.ShippingOption, in.BuyerCountry, string(in.Status), in.CreatedAt, in.UpdatedAt)
	return mapErr(err, "insert inquiry", in.ID)
}

func (t *txStore) UpdateInquiry(ctx context.Context, in commerce.Inquiry) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE inquiries SET quantity=$2, message=$3, shipping_option=$4, status=$5, updated_at=$6
		WHERE id=$1`,
		in.ID, in.Quantity, in.Message, in.ShippingOption, string(in.Status), in.UpdatedAt)
	if err != nil {
		return mapErr(err, "update inquiry", in.ID)
	}
	if ct.RowsAffected() != 1 {
		return mapErr(pgx.ErrNoRows, "inquiry", in.ID)
	}
	return nil
}

func (t *txStore) DeleteInquiry(ctx context.Context, id string) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM inquiries WHERE id=$1`, id)
	if err != nil {
		return mapErr(err, "delete inquiry", id)
	}
	if ct.RowsAffected() != 1 {
		return mapErr(pgx.ErrNoRows, "inquiry", id)
	}
	return nil
}

// ---- orders

const orderCols = `id, order_number, inquiry_id, buyer_id, seller_id, product_id, final_quantity,
	final_price::text, currency, shipping_terms, shipping_cost::text, total_amount::text, status,
	idempotency_key, created_at, updated_at`

func scanOrder(row scanner) (commerce.Order, error) {
	var o commerce.Order
	var inquiryID, idemKey *string
	var price, shipping, total, status string
	if err := row.Scan(&o.ID, &o.OrderNumber, &inquiryID, &o.BuyerID, &o.SellerID, &o.ProductID,
		&o.FinalQuantity, &price, &o.Currency, &o.ShippingTerms, &shipping, &total, &status,
		&idemKey, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return o, err
	}
	o.InquiryID = deref(inquiryID)
	o.IdempotencyKey = deref(idemKey)
	o.Status = commerce.OrderStatus(status)
	var err error
	if o.FinalPrice, err = parseMoney(price); err != nil {
		return o, err
	}
	if o.ShippingCost, err = parseMoney(shipping); err != nil {
		return o, err
	}
	o.TotalAmount, err = parseMoney(total)
	return o, err
}

func (t *txStore) Order(ctx context.Context, id string) (commerce.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	return o, mapErr(err, "order", id)
}

func (t *txStore) LockOrder(ctx context.Context, id string) (commerce.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	return o, mapErr(err, "order", id)
}

func (t *txStore) OrderByInquiry(ctx context.Context, inquiryID string) (commerce.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE inquiry_id=$1`, inquiryID))
	return o, mapErr(err, "order for inquiry", inquiryID)
}

func (t *txStore) OrderByIdempotencyKey(ctx context.Context, buyerID, key string) (commerce.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE buyer_id=$1 AND idempotency_key=$2`, buyerID, key))
	return o, mapErr(err, "order for idempotency key", key)
}

func (t *txStore) Orders(ctx context.Context, f commerce.PartyFilter) ([]commerce.Order, error) {
	cond, args := where("buyer_id", f.BuyerID, "seller_id", f.SellerID)
	rows, err := t.tx.Query(ctx, `SELECT `+orderCols+` FROM orders`+cond+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, mapErr(err, "list orders", "")
	}
	defer rows.Close()

	var out []commerce.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (t *txStore) InsertOrder(ctx context.Context, o commerce.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, inquiry_id, buyer_id, seller_id, product_id,
			final_quantity, final_price, currency, shipping_terms, shipping_cost, total_amount,
			status, idempotency_key, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		o.ID, o.OrderNumber, nullable(o.InquiryID), o.BuyerID, o.SellerID, o.ProductID,
		o.FinalQuantity, o.FinalPrice.String(), o.Currency, o.ShippingTerms,
		o.ShippingCost.String(), o.TotalAmount.String(), string(o.Status),
		nullable(o.IdempotencyKey), o.CreatedAt, o.UpdatedAt)
	return mapErr(err, "insert order", o.ID)
}

// UpdateOrder only moves status; financial terms are immutable once placed.
func (t *txStore) UpdateOrder(ctx context.Context, o commerce.Order) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`,
		o.ID, string(o.Status), o.UpdatedAt)
	if err != nil {
		return mapErr(err, "update order", o.ID)
	}
	if ct.RowsAffected() != 1 {
		return mapErr(pgx.ErrNoRows, "order", o.ID)
	}
	return nil
}

// ---- invoices

const invoiceCols = `id, invoice_number, order_id, inquiry_id, seller_id, buyer_id, product_id,
	quantity, unit_price::text, total_price::text, shipping_method, shipping_cost::text,
	total_amount::text, currency, converted_amount::text, converted_currency, status,
	created_at, updated_at`

func scanInvoice(row scanner) (commerce.Invoice, error) {
	var inv commerce.Invoice
	var inquiryID, converted *string
	var unit, totalPrice, shipping, total, status string
	if err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.OrderID, &inquiryID, &inv.SellerID,
		&inv.BuyerID, &inv.ProductID, &inv.Quantity, &unit, &totalPrice, &inv.ShippingMethod,
		&shipping, &total, &inv.Currency, &converted, &inv.ConvertedCurrency, &status,
		&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return inv, err
	}
	inv.InquiryID = deref(inquiryID)
	inv.Status = commerce.InvoiceStatus(status)
	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&inv.UnitPrice, unit}, {&inv.TotalPrice, totalPrice}, {&inv.ShippingCost, shipping}, {&inv.TotalAmount, total}} {
		if *f.dst, err = parseMoney(f.src); err != nil {
			return inv, err
		}
	}
	if converted != nil {
		amt, err := parseMoney(*converted)
		if err != nil {
			return inv, err
		}
		inv.ConvertedAmount = &amt
	}
	return inv, nil
}

func (t *txStore) Invoice(ctx context.Context, id string) (commerce.Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id=$1`, id))
	return inv, mapErr(err, "invoice", id)
}

func (t *txStore) LockInvoice(ctx context.Context, id string) (commerce.Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
	return inv, mapErr(err, "invoice", id)
}

func (t *txStore) InvoiceByOrder(ctx context.Context, orderID string) (commerce.Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE order_id=$1`, orderID))
	return inv, mapErr(err, "invoice for order", orderID)
}

func (t *txStore) Invoices(ctx context.Context, f commerce.PartyFilter) ([]commerce.Invoice, error) {
	cond, args := where("buyer_id", f.BuyerID, "seller_id", f.SellerID)
	rows, err := t.tx.Query(ctx, `SELECT `+invoiceCols+` FROM invoices`+cond+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, mapErr(err, "list invoices", "")
	}
	defer rows.Close()

	var out []commerce.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (t *txStore) InsertInvoice(ctx context.Context, inv commerce.Invoice) error {
	var converted *string
	if inv.ConvertedAmount != nil {
		s := inv.ConvertedAmount.String()
		converted = &s
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO invoices (id, invoice_number, order_id, inquiry_id, seller_id, buyer_id,
			product_id, quantity, unit_price, total_price, shipping_method, shipping_cost,
			total_amount, currency, converted_amount, converted_currency, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		inv.ID, inv.InvoiceNumber, inv.OrderID, nullable(inv.InquiryID), inv.SellerID, inv.BuyerID,
		inv.ProductID, inv.Quantity, inv.UnitPrice.String(), inv.TotalPrice.String(),
		inv.ShippingMethod, inv.ShippingCost.String(), inv.TotalAmount.String(), inv.Currency,
		converted, inv.ConvertedCurrency, string(inv.Status), inv.CreatedAt, inv.UpdatedAt)
	return mapErr(err, "insert invoice", inv.ID)
}

func (t *txStore) UpdateInvoice(ctx context.Context, inv commerce.Invoice) error {
	ct, err := t.tx.Exec(ctx, `UPDATE invoices SET status=$2, updated_at=$3 WHERE id=$1`,
		inv.ID, string(inv.Status), inv.UpdatedAt)
	if err != nil {
		return mapErr(err, "update invoice", inv.ID)
	}
	if ct.RowsAffected() != 1 {
		return mapErr(pgx.ErrNoRows, "invoice", inv.ID)
	}
	return nil
}

// ---- sequences

// NextSequence upserts the (name, day) counter. The row lock taken by the
// upsert serializes concurrent callers until their transactions end.
func (t *txStore) NextSequence(ctx context.Context, name string, day time.Time) (int64, error) {
	var n int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO number_sequences (name, day, last_value) VALUES ($1, $2, 1)
		ON CONFLICT (name, day) DO UPDATE SET last_value = number_sequences.last_value + 1
		RETURNING last_value`, name, commerce.SequenceDay(day)).Scan(&n)
	return n, mapErr(err, "next sequence", name)
}

// Package memstore is an in-process commerce.Store on go-memdb. Write
// transactions are serialized by memdb's single writer, which gives the same
// per-row linearization the Postgres store gets from FOR UPDATE.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-memdb"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
)

type Store struct {
	db *memdb.MemDB
}

var _ commerce.Store = (*Store)(nil)

func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("memstore: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx commerce.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := fn(&tx{txn: txn}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) ReadTx(ctx context.Context, fn func(r commerce.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()
	return fn(&tx{txn: txn})
}

type tx struct {
	txn *memdb.Txn
}

func first[T any](txn *memdb.Txn, table, index, kind, val string) (T, error) {
	var zero T
	raw, err := txn.First(table, index, val)
	if err != nil {
		return zero, fmt.Errorf("memstore %s: %w", table, err)
	}
	if raw == nil {
		return zero, fmt.Errorf("%s %s: %w", kind, val, commerce.ErrNotFound)
	}
	return *raw.(*T), nil
}

func list[T any](txn *memdb.Txn, table, index string, args ...any) ([]T, error) {
	it, err := txn.Get(table, index, args...)
	if err != nil {
		return nil, fmt.Errorf("memstore %s: %w", table, err)
	}
	var out []T
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, *obj.(*T))
	}
	return out, nil
}

// absent fails with ErrDuplicate when index already holds val.
func (t *tx) absent(table, index, val string) error {
	if val == "" {
		return nil
	}
	raw, err := t.txn.First(table, index, val)
	if err != nil {
		return fmt.Errorf("memstore %s: %w", table, err)
	}
	if raw != nil {
		return fmt.Errorf("%s.%s %q: %w", table, index, val, commerce.ErrDuplicate)
	}
	return nil
}

func (t *tx) put(table string, obj any) error {
	if err := t.txn.Insert(table, obj); err != nil {
		return fmt.Errorf("memstore %s: %w", table, err)
	}
	return nil
}

// byParty picks the narrowest index for a buyer/seller filter.
func byParty(f commerce.PartyFilter) (string, []any) {
	switch {
	case f.BuyerID != "":
		return "buyer", []any{f.BuyerID}
	case f.SellerID != "":
		return "seller", []any{f.SellerID}
	}
	return "id", nil
}

func newestFirst[T any](rows []T, created func(T) time.Time, id func(T) string) {
	sort.SliceStable(rows, func(i, j int) bool {
		ci, cj := created(rows[i]), created(rows[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return id(rows[i]) > id(rows[j])
	})
}

// products

func (t *tx) Product(_ context.Context, id string) (commerce.Product, error) {
	return first[commerce.Product](t.txn, tableProducts, "id", "product", id)
}

func (t *tx) LockProduct(ctx context.Context, id string) (commerce.Product, error) {
	return t.Product(ctx, id)
}

func (t *tx) Products(_ context.Context, f commerce.ProductFilter) ([]commerce.Product, error) {
	index, args := "id", []any(nil)
	if f.SellerID != "" {
		index, args = "seller", []any{f.SellerID}
	}
	rows, err := list[commerce.Product](t.txn, tableProducts, index, args...)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, p := range rows {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	newestFirst(out, func(p commerce.Product) time.Time { return p.CreatedAt }, func(p commerce.Product) string { return p.ID })
	return out, nil
}

func (t *tx) CountActiveProducts(ctx context.Context, sellerID string) (int, error) {
	rows, err := t.Products(ctx, commerce.ProductFilter{SellerID: sellerID, ActiveOnly: true})
	return len(rows), err
}

func (t *tx) InsertProduct(_ context.Context, p commerce.Product) error {
	if err := t.absent(tableProducts, "id", p.ID); err != nil {
		return err
	}
	return t.put(tableProducts, &p)
}

func (t *tx) UpdateProduct(ctx context.Context, p commerce.Product) error {
	if _, err := t.Product(ctx, p.ID); err != nil {
		return err
	}
	return t.put(tableProducts, &p)
}

// inquiries

func (t *tx) Inquiry(_ context.Context, id string) (commerce.Inquiry, error) {
	return first[commerce.Inquiry](t.txn, tableInquiries, "id", "inquiry", id)
}

func (t *tx) LockInquiry(ctx context.Context, id string) (commerce.Inquiry, error) {
	return t.Inquiry(ctx, id)
}

func (t *tx) Inquiries(_ context.Context, f commerce.InquiryFilter) ([]commerce.Inquiry, error) {
	index, args := byParty(commerce.PartyFilter{BuyerID: f.BuyerID, SellerID: f.SellerID})
	rows, err := list[commerce.Inquiry](t.txn, tableInquiries, index, args...)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, in := range rows {
		if f.Match(in) {
			out = append(out, in)
		}
	}
	newestFirst(out, func(in commerce.Inquiry) time.Time { return in.CreatedAt }, func(in commerce.Inquiry) string { return in.ID })
	return out, nil
}

func (t *tx) InsertInquiry(_ context.Context, in commerce.Inquiry) error {
	if err := t.absent(tableInquiries, "id", in.ID); err != nil {
		return err
	}
	return t.put(tableInquiries, &in)
}

func (t *tx) UpdateInquiry(ctx context.Context, in commerce.Inquiry) error {
	if _, err := t.Inquiry(ctx, in.ID); err != nil {
		return err
	}
	return t.put(tableInquiries, &in)
}

func (t *tx) DeleteInquiry(_ context.Context, id string) error {
	raw, err := t.txn.First(tableInquiries, "id", id)
	if err != nil {
		return fmt.Errorf("memstore %s: %w", tableInquiries, err)
	}
	if raw == nil {
		return fmt.Errorf("inquiry %s: %w", id, commerce.ErrNotFound)
	}
	if err := t.txn.Delete(tableInquiries, raw); err != nil {
		return fmt.Errorf("memstore %s: %w", tableInquiries, err)
	}
	return nil
}

// orders

func (t *tx) Order(_ context.Context, id string) (commerce.Order, error) {
	return first[commerce.Order](t.txn, tableOrders, "id", "order", id)
}

func (t *tx) LockOrder(ctx context.Context, id string) (commerce.Order, error) {
	return t.Order(ctx, id)
}

func (t *tx) OrderByInquiry(_ context.Context, inquiryID string) (commerce.Order, error) {
	return first[commerce.Order](t.txn, tableOrders, "inquiry", "order for inquiry", inquiryID)
}

func (t *tx) OrderByIdempotencyKey(_ context.Context, buyerID, key string) (commerce.Order, error) {
	return first[commerce.Order](t.txn, tableOrders, "idem", "order for idempotency key", idemValue(buyerID, key))
}

func (t *tx) Orders(_ context.Context, f commerce.PartyFilter) ([]commerce.Order, error) {
	index, args := byParty(f)
	rows, err := list[commerce.Order](t.txn, tableOrders, index, args...)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, o := range rows {
		if f.Match(o.BuyerID, o.SellerID) {
			out = append(out, o)
		}
	}
	newestFirst(out, func(o commerce.Order) time.Time { return o.CreatedAt }, func(o commerce.Order) string { return o.ID })
	return out, nil
}

func (t *tx) InsertOrder(_ context.Context, o commerce.Order) error {
	for _, u := range [][2]string{{"id", o.ID}, {"number", o.OrderNumber}, {"inquiry", o.InquiryID}} {
		if err := t.absent(tableOrders, u[0], u[1]); err != nil {
			return err
		}
	}
	if o.IdempotencyKey != "" {
		if err := t.absent(tableOrders, "idem", idemValue(o.BuyerID, o.IdempotencyKey)); err != nil {
			return err
		}
	}
	return t.put(tableOrders, &o)
}

func (t *tx) UpdateOrder(ctx context.Context, o commerce.Order) error {
	if _, err := t.Order(ctx, o.ID); err != nil {
		return err
	}
	return t.put(tableOrders, &o)
}

// invoices

func (t *tx) Invoice(_ context.Context, id string) (commerce.Invoice, error) {
	return first[commerce.Invoice](t.txn, tableInvoices, "id", "invoice", id)
}

func (t *tx) LockInvoice(ctx context.Context, id string) (commerce.Invoice, error) {
	return t.Invoice(ctx, id)
}

func (t *tx) InvoiceByOrder(_ context.Context, orderID string) (commerce.Invoice, error) {
	return first[commerce.Invoice](t.txn, tableInvoices, "order", "invoice for order", orderID)
}

func (t *tx) Invoices(_ context.Context, f commerce.PartyFilter) ([]commerce.Invoice, error) {
	index, args := byParty(f)
	rows, err := list[commerce.Invoice](t.txn, tableInvoices, index, args...)
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, inv := range rows {
		if f.Match(inv.BuyerID, inv.SellerID) {
			out = append(out, inv)
		}
	}
	newestFirst(out, func(inv commerce.Invoice) time.Time { return inv.CreatedAt }, func(inv commerce.Invoice) string { return inv.ID })
	return out, nil
}

func (t *tx) InsertInvoice(_ context.Context, inv commerce.Invoice) error {
	for _, u := range [][2]string{{"id", inv.ID}, {"number", inv.InvoiceNumber}, {"order", inv.OrderID}} {
		if err := t.absent(tableInvoices, u[0], u[1]); err != nil {
			return err
		}
	}
	return t.put(tableInvoices, &inv)
}

func (t *tx) UpdateInvoice(ctx context.Context, inv commerce.Invoice) error {
	if _, err := t.Invoice(ctx, inv.ID); err != nil {
		return err
	}
	return t.put(tableInvoices, &inv)
}

// sequences

func (t *tx) NextSequence(_ context.Context, name string, day time.Time) (int64, error) {
	key := name + "|" + commerce.SequenceDay(day).Format("20060102")
	row, err := first[seqRow](t.txn, tableSequences, "id", "sequence", key)
	switch {
	case errors.Is(err, commerce.ErrNotFound):
		row = seqRow{Key: key}
	case err != nil:
		return 0, err
	}
	row.Value++
	if err := t.put(tableSequences, &row); err != nil {
		return 0, err
	}
	return row.Value, nil
}

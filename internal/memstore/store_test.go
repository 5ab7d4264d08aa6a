package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	return s
}

func TestNextSequencePerDay(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	day1 := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	next := func(name string, at time.Time) int64 {
		var n int64
		require.NoError(t, s.InTx(ctx, func(tx commerce.Tx) error {
			var err error
			n, err = tx.NextSequence(ctx, name, at)
			return err
		}))
		return n
	}
	assert.EqualValues(t, 1, next(commerce.SeqInvoice, day1))
	assert.EqualValues(t, 2, next(commerce.SeqInvoice, day1.Add(time.Hour)))
	assert.EqualValues(t, 1, next(commerce.SeqOrder, day1))
	assert.EqualValues(t, 1, next(commerce.SeqInvoice, day2))
}

func TestConcurrentSequencesAreGapFree(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	const n = 64
	got := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.InTx(ctx, func(tx commerce.Tx) error {
				v, err := tx.NextSequence(ctx, commerce.SeqInvoice, now)
				got[i] = v
				return err
			})
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, v := range got {
		seen[v] = true
	}
	for v := int64(1); v <= n; v++ {
		assert.True(t, seen[v], "missing %d", v)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx commerce.Tx) error {
		if err := tx.InsertProduct(ctx, commerce.Product{ID: "p1", SellerID: "s"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.ReadTx(ctx, func(r commerce.Reader) error {
		_, err := r.Product(ctx, "p1")
		return err
	})
	assert.ErrorIs(t, err, commerce.ErrNotFound)
}

func TestUniqueIndexes(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	order := commerce.Order{ID: "o1", OrderNumber: "ORD-1", InquiryID: "i1", BuyerID: "b", SellerID: "s", FinalPrice: decimal.NewFromInt(1)}

	require.NoError(t, s.InTx(ctx, func(tx commerce.Tx) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		// direct orders share the empty inquiry id
		if err := tx.InsertOrder(ctx, commerce.Order{ID: "o2", OrderNumber: "ORD-2", BuyerID: "b", SellerID: "s"}); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, commerce.Order{ID: "o3", OrderNumber: "ORD-3", BuyerID: "b", SellerID: "s"})
	}))

	dups := []commerce.Order{
		{ID: "o1", OrderNumber: "ORD-9"},
		{ID: "o9", OrderNumber: "ORD-1"},
		{ID: "o9", OrderNumber: "ORD-9", InquiryID: "i1"},
	}
	for _, o := range dups {
		err := s.InTx(ctx, func(tx commerce.Tx) error { return tx.InsertOrder(ctx, o) })
		assert.ErrorIs(t, err, commerce.ErrDuplicate, "%+v", o)
	}

	inv := commerce.Invoice{ID: "v1", InvoiceNumber: "INV-1", OrderID: "o1", BuyerID: "b", SellerID: "s"}
	require.NoError(t, s.InTx(ctx, func(tx commerce.Tx) error { return tx.InsertInvoice(ctx, inv) }))
	err := s.InTx(ctx, func(tx commerce.Tx) error {
		return tx.InsertInvoice(ctx, commerce.Invoice{ID: "v2", InvoiceNumber: "INV-2", OrderID: "o1", BuyerID: "b", SellerID: "s"})
	})
	assert.ErrorIs(t, err, commerce.ErrDuplicate)

	err = s.ReadTx(ctx, func(r commerce.Reader) error {
		o, err := r.OrderByInquiry(ctx, "i1")
		if err != nil {
			return err
		}
		assert.Equal(t, "o1", o.ID)
		got, err := r.InvoiceByOrder(ctx, "o1")
		if err != nil {
			return err
		}
		assert.Equal(t, "INV-1", got.InvoiceNumber)
		return nil
	})
	require.NoError(t, err)
}

func TestListsAreNewestFirstAndFiltered(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.InTx(ctx, func(tx commerce.Tx) error {
		for i, in := range []commerce.Inquiry{
			{ID: "a", BuyerID: "b1", SellerID: "s1", Status: commerce.InquiryNew},
			{ID: "b", BuyerID: "b1", SellerID: "s2", Status: commerce.InquiryClosed},
			{ID: "c", BuyerID: "b2", SellerID: "s1", Status: commerce.InquiryNew},
		} {
			in.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
			if err := tx.InsertInquiry(ctx, in); err != nil {
				return err
			}
		}
		for i, p := range []commerce.Product{
			{ID: "p1", SellerID: "s1", Active: true},
			{ID: "p2", SellerID: "s1"},
			{ID: "p3", SellerID: "s2", Active: true},
			{ID: "p4", SellerID: "s1", Active: true, Deleted: true},
		} {
			p.CreatedAt = t0.Add(time.Duration(i) * time.Minute)
			if err := tx.InsertProduct(ctx, p); err != nil {
				return err
			}
		}
		return nil
	}))

	ids := func(rows []commerce.Inquiry) []string {
		var out []string
		for _, r := range rows {
			out = append(out, r.ID)
		}
		return out
	}
	require.NoError(t, s.ReadTx(ctx, func(r commerce.Reader) error {
		rows, err := r.Inquiries(ctx, commerce.InquiryFilter{BuyerID: "b1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, ids(rows))

		rows, err = r.Inquiries(ctx, commerce.InquiryFilter{SellerID: "s1", Status: commerce.InquiryNew})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, ids(rows))

		active, err := r.Products(ctx, commerce.ProductFilter{ActiveOnly: true})
		require.NoError(t, err)
		assert.Len(t, active, 2)

		n, err := r.CountActiveProducts(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	}))
}

func TestCancelledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.InTx(ctx, func(commerce.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdempotencyKeyIndex(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	keyed := commerce.Order{ID: "o1", OrderNumber: "ORD-1", BuyerID: "b1", SellerID: "s", IdempotencyKey: "k"}

	require.NoError(t, s.InTx(ctx, func(tx commerce.Tx) error {
		if err := tx.InsertOrder(ctx, keyed); err != nil {
			return err
		}
		// same key from another buyer, and unkeyed orders, do not collide
		if err := tx.InsertOrder(ctx, commerce.Order{ID: "o2", OrderNumber: "ORD-2", BuyerID: "b2", SellerID: "s", IdempotencyKey: "k"}); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, commerce.Order{ID: "o3", OrderNumber: "ORD-3", BuyerID: "b1", SellerID: "s"})
	}))

	err := s.InTx(ctx, func(tx commerce.Tx) error {
		return tx.InsertOrder(ctx, commerce.Order{ID: "o4", OrderNumber: "ORD-4", BuyerID: "b1", SellerID: "s", IdempotencyKey: "k"})
	})
	assert.ErrorIs(t, err, commerce.ErrDuplicate)

	require.NoError(t, s.ReadTx(ctx, func(r commerce.Reader) error {
		o, err := r.OrderByIdempotencyKey(ctx, "b1", "k")
		require.NoError(t, err)
		assert.Equal(t, "o1", o.ID)
		_, err = r.OrderByIdempotencyKey(ctx, "b1", "other")
		assert.ErrorIs(t, err, commerce.ErrNotFound)
		return nil
	}))
}

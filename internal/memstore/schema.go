package memstore

import (
	"fmt"

	"github.com/hashicorp/go-memdb"

	"github.com/ariefcatur/b2b-commerce/internal/commerce"
)

const (
	tableProducts  = "products"
	tableInquiries = "inquiries"
	tableOrders    = "orders"
	tableInvoices  = "invoices"
	tableSequences = "sequences"
)

func str(field string) *memdb.StringFieldIndex {
	return &memdb.StringFieldIndex{Field: field}
}

// go-memdb does not enforce uniqueness on secondary indexes; Insert* checks
// them explicitly before writing. The flags document intent and make First
// lookups single-valued.
var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableProducts: {
			Name: tableProducts,
			Indexes: map[string]*memdb.IndexSchema{
				"id":     {Name: "id", Unique: true, Indexer: str("ID")},
				"seller": {Name: "seller", Indexer: str("SellerID")},
			},
		},
		tableInquiries: {
			Name: tableInquiries,
			Indexes: map[string]*memdb.IndexSchema{
				"id":     {Name: "id", Unique: true, Indexer: str("ID")},
				"buyer":  {Name: "buyer", Indexer: str("BuyerID")},
				"seller": {Name: "seller", Indexer: str("SellerID")},
			},
		},
		tableOrders: {
			Name: tableOrders,
			Indexes: map[string]*memdb.IndexSchema{
				"id":      {Name: "id", Unique: true, Indexer: str("ID")},
				"number":  {Name: "number", Unique: true, Indexer: str("OrderNumber")},
				"inquiry": {Name: "inquiry", Unique: true, AllowMissing: true, Indexer: str("InquiryID")},
				"idem":    {Name: "idem", Unique: true, AllowMissing: true, Indexer: idemIndex{}},
				"buyer":   {Name: "buyer", Indexer: str("BuyerID")},
				"seller":  {Name: "seller", Indexer: str("SellerID")},
			},
		},
		tableInvoices: {
			Name: tableInvoices,
			Indexes: map[string]*memdb.IndexSchema{
				"id":     {Name: "id", Unique: true, Indexer: str("ID")},
				"number": {Name: "number", Unique: true, Indexer: str("InvoiceNumber")},
				"order":  {Name: "order", Unique: true, Indexer: str("OrderID")},
				"buyer":  {Name: "buyer", Indexer: str("BuyerID")},
				"seller": {Name: "seller", Indexer: str("SellerID")},
			},
		},
		tableSequences: {
			Name: tableSequences,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {Name: "id", Unique: true, Indexer: str("Key")},
			},
		},
	},
}

// idemIndex keys orders by buyer and idempotency key. Orders without a key
// are left out of the index.
type idemIndex struct{}

func idemValue(buyerID, key string) string { return buyerID + "\x00" + key }

func (idemIndex) FromObject(obj any) (bool, []byte, error) {
	o, ok := obj.(*commerce.Order)
	if !ok {
		return false, nil, fmt.Errorf("idem index: unexpected %T", obj)
	}
	if o.IdempotencyKey == "" {
		return false, nil, nil
	}
	return true, []byte(idemValue(o.BuyerID, o.IdempotencyKey) + "\x00"), nil
}

func (idemIndex) FromArgs(args ...any) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("idem index: want one argument, got %d", len(args))
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("idem index: argument must be a string, got %T", args[0])
	}
	return []byte(s + "\x00"), nil
}

type seqRow struct {
	Key   string
	Value int64
}

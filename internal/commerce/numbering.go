package commerce

import (
	"fmt"
	"time"
)

// Sequence names. Counters restart every UTC day.
const (
	SeqInvoice = "invoice"
	SeqOrder   = "order"
)

// InvoiceNumber formats INV-YYYYMMDD-NNNN.
func InvoiceNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%04d", day.UTC().Format("20060102"), seq)
}

// OrderNumber formats ORD-YYYYMMDD-NNNNNN.
func OrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s-%06d", day.UTC().Format("20060102"), seq)
}

// SequenceDay truncates t to the UTC calendar day used as the counter key.
func SequenceDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package commerce

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Options struct {
	Store     Store
	Publisher Publisher
	Converter CurrencyConverter
	Renderer  Renderer
	Logger    *zap.Logger
	// ActiveProductLimit caps active products per seller; 0 means the default of 5.
	ActiveProductLimit int
	Now                func() time.Time
}

// Engine bundles the workflows over one store.
type Engine struct {
	Stock     *StockLedger
	Products  *Catalog
	Inquiries *InquiryWorkflow
	Orders    *OrderWorkflow
	Invoices  *InvoiceWorkflow
}

func New(opts Options) *Engine {
	if opts.Publisher == nil {
		opts.Publisher = NopPublisher{}
	}
	if opts.Converter == nil {
		opts.Converter = StaticRates{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.ActiveProductLimit <= 0 {
		opts.ActiveProductLimit = 5
	}

	b := &base{store: opts.Store, pub: opts.Publisher, log: opts.Logger, now: opts.Now}
	ledger := &StockLedger{base: b}
	invoices := &InvoiceWorkflow{base: b, ledger: ledger, conv: opts.Converter, renderer: opts.Renderer}
	return &Engine{
		Stock:     ledger,
		Products:  &Catalog{base: b, activeLimit: opts.ActiveProductLimit},
		Inquiries: &InquiryWorkflow{base: b, ledger: ledger},
		Orders:    &OrderWorkflow{base: b, invoices: invoices},
		Invoices:  invoices,
	}
}

type base struct {
	store Store
	pub   Publisher
	log   *zap.Logger
	now   func() time.Time
}

// outbox collects events inside a transaction; they go out only after commit.
type outbox struct{ events []Event }

func (o *outbox) add(ev ...Event) { o.events = append(o.events, ev...) }

func (b *base) write(ctx context.Context, fn func(tx Tx, ob *outbox) error) error {
	var ob outbox
	err := b.store.InTx(ctx, func(tx Tx) error {
		ob = outbox{}
		return fn(tx, &ob)
	})
	if err != nil {
		return err
	}
	for _, ev := range ob.events {
		b.pub.Publish(ctx, ev)
	}
	return nil
}

func (b *base) read(ctx context.Context, fn func(r Reader) error) error {
	return b.store.ReadTx(ctx, fn)
}

func newID() string { return uuid.NewString() }

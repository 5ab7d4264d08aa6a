package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id             TEXT PRIMARY KEY,
		seller_id      TEXT NOT NULL,
		name           TEXT NOT NULL,
		category       TEXT NOT NULL DEFAULT '',
		description    TEXT NOT NULL DEFAULT '',
		price          NUMERIC(14,2) NOT NULL DEFAULT 0,
		min_quantity   INT NOT NULL DEFAULT 1,
		declared_stock INT NOT NULL DEFAULT 0 CHECK (declared_stock >= 0),
		reserved_stock INT NOT NULL DEFAULT 0 CHECK (reserved_stock >= 0),
		active         BOOLEAN NOT NULL DEFAULT TRUE,
		deleted        BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS products_seller_idx ON products (seller_id)`,

	`CREATE TABLE IF NOT EXISTS inquiries (
		id              TEXT PRIMARY KEY,
		buyer_id        TEXT NOT NULL,
		seller_id       TEXT NOT NULL,
		product_id      TEXT NOT NULL REFERENCES products(id),
		quantity        INT NOT NULL CHECK (quantity > 0),
		message         TEXT NOT NULL DEFAULT '',
		shipping_option TEXT NOT NULL DEFAULT '',
		buyer_country   TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS inquiries_buyer_idx ON inquiries (buyer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS inquiries_seller_idx ON inquiries (seller_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id             TEXT PRIMARY KEY,
		order_number   TEXT NOT NULL UNIQUE,
		inquiry_id     TEXT UNIQUE REFERENCES inquiries(id) ON DELETE SET NULL,
		buyer_id       TEXT NOT NULL,
		seller_id      TEXT NOT NULL,
		product_id     TEXT NOT NULL REFERENCES products(id),
		final_quantity INT NOT NULL CHECK (final_quantity > 0),
		final_price    NUMERIC(14,2) NOT NULL,
		currency       TEXT NOT NULL DEFAULT 'INR',
		shipping_terms TEXT NOT NULL DEFAULT '',
		shipping_cost  NUMERIC(14,2) NOT NULL DEFAULT 0,
		total_amount   NUMERIC(14,2) NOT NULL,
		status         TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE orders ADD COLUMN IF NOT EXISTS idempotency_key TEXT`,
	`CREATE UNIQUE INDEX IF NOT EXISTS orders_idempotency_idx ON orders (buyer_id, idempotency_key)
		WHERE idempotency_key IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS orders_buyer_idx ON orders (buyer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS orders_seller_idx ON orders (seller_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id                 TEXT PRIMARY KEY,
		invoice_number     TEXT NOT NULL UNIQUE,
		order_id           TEXT NOT NULL UNIQUE REFERENCES orders(id),
		inquiry_id         TEXT,
		seller_id          TEXT NOT NULL,
		buyer_id           TEXT NOT NULL,
		product_id         TEXT NOT NULL REFERENCES products(id),
		quantity           INT NOT NULL,
		unit_price         NUMERIC(14,2) NOT NULL,
		total_price        NUMERIC(14,2) NOT NULL,
		shipping_method    TEXT NOT NULL DEFAULT '',
		shipping_cost      NUMERIC(14,2) NOT NULL DEFAULT 0,
		total_amount       NUMERIC(14,2) NOT NULL,
		currency           TEXT NOT NULL,
		converted_amount   NUMERIC(14,2),
		converted_currency TEXT NOT NULL DEFAULT '',
		status             TEXT NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS invoices_buyer_idx ON invoices (buyer_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS invoices_seller_idx ON invoices (seller_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS number_sequences (
		name       TEXT NOT NULL,
		day        DATE NOT NULL,
		last_value BIGINT NOT NULL,
		PRIMARY KEY (name, day)
	)`,
}

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}

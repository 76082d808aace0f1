// Package postgres owns the database handle and the authoritative schema.
//
// Uniqueness is enforced here, not in application pre-checks: the partial
// unique index on lower(ticket_number) closes the check-then-act race
// between concurrent citation submissions, the unique index on
// receipt_number keeps official receipts globally unique among surviving
// payments, and the partial unique index on citation_id guarantees at most
// one active payment per citation even under concurrent record() calls.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to PostgreSQL via the pgx stdlib driver and verifies the
// connection so the service fails fast when the store is unreachable.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Schema is the DDL for all collections. Index names are load-bearing: the
// stores inspect them to translate constraint violations into the right
// sentinel error.
const Schema = `
CREATE TABLE IF NOT EXISTS violation_types (
	id UUID PRIMARY KEY,
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	fine_first NUMERIC(12,2) NOT NULL,
	fine_second NUMERIC(12,2) NOT NULL,
	fine_third NUMERIC(12,2) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS violation_types_code
	ON violation_types (lower(code));

CREATE TABLE IF NOT EXISTS citations (
	id UUID PRIMARY KEY,
	ticket_number TEXT NOT NULL,
	driver_name TEXT NOT NULL,
	license_number TEXT NOT NULL,
	plate_number TEXT NOT NULL DEFAULT '',
	driver_address TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	total_fine NUMERIC(12,2) NOT NULL,
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS citations_ticket_number_active
	ON citations (lower(ticket_number)) WHERE deleted_at IS NULL;

CREATE INDEX IF NOT EXISTS citations_license_number
	ON citations (lower(license_number)) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS violation_lines (
	citation_id UUID NOT NULL REFERENCES citations(id),
	violation_type_id UUID NOT NULL REFERENCES violation_types(id),
	offense_tier SMALLINT NOT NULL CHECK (offense_tier BETWEEN 1 AND 3),
	fine_amount NUMERIC(12,2) NOT NULL,
	PRIMARY KEY (citation_id, violation_type_id)
);

CREATE TABLE IF NOT EXISTS payments (
	id UUID PRIMARY KEY,
	citation_id UUID NOT NULL REFERENCES citations(id),
	receipt_number TEXT NOT NULL,
	amount_paid NUMERIC(12,2) NOT NULL,
	payment_method TEXT NOT NULL,
	status TEXT NOT NULL,
	collected_by TEXT NOT NULL,
	payment_date TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS payments_receipt_number
	ON payments (receipt_number);

CREATE UNIQUE INDEX IF NOT EXISTS payments_one_active_per_citation
	ON payments (citation_id) WHERE status IN ('pending_print', 'completed');

CREATE TABLE IF NOT EXISTS audit_entries (
	id UUID PRIMARY KEY,
	seq BIGINT GENERATED BY DEFAULT AS IDENTITY,
	entity_type TEXT NOT NULL,
	entity_id UUID NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	old_values JSONB,
	new_values JSONB,
	reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS audit_entries_seq ON audit_entries (seq);

CREATE INDEX IF NOT EXISTS audit_entries_entity
	ON audit_entries (entity_type, entity_id, seq);

CREATE TABLE IF NOT EXISTS audit_stream_cursor (
	id SMALLINT PRIMARY KEY CHECK (id = 1),
	last_seq BIGINT NOT NULL
);
`

// EnsureSchema applies the DDL. Statements are idempotent so startup is
// safe to repeat.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

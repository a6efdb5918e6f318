package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/ports"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS tenants (
	id BIGSERIAL PRIMARY KEY,
	company_name TEXT NOT NULL UNIQUE,
	subscription_status BOOLEAN NOT NULL DEFAULT TRUE,
	subscribed_modules JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	tenant_id BIGINT NOT NULL REFERENCES tenants(id),
	email TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS documents (
	id BIGSERIAL PRIMARY KEY,
	tenant_id BIGINT NOT NULL REFERENCES tenants(id),
	title TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	external_name TEXT NOT NULL DEFAULT '',
	external_uri TEXT NOT NULL DEFAULT '',
	access_level TEXT NOT NULL DEFAULT 'general',
	page_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);
CREATE INDEX IF NOT EXISTS idx_documents_external_uri ON documents(external_uri);

CREATE TABLE IF NOT EXISTS finance_vendors (
	id BIGSERIAL PRIMARY KEY,
	tenant_id BIGINT NOT NULL REFERENCES tenants(id),
	name TEXT NOT NULL,
	tax_id TEXT NOT NULL DEFAULT '',
	trust_score INTEGER NOT NULL DEFAULT 100
);

DROP INDEX IF EXISTS idx_finance_vendors_tenant_name;
CREATE UNIQUE INDEX IF NOT EXISTS uq_finance_vendors_tenant_name ON finance_vendors(tenant_id, name);

CREATE TABLE IF NOT EXISTS finance_invoices (
	id BIGSERIAL PRIMARY KEY,
	tenant_id BIGINT NOT NULL REFERENCES tenants(id),
	document_id BIGINT NOT NULL REFERENCES documents(id),
	vendor_id BIGINT REFERENCES finance_vendors(id),
	invoice_number TEXT NOT NULL DEFAULT '',
	invoice_date DATE,
	total_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT 'SAR',
	payment_status TEXT NOT NULL DEFAULT 'Unpaid',
	extraction_status TEXT NOT NULL DEFAULT 'pending',
	audit_status TEXT NOT NULL DEFAULT 'clean'
);

CREATE INDEX IF NOT EXISTS idx_finance_invoices_tenant ON finance_invoices(tenant_id);
DROP INDEX IF EXISTS idx_finance_invoices_document;
CREATE UNIQUE INDEX IF NOT EXISTS uq_finance_invoices_document ON finance_invoices(document_id);

CREATE TABLE IF NOT EXISTS finance_invoice_items (
	id BIGSERIAL PRIMARY KEY,
	invoice_id BIGINT NOT NULL REFERENCES finance_invoices(id),
	description TEXT NOT NULL,
	quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
	unit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	category TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_finance_invoice_items_invoice ON finance_invoice_items(invoice_id);

CREATE TABLE IF NOT EXISTS finance_audit_flags (
	id BIGSERIAL PRIMARY KEY,
	invoice_id BIGINT NOT NULL REFERENCES finance_invoices(id),
	issue_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	ai_explanation TEXT NOT NULL DEFAULT '',
	is_resolved BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_finance_audit_flags_invoice ON finance_audit_flags(invoice_id);
`

// EnsureSchema creates the tables. Foreign keys carry no ON DELETE rules,
// so every delete path must remove children first.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Store is the postgres unit of work.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Repositories() ports.Repositories {
	return repositoriesFor(s.db)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos ports.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, repositoriesFor(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func repositoriesFor(q querier) ports.Repositories {
	return ports.Repositories{
		Tenants:   &TenantRepository{db: q},
		Documents: &DocumentRepository{db: q},
		Finance:   &FinanceRepository{db: q},
	}
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
)

type FinanceRepository struct {
	db querier
}

func NewFinanceRepository(db *sql.DB) *FinanceRepository {
	return &FinanceRepository{db: db}
}

// UpsertVendor relies on uq_finance_vendors_tenant_name. The no-op update makes
// RETURNING yield the existing row.
func (r *FinanceRepository) UpsertVendor(ctx context.Context, vendor *domain.Vendor) error {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO finance_vendors (tenant_id, name, tax_id, trust_score)
VALUES ($1,$2,$3,$4)
ON CONFLICT (tenant_id, name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, tax_id, trust_score
`, vendor.TenantID, vendor.Name, vendor.TaxID, vendor.TrustScore).Scan(&vendor.ID, &vendor.TaxID, &vendor.TrustScore)
	if err != nil {
		return fmt.Errorf("upsert vendor: %w", err)
	}
	return nil
}

// UpsertInvoiceHeader relies on uq_finance_invoices_document. A concurrent writer
// blocks on the row until the other transaction ends.
func (r *FinanceRepository) UpsertInvoiceHeader(ctx context.Context, invoice *domain.Invoice) error {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO finance_invoices (
	tenant_id, document_id, vendor_id, invoice_number, invoice_date, total_amount, currency, payment_status, extraction_status, audit_status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (document_id) DO UPDATE SET
	vendor_id = EXCLUDED.vendor_id,
	invoice_number = EXCLUDED.invoice_number,
	invoice_date = EXCLUDED.invoice_date,
	total_amount = EXCLUDED.total_amount,
	currency = EXCLUDED.currency,
	extraction_status = EXCLUDED.extraction_status
RETURNING id, payment_status, audit_status
`,
		invoice.TenantID, invoice.DocumentID, nullInt64(invoice.VendorID), invoice.InvoiceNumber, nullTime(invoice.InvoiceDate),
		invoice.TotalAmount, invoice.Currency, invoice.PaymentStatus, invoice.ExtractionStatus, invoice.AuditStatus,
	).Scan(&invoice.ID, &invoice.PaymentStatus, &invoice.AuditStatus)
	if err != nil {
		return fmt.Errorf("upsert invoice: %w", err)
	}
	return nil
}

func (r *FinanceRepository) DeleteItems(ctx context.Context, invoiceID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM finance_invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("delete invoice items: %w", err)
	}
	return nil
}

func (r *FinanceRepository) CreateItems(ctx context.Context, invoiceID int64, items []domain.InvoiceItem) ([]domain.InvoiceItem, error) {
	out := make([]domain.InvoiceItem, 0, len(items))
	for _, item := range items {
		item.InvoiceID = invoiceID
		err := r.db.QueryRowContext(ctx, `
INSERT INTO finance_invoice_items (invoice_id, description, quantity, unit_price, total_price, category)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, invoiceID, item.Description, item.Quantity, item.UnitPrice, item.TotalPrice, item.Category).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("insert invoice item: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

// DeleteByDocument removes children before parents and returns the number of
// invoices deleted.
func (r *FinanceRepository) DeleteByDocument(ctx context.Context, documentID int64) (int, error) {
	const owned = `SELECT id FROM finance_invoices WHERE document_id = $1`

	if _, err := r.db.ExecContext(ctx, `DELETE FROM finance_invoice_items WHERE invoice_id IN (`+owned+`)`, documentID); err != nil {
		return 0, fmt.Errorf("delete invoice items: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM finance_audit_flags WHERE invoice_id IN (`+owned+`)`, documentID); err != nil {
		return 0, fmt.Errorf("delete audit flags: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM finance_invoices WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete invoices: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete invoices rows affected: %w", err)
	}
	return int(affected), nil
}

// ListInvoices returns invoice headers with their vendor, newest first.
func (r *FinanceRepository) ListInvoices(ctx context.Context, tenantID int64) ([]domain.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT i.id, i.tenant_id, i.document_id, i.vendor_id, i.invoice_number, i.invoice_date, i.total_amount,
	i.currency, i.payment_status, i.extraction_status, i.audit_status,
	v.name, v.tax_id, v.trust_score
FROM finance_invoices i
LEFT JOIN finance_vendors v ON v.id = i.vendor_id
WHERE i.tenant_id = $1
ORDER BY i.id DESC
`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Invoice, 0)
	for rows.Next() {
		invoice, err := scanInvoiceWithVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	return out, nil
}

// GetInvoice loads one tenant invoice with vendor, items and audit flags.
func (r *FinanceRepository) GetInvoice(ctx context.Context, tenantID, invoiceID int64) (*domain.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT i.id, i.tenant_id, i.document_id, i.vendor_id, i.invoice_number, i.invoice_date, i.total_amount,
	i.currency, i.payment_status, i.extraction_status, i.audit_status,
	v.name, v.tax_id, v.trust_score
FROM finance_invoices i
LEFT JOIN finance_vendors v ON v.id = i.vendor_id
WHERE i.id = $1 AND i.tenant_id = $2
`, invoiceID, tenantID)

	invoice, err := scanInvoiceWithVendor(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get invoice", fmt.Errorf("id=%d", invoiceID))
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}

	if invoice.Items, err = r.listItems(ctx, invoiceID); err != nil {
		return nil, err
	}
	if invoice.AuditFlags, err = r.listFlags(ctx, invoiceID); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *FinanceRepository) listItems(ctx context.Context, invoiceID int64) ([]domain.InvoiceItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, invoice_id, description, quantity, unit_price, total_price, category
FROM finance_invoice_items
WHERE invoice_id = $1
ORDER BY id
`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()

	out := make([]domain.InvoiceItem, 0)
	for rows.Next() {
		var it domain.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.Category); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice items: %w", err)
	}
	return out, nil
}

func (r *FinanceRepository) listFlags(ctx context.Context, invoiceID int64) ([]domain.AuditFlag, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, invoice_id, issue_type, severity, description, ai_explanation, is_resolved
FROM finance_audit_flags
WHERE invoice_id = $1
ORDER BY id
`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list audit flags: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditFlag, 0)
	for rows.Next() {
		var f domain.AuditFlag
		if err := rows.Scan(&f.ID, &f.InvoiceID, &f.IssueType, &f.Severity, &f.Description, &f.AIExplanation, &f.IsResolved); err != nil {
			return nil, fmt.Errorf("scan audit flag: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit flags: %w", err)
	}
	return out, nil
}

func scanInvoiceWithVendor(row rowScanner) (domain.Invoice, error) {
	var invoice domain.Invoice
	var vendorID sql.NullInt64
	var invoiceDate sql.NullTime
	var vendorName, vendorTaxID sql.NullString
	var trustScore sql.NullInt64
	err := row.Scan(
		&invoice.ID, &invoice.TenantID, &invoice.DocumentID, &vendorID, &invoice.InvoiceNumber, &invoiceDate,
		&invoice.TotalAmount, &invoice.Currency, &invoice.PaymentStatus, &invoice.ExtractionStatus, &invoice.AuditStatus,
		&vendorName, &vendorTaxID, &trustScore,
	)
	if err != nil {
		return domain.Invoice{}, err
	}
	invoice.VendorID = fromNullInt64(vendorID)
	invoice.InvoiceDate = fromNullTime(invoiceDate)
	if vendorID.Valid && vendorName.Valid {
		invoice.Vendor = &domain.Vendor{
			ID:         vendorID.Int64,
			TenantID:   invoice.TenantID,
			Name:       vendorName.String,
			TaxID:      vendorTaxID.String,
			TrustScore: int(trustScore.Int64),
		}
	}
	return invoice, nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	out := v.Int64
	return &out
}

func fromNullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	out := v.Time
	return &out
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
)

type DocumentRepository struct {
	db querier
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, tenant_id, title, mime_type, external_name, external_uri, access_level, page_count, status, created_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO documents (
	tenant_id, title, mime_type, external_name, external_uri, access_level, page_count, status, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id
`,
		doc.TenantID, doc.Filename, doc.MimeType, doc.ExternalName, doc.ExternalURI,
		doc.AccessLevel, doc.PageCount, string(doc.Status), doc.CreatedAt,
	).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("id=%d", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByTenant(ctx context.Context, tenantID int64) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE tenant_id = $1
ORDER BY created_at DESC, id DESC
`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return collectDocuments(rows)
}

// ListByExternalRef returns documents bound to the gateway file by name or URI.
func (r *DocumentRepository) ListByExternalRef(ctx context.Context, name, uri string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE ($1 <> '' AND external_name = $1) OR ($2 <> '' AND external_uri = $2)
`, name, uri)
	if err != nil {
		return nil, fmt.Errorf("list documents by external ref: %w", err)
	}
	return collectDocuments(rows)
}

// UpdateStatus never moves a document out of a terminal status.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2
WHERE id = $1 AND status NOT IN ('active', 'failed')
`, id, string(status))
	if err != nil {
		return false, fmt.Errorf("update document status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update document status rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	var status string
	err := row.Scan(
		&doc.ID, &doc.TenantID, &doc.Filename, &doc.MimeType, &doc.ExternalName, &doc.ExternalURI,
		&doc.AccessLevel, &doc.PageCount, &status, &doc.CreatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Status = domain.DocumentStatus(status)
	return doc, nil
}

func collectDocuments(rows *sql.Rows) ([]domain.Document, error) {
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

package ports

import (
	"context"
	"io"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
)

// TenantRepository persists tenants and their users.
type TenantRepository interface {
	FindByName(ctx context.Context, companyName string) (*domain.Tenant, error)
	Create(ctx context.Context, tenant *domain.Tenant) error
	FindUserByEmail(ctx context.Context, tenantID int64, email string) (*domain.User, error)
}

// DocumentRepository persists document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]domain.Document, error)
	ListByExternalRef(ctx context.Context, name, uri string) ([]domain.Document, error)
	// UpdateStatus moves a non-terminal document to status and reports whether a row changed.
	UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// FinanceRepository persists vendors, invoices, line items and audit flags.
type FinanceRepository interface {
	// UpsertVendor inserts the vendor unless (tenant, name) exists, then loads
	// the stored row's id, tax id and trust score into vendor.
	UpsertVendor(ctx context.Context, vendor *domain.Vendor) error

	// UpsertInvoiceHeader inserts or replaces the header of the document's
	// single invoice. Payment and audit status survive a replace.
	UpsertInvoiceHeader(ctx context.Context, invoice *domain.Invoice) error
	DeleteItems(ctx context.Context, invoiceID int64) error
	CreateItems(ctx context.Context, invoiceID int64, items []domain.InvoiceItem) ([]domain.InvoiceItem, error)

	// DeleteByDocument removes items, audit flags and invoices owned by the document, children first.
	DeleteByDocument(ctx context.Context, documentID int64) (int, error)

	ListInvoices(ctx context.Context, tenantID int64) ([]domain.Invoice, error)
	GetInvoice(ctx context.Context, tenantID, invoiceID int64) (*domain.Invoice, error)
}

// Repositories groups the repositories bound to one session.
type Repositories struct {
	Tenants   TenantRepository
	Documents DocumentRepository
	Finance   FinanceRepository
}

// UnitOfWork hands out repositories, either bound to the pool or to one transaction.
type UnitOfWork interface {
	Repositories() Repositories
	// WithinTx commits when fn returns nil and rolls everything back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// AIGateway is the external file/answer service.
type AIGateway interface {
	UploadFile(ctx context.Context, path, mimeType, displayName string) (*domain.GatewayFile, error)
	GetFileState(ctx context.Context, name string) (domain.FileState, error)
	FindFileByDisplayName(ctx context.Context, displayName string) (*domain.GatewayFile, error)
	DeleteFile(ctx context.Context, name string) error
	GenerateAnswer(ctx context.Context, query string, files []domain.FileRef, systemInstruction string) (string, error)
}

// StagingStorage keeps uploaded bytes on local disk until the gateway has them.
type StagingStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
	Remove(ctx context.Context, key string) error
}

// ExtractionQueue publishes/consumes extraction requests.
type ExtractionQueue interface {
	PublishExtractionRequested(ctx context.Context, req domain.ExtractionRequest) error
	SubscribeExtractionRequested(ctx context.Context, handler func(context.Context, domain.ExtractionRequest) error) error
}

// DocumentInspector reads local metadata from a staged file.
type DocumentInspector interface {
	PageCount(ctx context.Context, path, mimeType string) (int, error)
}

// InvoiceExporter renders invoices into a downloadable spreadsheet.
type InvoiceExporter interface {
	Export(w io.Writer, invoices []domain.Invoice) error
}

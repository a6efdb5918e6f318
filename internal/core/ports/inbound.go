package ports

import (
	"context"
	"io"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
)

// DocumentLifecycle is the inbound contract for upload and status-synced listing.
type DocumentLifecycle interface {
	Upload(ctx context.Context, req domain.UploadRequest, body io.Reader) (*domain.UploadResult, error)
	ListDocuments(ctx context.Context, tenantID int64) (*domain.DocumentListing, error)
}

// InvoiceExtractor turns one indexed document into one structured invoice.
type InvoiceExtractor interface {
	Extract(ctx context.Context, documentID int64) (*domain.Invoice, error)
}

// ExtractionDispatcher schedules extraction outside the request lifetime.
type ExtractionDispatcher interface {
	RequestExtraction(ctx context.Context, tenantID, documentID int64) error
}

// ChatService answers a query grounded in the tenant's accessible documents.
type ChatService interface {
	Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error)
}

// TenantDirectory resolves the tenant named by the request and its users.
type TenantDirectory interface {
	Resolve(ctx context.Context, companyName string, createIfMissing bool) (*domain.Tenant, error)
	ResolveUser(ctx context.Context, tenantID int64, email string) (*domain.User, error)
}

// InvoiceReader is the read model for extracted invoices.
type InvoiceReader interface {
	ListInvoices(ctx context.Context, tenantID int64) ([]domain.Invoice, error)
	GetInvoice(ctx context.Context, tenantID, invoiceID int64) (*domain.Invoice, error)
	ExportInvoices(ctx context.Context, tenantID int64, w io.Writer) error
}

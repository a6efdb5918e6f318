package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/ports"
)

const maxLoggedResponse = 2000

type ExtractInvoiceUseCase struct {
	uow      ports.UnitOfWork
	gateway  ports.AIGateway
	validate *validator.Validate
}

func NewExtractInvoiceUseCase(uow ports.UnitOfWork, gateway ports.AIGateway) *ExtractInvoiceUseCase {
	return &ExtractInvoiceUseCase{
		uow:      uow,
		gateway:  gateway,
		validate: validator.New(),
	}
}

// Extract replaces any previous extraction of the document. A nil invoice
// with an error means nothing was written.
func (uc *ExtractInvoiceUseCase) Extract(ctx context.Context, documentID int64) (*domain.Invoice, error) {
	doc, err := uc.uow.Repositories().Documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc.ExternalURI == "" {
		return nil, domain.WrapError(domain.ErrNotFound, "load document", fmt.Errorf("document %d has no gateway file", documentID))
	}

	raw, err := uc.gateway.GenerateAnswer(ctx, invoiceExtractionPrompt, []domain.FileRef{doc.FileRef()}, invoiceSystemInstruction)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExternalService, "generate extraction", err)
	}

	extract, err := decodeInvoiceExtract(raw, uc.validate)
	if err != nil {
		slog.Error("invoice_extraction_invalid",
			"document_id", documentID,
			"raw_response", truncate(raw, maxLoggedResponse),
			"error", err,
		)
		return nil, err
	}

	var invoice *domain.Invoice
	err = uc.uow.WithinTx(ctx, func(ctx context.Context, repos ports.Repositories) error {
		saved, err := saveExtraction(ctx, repos.Finance, doc, extract)
		if err != nil {
			return err
		}
		invoice = saved
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "persist extraction", err)
	}

	slog.Info("invoice_extracted",
		"document_id", documentID,
		"invoice_id", invoice.ID,
		"items", len(invoice.Items),
	)
	return invoice, nil
}

// saveExtraction keeps at most one invoice per document. The header upsert
// locks the invoice row, so concurrent extractions of one document resolve to
// the last committer and its items.
func saveExtraction(ctx context.Context, finance ports.FinanceRepository, doc *domain.Document, extract domain.InvoiceExtract) (*domain.Invoice, error) {
	vendor := &domain.Vendor{
		TenantID:   doc.TenantID,
		Name:       extract.VendorName,
		TrustScore: 100,
	}
	if extract.VendorTaxID != nil {
		vendor.TaxID = *extract.VendorTaxID
	}
	// Vendors match by exact name within the tenant; an existing row wins.
	if err := finance.UpsertVendor(ctx, vendor); err != nil {
		return nil, fmt.Errorf("upsert vendor: %w", err)
	}

	invoice := &domain.Invoice{
		TenantID:      doc.TenantID,
		DocumentID:    doc.ID,
		PaymentStatus: "Unpaid",
		AuditStatus:   "clean",
	}
	applyHeader(invoice, vendor, extract)
	if err := finance.UpsertInvoiceHeader(ctx, invoice); err != nil {
		return nil, fmt.Errorf("upsert invoice header: %w", err)
	}
	if err := finance.DeleteItems(ctx, invoice.ID); err != nil {
		return nil, fmt.Errorf("delete previous items: %w", err)
	}

	items, err := finance.CreateItems(ctx, invoice.ID, extract.LineItems())
	if err != nil {
		return nil, fmt.Errorf("create invoice items: %w", err)
	}
	invoice.Items = items
	invoice.Vendor = vendor
	return invoice, nil
}

func applyHeader(invoice *domain.Invoice, vendor *domain.Vendor, extract domain.InvoiceExtract) {
	vendorID := vendor.ID
	invoice.VendorID = &vendorID
	invoice.InvoiceNumber = extract.InvoiceNumber
	invoice.InvoiceDate = extract.ParsedDate()
	invoice.TotalAmount = *extract.TotalAmount
	invoice.Currency = extract.CurrencyOrDefault()
	invoice.ExtractionStatus = domain.ExtractionStatusCompleted
}

func decodeInvoiceExtract(raw string, validate *validator.Validate) (domain.InvoiceExtract, error) {
	var extract domain.InvoiceExtract
	if err := json.Unmarshal([]byte(cleanJSONResponse(raw)), &extract); err != nil {
		return domain.InvoiceExtract{}, domain.WrapError(domain.ErrValidation, "decode extraction json", err)
	}
	extract.VendorName = strings.TrimSpace(extract.VendorName)
	extract.InvoiceNumber = strings.TrimSpace(extract.InvoiceNumber)
	if err := validate.Struct(extract); err != nil {
		return domain.InvoiceExtract{}, domain.WrapError(domain.ErrValidation, "validate extraction", err)
	}
	return extract, nil
}

// cleanJSONResponse strips markdown fences and any prose around the outermost object.
func cleanJSONResponse(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		return cleaned[start : end+1]
	}
	return cleaned
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

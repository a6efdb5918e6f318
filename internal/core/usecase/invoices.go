package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/ports"
)

type InvoiceQueryUseCase struct {
	uow      ports.UnitOfWork
	exporter ports.InvoiceExporter
}

func NewInvoiceQueryUseCase(uow ports.UnitOfWork, exporter ports.InvoiceExporter) *InvoiceQueryUseCase {
	return &InvoiceQueryUseCase{uow: uow, exporter: exporter}
}

func (uc *InvoiceQueryUseCase) ListInvoices(ctx context.Context, tenantID int64) ([]domain.Invoice, error) {
	invoices, err := uc.uow.Repositories().Finance.ListInvoices(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

func (uc *InvoiceQueryUseCase) GetInvoice(ctx context.Context, tenantID, invoiceID int64) (*domain.Invoice, error) {
	return uc.uow.Repositories().Finance.GetInvoice(ctx, tenantID, invoiceID)
}

func (uc *InvoiceQueryUseCase) ExportInvoices(ctx context.Context, tenantID int64, w io.Writer) error {
	finance := uc.uow.Repositories().Finance
	summaries, err := finance.ListInvoices(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("list invoices: %w", err)
	}

	invoices := make([]domain.Invoice, 0, len(summaries))
	for _, s := range summaries {
		full, err := finance.GetInvoice(ctx, tenantID, s.ID)
		if err != nil {
			return fmt.Errorf("load invoice %d: %w", s.ID, err)
		}
		invoices = append(invoices, *full)
	}

	if err := uc.exporter.Export(w, invoices); err != nil {
		return fmt.Errorf("export invoices: %w", err)
	}
	return nil
}

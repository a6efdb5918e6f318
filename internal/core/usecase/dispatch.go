package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/ports"
)

type ExtractionDispatchUseCase struct {
	uow   ports.UnitOfWork
	queue ports.ExtractionQueue
}

func NewExtractionDispatchUseCase(uow ports.UnitOfWork, queue ports.ExtractionQueue) *ExtractionDispatchUseCase {
	return &ExtractionDispatchUseCase{uow: uow, queue: queue}
}

// RequestExtraction checks tenant ownership and hands the document to the
// background runner. The outcome is observed later through the invoice read model.
func (uc *ExtractionDispatchUseCase) RequestExtraction(ctx context.Context, tenantID, documentID int64) error {
	doc, err := uc.uow.Repositories().Documents.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc.TenantID != tenantID {
		return domain.WrapError(domain.ErrNotFound, "load document", fmt.Errorf("document %d not owned by tenant %d", documentID, tenantID))
	}

	req := domain.ExtractionRequest{
		DocumentID:  documentID,
		TenantID:    tenantID,
		RequestedAt: time.Now().UTC(),
	}
	if err := uc.queue.PublishExtractionRequested(ctx, req); err != nil {
		return fmt.Errorf("publish extraction request: %w", err)
	}
	return nil
}

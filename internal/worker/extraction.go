package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/ports"
)

const DefaultExtractionTimeout = 5 * time.Minute

// Recorder receives extraction lifecycle events.
type Recorder interface {
	StartExtraction()
	FinishExtraction(service string, duration time.Duration, err error)
	ObserveQueueLag(service string, lag time.Duration)
}

// ExtractionRunner executes queued extraction requests outside any request
// lifetime. Each run gets its own deadline.
type ExtractionRunner struct {
	service   string
	extractor ports.InvoiceExtractor
	recorder  Recorder
	timeout   time.Duration
	now       func() time.Time
}

func NewExtractionRunner(service string, extractor ports.InvoiceExtractor, recorder Recorder, timeout time.Duration) *ExtractionRunner {
	if timeout <= 0 {
		timeout = DefaultExtractionTimeout
	}
	return &ExtractionRunner{
		service:   service,
		extractor: extractor,
		recorder:  recorder,
		timeout:   timeout,
		now:       time.Now,
	}
}

func (r *ExtractionRunner) Handle(ctx context.Context, req domain.ExtractionRequest) error {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	start := r.now()
	if r.recorder != nil {
		if !req.RequestedAt.IsZero() {
			r.recorder.ObserveQueueLag(r.service, start.Sub(req.RequestedAt))
		}
		r.recorder.StartExtraction()
	}

	invoice, err := r.extractor.Extract(runCtx, req.DocumentID)
	duration := r.now().Sub(start)
	if r.recorder != nil {
		r.recorder.FinishExtraction(r.service, duration, err)
	}
	if err != nil {
		slog.Error("invoice_extraction_failed",
			"document_id", req.DocumentID,
			"tenant_id", req.TenantID,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return err
	}

	slog.Info("invoice_extraction_completed",
		"document_id", req.DocumentID,
		"tenant_id", req.TenantID,
		"invoice_id", invoice.ID,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

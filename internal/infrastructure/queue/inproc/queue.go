package inproc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
)

const (
	DefaultBuffer  = 64
	DefaultWorkers = 2
)

// Queue dispatches extraction requests to goroutines of the same process.
// It backs single-binary deployments that run without NATS.
type Queue struct {
	requests chan domain.ExtractionRequest
	workers  int
}

func New(buffer, workers int) *Queue {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Queue{
		requests: make(chan domain.ExtractionRequest, buffer),
		workers:  workers,
	}
}

// PublishExtractionRequested never blocks; a full buffer is a temporary failure.
func (q *Queue) PublishExtractionRequested(ctx context.Context, req domain.ExtractionRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.requests <- req:
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "publish extraction request", errors.New("extraction queue is full"))
	}
}

// SubscribeExtractionRequested runs the workers until ctx is done. Requests
// still buffered at that point are dropped.
func (q *Queue) SubscribeExtractionRequested(ctx context.Context, handler func(context.Context, domain.ExtractionRequest) error) error {
	if handler == nil {
		return fmt.Errorf("inproc subscribe: handler is nil")
	}

	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case req := <-q.requests:
					if err := handler(ctx, req); err != nil {
						slog.Error("extraction_handler_failed", "document_id", req.DocumentID, "tenant_id", req.TenantID, "error", err)
					}
				}
			}
		}()
	}
	wg.Wait()

	if dropped := len(q.requests); dropped > 0 {
		slog.Warn("extraction_queue_dropped", "pending", dropped)
	}
	return nil
}

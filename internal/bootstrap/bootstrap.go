package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noor1991nassar-hub/N-PRO/internal/config"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/ports"
	"github.com/noor1991nassar-hub/N-PRO/internal/core/usecase"
	"github.com/noor1991nassar-hub/N-PRO/internal/infrastructure/export/xlsx"
	"github.com/noor1991nassar-hub/N-PRO/internal/infrastructure/inspector/pdfinfo"
	"github.com/noor1991nassar-hub/N-PRO/internal/infrastructure/llm/gemini"
	"github.com/noor1991nassar-hub/N-PRO/internal/infrastructure/queue/inproc"
	"github.com/noor1991nassar-hub/N-PRO/internal/infrastructure/queue/nats"
	"github.com/noor1991nassar-hub/N-PRO/internal/infrastructure/repository/postgres"
	"github.com/noor1991nassar-hub/N-PRO/internal/infrastructure/resilience"
	"github.com/noor1991nassar-hub/N-PRO/internal/infrastructure/storage/localfs"
	"github.com/noor1991nassar-hub/N-PRO/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue ports.ExtractionQueue
	// Embedded is true when extraction runs inside this process instead of cmd/worker.
	Embedded bool

	Documents  *usecase.DocumentLifecycleUseCase
	Extractor  *usecase.ExtractInvoiceUseCase
	Dispatcher *usecase.ExtractionDispatchUseCase
	Chat       *usecase.ChatUseCase
	Tenants    *usecase.TenantDirectoryUseCase
	Invoices   *usecase.InvoiceQueryUseCase

	closeFn func()
}

// New wires every adapter. Gateway resilience metrics are registered on registerer.
func New(ctx context.Context, cfg config.Config, service string, registerer prometheus.Registerer) (*App, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	accessMode, err := domain.ParseAccessMode(cfg.ChatAccessMode)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	store := postgres.NewStore(db)

	staging, err := localfs.New(cfg.StagingPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init staging storage: %w", err)
	}

	executor := resilience.NewExecutor(gemini.SingleAttemptConfig(resilienceConfig(cfg)))
	if registerer != nil {
		executor = executor.WithObserver(metrics.NewGatewayMetrics(service, registerer))
	}
	gateway := gemini.New(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, executor)

	var queue ports.ExtractionQueue
	embedded := false
	closeQ := func() {}
	if cfg.NATSURL != "" {
		natsQueue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilienceConfig(cfg)),
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		queue = natsQueue
		closeQ = natsQueue.Close
	} else {
		queue = inproc.New(cfg.ExtractionQueueBuffer, cfg.ExtractionWorkers)
		embedded = true
		slog.Info("extraction_queue_inproc", "workers", cfg.ExtractionWorkers, "buffer", cfg.ExtractionQueueBuffer)
	}

	app := &App{
		Config:   cfg,
		Queue:    queue,
		Embedded: embedded,

		Documents:  usecase.NewDocumentLifecycleUseCase(store, gateway, staging, pdfinfo.New()),
		Extractor:  usecase.NewExtractInvoiceUseCase(store, gateway),
		Dispatcher: usecase.NewExtractionDispatchUseCase(store, queue),
		Chat:       usecase.NewChatUseCase(store, gateway, domain.AccessPolicy{Mode: accessMode}, cfg.ChatTone),
		Tenants:    usecase.NewTenantDirectoryUseCase(store),
		Invoices:   usecase.NewInvoiceQueryUseCase(store, xlsx.New()),

		closeFn: func() {
			closeQ()
			_ = db.Close()
		},
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	rc.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	rc.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	rc.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	rc.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	return rc
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/noor1991nassar-hub/N-PRO/internal/adapters/http"
	"github.com/noor1991nassar-hub/N-PRO/internal/bootstrap"
	"github.com/noor1991nassar-hub/N-PRO/internal/config"
	"github.com/noor1991nassar-hub/N-PRO/internal/observability/logging"
	"github.com/noor1991nassar-hub/N-PRO/internal/observability/metrics"
	"github.com/noor1991nassar-hub/N-PRO/internal/worker"
)

const serviceName = "api"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, serviceName, httpMetrics.Registry())
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	extractionDone := make(chan struct{})
	if app.Embedded {
		workerMetrics := metrics.NewWorkerMetricsWithRegistry(serviceName, httpMetrics.Registry())
		runner := worker.NewExtractionRunner(serviceName, app.Extractor, workerMetrics, cfg.ExtractionTimeout)
		go func() {
			defer close(extractionDone)
			if err := app.Queue.SubscribeExtractionRequested(ctx, runner.Handle); err != nil {
				slog.Error("extraction_runner_stopped", "error", err)
			}
		}()
	} else {
		close(extractionDone)
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Documents:  app.Documents,
		Extraction: app.Dispatcher,
		Chat:       app.Chat,
		Tenants:    app.Tenants,
		Invoices:   app.Invoices,
	}, httpMetrics).Handler()

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      4 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "embedded_extraction", app.Embedded)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
	<-extractionDone
}

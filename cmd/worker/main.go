package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/paperstand/internal/bootstrap"
	"github.com/kirillkom/paperstand/internal/config"
	"github.com/kirillkom/paperstand/internal/core/domain"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "paperstand-worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: app.HTTPMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Log.Error("worker_metrics_server_error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	app.Log.Info("worker_subscribed", slog.String("subject", cfg.NATSSubject))
	err = app.Queue.SubscribePaperIngested(ctx, func(handlerCtx context.Context, paperID, filename string) error {
		ingestCtx, cancel := context.WithTimeout(handlerCtx, 10*time.Minute)
		defer cancel()

		result, err := app.Workflow.RunIngestion(ingestCtx, paperID)
		if err != nil {
			return err
		}

		return app.Registry.Add(ingestCtx, &domain.Paper{
			ID:         paperID,
			Filename:   filename,
			PageCount:  result.PageCount,
			ImageDir:   result.ImageDir,
			IngestedAt: time.Now().UTC(),
		})
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

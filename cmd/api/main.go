package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/aggregate"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/config"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/crm"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/httpserver"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/ingest"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/kv"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/logging"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/observability"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/publish"
)

const shutdownTimeout = 15 * time.Second

// main boots the service: config → store → schema → HTTP server.
func main() {
	// Load runtime config from CONFIG_FILE and the environment.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logger.Info("service_starting",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("store_name", cfg.StoreName),
		slog.String("write_mode", cfg.WriteMode),
		slog.Bool("crm", cfg.CRMBaseURL != ""),
		slog.String("kafka_brokers", strings.Join(cfg.KafkaBrokers, ",")),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service_terminated", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("service_stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	// Connect to durable storage and ensure its schema exists.
	raw, err := kv.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer raw.Close()
	st := kv.Wrap(raw, cfg.StoreTimeout, metrics)

	var publisher publish.Publisher = publish.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = publish.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	}
	defer publisher.Close()

	opts := []ingest.Option{
		ingest.WithPublisher(publisher),
		ingest.WithMetrics(metrics),
	}
	deps := httpserver.Deps{
		Store:   st,
		Reader:  aggregate.NewReader(st, cfg, metrics),
		Metrics: metrics,
	}
	if cfg.CRMBaseURL != "" {
		client := crm.New(cfg.CRMBaseURL, cfg.CRMToken, cfg.CRMTimeout, cfg.FieldCacheTTL, metrics)
		opts = append(opts, ingest.WithNotifier(client))
		deps.CRM = client
	}
	svc := ingest.New(st, cfg, opts...)
	deps.Ingest = svc

	// Build HTTP router (public health + authenticated APIs).
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpserver.NewRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_started", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown", slog.Any("err", err))
	}
	// Let in-flight CRM notifications and publishes finish before closing their sinks.
	svc.Wait()
	return nil
}

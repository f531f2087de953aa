package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	fileadapter "github.com/couchcryptid/cityflow-precompute/internal/adapter/file"
	httpadapter "github.com/couchcryptid/cityflow-precompute/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/cityflow-precompute/internal/adapter/kafka"
	"github.com/couchcryptid/cityflow-precompute/internal/config"
	"github.com/couchcryptid/cityflow-precompute/internal/observability"
	"github.com/couchcryptid/cityflow-precompute/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	metrics := observability.NewMetrics()

	source := fileadapter.NewSource(cfg.Input.Dir, logger)

	fileSink, err := fileadapter.NewSink(cfg.Output.Dir, logger)
	if err != nil {
		logger.Error("failed to create output sink", "error", err)
		os.Exit(1)
	}
	sinks := []pipeline.ArtifactSink{fileSink}

	// Kafka publishing is feature-flagged via CITYFLOW_KAFKA_BROKERS.
	var kafkaWriter *kafkaadapter.Writer
	if cfg.Kafka.Enabled() {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		sinks = append(sinks, kafkaWriter)
		logger.Info("kafka publishing enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(source, sinks, logger, metrics, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Health/metrics server is optional for one-shot batch runs.
	var srv *httpadapter.Server
	if cfg.HTTP.Addr != "" {
		srv = httpadapter.NewServer(cfg.HTTP.Addr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	runErr := p.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("pipeline error", "error", runErr)
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	if runErr != nil {
		os.Exit(1)
	}
}

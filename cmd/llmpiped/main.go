// Command llmpiped runs the LLM middleware pipeline as an HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/promptops/llmpipe/internal/config"
	"github.com/promptops/llmpipe/internal/core/ports"
	"github.com/promptops/llmpipe/internal/inference"
	"github.com/promptops/llmpipe/internal/metrics"
	"github.com/promptops/llmpipe/internal/pipeline"
	"github.com/promptops/llmpipe/internal/server"
	"github.com/promptops/llmpipe/internal/storage/sqlite"
	"github.com/promptops/llmpipe/internal/telemetry"
	"github.com/promptops/llmpipe/internal/validate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("llmpipe", logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			logger.Error("tracer shutdown", slog.String("error", err.Error()))
		}
	}()

	var collector ports.MetricsCollector = metrics.Nop{}
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheus()
		collector = prom

		if cfg.Metrics.Expose {
			go func() {
				addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
				logger.Info("metrics server listening", slog.String("addr", addr))
				mux := http.NewServeMux()
				mux.Handle("/metrics", prom.Handler())
				if err := http.ListenAndServe(addr, mux); err != nil {
					logger.Error("metrics server failed", slog.String("error", err.Error()))
				}
			}()
		}
	}

	var store ports.InteractionStore
	if cfg.Storage.Enabled {
		s, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open interaction store: %w", err)
		}
		defer s.Close()
		store = s
	}

	client := inference.NewClient(inference.Config{
		APIURL:     cfg.LLM.APIURL,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.Model,
		Timeout:    time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.LLM.MaxRetries,
	},
		inference.WithLogger(logger),
		inference.WithMetrics(collector),
	)

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(collector),
		pipeline.WithInferencer(client),
	}
	if cfg.Pipeline.ValidateSchemas {
		opts = append(opts, pipeline.WithValidator(validate.New(logger)))
	}
	pipe := pipeline.New(cfg.PipelineConfig(), opts...)

	handler := server.NewHandler(pipe, store, logger)
	srv := server.New(cfg.Server.Port, cfg.RequestTimeout(), logger)
	srv.Router.Post("/process", handler.HandleProcess)
	srv.Router.Get("/health", handler.HandleHealth)
	srv.Router.Get("/interactions", handler.HandleInteractions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/verid-io/verid/internal/config"
	"github.com/verid-io/verid/internal/edge"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.LoadEdge()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment, "edge-gateway")
	slog.SetDefault(logger)

	logger.Info("starting Verid Edge Gateway",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("gateway_url", cfg.GatewayURL),
	)

	// Inference Gateway client
	gatewayCfg := edge.DefaultGatewayConfig(cfg.GatewayURL)
	gatewayCfg.Timeout = time.Duration(cfg.RequestTimeout) * time.Second
	gateway := edge.NewGatewayClient(gatewayCfg, logger)

	// Setup router
	handler := edge.NewEnduserHandler(gateway, cfg.MaxUploadBytes(), logger)
	router := edge.NewRouter(cfg, logger, handler)
	router.Setup()

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	<-shutdownCtx.Done()
	logger.Info("server stopped")

	return nil
}

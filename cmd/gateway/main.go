package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/verid-io/verid/internal/api"
	"github.com/verid-io/verid/internal/challenge"
	"github.com/verid-io/verid/internal/config"
	"github.com/verid-io/verid/internal/service"
	"github.com/verid-io/verid/internal/stage"
	"github.com/verid-io/verid/internal/stage/native"
	"github.com/verid-io/verid/internal/stage/ocr"
	"github.com/verid-io/verid/internal/stage/rekognition"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment, "inference-gateway")
	slog.SetDefault(logger)

	logger.Info("starting Verid Inference Gateway",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("stage_backend", cfg.StageBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Inference stages
	registry := stage.NewRegistry(buildStages(ctx, cfg))
	if err := registry.Warmup(ctx); err != nil {
		// A failed stage is reported by /health; the process keeps serving
		// with whatever loaded.
		logger.Warn("stage warmup incomplete", slog.Any("error", err))
	}

	// Challenge store
	storeCfg := challenge.DefaultStoreConfig([]byte(cfg.HMACSecret))
	storeCfg.TTL = time.Duration(cfg.ChallengeTTLSeconds) * time.Second
	storeCfg.PredicateCount = cfg.ChallengeCount
	store := challenge.NewStore(storeCfg)
	defer store.Stop()

	// Services
	verification := service.NewVerificationService(registry, service.VerificationConfig{
		SimilarityThreshold: cfg.SimilarityThreshold,
		PendingFaceFloor:    cfg.PendingFaceFloor,
		PendingOCRFloor:     cfg.PendingOCRFloor,
	})
	liveness := service.NewLivenessService(registry, store, service.LivenessConfig{
		MinFrames:      cfg.LivenessMinFrames,
		FaceRatioFloor: cfg.LivenessFaceRatioFloor,
		MaxFrameBytes:  cfg.MaxUploadBytes(),
	})

	// Setup router
	router := api.NewRouter(cfg, logger, &api.Dependencies{
		Verification: verification,
		Liveness:     liveness,
		Stages:       registry,
	})
	router.Setup()

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

// buildStages wires the stage constructors selected by configuration.
// Liveness always evaluates frames with the native detector: webcam frames
// arrive at 10+ per verification and a remote detector call per frame would
// dominate the latency budget.
func buildStages(ctx context.Context, cfg *config.Config) stage.Builders {
	b := stage.Builders{
		MatcherName: "native-matcher",
		Matcher: func() (stage.Matcher, error) {
			return native.NewMatcher(native.MatcherConfig{Threshold: cfg.SimilarityThreshold}), nil
		},
		LivenessName: "native-liveness",
		Liveness: func() (stage.LivenessEvaluator, error) {
			detector := native.NewDetector(native.DefaultDetectorConfig())
			return native.NewEvaluator(native.DefaultLivenessConfig(), detector), nil
		},
	}

	switch cfg.StageBackend {
	case "rekognition":
		b.DetectorName = "rekognition-detector"
		b.Detector = func() (stage.Detector, error) {
			rekCfg := rekognition.DefaultConfig()
			rekCfg.Region = cfg.AWSRegion
			return rekognition.NewDetector(ctx, rekCfg)
		}
	default:
		b.DetectorName = "native-detector"
		b.Detector = func() (stage.Detector, error) {
			return native.NewDetector(native.DefaultDetectorConfig()), nil
		}
	}

	if cfg.OCRSidecarURL != "" {
		b.OCRName = "ocr-sidecar"
		b.OCR = func() (stage.OCRExtractor, error) {
			ocrCfg := ocr.DefaultConfig()
			ocrCfg.BaseURL = cfg.OCRSidecarURL
			return ocr.NewExtractor(ocr.NewClient(ocrCfg)), nil
		}
	} else {
		b.OCRName = "ocr-degraded"
		b.OCR = func() (stage.OCRExtractor, error) {
			return ocr.NewExtractor(nil), nil
		}
	}

	return b
}

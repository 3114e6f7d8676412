/**
 * Form Extraction Worker - Main Entry Point
 *
 * Long-running worker that extracts inspection-sheet fields from uploaded
 * job directories.
 *
 * Architecture:
 * - Redis list (BRPOP) or asynq consumer, selected by QUEUE_BACKEND
 * - Fixed-template pipeline: rasterize, crop, recognize, normalize
 * - Tesseract OCR, loaded once on first use and shared by all workers
 * - Flat per-job files: image assets and result.json next to the input
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/formextract-worker/internal/app"
	"github.com/adverant/nexus/formextract-worker/internal/config"
	"github.com/adverant/nexus/formextract-worker/internal/logging"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Configure(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	logger := logging.NewLogger("worker")

	logger.Info("Form extraction worker starting",
		"template", cfg.TemplateID, "jobsDir", cfg.JobsDir, "backend", cfg.QueueBackend,
		"queue", cfg.QueueName, "workers", cfg.WorkerConcurrency)

	application, err := app.New(cfg)
	if err != nil {
		logger.Error("Failed to initialize pipeline", "error", err)
		os.Exit(1)
	}

	consumer, err := application.NewConsumer()
	if err != nil {
		logger.Error("Failed to initialize queue consumer", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		logger.Error("Failed to start queue consumer", "error", err)
		os.Exit(1)
	}

	logger.Info("Form extraction worker is READY, waiting for jobs",
		"languages", cfg.OCRLanguages, "renderScale", cfg.RenderScale)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal, initiating graceful shutdown", "signal", sig.String())

	stopCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ProcessingTimeout)*time.Millisecond)
	defer cancel()
	if err := consumer.Stop(stopCtx); err != nil {
		// the engine stays open under jobs that did not drain
		logger.Error("Error stopping queue consumer", "error", err)
		os.Exit(1)
	}
	if err := application.Close(); err != nil {
		logger.Warn("Failed to close OCR engine", "error", err)
	}

	logger.Info("Shutdown complete")
}

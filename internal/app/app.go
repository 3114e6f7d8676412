// Package app assembles the extraction pipeline from configuration. Both the
// queue worker and the operator CLI start from here.
package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/formextract-worker/internal/config"
	"github.com/adverant/nexus/formextract-worker/internal/jobs"
	"github.com/adverant/nexus/formextract-worker/internal/layout"
	"github.com/adverant/nexus/formextract-worker/internal/logging"
	"github.com/adverant/nexus/formextract-worker/internal/ocr/tesseract"
	"github.com/adverant/nexus/formextract-worker/internal/processor"
	"github.com/adverant/nexus/formextract-worker/internal/queue"
	"github.com/adverant/nexus/formextract-worker/internal/raster"
)

// App holds the long-lived pipeline components
type App struct {
	Config    *config.Config
	Store     *jobs.Store
	Extractor *processor.Extractor
	Service   *processor.Service
	engine    *tesseract.Engine
}

// New wires store, OCR engine, renderer and extractor. The OCR model is loaded
// on the first recognition, not here.
func New(cfg *config.Config) (*App, error) {
	tpl, err := layout.Lookup(cfg.TemplateID)
	if err != nil {
		return nil, err
	}

	engine := tesseract.NewEngine(tesseract.Config{
		Languages:      cfg.OCRLanguages,
		TessdataPrefix: cfg.TessdataPrefix,
	})
	renderer := raster.NewRenderer(raster.Config{
		PdftoppmPath: cfg.PdftoppmPath,
		Scale:        cfg.RenderScale,
	})

	extractor, err := processor.NewExtractor(tpl, engine, renderer, logging.NewLogger("extractor"))
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	store := jobs.NewStore(cfg.JobsDir, cfg.AssetURLPrefix)
	return &App{
		Config:    cfg,
		Store:     store,
		Extractor: extractor,
		Service:   processor.NewService(store, extractor, logging.NewLogger("processor")),
		engine:    engine,
	}, nil
}

// NewConsumer creates the consumer for the configured queue backend
func (a *App) NewConsumer() (queue.Consumer, error) {
	switch a.Config.QueueBackend {
	case config.BackendAsynq:
		return queue.NewAsynqConsumer(&queue.ConsumerConfig{
			RedisURL:          a.Config.RedisURL,
			QueueName:         a.Config.QueueName,
			Concurrency:       a.Config.WorkerConcurrency,
			Processor:         a.Service,
			ProcessingTimeout: a.Config.ProcessingTimeout,
			Logger:            logging.NewLogger("asynq-consumer"),
		})
	default:
		return queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          a.Config.RedisURL,
			QueueName:         a.Config.QueueName,
			Concurrency:       a.Config.WorkerConcurrency,
			Processor:         a.Service,
			ProcessingTimeout: a.Config.ProcessingTimeout,
			Logger:            logging.NewLogger("redis-consumer"),
		})
	}
}

// Enqueue submits a stored job to backend ("redis" or "asynq")
func (a *App) Enqueue(ctx context.Context, backend, jobID string) error {
	switch backend {
	case config.BackendAsynq:
		opt, err := asynq.ParseRedisURI(a.Config.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := asynq.NewClient(opt)
		defer client.Close()
		_, err = queue.EnqueueAsynq(ctx, client, a.Config.QueueName, jobID)
		return err
	case config.BackendRedis:
		opt, err := redis.ParseURL(a.Config.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := redis.NewClient(opt)
		defer client.Close()
		return queue.EnqueueRedis(ctx, client, a.Config.QueueName, jobID)
	default:
		return fmt.Errorf("unknown queue backend %q", backend)
	}
}

// Close releases the OCR engine
func (a *App) Close() error {
	return a.engine.Close()
}

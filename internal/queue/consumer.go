/**
 * asynq consumer for the form extraction worker
 *
 * Alternative trigger to the Redis list: tasks of type "extract-form" with a
 * {"jobId": "..."} payload on QUEUE_NAME. Failures are final; handlers wrap
 * every error with asynq.SkipRetry.
 */

package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/adverant/nexus/formextract-worker/internal/logging"
	"github.com/adverant/nexus/formextract-worker/internal/processor"
)

// AsynqConsumer handles extract-form tasks
type AsynqConsumer struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	jobs   *jobRunner
	config *ConsumerConfig
	logger *logging.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.JobProcessor
	ProcessingTimeout int64 // milliseconds, default 300000
	Logger            *logging.Logger
}

// NewAsynqConsumer creates a new asynq consumer
func NewAsynqConsumer(cfg *ConsumerConfig) (*AsynqConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("asynq-consumer")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	jobs := newJobRunner(cfg.Processor, cfg.ProcessingTimeout, cfg.Logger)
	consumer := &AsynqConsumer{
		client: asynq.NewClient(redisOpt),
		mux:    asynq.NewServeMux(),
		jobs:   jobs,
		config: cfg,
		logger: cfg.Logger,
	}
	consumer.server = asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				consumer.logger.Error("task processing error", "type", task.Type(), "payload", string(task.Payload()), "error", err)
			}),
			// in-flight tasks get a full processing window before shutdown cancels them
			ShutdownTimeout: jobs.timeout,
			Logger:          logrus.StandardLogger(),
		},
	)
	consumer.mux.HandleFunc(TaskExtractForm, consumer.handleExtractForm)

	return consumer, nil
}

// Start runs the asynq server in the background
func (c *AsynqConsumer) Start(_ context.Context) error {
	c.logger.Info("Starting asynq consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)
	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting up to ShutdownTimeout for running
// tasks, and closes the client
func (c *AsynqConsumer) Stop(_ context.Context) error {
	c.logger.Info("Stopping asynq consumer")
	c.server.Shutdown()
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}
	return nil
}

func (c *AsynqConsumer) handleExtractForm(ctx context.Context, task *asynq.Task) error {
	msg, err := DecodeJobMessage(task.Payload())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	c.logger.Infof("[Job %s] Received %s task", msg.JobID, task.Type())
	if _, err := c.jobs.run(ctx, msg.JobID); err != nil {
		return fmt.Errorf("form extraction failed: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// GetStatistics returns consumer settings
func (c *AsynqConsumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
	}
}

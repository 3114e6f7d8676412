/**
 * Redis list consumer for the form extraction worker
 *
 * Producers LPUSH {"jobId": "..."} (or a bare id) onto QUEUE_NAME; workers
 * BRPOP it and run the extractor against the job directory. State lives in
 * <queue>:processing|completed|failed sets, result summaries in <queue>:results,
 * failures in <queue>:errors, and every transition is published on <queue>:events.
 *
 * Jobs are never retried.
 */

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/formextract-worker/internal/logging"
	"github.com/adverant/nexus/formextract-worker/internal/processor"
)

var errNoJobs = errors.New("no jobs available")

// RedisConsumer handles job consumption from a Redis list
type RedisConsumer struct {
	client  *redis.Client
	jobs    *jobRunner
	tracker StatusTracker
	config  *RedisConsumerConfig
	logger  *logging.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.JobProcessor
	ProcessingTimeout int64 // milliseconds, default 300000
	Logger            *logging.Logger
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		cfg.QueueName = "formextract:jobs"
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("redis-consumer")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	return &RedisConsumer{
		client:  client,
		jobs:    newJobRunner(cfg.Processor, cfg.ProcessingTimeout, cfg.Logger),
		tracker: NewRedisStatusTracker(client, cfg.QueueName, cfg.Logger),
		config:  cfg,
		logger:  cfg.Logger,
		ctx:     consumerCtx,
		cancel:  consumerCancel,
	}, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start(_ context.Context) error {
	c.logger.Info("Starting Redis queue consumer", "concurrency", c.config.Concurrency, "queue", c.config.QueueName)
	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}
	return nil
}

// Stop stops fetching, waits for in-flight jobs until ctx is done, and
// closes the client. The client stays open when jobs are still running.
func (c *RedisConsumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")
	c.cancel()
	if err := c.drain(ctx); err != nil {
		return err
	}
	return c.client.Close()
}

func (c *RedisConsumer) drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("in-flight jobs still running at shutdown: %w", ctx.Err())
	}
}

func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	c.logger.Debug("worker started", "worker", id)

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Debug("worker stopping", "worker", id)
			return
		default:
			if err := c.processNextJob(); err != nil {
				if !errors.Is(err, errNoJobs) && c.ctx.Err() == nil {
					c.logger.Error("worker error", "worker", id, "error", err)
					time.Sleep(1 * time.Second)
				}
			}
		}
	}
}

// processNextJob blocks up to 5 seconds for the next job and processes it
func (c *RedisConsumer) processNextJob() error {
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.config.QueueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}
	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}
	return c.handlePayload(c.ctx, []byte(result[1]))
}

// handlePayload runs one popped job and records its outcome
func (c *RedisConsumer) handlePayload(ctx context.Context, payload []byte) error {
	msg, err := DecodeJobMessage(payload)
	if err != nil {
		return err
	}

	statusCtx, cancel := statusContext(ctx)
	c.tracker.MarkProcessing(statusCtx, msg.JobID)
	cancel()

	res, err := c.jobs.run(ctx, msg.JobID)

	statusCtx, cancel = statusContext(ctx)
	defer cancel()
	if err != nil {
		c.tracker.MarkFailed(statusCtx, msg.JobID, err)
		return nil
	}
	c.tracker.MarkCompleted(statusCtx, msg.JobID, res)
	return nil
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	return QueueStats(ctx, c.client, c.config.QueueName)
}

// QueueStats counts waiting, processing, completed and failed jobs
func QueueStats(ctx context.Context, client redis.Cmdable, queue string) (map[string]int64, error) {
	waiting, err := client.LLen(ctx, queue).Result()
	if err != nil {
		return nil, err
	}
	processing, _ := client.SCard(ctx, queue+":processing").Result()
	completed, _ := client.SCard(ctx, queue+":completed").Result()
	failed, _ := client.SCard(ctx, queue+":failed").Result()

	return map[string]int64{
		"waiting":    waiting,
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
	}, nil
}

// RedisStatusTracker keeps job state in Redis sets and hashes
type RedisStatusTracker struct {
	client redis.Cmdable
	queue  string
	logger *logging.Logger
}

// NewRedisStatusTracker creates a tracker keyed under queue
func NewRedisStatusTracker(client redis.Cmdable, queue string, logger *logging.Logger) *RedisStatusTracker {
	return &RedisStatusTracker{client: client, queue: queue, logger: logger}
}

func (t *RedisStatusTracker) MarkProcessing(ctx context.Context, jobID string) {
	t.exec(ctx, jobID, "processing", func(pipe redis.Pipeliner) {
		pipe.SAdd(ctx, t.queue+":processing", jobID)
	})
}

func (t *RedisStatusTracker) MarkCompleted(ctx context.Context, jobID string, result *processor.ProcessResult) {
	summary, _ := json.Marshal(map[string]interface{}{
		"template":          result.Template,
		"resultPath":        result.ResultPath,
		"rowsExtracted":     result.RowsExtracted,
		"unrecognizedCells": result.UnrecognizedCells,
		"processingTime":    result.ProcessingTimeMs,
	})
	t.exec(ctx, jobID, "completed", func(pipe redis.Pipeliner) {
		pipe.SRem(ctx, t.queue+":processing", jobID)
		pipe.SAdd(ctx, t.queue+":completed", jobID)
		pipe.HSet(ctx, t.queue+":results", jobID, summary)
	})
}

func (t *RedisStatusTracker) MarkFailed(ctx context.Context, jobID string, err error) {
	details, _ := json.Marshal(errorDetails(err))
	t.exec(ctx, jobID, "failed", func(pipe redis.Pipeliner) {
		pipe.SRem(ctx, t.queue+":processing", jobID)
		pipe.SAdd(ctx, t.queue+":failed", jobID)
		pipe.HSet(ctx, t.queue+":errors", jobID, details)
	})
}

// exec applies the state change atomically and publishes job:<status>
func (t *RedisStatusTracker) exec(ctx context.Context, jobID, status string, fn func(redis.Pipeliner)) {
	event, _ := json.Marshal(map[string]interface{}{
		"event":     "job:" + status,
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fn(pipe)
		pipe.Publish(ctx, t.queue+":events", event)
		return nil
	})
	if err != nil {
		t.logger.Warn("failed to record job status", "job", jobID, "status", status, "error", err)
	}
}

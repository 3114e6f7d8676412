package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Consumer is implemented by both queue backends
type Consumer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// EnqueueRedis pushes a job onto the Redis list consumed by RedisConsumer
func EnqueueRedis(ctx context.Context, client redis.Cmdable, queue, jobID string) error {
	payload, err := JobMessage{JobID: jobID}.Encode()
	if err != nil {
		return err
	}
	if err := client.LPush(ctx, queue, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	return nil
}

// NewExtractFormTask builds the asynq task for a job
func NewExtractFormTask(jobID string) (*asynq.Task, error) {
	payload, err := JobMessage{JobID: jobID}.Encode()
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExtractForm, payload, asynq.MaxRetry(0)), nil
}

// EnqueueAsynq submits a job as an extract-form task on queue
func EnqueueAsynq(ctx context.Context, client *asynq.Client, queue, jobID string) (*asynq.TaskInfo, error) {
	task, err := NewExtractFormTask(jobID)
	if err != nil {
		return nil, err
	}
	info, err := client.EnqueueContext(ctx, task, asynq.Queue(queue))
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}
	return info, nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/adverant/nexus/formextract-worker/internal/errors"
	"github.com/adverant/nexus/formextract-worker/internal/logging"
	"github.com/adverant/nexus/formextract-worker/internal/processor"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls []string
	err   error
	delay time.Duration
}

func (f *fakeProcessor) ProcessJob(ctx context.Context, jobID string) (*processor.ProcessResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, jobID)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &processor.ProcessResult{JobID: jobID, Template: "inner_curvature_v1", RowsExtracted: 3}, nil
}

type fakeTracker struct {
	events  []string
	errs    map[string]error
	ctxErrs []error
}

func (f *fakeTracker) MarkProcessing(ctx context.Context, jobID string) {
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.events = append(f.events, "processing:"+jobID)
}

func (f *fakeTracker) MarkCompleted(ctx context.Context, jobID string, _ *processor.ProcessResult) {
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.events = append(f.events, "completed:"+jobID)
}

func (f *fakeTracker) MarkFailed(ctx context.Context, jobID string, err error) {
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.events = append(f.events, "failed:"+jobID)
	if f.errs == nil {
		f.errs = map[string]error{}
	}
	f.errs[jobID] = err
}

func newTestRedisConsumer(p processor.JobProcessor, timeoutMs int64) (*RedisConsumer, *fakeTracker) {
	tracker := &fakeTracker{}
	logger := logging.NewLogger("test")
	return &RedisConsumer{
		jobs:    newJobRunner(p, timeoutMs, logger),
		tracker: tracker,
		config:  &RedisConsumerConfig{QueueName: "formextract:jobs"},
		logger:  logger,
	}, tracker
}

func TestDecodeJobMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "json", in: `{"jobId":"abc"}`, want: "abc"},
		{name: "bare id", in: " abc \n", want: "abc"},
		{name: "empty", in: "  ", wantErr: true},
		{name: "missing id", in: `{"other":1}`, wantErr: true},
		{name: "broken json", in: `{"jobId":`, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := DecodeJobMessage([]byte(tc.in))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, msg.JobID)
		})
	}
}

func TestRedisHandlePayloadSuccess(t *testing.T) {
	p := &fakeProcessor{}
	c, tracker := newTestRedisConsumer(p, 0)

	require.NoError(t, c.handlePayload(context.Background(), []byte(`{"jobId":"job-1"}`)))

	assert.Equal(t, []string{"job-1"}, p.calls)
	assert.Equal(t, []string{"processing:job-1", "completed:job-1"}, tracker.events)
}

func TestRedisHandlePayloadFailureIsNotRetried(t *testing.T) {
	p := &fakeProcessor{err: apperrors.NewInputNotFoundError("job-2", "/jobs/job-2", nil)}
	c, tracker := newTestRedisConsumer(p, 0)

	require.NoError(t, c.handlePayload(context.Background(), []byte("job-2")))

	assert.Len(t, p.calls, 1)
	assert.Equal(t, []string{"processing:job-2", "failed:job-2"}, tracker.events)
	assert.ErrorIs(t, tracker.errs["job-2"], apperrors.ErrInputNotFound)
}

func TestRedisHandlePayloadTimeout(t *testing.T) {
	p := &fakeProcessor{delay: 200 * time.Millisecond}
	c, tracker := newTestRedisConsumer(p, 20)

	require.NoError(t, c.handlePayload(context.Background(), []byte("job-3")))

	assert.Equal(t, []string{"processing:job-3", "failed:job-3"}, tracker.events)
	assert.Equal(t, apperrors.ErrorProcessingTimeout, apperrors.CodeOf(tracker.errs["job-3"]))
}

func TestRedisHandlePayloadFinishesJobDuringShutdown(t *testing.T) {
	p := &fakeProcessor{delay: 300 * time.Millisecond}
	c, tracker := newTestRedisConsumer(p, 0)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	require.NoError(t, c.handlePayload(ctx, []byte("job-6")))

	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
	assert.Equal(t, []string{"processing:job-6", "completed:job-6"}, tracker.events)
	for _, err := range tracker.ctxErrs {
		assert.NoError(t, err, "status must be recorded with a live context")
	}
}

func TestRedisConsumerDrain(t *testing.T) {
	c, _ := newTestRedisConsumer(&fakeProcessor{}, 0)

	c.wg.Add(1)
	release := make(chan struct{})
	go func() {
		<-release
		c.wg.Done()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.drain(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	assert.NoError(t, c.drain(context.Background()))
}

func TestJobRunnerLogsLateCompletion(t *testing.T) {
	base, hook := logtest.NewNullLogger()
	p := &fakeProcessor{delay: 100 * time.Millisecond}
	runner := newJobRunner(p, 20, logging.New("test", base))

	_, err := runner.run(context.Background(), "job-7")
	assert.Equal(t, apperrors.ErrorProcessingTimeout, apperrors.CodeOf(err))

	assert.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel && e.Data["job"] == "job-7" &&
				e.Message == "timed-out job finished after failure was recorded" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestRedisHandlePayloadBadMessage(t *testing.T) {
	p := &fakeProcessor{}
	c, tracker := newTestRedisConsumer(p, 0)

	assert.Error(t, c.handlePayload(context.Background(), []byte(`{}`)))
	assert.Empty(t, p.calls)
	assert.Empty(t, tracker.events)
}

func TestAsynqHandler(t *testing.T) {
	p := &fakeProcessor{}
	logger := logging.NewLogger("test")
	c := &AsynqConsumer{
		jobs:   newJobRunner(p, 0, logger),
		config: &ConsumerConfig{QueueName: "formextract:jobs"},
		logger: logger,
	}

	task, err := NewExtractFormTask("job-4")
	require.NoError(t, err)
	assert.Equal(t, TaskExtractForm, task.Type())
	require.NoError(t, c.handleExtractForm(context.Background(), task))
	assert.Equal(t, []string{"job-4"}, p.calls)

	p.err = errors.New("boom")
	err = c.handleExtractForm(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = c.handleExtractForm(context.Background(), asynq.NewTask(TaskExtractForm, []byte("{}")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestJobMessageEncode(t *testing.T) {
	data, err := JobMessage{JobID: "abc"}.Encode()
	require.NoError(t, err)

	var m map[string]string
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, map[string]string{"jobId": "abc"}, m)
}

func TestErrorDetails(t *testing.T) {
	pe := apperrors.NewProcessingTimeoutError("job-5", time.Second, context.DeadlineExceeded)
	details := errorDetails(pe)
	assert.Equal(t, "PROCESSING_TIMEOUT", details["error_code"])

	assert.Equal(t, map[string]interface{}{"error": "plain"}, errorDetails(errors.New("plain")))
}

func TestNewConsumersValidateConfig(t *testing.T) {
	_, err := NewRedisConsumer(&RedisConsumerConfig{})
	assert.Error(t, err)
	_, err = NewRedisConsumer(&RedisConsumerConfig{RedisURL: "redis://localhost:6379/0"})
	assert.Error(t, err)
	_, err = NewAsynqConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379/0"})
	assert.Error(t, err)
}

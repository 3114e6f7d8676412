package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"JOBS_DIR", "ASSET_URL_PREFIX", "REDIS_URL", "QUEUE_BACKEND", "QUEUE_NAME",
		"WORKER_CONCURRENCY", "PROCESSING_TIMEOUT", "OCR_LANGUAGES", "TESSDATA_PREFIX",
		"PDFTOPPM_PATH", "RENDER_SCALE", "TEMPLATE_ID", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "storage/jobs", cfg.JobsDir)
	assert.Equal(t, "/v1/jobs", cfg.AssetURLPrefix)
	assert.Equal(t, BackendRedis, cfg.QueueBackend)
	assert.Equal(t, 1, cfg.WorkerConcurrency)
	assert.Equal(t, int64(300000), cfg.ProcessingTimeout)
	assert.Equal(t, "eng+jpn", cfg.OCRLanguages)
	assert.Equal(t, 2.0, cfg.RenderScale)
	assert.Equal(t, "inner_curvature_v1", cfg.TemplateID)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "asynq")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("RENDER_SCALE", "3")
	t.Setenv("PROCESSING_TIMEOUT", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendAsynq, cfg.QueueBackend)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 3.0, cfg.RenderScale)
	assert.Equal(t, int64(300000), cfg.ProcessingTimeout, "unparsable values fall back to default")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			JobsDir:           "jobs",
			QueueBackend:      BackendRedis,
			QueueName:         "q",
			WorkerConcurrency: 1,
			ProcessingTimeout: 300000,
			RenderScale:       2,
			TemplateID:        "inner_curvature_v1",
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errSub string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown template", mutate: func(c *Config) { c.TemplateID = "outer_v9" }, errSub: "TEMPLATE_ID"},
		{name: "unknown backend", mutate: func(c *Config) { c.QueueBackend = "kafka" }, errSub: "QUEUE_BACKEND"},
		{name: "concurrency too high", mutate: func(c *Config) { c.WorkerConcurrency = 64 }, errSub: "WORKER_CONCURRENCY"},
		{name: "zero scale", mutate: func(c *Config) { c.RenderScale = 0 }, errSub: "RENDER_SCALE"},
		{name: "short timeout", mutate: func(c *Config) { c.ProcessingTimeout = 10 }, errSub: "PROCESSING_TIMEOUT"},
		{name: "missing jobs dir", mutate: func(c *Config) { c.JobsDir = "" }, errSub: "JOBS_DIR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.errSub == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errSub)
		})
	}
}

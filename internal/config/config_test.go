package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, "https://api.opendota.com/api", cfg.OpenDota.BaseURL)
	assert.Equal(t, 5, cfg.OpenDota.MaxRetries)
	assert.InDelta(t, 1.5, cfg.OpenDota.BackoffFactor, 0.0001)
	assert.Equal(t, 3*time.Second, cfg.OpenDota.RateLimitSleep)
	assert.Equal(t, 30*time.Second, cfg.OpenDota.Timeout)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 300, cfg.Ingest.BucketSeconds)
	assert.Equal(t, 1, cfg.Ingest.Workers)
	assert.False(t, cfg.Archive.S3Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENDOTA_MAX_RETRIES", "2")
	t.Setenv("OPENDOTA_RATE_LIMIT_SLEEP", "250ms")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/dota")
	t.Setenv("ARCHIVE_S3_BUCKET", "raw-archive")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.OpenDota.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.OpenDota.RateLimitSleep)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.True(t, cfg.Archive.S3Enabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "mysql"}},
		{name: "postgres without url", env: map[string]string{"STORE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{name: "zero retries", env: map[string]string{"OPENDOTA_MAX_RETRIES": "0"}},
		{name: "zero bucket", env: map[string]string{"INTERVAL_BUCKET_SECONDS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(zerolog.Nop())
			assert.Error(t, err)
		})
	}
}

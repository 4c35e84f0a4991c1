package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	OpenDota OpenDotaConfig
	Store    StoreConfig
	Archive  ArchiveConfig
	Ingest   IngestConfig

	ServerPort string `env:"SERVER_PORT" env-default:"8080"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat  string `env:"LOG_FORMAT" env-default:"json"`
}

type OpenDotaConfig struct {
	BaseURL           string        `env:"OPENDOTA_BASE_URL" env-default:"https://api.opendota.com/api"`
	APIKey            string        `env:"OPENDOTA_API_KEY"`
	MaxRetries        int           `env:"OPENDOTA_MAX_RETRIES" env-default:"5"`
	BackoffFactor     float64       `env:"OPENDOTA_BACKOFF_FACTOR" env-default:"1.5"`
	RateLimitSleep    time.Duration `env:"OPENDOTA_RATE_LIMIT_SLEEP" env-default:"3s"`
	Timeout           time.Duration `env:"OPENDOTA_TIMEOUT" env-default:"30s"`
	RequestsPerMinute int           `env:"OPENDOTA_REQUESTS_PER_MINUTE" env-default:"60"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type StoreConfig struct {
	// Driver is either "sqlite" or "postgres".
	Driver      string `env:"STORE_DRIVER" env-default:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH" env-default:"dota.db"`
	DatabaseURL string `env:"DATABASE_URL"`
	PoolSize    int32  `env:"DATABASE_POOL_SIZE" env-default:"10"`
}

type ArchiveConfig struct {
	S3Bucket   string `env:"ARCHIVE_S3_BUCKET"`
	S3Prefix   string `env:"ARCHIVE_S3_PREFIX" env-default:"raw"`
	S3Region   string `env:"ARCHIVE_S3_REGION" env-default:"us-east-1"`
	S3Endpoint string `env:"ARCHIVE_S3_ENDPOINT"`
	S3Key      string `env:"ARCHIVE_S3_KEY"`
	S3Secret   string `env:"ARCHIVE_S3_SECRET"`
}

type IngestConfig struct {
	OutputDir          string `env:"OUTPUT_DIR" env-default:"data"`
	BucketSeconds      int    `env:"INTERVAL_BUCKET_SECONDS" env-default:"300"`
	PlayerHistoryLimit int    `env:"PLAYER_HISTORY_LIMIT" env-default:"500"`
	Workers            int    `env:"INGEST_WORKERS" env-default:"1"`
}

// S3Enabled reports whether raw documents are mirrored to object storage.
func (a ArchiveConfig) S3Enabled() bool {
	return a.S3Bucket != ""
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Debug().
		Str("base_url", cfg.OpenDota.BaseURL).
		Bool("api_key_set", cfg.OpenDota.APIKey != "").
		Str("store_driver", cfg.Store.Driver).
		Str("output_dir", cfg.Ingest.OutputDir).
		Bool("s3_mirror", cfg.Archive.S3Enabled()).
		Str("log_level", cfg.LogLevel).
		Msg("configuration loaded")

	return &cfg, nil
}

func (c *Config) validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}

	if c.OpenDota.MaxRetries < 1 {
		return fmt.Errorf("OPENDOTA_MAX_RETRIES must be at least 1")
	}
	if c.Ingest.BucketSeconds <= 0 {
		return fmt.Errorf("INTERVAL_BUCKET_SECONDS must be positive")
	}
	if c.Ingest.Workers < 1 {
		c.Ingest.Workers = 1
	}
	return nil
}

// loadBootstrap reads the configuration before the application logger,
// which depends on it, exists.
func loadBootstrap() (*Config, error) {
	return Load(zerolog.New(os.Stderr).With().Timestamp().Logger())
}

var Module = fx.Provide(loadBootstrap)

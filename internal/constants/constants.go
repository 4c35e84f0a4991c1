package constants

import "time"

const (
	DefaultBaseURL        = "https://api.opendota.com/api"
	DefaultMaxRetries     = 5
	DefaultBackoffFactor  = 1.5
	DefaultRateLimitSleep = 3 * time.Second
	ExternalAPITimeout    = 30 * time.Second
)

const (
	// IntervalBucketWidth is the width of an interval KDA bucket, in seconds.
	IntervalBucketWidth = 300
	PlayerHistoryLimit  = 500
)

const (
	UpsertChunkSize   = 500
	StoreMaxRetries   = 3
	StoreRetryDelay   = 250 * time.Millisecond
	DatabaseTimeout   = 30 * time.Second
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
)

const (
	RawArchiveDir = "raw_xml"
	ProcessedDir  = "processed"
	MetadataFile  = "metadata.json"
)

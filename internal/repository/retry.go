package repository

import (
	"context"
	"time"

	"dota-pipeline/internal/constants"

	"github.com/rs/zerolog"
)

// withRetry runs fn until it succeeds, fails with a non transient error, or
// the attempts are used up.
func withRetry(ctx context.Context, logger zerolog.Logger, op string, transient func(error) bool, fn func() error) error {
	var err error
	for attempt := 1; attempt <= constants.StoreMaxRetries; attempt++ {
		if err = fn(); err == nil || !transient(err) || attempt == constants.StoreMaxRetries {
			return err
		}
		delay := constants.StoreRetryDelay * time.Duration(attempt)
		logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("delay", delay).Msg("transient database error, retrying")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return err
}

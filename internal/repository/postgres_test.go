package repository

import (
	"context"
	"testing"

	"dota-pipeline/internal/config"
	"dota-pipeline/internal/testutils"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore(t *testing.T) {
	url := testutils.StartPostgres(t)

	s, err := Open(context.Background(), config.StoreConfig{
		Driver:      config.DriverPostgres,
		DatabaseURL: url,
		PoolSize:    4,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	exerciseStore(t, s)
}

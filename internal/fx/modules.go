package fx

import (
	"context"

	"dota-pipeline/internal/api"
	"dota-pipeline/internal/archive"
	"dota-pipeline/internal/config"
	"dota-pipeline/internal/constants"
	"dota-pipeline/internal/logger"
	"dota-pipeline/internal/repository"
	"dota-pipeline/internal/server"
	"dota-pipeline/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// ProvideStore opens the configured store and closes it when the app stops.
func ProvideStore(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (repository.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	store, err := repository.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := store.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing store")
			}
			return nil
		},
	})
	return store, nil
}

// ProvideMirror returns the S3 mirror, or nil when no bucket is configured.
func ProvideMirror(cfg *config.Config) (archive.Mirror, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ExternalAPITimeout)
	defer cancel()
	return archive.NewMirror(ctx, cfg.Archive)
}

var Module = fx.Options(
	config.Module,
	logger.Module,
	// store
	fx.Provide(ProvideStore),
	// remote
	fx.Provide(fx.Annotate(api.NewOpenDotaClient, fx.As(new(service.RemoteClient)))),
	fx.Provide(ProvideMirror),
	// svc
	fx.Provide(service.NewIngestService),
	fx.Provide(service.NewLoader),
	// server
	fx.Provide(server.NewStatusServer),
)

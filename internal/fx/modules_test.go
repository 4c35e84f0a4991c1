package fx

import (
	"testing"

	"dota-pipeline/internal/config"
	"dota-pipeline/internal/server"
	"dota-pipeline/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func TestModuleGraph(t *testing.T) {
	err := fx.ValidateApp(
		Module,
		fx.Invoke(func(*service.IngestService, *service.Loader, *server.StatusServer) {}),
	)
	assert.NoError(t, err)
}

func TestProvideMirror_Disabled(t *testing.T) {
	m, err := ProvideMirror(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, m)

}

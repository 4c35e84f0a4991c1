package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"dota-pipeline/internal/config"
	"dota-pipeline/internal/constants"
	"dota-pipeline/internal/domain"
	"dota-pipeline/internal/middleware"
	"dota-pipeline/internal/repository"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/unrolled/render"
)

// StatusServer exposes what the pipeline has loaded. It never writes.
type StatusServer struct {
	store     repository.Store
	outputDir string
	render    *render.Render
	logger    zerolog.Logger
}

func NewStatusServer(store repository.Store, cfg *config.Config, logger zerolog.Logger) *StatusServer {
	return &StatusServer{
		store:     store,
		outputDir: cfg.Ingest.OutputDir,
		render:    render.New(render.Options{IndentJSON: true}),
		logger:    logger.With().Str("component", "status").Logger(),
	}
}

func (s *StatusServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(constants.RequestTimeout))

	r.Get("/healthz", s.health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tables", s.tables)
		r.Get("/runs/latest", s.latestRun)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})
	return c.Handler(r)
}

func (s *StatusServer) health(w http.ResponseWriter, _ *http.Request) {
	s.render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *StatusServer) tables(w http.ResponseWriter, r *http.Request) {
	counts, err := repository.CountAll(r.Context(), s.store)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to count tables")
		s.render.JSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to count tables"})
		return
	}
	s.render.JSON(w, http.StatusOK, map[string]any{"tables": counts})
}

func (s *StatusServer) latestRun(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(filepath.Join(s.outputDir, constants.MetadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		s.render.JSON(w, http.StatusNotFound, map[string]string{"error": "no run recorded"})
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to read run metadata")
		s.render.JSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read run metadata"})
		return
	}

	var meta domain.RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("run metadata is corrupt")
		s.render.JSON(w, http.StatusInternalServerError, map[string]string{"error": "run metadata is corrupt"})
		return
	}
	s.render.JSON(w, http.StatusOK, meta)
}

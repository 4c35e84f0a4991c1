package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dota-pipeline/internal/config"
	"dota-pipeline/internal/constants"
	fxmodules "dota-pipeline/internal/fx"
	"dota-pipeline/internal/server"
	"dota-pipeline/internal/service"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// exitCodeError carries the exit status of a command that ran and failed.
// Any other error out of Execute is a usage error.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }

func (e *exitCodeError) Unwrap() error { return e.err }

func failed(err error) error {
	return &exitCodeError{code: exitError, err: err}
}

var errReportNotOK = errors.New("load report is not ok")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if args == nil {
		args = []string{}
	}
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	var ce *exitCodeError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitUsage
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "OpenDota league ingestion and relational load",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Usage()
			return errors.New("a command is required")
		},
	}
	root.AddCommand(newIngestCmd(false), newIngestCmd(true), newLoadCmd(), newServeCmd())
	return root
}

type ingestFlags struct {
	league     int64
	out        string
	maxMatches int
	history    bool
	workers    int
}

func (f ingestFlags) request(cfg *config.Config) service.RunRequest {
	req := service.RunRequest{
		LeagueID:           f.league,
		OutputDir:          f.out,
		MaxMatches:         f.maxMatches,
		FetchPlayerHistory: f.history,
		HistoryLimit:       cfg.Ingest.PlayerHistoryLimit,
		Workers:            f.workers,
	}
	if req.OutputDir == "" {
		req.OutputDir = cfg.Ingest.OutputDir
	}
	if req.Workers == 0 {
		req.Workers = cfg.Ingest.Workers
	}
	return req
}

func newIngestCmd(andLoad bool) *cobra.Command {
	var f ingestFlags
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "fetch, archive and normalize the matches of a league",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.league <= 0 {
				return errors.New("--league must be positive")
			}
			if f.maxMatches < 0 || f.workers < 0 {
				return errors.New("--max-matches and --workers must not be negative")
			}
			return runIngest(cmd.Context(), f, andLoad, cmd.OutOrStdout())
		},
	}
	if andLoad {
		cmd.Use = "run"
		cmd.Short = "ingest a league and load the result"
	}

	flags := cmd.Flags()
	flags.Int64Var(&f.league, "league", 0, "league id")
	flags.StringVar(&f.out, "out", "", "output directory (default OUTPUT_DIR)")
	flags.IntVar(&f.maxMatches, "max-matches", 0, "process at most n matches, 0 for all")
	flags.BoolVar(&f.history, "history", false, "fetch each player's recent professional matches")
	flags.IntVar(&f.workers, "workers", 0, "concurrent match fetches (default INGEST_WORKERS)")
	cmd.MarkFlagRequired("league")
	return cmd
}

func newLoadCmd() *cobra.Command {
	var payloadPath string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "upsert a payload file into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), payloadPath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&payloadPath, "payload", "", "payload file written by ingest")
	cmd.MarkFlagRequired("payload")
	return cmd
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the read-only status server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :SERVER_PORT)")
	return cmd
}

func runIngest(ctx context.Context, flags ingestFlags, andLoad bool, stdout io.Writer) error {
	var (
		cfg    *config.Config
		logger zerolog.Logger
		ingest *service.IngestService
		loader *service.Loader
	)
	targets := []any{&cfg, &logger, &ingest}
	if andLoad {
		targets = append(targets, &loader)
	}
	app, err := startApp(targets...)
	if err != nil {
		return failed(fmt.Errorf("startup failed: %w", err))
	}
	defer stopApp(app, logger)

	res, err := ingest.Ingest(ctx, flags.request(cfg))
	if err != nil {
		logger.Error().Err(err).Int64("league_id", flags.league).Msg("ingest failed")
		return failed(err)
	}
	if !andLoad {
		return printJSON(stdout, res.Metadata, true)
	}

	report, err := loader.Load(ctx, res.Payload)
	if err != nil {
		logger.Error().Err(err).Str("payload", res.Metadata.PayloadPath).Msg("load failed")
		return failed(err)
	}
	out := struct {
		Run  any `json:"run"`
		Load any `json:"load"`
	}{res.Metadata, report}
	return printJSON(stdout, out, report.OK)
}

func runLoad(ctx context.Context, payloadPath string, stdout io.Writer) error {
	payload, err := service.LoadPayloadFile(payloadPath)
	if err != nil {
		return failed(err)
	}

	var (
		logger zerolog.Logger
		loader *service.Loader
	)
	app, err := startApp(&logger, &loader)
	if err != nil {
		return failed(fmt.Errorf("startup failed: %w", err))
	}
	defer stopApp(app, logger)

	report, err := loader.Load(ctx, payload)
	if err != nil {
		logger.Error().Err(err).Str("payload", payloadPath).Msg("load failed")
		return failed(err)
	}
	return printJSON(stdout, report, report.OK)
}

func runServe(addr string) error {
	app := fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.Invoke(func(lc fx.Lifecycle, status *server.StatusServer, cfg *config.Config, logger zerolog.Logger) {
			listen := addr
			if listen == "" {
				listen = fmt.Sprintf(":%s", cfg.ServerPort)
			}
			runServer(lc, status, listen, logger)
		}),
	)
	if err := app.Err(); err != nil {
		return failed(fmt.Errorf("startup failed: %w", err))
	}
	app.Run()
	return nil
}

func runServer(lc fx.Lifecycle, status *server.StatusServer, addr string, logger zerolog.Logger) {
	srv := &http.Server{
		Addr:    addr,
		Handler: status.Handler(),
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}

func startApp(targets ...any) (*fx.App, error) {
	app := fx.New(fxmodules.Module, fx.NopLogger, fx.Populate(targets...))
	if err := app.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), app.StartTimeout())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

func stopApp(app *fx.App, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("shutdown failed")
	}
}

// printJSON writes v to stdout. A load report that is not ok still prints,
// then fails the command: failed chunks and audit mismatches exit non-zero.
func printJSON(w io.Writer, v any, ok bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return failed(err)
	}
	if !ok {
		return failed(errReportNotOK)
	}
	return nil
}

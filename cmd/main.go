package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/tiebreak/internal/adapters/http/api"
	"github.com/okian/tiebreak/internal/adapters/importer"
	app "github.com/okian/tiebreak/internal/app"
	"github.com/okian/tiebreak/internal/config"
	"github.com/okian/tiebreak/internal/domain/tiebreak"
	"github.com/okian/tiebreak/pkg/logger"
	"github.com/okian/tiebreak/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.GetRegistry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registry := tiebreak.NewRegistry()
	evaluator, err := buildEvaluator(registry, cfg)
	if err != nil {
		return err
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithRegistry(registry),
		app.WithEvaluator(evaluator),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		svc.Stop(stopCtx)
	}()

	if err := loadTournaments(ctx, svc, cfg.TournamentsDir); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, svc, cfg),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// buildEvaluator compiles the configured default tie-break order. Tournament
// files may carry their own order, compiled against the same registry.
func buildEvaluator(registry *tiebreak.Registry, cfg *config.Config) (*tiebreak.Evaluator, error) {
	specs := make([]tiebreak.Spec, 0, len(cfg.TieBreaks))
	for _, tb := range cfg.TieBreaks {
		specs = append(specs, tiebreak.Spec{
			Name:          tb.Name,
			Params:        tiebreak.Params{Cut: tb.Cut},
			LowerIsBetter: tb.LowerIsBetter,
		})
	}
	e, err := registry.Compile(specs)
	if err != nil {
		return nil, fmt.Errorf("invalid tie_breaks: %w", err)
	}
	return e, nil
}

// loadTournaments registers every tournament file found in dir. An empty dir
// starts the service with no tournaments.
func loadTournaments(ctx context.Context, svc *app.Service, dir string) error {
	if dir == "" {
		return nil
	}
	tournaments, err := importer.LoadDir(ctx, dir, importer.WithLogger(logger.Named("importer")))
	if err != nil {
		return fmt.Errorf("failed to load tournaments: %w", err)
	}
	for _, t := range tournaments {
		if err := svc.AddTournament(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// newHandler builds the HTTP mux with every API route.
func newHandler(ctx context.Context, svc *app.Service, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()
	api.NewServer(svc, svc, cfg.MaxStandingsLimit).Register(ctx, mux)
	return mux
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/feudsurvey/internal/config"
	"github.com/thebtf/feudsurvey/internal/watcher"
	"github.com/thebtf/feudsurvey/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var (
		host     string
		port     int
		synonyms string
		dbPath   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the survey service",
		Long: `Run the survey HTTP service: the audience answer page, the operator API,
and the /api/events stream. When a synonyms file is configured it is loaded
at startup and reloaded whenever it changes on disk.`,
		Example: `  feudsurvey serve
  feudsurvey serve --port 8080 --synonyms ./synonyms.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.EnsureAll(); err != nil {
				return fmt.Errorf("ensure data directory: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				log.Warn().Err(err).Msg("Failed to load config, using defaults")
				cfg = config.Default()
			}
			if cmd.Flags().Changed("host") {
				cfg.WorkerHost = host
			}
			if cmd.Flags().Changed("port") {
				cfg.WorkerPort = port
			}
			if synonyms != "" {
				cfg.SynonymsFile = synonyms
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", config.DefaultWorkerHost, "Bind address")
	cmd.Flags().IntVar(&port, "port", config.DefaultWorkerPort, "HTTP port")
	cmd.Flags().StringVar(&synonyms, "synonyms", "", "Synonyms file (YAML, JSON or \"from => to\" text) to load and watch")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	svc, err := worker.NewService(Version, cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(); err != nil {
		_ = svc.Shutdown(context.Background())
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.SynonymsFile != "" {
		w, err := watcher.New(cfg.SynonymsFile, func() {
			if err := svc.ReloadSynonyms(gctx); err != nil {
				log.Error().Err(err).Str("path", cfg.SynonymsFile).Msg("Failed to reload synonyms")
			}
		})
		if err != nil {
			_ = svc.Shutdown(context.Background())
			return fmt.Errorf("create synonyms watcher: %w", err)
		}
		if err := w.Start(); err != nil {
			_ = svc.Shutdown(context.Background())
			return fmt.Errorf("start synonyms watcher: %w", err)
		}
		defer func() { _ = w.Stop() }()
	}

	addr := net.JoinHostPort(cfg.WorkerHost, strconv.Itoa(cfg.WorkerPort))
	server := &http.Server{
		Addr:              addr,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// event streams end when the service stops
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		log.Info().Str("addr", addr).Str("version", Version).Msg("Survey service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down survey service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := svc.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("service shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

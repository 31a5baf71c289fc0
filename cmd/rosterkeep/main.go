package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rosterkeep/rosterkeep/internal/api"
	"github.com/rosterkeep/rosterkeep/internal/config"
	"github.com/rosterkeep/rosterkeep/internal/ingest"
	"github.com/rosterkeep/rosterkeep/internal/ledger"
	"github.com/rosterkeep/rosterkeep/internal/logger"
	"github.com/rosterkeep/rosterkeep/internal/reindex"
	"github.com/rosterkeep/rosterkeep/internal/search"
	"github.com/rosterkeep/rosterkeep/internal/store"
	"github.com/rosterkeep/rosterkeep/internal/store/postgres"
	"github.com/rosterkeep/rosterkeep/internal/store/sqlite"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rosterkeep",
		Short: "Guild membership ledger and member search service",
	}
	rootCmd.AddCommand(serveCmd(), reindexCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads .env (if present), parses configuration, and opens the store.
func setup() (*config.Config, store.Store, zerolog.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Logger{}, err
	}
	log := logger.New("rosterkeep", cfg.LogLevel)

	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, zerolog.Logger{}, fmt.Errorf("open store: %w", err)
	}
	return cfg, st, log, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return sqlite.New(cfg.SQLitePath)
	case "postgres":
		return postgres.New(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported DB driver %q", cfg.DBDriver)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			log.Info().
				Str("db_driver", cfg.DBDriver).
				Int("http_port", cfg.HTTPPort).
				Msg("rosterkeep starting")

			ledgerSvc := ledger.New(st, log)
			engine := search.NewEngine(st)
			processor := ingest.NewProcessor(ledgerSvc, engine, log)
			dispatcher := ingest.NewDispatcher(cfg.IngestWorkers, cfg.IngestBuffer, processor, log)
			worker := reindex.NewWorker(st, reindex.Config{
				Interval:  cfg.ReindexInterval,
				BatchSize: cfg.ReindexBatch,
			}, log)

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			dispatcher.Start(runCtx)
			go func() {
				if err := worker.Run(runCtx); err != nil && err != context.Canceled {
					log.Error().Stack().Err(err).Msg("reindex worker exited")
				}
			}()

			router := api.NewRouter(api.Deps{
				Store:      st,
				Ledger:     ledgerSvc,
				Engine:     engine,
				Dispatcher: dispatcher,
				Worker:     worker,
			})
			server := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server listening")
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("HTTP server failed")
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down")
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("HTTP shutdown failed")
			}
			// Drain queued events before canceling the worker context, so
			// every accepted write still reaches the ledger.
			dispatcher.Close()
			cancel()
			return nil
		},
	}
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Run a one-shot search index repair scan and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			worker := reindex.NewWorker(st, reindex.Config{BatchSize: cfg.ReindexBatch}, log)
			repaired, err := worker.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("repaired", repaired).Msg("reindex scan complete")
			return nil
		},
	}
}

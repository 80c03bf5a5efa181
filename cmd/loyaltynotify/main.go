package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/osanchezp/loyaltynotify/internal/api"
	"github.com/osanchezp/loyaltynotify/internal/config"
	"github.com/osanchezp/loyaltynotify/internal/delivery"
	"github.com/osanchezp/loyaltynotify/internal/dispatch"
	"github.com/osanchezp/loyaltynotify/internal/models"
	"github.com/osanchezp/loyaltynotify/internal/queue"
	"github.com/osanchezp/loyaltynotify/internal/segment"
	"github.com/osanchezp/loyaltynotify/internal/storage"
	"github.com/osanchezp/loyaltynotify/internal/template"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "loyaltynotify",
		Short: "loyaltynotify — loyalty-program notification dispatch service",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(dispatchCmd(&configPath))
	rootCmd.AddCommand(pollCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dispatch service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("database migrations completed")

			dispatcher, worker := buildEngine(cfg, store, log)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			pool := queue.NewPool(worker, cfg.Queue.PollInterval, log)
			pool.Start(ctx)

			server := api.NewServer(cfg.Server, cfg.Auth, dispatcher, worker, store, log)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Str("storage", cfg.Storage.Driver).
				Dur("poll_interval", cfg.Queue.PollInterval).
				Msg("loyaltynotify is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}

			pool.Stop()

			log.Info().Msg("loyaltynotify stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cleanup, _, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Println("migrations completed successfully")
			return nil
		},
	}
}

func dispatchCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run one dispatch from the command line",
		RunE: func(cmd *cobra.Command, args []string) error {
			templateID, _ := cmd.Flags().GetString("template")
			channel, _ := cmd.Flags().GetString("channel")
			uid, _ := cmd.Flags().GetString("uid")
			segmentJSON, _ := cmd.Flags().GetString("segment")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			if templateID == "" {
				return fmt.Errorf("--template is required")
			}

			seg := models.Segment{Type: models.SegmentOne, UID: uid}
			if segmentJSON != "" {
				if err := json.Unmarshal([]byte(segmentJSON), &seg); err != nil {
					return fmt.Errorf("invalid --segment: %w", err)
				}
			}

			store, cleanup, cfg, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			log := setupLogger(cfg.Logging)
			dispatcher, _ := buildEngine(cfg, store, log)

			job, err := dispatcher.Dispatch(context.Background(), dispatch.Request{
				TemplateID:  templateID,
				Channel:     models.Channel(channel),
				Segment:     seg,
				Options:     models.DispatchOptions{DryRun: dryRun},
				RequestedBy: "cli",
			})
			if err != nil {
				return fmt.Errorf("dispatch failed: %w", err)
			}

			out, _ := json.MarshalIndent(job, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().String("template", "", "template id")
	cmd.Flags().String("channel", "push", "channel: push or email")
	cmd.Flags().String("uid", "", "single recipient id")
	cmd.Flags().String("segment", "", "segment descriptor as JSON (overrides --uid)")
	cmd.Flags().Bool("dry-run", false, "rehearse without sending")
	return cmd
}

func pollCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run one campaign-queue poll pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, cfg, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			log := setupLogger(cfg.Logging)
			_, worker := buildEngine(cfg, store, log)

			processed, err := worker.RunOnce(context.Background())
			if err != nil {
				return fmt.Errorf("poll failed: %w", err)
			}

			fmt.Printf("processed %d job(s)\n", processed)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("loyaltynotify v%s\n", version)
		},
	}
}

// buildEngine wires the dispatch engine and queue worker on top of a store.
func buildEngine(cfg *config.Config, store storage.Storage, log zerolog.Logger) (*dispatch.Dispatcher, *queue.Worker) {
	templates := template.NewResolver(store, log)
	segments := segment.NewResolver(store, log)
	push := delivery.NewGatewayClient(cfg.Push, log)
	email := delivery.NewSMTPClient(cfg.SMTP, log)
	hygiene := dispatch.NewHygiene(store, log)
	batcher := dispatch.NewBatcher(store, push, email, hygiene, log)
	dispatcher := dispatch.NewDispatcher(templates, segments, store, batcher, log)
	worker := queue.NewWorker(store, dispatcher, cfg.Queue.BatchLimit, log)
	return dispatcher, worker
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStorage(cfg config.StorageConfig, log zerolog.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite storage")
		return storage.NewSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func storeFromConfig(configPath string) (storage.Storage, func(), *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg.Logging)
	store, err := setupStorage(cfg.Storage, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, func() { store.Close() }, cfg, nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"bookyard/internal/config"
	"bookyard/internal/database"
	"bookyard/internal/logging"
	"bookyard/internal/mill"
	"bookyard/internal/model"
	"bookyard/internal/repository"
	"bookyard/internal/server"
	"bookyard/internal/shuttle"
	"bookyard/internal/warehouse"
	"bookyard/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bookyard: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookyard",
		Short: "bookyard archive lifecycle workers",
		Long: `bookyard manages archive files from intake through tiered storage to
retention-based deletion. Each subcommand runs one long-lived worker.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newMillCmd(),
		newShuttleCmd(),
		newIntakeCmd(),
	)
	return cmd
}

// setup loads configuration, builds the logger and opens the database.
func setup(ctx context.Context) (*config.Config, *slog.Logger, *pgxpool.Pool, *repository.Repository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel)

	pool, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return cfg, logger, pool, repository.New(pool), nil
}

func newMillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mill",
		Short: "Run the notification-to-book pipeline worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, pool, repo, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			server.New(cfg.HTTP.Address, pool, logger).Start(ctx)

			m := mill.New(repo, mill.Options{
				Staging: model.Destination{
					WarehouseID: cfg.Staging.Warehouse,
					Path:        cfg.Staging.Path,
				},
				RetentionMinAge: cfg.Retention.MinAge,
				DeletionDelay:   cfg.Retention.DeletionDelay,
			}, logger)
			w := mill.NewWorker(m, repo, cfg.Mill.Interval, cfg.Mill.PassTimeout, logger)
			w.Start(ctx)
			<-ctx.Done()
			w.Stop()
			return nil
		},
	}
}

func newShuttleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shuttle",
		Short: "Run the file reconciler and deletion sweeper worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, pool, repo, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			server.New(cfg.HTTP.Address, pool, logger).Start(ctx)

			resolver := warehouse.NewDirResolver(cfg.WarehouseDirs())
			s := shuttle.New(repo, resolver, logger)
			w := shuttle.NewWorker(s, repo, cfg.Shuttle.Interval, cfg.Shuttle.PassTimeout, logger)
			w.Start(ctx)
			<-ctx.Done()
			w.Stop()
			return nil
		},
	}
}

func newIntakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intake",
		Short: "Run the producer event consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, pool, repo, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			server.New(cfg.HTTP.Address, pool, logger).Start(ctx)

			srv := asynq.NewServer(asynq.RedisClientOpt{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			}, asynq.Config{Concurrency: 1})
			processor := worker.NewProcessor(repo, logger)

			go func() {
				<-ctx.Done()
				srv.Shutdown()
			}()
			if err := srv.Run(processor.Handler()); err != nil {
				return fmt.Errorf("intake worker: %w", err)
			}
			return nil
		},
	}
}

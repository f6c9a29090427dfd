package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/guriuo/hiigsitech/internal/config"
	httpserver "github.com/guriuo/hiigsitech/internal/http"
	"github.com/guriuo/hiigsitech/internal/logger"
	"github.com/guriuo/hiigsitech/internal/storage"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the course site API",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runServe(cmd.Context()) },
	}

	root := &cobra.Command{
		Use:           "coursesite",
		Short:         "Course site backend: lessons, progress, notes and comments",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	root.AddCommand(serve, &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the comment and contact tables",
		RunE:  func(cmd *cobra.Command, _ []string) error { return runMigrate() },
	})
	return root
}

func setup() (config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(ctx context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	srv, err := httpserver.NewServer(ctx, cfg, log)
	if err != nil {
		log.Error("failed to create server", "error", err)
		return err
	}
	defer srv.Close()

	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}
	return nil
}

func runMigrate() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := storage.OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN, log)
	if err != nil {
		return err
	}
	if err := storage.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database migrated", "driver", cfg.DatabaseDriver)
	return nil
}

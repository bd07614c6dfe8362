package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-dm/internal/app"
	"github.com/vovakirdan/wirechat-dm/internal/config"
	logpkg "github.com/vovakirdan/wirechat-dm/internal/log"
	"github.com/vovakirdan/wirechat-dm/internal/store"
)

// Command-line values; zero values leave the loaded config untouched.
var (
	configPath string
	overrides  config.Config
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wirechat-dm",
		Short:         "Real-time direct messaging server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "path to config.yaml")
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "log format (console, json)")
	flags.StringVar(&overrides.Database.Driver, "db-driver", "", "database driver (sqlite, postgres, mysql)")
	flags.StringVar(&overrides.Database.DSN, "db-dsn", "", "database file path or connection string")
	flags.StringVar(&overrides.Redis.URL, "redis-url", "", "redis URL for the presence mirror")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP and WebSocket server",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert demo users into an empty database",
			RunE:  runSeed,
		},
	)

	return root
}

func loadConfig() (config.Config, *zerolog.Logger, error) {
	_ = godotenv.Load()

	bootstrap := logpkg.New("info", "console")
	cfg, path, err := config.Load(bootstrap, configPath)
	if err != nil {
		return cfg, bootstrap, err
	}
	cfg.UpdateFrom(overrides)

	logger := logpkg.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting wirechat server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := app.OpenStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	n, err := store.Seed(ctx, st)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if n == 0 {
		logger.Info().Msg("users table not empty, nothing seeded")
		return nil
	}
	logger.Info().Int("users", n).Msg("database seeded")
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/relaychat/internal/app"
	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/log"
)

type flags struct {
	configPath string
	overrides  config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the relaychat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), f)
		},
	}

	root := &cobra.Command{
		Use:           "relaychat",
		Short:         "One-to-one real-time messaging relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(f)
			if err != nil {
				return err
			}
			if err := app.Migrate(cmd.Context(), &cfg, logger); err != nil {
				return err
			}
			logger.Info().Msg("schema applied")
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "path to config.yaml")
	pf.StringVar(&f.overrides.Addr, "addr", "", "HTTP listen address")
	pf.StringVar(&f.overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&f.overrides.LogFormat, "log-format", "", "log format (console, json)")
	pf.DurationVar(&f.overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	pf.DurationVar(&f.overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	pf.StringVar(&f.overrides.Store.Driver, "store-driver", "", "store driver (sqlite3, postgres)")
	pf.StringVar(&f.overrides.Store.DSN, "store-dsn", "", "store DSN")
	pf.StringVar(&f.overrides.Feed.Backend, "feed", "", "unread feed backend (memory, redis)")

	root.AddCommand(serve, migrate)
	return root
}

// loadConfig resolves configuration with flags taking precedence over file and env.
func loadConfig(f *flags) (config.Config, *zerolog.Logger, error) {
	bootLogger := log.New("info", config.LogFormatConsole)

	cfg, path, err := config.Load(bootLogger, f.configPath)
	if err != nil {
		return cfg, bootLogger, err
	}
	cfg.UpdateFrom(f.overrides)

	logger := log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config_path", path).Msg("configuration loaded")
	return cfg, logger, nil
}

func runServe(parent context.Context, f *flags) error {
	cfg, logger, err := loadConfig(f)
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return err
	}

	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackmichael/syndicator/internal/config"
	"github.com/blackmichael/syndicator/internal/domain"
	"github.com/blackmichael/syndicator/internal/micropub"
	"github.com/blackmichael/syndicator/internal/sqlite"
)

var (
	configPath string
	logLevel   string
)

// app holds the services wired up for a command run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	repo    *sqlite.Repository
	service *domain.SyndicationService
}

var current *app

var rootCmd = &cobra.Command{
	Use:   "syndicator",
	Short: "Syndicate posts to external services",
	Long: `Syndicator delivers posts to configured syndication targets (Bluesky,
Mastodon), retries only the targets that have not yet succeeded and writes
the resulting state back through a Micropub endpoint or the local store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current != nil && current.repo != nil {
			_ = current.repo.Close()
			current = nil
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SYNDICATOR_CONFIG"), "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: l,
	})), nil
}

func newApp() (*app, error) {
	logger, err := newLogger(logLevel)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	repo, err := sqlite.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	logger.Debug("opened post store", "path", cfg.DatabasePath)

	targets, err := buildTargets(cfg.Targets)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("build targets: %w", err)
	}

	var updater domain.PostUpdater = repo
	if cfg.Micropub.Endpoint != "" {
		updater = micropub.NewClient(cfg.Micropub.Endpoint, cfg.Micropub.Token)
	}

	pub := &domain.Publication{Me: cfg.Me, Targets: targets}
	service, err := domain.NewSyndicationService(pub, repo, updater, cfg.BatchDelay, logger)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("create syndication service: %w", err)
	}

	return &app{cfg: cfg, logger: logger, repo: repo, service: service}, nil
}

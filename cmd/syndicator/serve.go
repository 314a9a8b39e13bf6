package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackmichael/syndicator/internal/events"
	"github.com/blackmichael/syndicator/internal/httpserver"
	"github.com/blackmichael/syndicator/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the syndication HTTP server",
	Long: `Serve POST /syndicate, and optionally run batches on the configured
schedule and syndicate posts announced on the configured event stream.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), current)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(parent context.Context, a *app) error {
	logger := a.logger

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.cfg.Schedule != "" {
		sched, err := scheduler.New(a.cfg.Schedule, a.service, logger)
		if err != nil {
			return err
		}
		sched.Start(ctx)
		defer sched.Stop()
	}

	if a.cfg.EventsURL != "" {
		subscriber := events.NewSubscriber(a.cfg.EventsURL, a.service, a.repo, logger)
		go func() {
			if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("event subscriber exited with error", "error", err)
			}
		}()
	}

	server := httpserver.NewServer(a.cfg.Port, a.service, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	logger.Info("server started", "port", a.cfg.Port, "targets", len(a.service.Targets()))

	select {
	case <-ctx.Done():
		logger.Info("received signal, shutting down")
	case err := <-errCh:
		logger.Error("http server exited with error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(parent), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}

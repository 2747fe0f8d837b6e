package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/gofiber/fiber/v3"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-cache/internal/config"
	"github.com/naka-gawa/repo-cache/internal/gateway"
	"github.com/naka-gawa/repo-cache/internal/server"
	"github.com/naka-gawa/repo-cache/internal/store"
	"github.com/naka-gawa/repo-cache/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cache over HTTP and refresh it on a schedule",
	Long: `Starts the HTTP API and the refresh scheduler. A refresh cycle runs right away and
then on REFRESH_SCHEDULE (hourly by default). The API keeps serving the last complete
snapshot while a cycle runs or when one fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}

		refresher, st, err := newRefresher(cfg, logger)
		if err != nil {
			return err
		}
		scheduler, err := usecase.NewScheduler(refresher, cfg.RefreshSchedule, logger)
		if err != nil {
			return err
		}

		app := server.New(st, server.Options{
			Prefix:     cfg.APIPrefix,
			CORSOrigin: cfg.CORSOrigin,
			AccessLog:  true,
		}, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		scheduler.Start(ctx)
		defer scheduler.Stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", cfg.Addr(), "prefix", cfg.APIPrefix)
			errCh <- app.Listen(cfg.Addr(), fiber.ListenConfig{DisableStartupMessage: true})
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("server stopped: %w", err)
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil {
			logger.Debug("listener closed", "error", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newRefresher wires the upstream gateway and the on-disk store under CACHE_DIR.
func newRefresher(cfg *config.Config, logger *slog.Logger) (*usecase.Refresher, *store.FileStore, error) {
	githubGateway, err := gateway.NewGitHubGateway(gateway.Options{
		Token:      cfg.GitHubToken,
		UseGraphQL: cfg.GitHubGraphQL,
		Timeout:    cfg.UpstreamTimeout,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}

	st := store.New(osfs.New(cfg.CacheDir))
	if err := st.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to prepare cache directory %s: %w", cfg.CacheDir, err)
	}

	refresher := usecase.NewRefresher(githubGateway, st, cfg.GitHubUser, logger,
		usecase.WithConcurrency(cfg.RefreshConcurrency))
	return refresher, st, nil
}

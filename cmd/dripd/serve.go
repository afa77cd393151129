package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/drip/internal/config"
	"github.com/alfredjeanlab/drip/internal/events"
	"github.com/alfredjeanlab/drip/internal/hooks"
	"github.com/alfredjeanlab/drip/internal/metrics"
	"github.com/alfredjeanlab/drip/internal/server"
	"github.com/alfredjeanlab/drip/internal/store/postgres"
	dripsync "github.com/alfredjeanlab/drip/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the drip server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		slog.SetDefault(logger)

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (DRIP_NATS_URL not set)")
		}

		// Create the engine and its custody account.
		promReg := prometheus.NewRegistry()
		srv := server.NewServer(store, publisher, server.Options{
			Limits:  cfg.Limits,
			Escrow:  cfg.EscrowAccount,
			Metrics: metrics.NewRegistry(promReg),
		})
		if err := srv.EnsureEscrow(context.Background()); err != nil {
			publisher.Close()
			store.Close()
			return err
		}

		// Start HTTP server.
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: srv.NewHTTPHandler(cfg.AuthToken, promReg),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start sync scheduler if any destinations are configured.
		var scheduler *dripsync.Scheduler
		if cfg.SyncInterval > 0 {
			var dests []dripsync.Destination

			if cfg.SyncS3Bucket != "" {
				s3Dest, err := dripsync.NewS3Destination(
					context.Background(),
					cfg.SyncS3Bucket,
					cfg.SyncS3Key,
					cfg.SyncS3Region,
					cfg.SyncS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 sync destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
				}
			}

			if cfg.SyncGitRepo != "" {
				gitDest := dripsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch)
				dests = append(dests, gitDest)
				logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
			}

			if len(dests) > 0 {
				scheduler = dripsync.NewScheduler(store, dests, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
			}
		}

		// Start notification hooks subscriber if NATS is available.
		var hooksCancel context.CancelFunc
		if cfg.NATSURL != "" && len(cfg.Hooks) > 0 {
			hooksSub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create hooks subscriber", "err", err)
			} else {
				runner := hooks.NewRunner(cfg.Hooks, logger)
				var hooksCtx context.Context
				hooksCtx, hooksCancel = context.WithCancel(context.Background())
				go func() {
					if err := runner.StartSubscriber(hooksCtx, hooksSub); err != nil {
						logger.Error("hooks subscriber error", "err", err)
					}
					hooksSub.Close()
				}()
			}
		}

		// Log startup info.
		logger.Info("drip server started",
			"http_addr", cfg.HTTPAddr,
			"escrow", cfg.EscrowAccount,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if hooksCancel != nil {
			hooksCancel()
			logger.Info("hooks subscriber stopped")
		}

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

package main

import (
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AnshRaj112/trailhub-backend/internal/queue"
	"github.com/AnshRaj112/trailhub-backend/internal/realtime"
	"github.com/AnshRaj112/trailhub-backend/internal/services"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued notification deliveries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.RedisURI == "" {
			return errors.New("worker: REDIS_URI is required")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		// Pushes reach sockets on other instances only over a shared bus.
		deliverer := services.NewStoreNotifier(a.store, realtime.NewPublisher(a.bus))

		srv, err := queue.NewServer(cfg.RedisURI, cfg.WorkerConcurrency, cfg.QueueWeights)
		if err != nil {
			return err
		}
		srv.Register(services.TaskDeliverNotification, services.NotificationTaskHandler(deliverer))

		slog.Info("notification worker started", "concurrency", cfg.WorkerConcurrency, "queues", cfg.QueueWeights)
		return srv.Run(ctx)
	},
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnshRaj112/trailhub-backend/internal/config"
	"github.com/AnshRaj112/trailhub-backend/internal/handlers"
	"github.com/AnshRaj112/trailhub-backend/internal/middleware"
	"github.com/AnshRaj112/trailhub-backend/internal/realtime"
	"github.com/AnshRaj112/trailhub-backend/internal/routes"
	"github.com/AnshRaj112/trailhub-backend/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	publisher := realtime.NewPublisher(a.bus)

	var notifier services.Notifier
	if cfg.NotificationsMode == config.NotifyQueue {
		client, err := a.queueClient()
		if err != nil {
			return err
		}
		defer client.Close()
		notifier = services.NewQueueNotifier(client)
		slog.Info("notifications delivered by worker")
	}

	svc := a.services(publisher, notifier)

	hub := realtime.NewHub(a.bus, svc.Rooms)
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("start realtime hub: %w", err)
	}
	defer hub.Router().Close()

	opts := routes.Options{
		Verifier:          a.verifier(),
		AllowedOrigins:    cfg.AllowedOrigins,
		Production:        cfg.IsProduction(),
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
		MessagesPerMinute: cfg.MessagesPerMinute,
		RequestTimeout:    cfg.RequestTimeout(),
	}
	if a.rdb != nil {
		opts.AbuseGuard = middleware.NewAbuseGuard(a.rdb)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(handlers.New(svc, hub, cfg.AllowedOrigins), opts),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("trailhub backend listening", "port", cfg.Port, "env", cfg.Environment, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Shutdown does not wait for hijacked websocket connections; the
	// deferred router close sends them a going-away frame.
	return srv.Shutdown(shutdownCtx)
}

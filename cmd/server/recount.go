package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var recountCmd = &cobra.Command{
	Use:   "recount",
	Short: "Recompute memberCount, postCount, upcomingEventCount, participantsCount, likes and comments counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := bootstrap(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		svc := a.services(nil, nil)
		n, err := svc.Groups.ReconcileAll(ctx)
		if err != nil {
			return fmt.Errorf("recount: %w", err)
		}
		slog.Info("recount finished", "groups", n)
		return nil
	},
}

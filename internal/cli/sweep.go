package cli

import (
	"context"

	"github.com/spf13/cobra"

	"mcq-contest-service/internal/config"
)

// NewSweepCmd runs one finalization and session-cleanup pass and exits.
// Deployments that prefer an external scheduler over the in-process tickers
// point their cron at this.
func NewSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one finalization and session cleanup pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), *configPath)
		},
	}
}

func runSweep(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	deps, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	if err := deps.sweeper.SweepFinalize(ctx); err != nil {
		return err
	}
	return deps.sweeper.SweepSessions(ctx)
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"appshell/internal/transcribe"
)

const defaultSweepAge = time.Hour

func sweepCutoff(age time.Duration) time.Time {
	return time.Now().Add(-age)
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove staging files left behind by interrupted transcriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}

			settings := transcribe.New(transcribe.SettingsFromConfig(cfg.Engine), logger).Settings()
			removed, err := transcribe.SweepStale(settings.StagingDir, settings.JobPrefix, sweepCutoff(olderThan))
			if err != nil {
				return fmt.Errorf("sweep %s: %w", settings.StagingDir, err)
			}

			out := cmd.OutOrStdout()
			for _, path := range removed {
				fmt.Fprintf(out, "removed %s\n", path)
			}
			fmt.Fprintf(out, "Removed %d stale entries from %s\n", len(removed), settings.StagingDir)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", defaultSweepAge, "Only remove entries last modified before this age")
	return cmd
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"appshell/internal/diagnostics"
	"appshell/internal/domain"
	"appshell/internal/transcribe"
)

var errDoctorFailures = errors.New("one or more checks failed")

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the speech engine, ffmpeg, and working directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			orch := transcribe.New(transcribe.SettingsFromConfig(cfg.Engine), logger)
			report := diagnostics.NewChecker().Run(orch.Settings(), orch.PathValue(orch.Environment()))

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
				fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Details"}, reportRows(report)))
			}

			if report.HasFailures {
				return errDoctorFailures
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func reportRows(report domain.DiagnosticReport) [][]string {
	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		details := item.Message
		if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
			details += "\n" + item.Hint
		}
		rows = append(rows, []string{item.Name, statusLabel(item.Status), details})
	}
	return rows
}

func statusLabel(status domain.DiagnosticStatus) string {
	switch status {
	case domain.DiagnosticStatusPass:
		return "OK"
	case domain.DiagnosticStatusWarn:
		return "WARN"
	default:
		return "FAIL"
	}
}

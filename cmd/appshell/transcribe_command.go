package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"appshell/internal/transcribe"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var ext string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe one audio file with the configured speech engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}
			if strings.TrimSpace(ext) == "" {
				ext = strings.TrimPrefix(filepath.Ext(args[0]), ".")
			}

			orch := transcribe.New(transcribe.SettingsFromConfig(cfg.Engine), logger)
			resp := orch.Transcribe(cmd.Context(), transcribe.Request{Data: data, Ext: ext})

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(resp); err != nil {
					return err
				}
			} else if resp.OK {
				fmt.Fprintln(out, resp.Text)
			}

			if !resp.OK {
				if resp.Detail != "" && !asJSON {
					fmt.Fprintln(cmd.ErrOrStderr(), resp.Detail)
				}
				return fmt.Errorf("transcription failed: %s", resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ext, "ext", "", "Audio container extension (defaults to the file extension)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	return cmd
}

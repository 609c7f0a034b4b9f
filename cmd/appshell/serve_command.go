package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"appshell/internal/chat"
	"appshell/internal/jobs"
	"appshell/internal/logging"
	"appshell/internal/metrics"
	"appshell/internal/transcribe"
	"appshell/internal/webserver"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	var root string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the frontend, chat, and transcription API to a browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			if strings.TrimSpace(bind) == "" {
				bind = cfg.Web.Bind
			}
			if strings.TrimSpace(root) == "" {
				root = cfg.Web.Root
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			collector := metrics.New()
			events := jobs.NewEventBus(1000)
			registry := jobs.NewRegistry(events, 0, logger)
			orch := transcribe.New(transcribe.SettingsFromConfig(cfg.Engine), logger, registry, collector)

			settings := orch.Settings()
			if _, err := transcribe.SweepStale(settings.StagingDir, settings.JobPrefix, sweepCutoff(defaultSweepAge)); err != nil {
				logging.WarnWithContext(logger, "staging sweep failed", "staging_sweep_failed", logging.Error(err))
			}

			deps := webserver.Deps{
				Transcriber: orch,
				Jobs:        registry,
				Events:      events,
				Metrics:     collector,
			}
			if cfg.Chat.Enabled {
				relay := chat.NewRelay(chat.OptionsFromConfig(cfg.Chat), logger, collector)
				if err := relay.Start(runCtx); err != nil {
					logging.WarnWithContext(logger, "chat relay unavailable", "chat_start_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "browser chat disabled"),
					)
				} else {
					deps.Chat = relay
				}
			}

			server := webserver.New(webserver.Options{
				Addr:   bind,
				Static: os.DirFS(root),
			}, deps, logger)

			return server.Run(runCtx)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to web.bind)")
	cmd.Flags().StringVar(&root, "root", "", "Frontend directory (defaults to web.root)")
	return cmd
}

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scribed/internal/daemon"
	"scribed/internal/engine"
	"scribed/internal/history"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the transcription daemon",
		Long:  "Runs the engine, the inbox watcher, and the staging janitor until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			logger := cctx.newLogger()

			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}

			eng := engine.New(cfg, store, logger)
			d, err := daemon.New(cfg, store, eng, logger)
			if err != nil {
				_ = store.Close()
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(ctx); err != nil {
				_ = store.Close()
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "scribed daemon running; press Ctrl-C to stop")
			if inbox := cfg.Paths.InboxDir; inbox != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "watching inbox %s\n", inbox)
			}

			<-ctx.Done()
			return d.Close()
		},
	}
}

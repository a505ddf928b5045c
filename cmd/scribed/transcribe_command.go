package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"scribed/internal/engine"
	"scribed/internal/history"
	"scribed/internal/jobs"
)

func newTranscribeCommand(cctx *commandContext) *cobra.Command {
	var providerFlag string
	var languageFlag string
	var hintFlag string
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe one media file and print the transcript",
		Args:  cobra.ExactArgs(1),
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
			defer store.Close()

			eng := engine.New(cfg, store, logger)
			defer eng.Stop()

			id, err := eng.SubmitJob(cmd.Context(), engine.Request{
				SourcePath: args[0],
				Provider:   providerFlag,
				Language:   languageFlag,
				Hint:       hintFlag,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s\n", id)

			snap, err := pollUntilTerminal(cmd, eng, id)
			if err != nil {
				return err
			}
			if snap.State == jobs.StateError {
				return fmt.Errorf("transcription failed: %s", snap.ErrorMessage)
			}

			if outputFlag != "" {
				if err := os.WriteFile(outputFlag, []byte(snap.FinalTranscript+"\n"), 0o644); err != nil {
					return fmt.Errorf("write transcript: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "transcript written to %s\n", outputFlag)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), snap.FinalTranscript)
			return nil
		},
	}

	cmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "Transcription provider (whisper, gpt4o, assemblyai, gemini)")
	cmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Language hint as a BCP 47 tag, or \"auto\"")
	cmd.Flags().StringVar(&hintFlag, "hint", "", "Context hint passed to the provider (names, jargon)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write the transcript to a file instead of stdout")

	return cmd
}

// pollUntilTerminal streams new progress lines to stderr while the job runs.
func pollUntilTerminal(cmd *cobra.Command, eng *engine.Engine, id uuid.UUID) (jobs.Snapshot, error) {
	printed := 0
	for {
		snap, err := eng.GetProgress(id)
		if err != nil {
			if errors.Is(err, jobs.ErrNotFound) {
				return jobs.Snapshot{}, fmt.Errorf("job %s disappeared from the registry", id)
			}
			return jobs.Snapshot{}, err
		}
		for ; printed < len(snap.Progress); printed++ {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", snap.Progress[printed].Message)
		}
		if snap.State.IsTerminal() {
			return snap, nil
		}
		select {
		case <-cmd.Context().Done():
			return jobs.Snapshot{}, cmd.Context().Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

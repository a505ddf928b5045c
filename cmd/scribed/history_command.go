package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribed/internal/history"
	"scribed/internal/provider"
)

func newHistoryCommand(cctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect finished transcriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cctx, cmd, 0)
		},
	}

	var limitFlag int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List finished transcriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cctx, cmd, limitFlag)
		},
	}
	listCmd.Flags().IntVarP(&limitFlag, "limit", "n", 0, "Show at most this many records (0 = all)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one stored transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cctx)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec.Error != "" {
				return fmt.Errorf("job %s failed: %s", rec.ID, rec.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.Transcript)
			return nil
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no record with id %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "removed")
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every record",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d records\n", removed)
			return nil
		},
	}

	historyCmd.AddCommand(listCmd, showCmd, rmCmd, clearCmd)
	return historyCmd
}

func openHistory(cctx *commandContext) (*history.Store, error) {
	cfg, err := cctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return store, nil
}

func runHistoryList(cctx *commandContext, cmd *cobra.Command, limit int) error {
	store, err := openHistory(cctx)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no transcriptions yet")
		return nil
	}

	printer := newTablePrinter(cmd.OutOrStdout())
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.ID,
			rec.Filename,
			rec.Provider,
			provider.LanguageName(rec.Language),
			historyOutcome(rec, printer),
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	printer.print([]string{"ID", "File", "Provider", "Language", "Outcome", "When"}, rows)
	return nil
}

// historyOutcome summarizes a record in one cell: word count for successes,
// the first line of the error otherwise.
func historyOutcome(rec *history.Record, printer *tablePrinter) string {
	if rec.Error != "" {
		msg, _, _ := strings.Cut(rec.Error, "\n")
		if len(msg) > 60 {
			msg = msg[:60] + "..."
		}
		return printer.paint(ansiRed, msg)
	}
	return printer.paint(ansiGreen, fmt.Sprintf("%d words", len(strings.Fields(rec.Transcript))))
}

package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dealdesk/internal/document"
	"dealdesk/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent extraction and export attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, newHistoryViews(entries))
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No attempts recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(entries))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "Maximum number of attempts to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print attempts as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every recorded attempt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d attempt(s)\n", removed)
			return nil
		},
	})
	return cmd
}

func openHistory(ctx *commandContext) (*history.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := history.OpenFromConfig(cfg)
	if errors.Is(err, history.ErrDisabled) {
		return nil, errors.New("history is disabled (set history.enabled = true)")
	}
	return store, err
}

func renderHistoryTable(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.Error
		switch {
		case detail != "":
		case e.SheetURL != "":
			detail = e.SheetURL
		case e.DocType != "":
			detail = document.DocTypeLabel(e.DocType)
		}
		rows = append(rows, []string{
			e.StartedAt.Local().Format(time.DateTime),
			string(e.Slot),
			displayOrNA(e.FileName),
			string(e.Outcome),
			detail,
			strconv.FormatInt(e.Duration.Milliseconds(), 10) + "ms",
		})
	}
	return renderTable(
		[]string{"Started", "Slot", "File", "Outcome", "Detail", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

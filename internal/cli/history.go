package cli

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/runoshun/boardsync/internal/usecase"
)

func newHistoryCommand(rt *runtime) *cobra.Command {
	var in usecase.ListHistoryInput

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the audit log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.TaskID != "" {
				id, err := resolveTaskID(cmd.Context(), rt, in.TaskID)
				if err == nil {
					in.TaskID = id
				}
				// Deleted tasks keep their history, so an unresolved id is used as given.
			}
			out, err := rt.c.ListHistoryUseCase().Execute(cmd.Context(), in)
			if err != nil {
				return err
			}
			if rt.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), out.Entries)
			}
			tw := newTable(cmd.OutOrStdout(), table.Row{"When", "Actor", "Action", "Task", "Change", "Reason"})
			for _, h := range out.Entries {
				change := ""
				if h.Change != nil {
					change = h.Change.Field + ": " + h.Change.OldValue + " -> " + h.Change.NewValue
				}
				tw.AppendRow(table.Row{h.Timestamp.Local().Format(time.DateTime), h.Actor, h.Action, orDash(shortID(h.TaskID)), orDash(change), h.Reason})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&in.TaskID, "task", "", "Only entries for this task")
	cmd.Flags().StringVar(&in.Actor, "by", "", "Only entries by this user")
	cmd.Flags().IntVarP(&in.Limit, "limit", "n", 20, "Maximum entries (0 = all)")
	return cmd
}

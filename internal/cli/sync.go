package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/runoshun/boardsync/internal/usecase"
)

func newStatusCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and pending changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := rt.c.InitializeUseCase().Execute(cmd.Context(), usecase.InitializeInput{})
			if err != nil {
				return err
			}
			if rt.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), out.Status)
			}
			w := cmd.OutOrStdout()
			printStatus(w, out.Status)
			doc := out.Document
			_, _ = fmt.Fprintf(w, "%s %d tasks, %d requests, %d history entries\n",
				styleTitle.Render("board"), len(doc.Tasks), len(doc.Requests), len(doc.History))
			if !doc.LastUpdated.IsZero() {
				_, _ = fmt.Fprintln(w, styleMuted.Render("last updated "+doc.LastUpdated.Local().Format(time.DateTime)))
			}
			return nil
		},
	}
}

func newPullCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Load the board from the remote and deliver queued changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := rt.c.InitializeUseCase().Execute(cmd.Context(), usecase.InitializeInput{})
			if err != nil {
				return err
			}
			if rt.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), out.Document)
			}
			printStatus(cmd.OutOrStdout(), out.Status)
			if out.Flush != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d queued change(s), %d remaining\n", out.Flush.Processed, out.Flush.Remaining)
			}
			return nil
		},
	}
}

func newSyncCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Deliver queued changes to the remote in order",
		Long: `Deliver queued changes to the remote in the order they were made.

Delivery stops at the first failure; the failed change and everything
after it stay queued for the next attempt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := rt.c.FlushQueueUseCase().Execute(cmd.Context())
			if err != nil {
				return err
			}
			if rt.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), out.Result)
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "Delivered %d, remaining %d\n", out.Result.Processed, out.Result.Remaining)
			if out.Result.Err != nil {
				_, _ = fmt.Fprintln(w, styleError.Render("stopped: "+out.Result.Err.Error()))
			}
			printStatus(w, out.Status)
			return nil
		},
	}
}

func newQueueCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List changes waiting to be delivered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := rt.c.ListQueueUseCase().Execute(cmd.Context())
			if err != nil {
				return err
			}
			if rt.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), out.Operations)
			}
			if len(out.Operations) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			tw := newTable(cmd.OutOrStdout(), table.Row{"#", "Queued", "Summary", "Base"})
			for i, op := range out.Operations {
				summary := op.Summary
				if op.Held {
					summary += styleMuted.Render(" (held)")
				}
				tw.AppendRow(table.Row{i + 1, op.EnqueuedAt.Local().Format(time.DateTime), summary, orDash(shortID(string(op.BaseToken)))})
			}
			tw.Render()
			return nil
		},
	}
}

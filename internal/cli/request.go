package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/runoshun/boardsync/internal/domain"
	"github.com/runoshun/boardsync/internal/usecase"
)

func newRequestCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"req"},
		Short:   "File and review change requests",
	}
	cmd.AddCommand(
		newRequestAddCommand(rt),
		newRequestResolveCommand(rt, true),
		newRequestResolveCommand(rt, false),
		newRequestListCommand(rt),
	)
	return cmd
}

// resolveRequestID expands a unique id prefix to the full request id.
func resolveRequestID(ctx context.Context, rt *runtime, prefix string) (string, error) {
	out, err := rt.c.GetDocumentUseCase().Execute(ctx)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, r := range out.Document.Requests {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", domain.ErrRequestNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous request id %q matches %d requests", prefix, len(matches))
	}
}

func newRequestAddCommand(rt *runtime) *cobra.Command {
	var in usecase.AddRequestInput
	var taskID string

	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "File a change request",
		Long: `File a change request for the tech leads to review.

Examples:
  boardsync request add "Move the release one week" --task 3f2a --type schedule --customer acme`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Actor = rt.actor()
			in.Description = args[0]
			if taskID != "" {
				id, err := resolveTaskID(cmd.Context(), rt, taskID)
				if err != nil {
					return err
				}
				in.TaskID = &id
			}
			out, err := rt.c.AddRequestUseCase().Execute(cmd.Context(), in)
			if err != nil {
				return err
			}
			printSave(cmd.OutOrStdout(), out.Result, "Filed request %s", out.Request.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "Task the request refers to")
	cmd.Flags().StringVar(&in.Type, "type", "", "Request type (default general)")
	cmd.Flags().StringVar(&in.Customer, "customer", "", "Customer who asked for the change")
	return cmd
}

func newRequestResolveCommand(rt *runtime, approve bool) *cobra.Command {
	var note string
	use, short := "reject <id>", "Reject a change request"
	if approve {
		use, short = "approve <id>", "Approve a change request"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveRequestID(cmd.Context(), rt, args[0])
			if err != nil {
				return err
			}
			out, err := rt.c.ResolveRequestUseCase().Execute(cmd.Context(), usecase.ResolveRequestInput{
				Actor:     rt.actor(),
				RequestID: id,
				Note:      note,
				Approve:   approve,
			})
			if err != nil {
				return err
			}
			printSave(cmd.OutOrStdout(), out.Result, "Request %s %s", id, out.Request.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Review note")
	return cmd
}

func newRequestListCommand(rt *runtime) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List change requests",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := rt.c.ListRequestsUseCase().Execute(cmd.Context(), usecase.ListRequestsInput{Status: domain.RequestStatus(status)})
			if err != nil {
				return err
			}
			if rt.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), out.Requests)
			}
			tw := newTable(cmd.OutOrStdout(), table.Row{"ID", "Type", "Status", "By", "Customer", "Task", "Description"})
			for _, r := range out.Requests {
				task := ""
				if r.TaskID != nil {
					task = shortID(*r.TaskID)
				}
				tw.AppendRow(table.Row{shortID(r.ID), r.Type, r.Status, r.RequestedBy, orDash(r.Customer), orDash(task), r.Description})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: pending, approved, rejected")
	return cmd
}

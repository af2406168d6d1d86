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

func newTaskCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks on the board",
	}
	cmd.AddCommand(
		newTaskAddCommand(rt),
		newTaskEditCommand(rt),
		newTaskMoveCommand(rt),
		newTaskPriorityCommand(rt),
		newTaskRmCommand(rt),
		newTaskListCommand(rt),
	)
	return cmd
}

// resolveTaskID expands a unique id prefix to the full task id.
func resolveTaskID(ctx context.Context, rt *runtime, prefix string) (string, error) {
	out, err := rt.c.GetDocumentUseCase().Execute(ctx)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, t := range out.Document.Tasks {
		if t.ID == prefix {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, prefix) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", domain.ErrTaskNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous task id %q matches %d tasks", prefix, len(matches))
	}
}

func newTaskAddCommand(rt *runtime) *cobra.Command {
	var in usecase.AddTaskInput
	var priority string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a task",
		Long: `Add a task to the board.

Examples:
  boardsync task add "Login page" --project portal --assignee tech-lead
  boardsync task add "Release" --start 2024-04-01 --end 2024-04-05 --priority critical`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Actor = rt.actor()
			in.Name = args[0]
			in.Priority = domain.Priority(priority)
			out, err := rt.c.AddTaskUseCase().Execute(cmd.Context(), in)
			if err != nil {
				return err
			}
			printSave(cmd.OutOrStdout(), out.Result, "Added task %s %q", out.Task.ID, out.Task.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Project, "project", "", "Project name")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "Description")
	cmd.Flags().StringVar(&in.Assignee, "assignee", "", "Assignee user id")
	cmd.Flags().StringVar(&in.PlanStart, "start", "", "Planned start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.PlanEnd, "end", "", "Planned end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority: normal, critical, blocked")
	return cmd
}

func newTaskEditCommand(rt *runtime) *cobra.Command {
	var opts struct {
		Project     string
		Name        string
		Description string
		Assignee    string
		Start       string
		End         string
		Reason      string
	}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit task fields",
		Long: `Edit task fields. Only flags that are given are changed, and each
changed field is recorded in history.

Examples:
  boardsync task edit 3f2a --name "Login page v2" --reason "customer feedback"
  boardsync task edit 3f2a --assignee ""`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTaskID(cmd.Context(), rt, args[0])
			if err != nil {
				return err
			}
			var edit domain.TaskEdit
			flags := cmd.Flags()
			if flags.Changed("project") {
				edit.Project = &opts.Project
			}
			if flags.Changed("name") {
				edit.Name = &opts.Name
			}
			if flags.Changed("description") {
				edit.Description = &opts.Description
			}
			if flags.Changed("assignee") {
				edit.Assignee = &opts.Assignee
			}
			if flags.Changed("start") {
				edit.PlanStart = &opts.Start
			}
			if flags.Changed("end") {
				edit.PlanEnd = &opts.End
			}

			out, err := rt.c.UpdateTaskUseCase().Execute(cmd.Context(), usecase.UpdateTaskInput{
				Actor:  rt.actor(),
				TaskID: id,
				Reason: opts.Reason,
				Edit:   edit,
			})
			if err != nil {
				return err
			}
			fields := make([]string, 0, len(out.Changes))
			for _, c := range out.Changes {
				fields = append(fields, c.Field)
			}
			printSave(cmd.OutOrStdout(), out.Result, "Updated %s: %s", id, strings.Join(fields, ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Project, "project", "", "New project")
	cmd.Flags().StringVar(&opts.Name, "name", "", "New name")
	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "New description")
	cmd.Flags().StringVar(&opts.Assignee, "assignee", "", "New assignee (empty to unassign)")
	cmd.Flags().StringVar(&opts.Start, "start", "", "New planned start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.End, "end", "", "New planned end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "Reason recorded in history")
	return cmd
}

func newTaskMoveCommand(rt *runtime) *cobra.Command {
	var plan, actual, reason string

	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a task on the plan or actual axis",
		Long: `Move a task. --plan takes todo, today, in-progress or done; --actual
takes todo, in-progress or done. Leaving todo stamps the actual start date
and reaching done stamps the actual end date.

Examples:
  boardsync task move 3f2a --plan today
  boardsync task move 3f2a --actual done`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTaskID(cmd.Context(), rt, args[0])
			if err != nil {
				return err
			}
			in := usecase.MoveTaskInput{Actor: rt.actor(), TaskID: id, Reason: reason}
			if plan != "" {
				s := domain.PlanStatus(plan)
				in.PlanStatus = &s
			}
			if actual != "" {
				s := domain.Status(actual)
				in.ActualStatus = &s
			}
			out, err := rt.c.MoveTaskUseCase().Execute(cmd.Context(), in)
			if err != nil {
				return err
			}
			printSave(cmd.OutOrStdout(), out.Result, "Moved %s: plan=%s actual=%s", id, out.Task.PlanStatus, out.Task.ActualStatus)
			return nil
		},
	}
	cmd.Flags().StringVar(&plan, "plan", "", "Plan status")
	cmd.Flags().StringVar(&actual, "actual", "", "Actual status")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in history")
	return cmd
}

func newTaskPriorityCommand(rt *runtime) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "priority <id> <normal|critical|blocked>",
		Short: "Flag a task's priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTaskID(cmd.Context(), rt, args[0])
			if err != nil {
				return err
			}
			out, err := rt.c.SetPriorityUseCase().Execute(cmd.Context(), usecase.SetPriorityInput{
				Actor:    rt.actor(),
				TaskID:   id,
				Priority: domain.Priority(args[1]),
				Reason:   reason,
			})
			if err != nil {
				return err
			}
			printSave(cmd.OutOrStdout(), out.Result, "Set priority of %s to %s", id, out.Task.Priority)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in history")
	return cmd
}

func newTaskRmCommand(rt *runtime) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task (its history is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveTaskID(cmd.Context(), rt, args[0])
			if err != nil {
				return err
			}
			out, err := rt.c.DeleteTaskUseCase().Execute(cmd.Context(), usecase.DeleteTaskInput{
				Actor:  rt.actor(),
				TaskID: id,
				Reason: reason,
			})
			if err != nil {
				return err
			}
			printSave(cmd.OutOrStdout(), out.Result, "Deleted task %s", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded in history")
	return cmd
}

func newTaskListCommand(rt *runtime) *cobra.Command {
	var in usecase.ListTasksInput
	var priority string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Priority = domain.Priority(priority)
			out, err := rt.c.ListTasksUseCase().Execute(cmd.Context(), in)
			if err != nil {
				return err
			}
			if rt.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), out.Tasks)
			}
			tw := newTable(cmd.OutOrStdout(), table.Row{"ID", "Project", "Name", "Assignee", "Plan", "Actual", "Priority", "Planned"})
			for _, t := range out.Tasks {
				planned := ""
				if t.Planned.Start != "" || t.Planned.End != "" {
					planned = t.Planned.Start + ".." + t.Planned.End
				}
				tw.AppendRow(table.Row{shortID(t.ID), orDash(t.Project), t.Name, orDash(t.Assignee), t.PlanStatus, t.ActualStatus, t.Priority, orDash(planned)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Project, "project", "", "Filter by project")
	cmd.Flags().StringVar(&in.Assignee, "assignee", "", "Filter by assignee")
	cmd.Flags().StringVar(&priority, "priority", "", "Filter by priority")
	return cmd
}

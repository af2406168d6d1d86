package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/runoshun/boardsync/internal/domain"
)

// AddTaskInput contains the parameters for adding a task.
// Fields are ordered to minimize memory padding.
type AddTaskInput struct {
	Actor       string          // User adding the task (required)
	Project     string          // Project name
	Name        string          // Display name (required)
	Description string          // Free text
	Assignee    string          // User id (optional, must be on the roster)
	PlanStart   string          // YYYY-MM-DD
	PlanEnd     string          // YYYY-MM-DD
	Priority    domain.Priority // Default normal
}

// AddTaskOutput contains the created task and save result.
type AddTaskOutput struct {
	Task   domain.Task
	Result domain.SaveResult
}

// AddTask is the use case for adding a task to the board.
type AddTask struct {
	engine domain.SyncEngine
	clock  domain.Clock
}

// NewAddTask creates a new AddTask use case.
func NewAddTask(engine domain.SyncEngine, clock domain.Clock) *AddTask {
	return &AddTask{engine: engine, clock: clock}
}

// Execute adds the task and records a create history entry.
func (uc *AddTask) Execute(ctx context.Context, in AddTaskInput) (*AddTaskOutput, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.ErrEmptyName
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityNormal
	}
	if !in.Priority.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, in.Priority)
	}
	if err := validateDay("planned start", in.PlanStart); err != nil {
		return nil, err
	}
	if err := validateDay("planned end", in.PlanEnd); err != nil {
		return nil, err
	}

	var task domain.Task
	res, err := mutateAs(ctx, uc.engine, in.Actor, fmt.Sprintf("Add task %q", name), func(doc *domain.Document, user domain.User) error {
		if err := validateAssignee(doc, in.Assignee); err != nil {
			return err
		}
		now := uc.clock.Now()
		task = domain.Task{
			ID:           domain.NewEntityID(),
			Project:      in.Project,
			Name:         name,
			Description:  in.Description,
			Assignee:     in.Assignee,
			Planned:      domain.DateRange{Start: in.PlanStart, End: in.PlanEnd},
			PlanStatus:   domain.PlanTodo,
			ActualStatus: domain.StatusTodo,
			Priority:     in.Priority,
			CreatedAt:    now,
			CreatedBy:    user.ID,
			UpdatedAt:    now,
		}
		doc.Tasks = append(doc.Tasks, task)
		doc.AppendHistory(historyEntry(now, task.ID, user.ID, domain.ActionCreate, "",
			&domain.FieldChange{Field: "name", NewValue: name}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &AddTaskOutput{Task: task, Result: res}, nil
}

// UpdateTaskInput contains the parameters for editing a task.
type UpdateTaskInput struct {
	Edit   domain.TaskEdit // Fields to change (nil = no change)
	Actor  string          // User editing the task (required)
	TaskID string          // Task to edit (required)
	Reason string          // Optional reason recorded in history
}

// UpdateTaskOutput contains the updated task and save result.
type UpdateTaskOutput struct {
	Task    domain.Task
	Changes []domain.FieldChange
	Result  domain.SaveResult
}

// UpdateTask is the use case for editing task fields.
type UpdateTask struct {
	engine domain.SyncEngine
	clock  domain.Clock
}

// NewUpdateTask creates a new UpdateTask use case.
func NewUpdateTask(engine domain.SyncEngine, clock domain.Clock) *UpdateTask {
	return &UpdateTask{engine: engine, clock: clock}
}

// Execute applies the edit and records one history entry per changed field.
func (uc *UpdateTask) Execute(ctx context.Context, in UpdateTaskInput) (*UpdateTaskOutput, error) {
	if in.Edit.IsEmpty() {
		return nil, domain.ErrNoFieldsToUpdate
	}
	if in.Edit.Name != nil && strings.TrimSpace(*in.Edit.Name) == "" {
		return nil, domain.ErrEmptyName
	}
	for field, v := range map[string]*string{"planned start": in.Edit.PlanStart, "planned end": in.Edit.PlanEnd} {
		if v != nil {
			if err := validateDay(field, *v); err != nil {
				return nil, err
			}
		}
	}

	out := &UpdateTaskOutput{}
	res, err := mutateAs(ctx, uc.engine, in.Actor, "Update task "+in.TaskID, func(doc *domain.Document, user domain.User) error {
		i := doc.FindTask(in.TaskID)
		if i < 0 {
			return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, in.TaskID)
		}
		if in.Edit.Assignee != nil {
			if err := validateAssignee(doc, *in.Edit.Assignee); err != nil {
				return err
			}
		}

		task := &doc.Tasks[i]
		changes := task.Apply(in.Edit)
		if len(changes) == 0 {
			return domain.ErrNoFieldsToUpdate
		}
		now := uc.clock.Now()
		task.UpdatedAt = now
		for _, c := range changes {
			doc.AppendHistory(historyEntry(now, task.ID, user.ID, domain.ActionUpdate, in.Reason, &c))
		}
		out.Task, out.Changes = *task, changes
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Result = res
	return out, nil
}

// MoveTaskInput contains the parameters for moving a task on the board.
type MoveTaskInput struct {
	PlanStatus   *domain.PlanStatus // New planning status (nil = no change)
	ActualStatus *domain.Status     // New actual status (nil = no change)
	Actor        string
	TaskID       string
	Reason       string
}

// MoveTaskOutput contains the moved task and save result.
type MoveTaskOutput struct {
	Task   domain.Task
	Result domain.SaveResult
}

// MoveTask is the use case for changing a task's plan or actual status.
type MoveTask struct {
	engine domain.SyncEngine
	clock  domain.Clock
}

// NewMoveTask creates a new MoveTask use case.
func NewMoveTask(engine domain.SyncEngine, clock domain.Clock) *MoveTask {
	return &MoveTask{engine: engine, clock: clock}
}

// Execute moves the task. Moving the actual status stamps the actual date range.
func (uc *MoveTask) Execute(ctx context.Context, in MoveTaskInput) (*MoveTaskOutput, error) {
	if in.PlanStatus == nil && in.ActualStatus == nil {
		return nil, domain.ErrNoFieldsToUpdate
	}
	if in.PlanStatus != nil && !in.PlanStatus.IsValid() {
		return nil, fmt.Errorf("%w: plan status %q", domain.ErrInvalidStatus, *in.PlanStatus)
	}
	if in.ActualStatus != nil && !in.ActualStatus.IsValid() {
		return nil, fmt.Errorf("%w: actual status %q", domain.ErrInvalidStatus, *in.ActualStatus)
	}

	out := &MoveTaskOutput{}
	res, err := mutateAs(ctx, uc.engine, in.Actor, "Move task "+in.TaskID, func(doc *domain.Document, user domain.User) error {
		i := doc.FindTask(in.TaskID)
		if i < 0 {
			return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, in.TaskID)
		}
		task := &doc.Tasks[i]
		now := uc.clock.Now()

		var changes []domain.FieldChange
		if in.PlanStatus != nil && *in.PlanStatus != task.PlanStatus {
			changes = append(changes, task.SetPlanStatus(*in.PlanStatus))
		}
		if in.ActualStatus != nil && *in.ActualStatus != task.ActualStatus {
			changes = append(changes, task.SetActualStatus(*in.ActualStatus, now))
		}
		if len(changes) == 0 {
			return domain.ErrNoFieldsToUpdate
		}
		task.UpdatedAt = now
		for _, c := range changes {
			doc.AppendHistory(historyEntry(now, task.ID, user.ID, domain.ActionMove, in.Reason, &c))
		}
		out.Task = *task
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Result = res
	return out, nil
}

// SetPriorityInput contains the parameters for flagging a task.
type SetPriorityInput struct {
	Actor    string
	TaskID   string
	Reason   string
	Priority domain.Priority
}

// SetPriorityOutput contains the flagged task and save result.
type SetPriorityOutput struct {
	Task   domain.Task
	Result domain.SaveResult
}

// SetPriority is the use case for changing a task's priority flag.
type SetPriority struct {
	engine domain.SyncEngine
	clock  domain.Clock
}

// NewSetPriority creates a new SetPriority use case.
func NewSetPriority(engine domain.SyncEngine, clock domain.Clock) *SetPriority {
	return &SetPriority{engine: engine, clock: clock}
}

// Execute sets the priority and records the change.
func (uc *SetPriority) Execute(ctx context.Context, in SetPriorityInput) (*SetPriorityOutput, error) {
	if !in.Priority.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPriority, in.Priority)
	}

	out := &SetPriorityOutput{}
	res, err := mutateAs(ctx, uc.engine, in.Actor, fmt.Sprintf("Set priority of %s to %s", in.TaskID, in.Priority), func(doc *domain.Document, user domain.User) error {
		i := doc.FindTask(in.TaskID)
		if i < 0 {
			return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, in.TaskID)
		}
		task := &doc.Tasks[i]
		if task.Priority == in.Priority {
			return domain.ErrNoFieldsToUpdate
		}
		now := uc.clock.Now()
		change := domain.FieldChange{Field: "priority", OldValue: string(task.Priority), NewValue: string(in.Priority)}
		task.Priority = in.Priority
		task.UpdatedAt = now
		doc.AppendHistory(historyEntry(now, task.ID, user.ID, domain.ActionPriority, in.Reason, &change))
		out.Task = *task
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Result = res
	return out, nil
}

// DeleteTaskInput contains the parameters for deleting a task.
type DeleteTaskInput struct {
	Actor  string
	TaskID string
	Reason string
}

// DeleteTaskOutput contains the result of deleting a task.
type DeleteTaskOutput struct {
	Result domain.SaveResult
}

// DeleteTask is the use case for removing a task. Its history is kept.
type DeleteTask struct {
	engine domain.SyncEngine
	clock  domain.Clock
}

// NewDeleteTask creates a new DeleteTask use case.
func NewDeleteTask(engine domain.SyncEngine, clock domain.Clock) *DeleteTask {
	return &DeleteTask{engine: engine, clock: clock}
}

// Execute removes the task and records a delete history entry.
func (uc *DeleteTask) Execute(ctx context.Context, in DeleteTaskInput) (*DeleteTaskOutput, error) {
	res, err := mutateAs(ctx, uc.engine, in.Actor, "Delete task "+in.TaskID, func(doc *domain.Document, user domain.User) error {
		i := doc.FindTask(in.TaskID)
		if i < 0 {
			return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, in.TaskID)
		}
		name := doc.Tasks[i].Name
		doc.Tasks = slices.Delete(doc.Tasks, i, i+1)
		doc.AppendHistory(historyEntry(uc.clock.Now(), in.TaskID, user.ID, domain.ActionDelete, in.Reason,
			&domain.FieldChange{Field: "name", OldValue: name}))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &DeleteTaskOutput{Result: res}, nil
}

// ListTasksInput contains optional filters.
type ListTasksInput struct {
	Project  string
	Assignee string
	Priority domain.Priority
}

// ListTasksOutput contains the matching tasks in board order.
type ListTasksOutput struct {
	Tasks []domain.Task
}

// ListTasks is the use case for listing tasks.
type ListTasks struct {
	engine domain.SyncEngine
}

// NewListTasks creates a new ListTasks use case.
func NewListTasks(engine domain.SyncEngine) *ListTasks {
	return &ListTasks{engine: engine}
}

// Execute returns the tasks matching every non-empty filter.
func (uc *ListTasks) Execute(ctx context.Context, in ListTasksInput) (*ListTasksOutput, error) {
	doc, err := currentDocument(ctx, uc.engine)
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		if in.Project != "" && t.Project != in.Project {
			continue
		}
		if in.Assignee != "" && t.Assignee != in.Assignee {
			continue
		}
		if in.Priority != "" && t.Priority != in.Priority {
			continue
		}
		tasks = append(tasks, t)
	}
	return &ListTasksOutput{Tasks: tasks}, nil
}

package domain

import "time"

// TaskEdit carries optional field edits for a task. Nil fields are left unchanged.
// Fields are ordered to minimize memory padding.
type TaskEdit struct {
	Project     *string
	Name        *string
	Description *string
	Assignee    *string
	PlanStart   *string
	PlanEnd     *string
}

// IsEmpty returns true if the edit changes nothing.
func (e TaskEdit) IsEmpty() bool {
	return e.Project == nil && e.Name == nil && e.Description == nil &&
		e.Assignee == nil && e.PlanStart == nil && e.PlanEnd == nil
}

// Apply applies the edit and returns one FieldChange per field whose value changed.
func (t *Task) Apply(e TaskEdit) []FieldChange {
	var changes []FieldChange
	set := func(field string, dst *string, v *string) {
		if v == nil || *dst == *v {
			return
		}
		changes = append(changes, FieldChange{Field: field, OldValue: *dst, NewValue: *v})
		*dst = *v
	}
	set("project", &t.Project, e.Project)
	set("name", &t.Name, e.Name)
	set("description", &t.Description, e.Description)
	set("assignee", &t.Assignee, e.Assignee)
	set("planned.start", &t.Planned.Start, e.PlanStart)
	set("planned.end", &t.Planned.End, e.PlanEnd)
	return changes
}

// SetActualStatus moves the task along the actual-progress lifecycle and
// stamps the actual date range: the start on leaving todo, the end on done.
func (t *Task) SetActualStatus(s Status, at time.Time) FieldChange {
	change := FieldChange{Field: "actualStatus", OldValue: string(t.ActualStatus), NewValue: string(s)}
	day := at.Format(time.DateOnly)
	if s != StatusTodo {
		if t.Actual == nil {
			t.Actual = &DateRange{Start: day}
		}
		if s == StatusDone {
			t.Actual.End = day
		} else {
			t.Actual.End = ""
		}
	}
	t.ActualStatus = s
	return change
}

// SetPlanStatus moves the task on the planning axis.
func (t *Task) SetPlanStatus(s PlanStatus) FieldChange {
	change := FieldChange{Field: "planStatus", OldValue: string(t.PlanStatus), NewValue: string(s)}
	t.PlanStatus = s
	return change
}

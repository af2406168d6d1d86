// Package domain contains the board document model, sync value types and ports.
package domain

import (
	"fmt"
	"slices"
	"time"
)

// Document is the whole application state, persisted as one versioned JSON object.
type Document struct {
	LastUpdated time.Time       `json:"lastUpdated"`
	Version     string          `json:"version"`
	Users       []User          `json:"users"`
	Tasks       []Task          `json:"tasks"`
	Requests    []ChangeRequest `json:"requests"`
	History     []HistoryEntry  `json:"history"`
}

// Role is a user role on the board.
type Role string

const (
	RoleTechLead  Role = "tech-lead"
	RoleSalesLead Role = "sales-lead"
	RoleViewer    Role = "viewer"
)

// User is a roster member. The roster is owned by the remote document.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Roles []Role `json:"roles"`
}

// HasRole reports whether the user holds role.
func (u User) HasRole(role Role) bool {
	return slices.Contains(u.Roles, role)
}

// DateRange is an inclusive calendar range in YYYY-MM-DD form.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Task is a single card on the board.
// Fields are ordered to minimize memory padding.
type Task struct {
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	Actual       *DateRange `json:"actual"` // nil until progress is recorded
	ID           string     `json:"id"`
	Project      string     `json:"project"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Assignee     string     `json:"assignee"`
	CreatedBy    string     `json:"createdBy"`
	PlanStatus   PlanStatus `json:"planStatus"`
	ActualStatus Status     `json:"actualStatus"`
	Priority     Priority   `json:"priority"`
	Planned      DateRange  `json:"planned"`
}

// ChangeRequest asks the tech leads to change a task (or the plan in general).
// Fields are ordered to minimize memory padding.
type ChangeRequest struct {
	CreatedAt   time.Time     `json:"createdAt"`
	TaskID      *string       `json:"taskId"`
	ReviewedBy  *string       `json:"reviewedBy"`
	ReviewedAt  *time.Time    `json:"reviewedAt"`
	ReviewNote  *string       `json:"reviewNote"`
	ID          string        `json:"id"`
	Type        string        `json:"type"`
	RequestedBy string        `json:"requestedBy"`
	Customer    string        `json:"customer"`
	Description string        `json:"description"`
	Status      RequestStatus `json:"status"`
}

// FieldChange is the structured delta carried by a history entry.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

// HistoryEntry is an immutable audit record. History is append-only and is
// never dropped by a merge.
type HistoryEntry struct {
	Timestamp time.Time    `json:"timestamp"`
	Change    *FieldChange `json:"change,omitempty"`
	ID        string       `json:"id"`
	TaskID    string       `json:"taskId"`
	Actor     string       `json:"actor"`
	Action    string       `json:"action"`
	Reason    string       `json:"reason,omitempty"`
}

// History action tags.
const (
	ActionCreate         = "create"
	ActionUpdate         = "update"
	ActionMove           = "move"
	ActionPriority       = "priority"
	ActionDelete         = "delete"
	ActionRequest        = "request"
	ActionRequestApprove = "request-approve"
	ActionRequestReject  = "request-reject"
	ActionImport         = "import"
)

// FindTask returns the index of the task with id, or -1.
func (d *Document) FindTask(id string) int {
	return slices.IndexFunc(d.Tasks, func(t Task) bool { return t.ID == id })
}

// FindRequest returns the index of the change request with id, or -1.
func (d *Document) FindRequest(id string) int {
	return slices.IndexFunc(d.Requests, func(r ChangeRequest) bool { return r.ID == id })
}

// FindUser returns the user with id.
func (d *Document) FindUser(id string) (User, bool) {
	i := slices.IndexFunc(d.Users, func(u User) bool { return u.ID == id })
	if i < 0 {
		return User{}, false
	}
	return d.Users[i], true
}

// TaskHistory returns the history entries recorded for a task, in stored order.
func (d *Document) TaskHistory(taskID string) []HistoryEntry {
	var entries []HistoryEntry
	for _, h := range d.History {
		if h.TaskID == taskID {
			entries = append(entries, h)
		}
	}
	return entries
}

// AppendHistory prepends entries so the log stays newest-first.
func (d *Document) AppendHistory(entries ...HistoryEntry) {
	d.History = append(slices.Clone(entries), d.History...)
}

// Validate checks the per-record invariants of the document.
func (d *Document) Validate() error {
	if d.Version == "" {
		return fmt.Errorf("%w: version is empty", ErrValidation)
	}
	seen := make(map[string]bool, len(d.Users))
	for _, u := range d.Users {
		if u.ID == "" || seen[u.ID] {
			return fmt.Errorf("%w: missing or duplicate user id %q", ErrValidation, u.ID)
		}
		seen[u.ID] = true
	}
	seen = make(map[string]bool, len(d.Tasks))
	for _, t := range d.Tasks {
		if t.ID == "" || seen[t.ID] {
			return fmt.Errorf("%w: missing or duplicate task id %q", ErrValidation, t.ID)
		}
		seen[t.ID] = true
	}
	seen = make(map[string]bool, len(d.Requests))
	for _, r := range d.Requests {
		if r.ID == "" || seen[r.ID] {
			return fmt.Errorf("%w: missing or duplicate request id %q", ErrValidation, r.ID)
		}
		seen[r.ID] = true
		if err := r.validateReview(); err != nil {
			return err
		}
	}
	seen = make(map[string]bool, len(d.History))
	for _, h := range d.History {
		if h.ID == "" || seen[h.ID] {
			return fmt.Errorf("%w: missing or duplicate history id %q", ErrValidation, h.ID)
		}
		seen[h.ID] = true
	}
	return nil
}

// Normalize replaces nil collections with empty ones so the document always
// serializes with arrays rather than nulls.
func (d *Document) Normalize() {
	if d.Users == nil {
		d.Users = []User{}
	}
	if d.Tasks == nil {
		d.Tasks = []Task{}
	}
	if d.Requests == nil {
		d.Requests = []ChangeRequest{}
	}
	if d.History == nil {
		d.History = []HistoryEntry{}
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := &Document{
		LastUpdated: d.LastUpdated,
		Version:     d.Version,
		Users:       slices.Clone(d.Users),
		Tasks:       slices.Clone(d.Tasks),
		Requests:    slices.Clone(d.Requests),
		History:     slices.Clone(d.History),
	}
	for i := range c.Users {
		c.Users[i].Roles = slices.Clone(c.Users[i].Roles)
	}
	for i := range c.Tasks {
		c.Tasks[i].Actual = clonePtr(c.Tasks[i].Actual)
	}
	for i := range c.Requests {
		r := &c.Requests[i]
		r.TaskID = clonePtr(r.TaskID)
		r.ReviewedBy = clonePtr(r.ReviewedBy)
		r.ReviewedAt = clonePtr(r.ReviewedAt)
		r.ReviewNote = clonePtr(r.ReviewNote)
	}
	for i := range c.History {
		c.History[i].Change = clonePtr(c.History[i].Change)
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

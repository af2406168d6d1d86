package domain

import (
	"fmt"
	"time"
)

// Status is a position on the actual-progress lifecycle of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// PlanStatus is a position on the planning lifecycle. It shares the ordered
// lifecycle of Status plus the "today" marker.
type PlanStatus string

const (
	PlanTodo       PlanStatus = "todo"
	PlanToday      PlanStatus = "today"
	PlanInProgress PlanStatus = "in-progress"
	PlanDone       PlanStatus = "done"
)

// Priority flags a task on the board.
type Priority string

const (
	PriorityNormal   Priority = "normal"
	PriorityCritical Priority = "critical"
	PriorityBlocked  Priority = "blocked"
)

// RequestStatus is the state of a change request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// AllStatuses returns the actual-progress lifecycle in order.
func AllStatuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone}
}

// AllPlanStatuses returns the planning lifecycle in display order.
func AllPlanStatuses() []PlanStatus {
	return []PlanStatus{PlanTodo, PlanToday, PlanInProgress, PlanDone}
}

// IsValid returns true if the status is one of the lifecycle values.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// IsValid returns true if the plan status is one of the planning values.
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanTodo, PlanToday, PlanInProgress, PlanDone:
		return true
	}
	return false
}

// IsValid returns true if the priority is known.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityNormal, PriorityCritical, PriorityBlocked:
		return true
	}
	return false
}

// requestTransitions defines the allowed change request transitions.
// Resolution is terminal.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestApproved, RequestRejected},
	RequestApproved: {},
	RequestRejected: {},
}

// CanTransitionTo returns true if the request status can move to target.
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	for _, t := range requestTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Resolve moves a pending request to approved or rejected and stamps the review fields.
func (r *ChangeRequest) Resolve(status RequestStatus, reviewer, note string, at time.Time) error {
	if !r.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, status)
	}
	r.Status = status
	r.ReviewedBy = &reviewer
	r.ReviewedAt = &at
	r.ReviewNote = &note
	return nil
}

// validateReview checks that the review fields are set iff the request is resolved.
func (r *ChangeRequest) validateReview() error {
	if _, ok := requestTransitions[r.Status]; !ok {
		return fmt.Errorf("%w: request %s has status %q", ErrValidation, r.ID, r.Status)
	}
	reviewed := r.ReviewedBy != nil || r.ReviewedAt != nil || r.ReviewNote != nil
	complete := r.ReviewedBy != nil && r.ReviewedAt != nil && r.ReviewNote != nil
	if r.Status == RequestPending && reviewed {
		return fmt.Errorf("%w: pending request %s carries review fields", ErrValidation, r.ID)
	}
	if r.Status != RequestPending && !complete {
		return fmt.Errorf("%w: resolved request %s is missing review fields", ErrValidation, r.ID)
	}
	return nil
}

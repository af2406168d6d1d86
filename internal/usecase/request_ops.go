package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/runoshun/boardsync/internal/domain"
)

// AddRequestInput contains the parameters for filing a change request.
type AddRequestInput struct {
	TaskID      *string // Task the request refers to (optional)
	Actor       string  // Requester (required)
	Type        string  // Request type tag, e.g. "schedule" or "scope"
	Customer    string
	Description string // Required
}

// AddRequestOutput contains the created request and save result.
type AddRequestOutput struct {
	Request domain.ChangeRequest
	Result  domain.SaveResult
}

// AddRequest is the use case for filing a change request.
type AddRequest struct {
	engine domain.SyncEngine
	clock  domain.Clock
}

// NewAddRequest creates a new AddRequest use case.
func NewAddRequest(engine domain.SyncEngine, clock domain.Clock) *AddRequest {
	return &AddRequest{engine: engine, clock: clock}
}

// Execute files a pending request.
func (uc *AddRequest) Execute(ctx context.Context, in AddRequestInput) (*AddRequestOutput, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, domain.ErrEmptyDescription
	}
	reqType := strings.TrimSpace(in.Type)
	if reqType == "" {
		reqType = "general"
	}

	var req domain.ChangeRequest
	res, err := mutateAs(ctx, uc.engine, in.Actor, "File change request", func(doc *domain.Document, user domain.User) error {
		taskID := ""
		if in.TaskID != nil && *in.TaskID != "" {
			if doc.FindTask(*in.TaskID) < 0 {
				return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, *in.TaskID)
			}
			taskID = *in.TaskID
		}
		now := uc.clock.Now()
		req = domain.ChangeRequest{
			ID:          domain.NewEntityID(),
			Type:        reqType,
			RequestedBy: user.ID,
			Customer:    in.Customer,
			Description: description,
			Status:      domain.RequestPending,
			CreatedAt:   now,
		}
		if taskID != "" {
			req.TaskID = &taskID
		}
		doc.Requests = append(doc.Requests, req)
		doc.AppendHistory(historyEntry(now, taskID, user.ID, domain.ActionRequest, description, nil))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &AddRequestOutput{Request: req, Result: res}, nil
}

// ResolveRequestInput contains the parameters for reviewing a change request.
type ResolveRequestInput struct {
	Actor     string // Reviewer; must be a tech lead
	RequestID string
	Note      string
	Approve   bool // true = approve, false = reject
}

// ResolveRequestOutput contains the resolved request and save result.
type ResolveRequestOutput struct {
	Request domain.ChangeRequest
	Result  domain.SaveResult
}

// ResolveRequest is the use case for approving or rejecting a change request.
type ResolveRequest struct {
	engine domain.SyncEngine
	clock  domain.Clock
}

// NewResolveRequest creates a new ResolveRequest use case.
func NewResolveRequest(engine domain.SyncEngine, clock domain.Clock) *ResolveRequest {
	return &ResolveRequest{engine: engine, clock: clock}
}

// Execute resolves a pending request. Resolution is one-way.
func (uc *ResolveRequest) Execute(ctx context.Context, in ResolveRequestInput) (*ResolveRequestOutput, error) {
	status, action := domain.RequestRejected, domain.ActionRequestReject
	if in.Approve {
		status, action = domain.RequestApproved, domain.ActionRequestApprove
	}

	var req domain.ChangeRequest
	res, err := mutateAs(ctx, uc.engine, in.Actor, fmt.Sprintf("Mark request %s %s", in.RequestID, status), func(doc *domain.Document, user domain.User) error {
		if !user.HasRole(domain.RoleTechLead) {
			return fmt.Errorf("%w: only tech leads review requests", domain.ErrPermissionDenied)
		}
		i := doc.FindRequest(in.RequestID)
		if i < 0 {
			return fmt.Errorf("%w: %s", domain.ErrRequestNotFound, in.RequestID)
		}
		r := &doc.Requests[i]
		prev := r.Status
		now := uc.clock.Now()
		if err := r.Resolve(status, user.ID, in.Note, now); err != nil {
			return err
		}
		taskID := ""
		if r.TaskID != nil {
			taskID = *r.TaskID
		}
		doc.AppendHistory(historyEntry(now, taskID, user.ID, action, in.Note,
			&domain.FieldChange{Field: "status", OldValue: string(prev), NewValue: string(status)}))
		req = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ResolveRequestOutput{Request: req, Result: res}, nil
}

// ListRequestsInput contains optional filters.
type ListRequestsInput struct {
	Status domain.RequestStatus
}

// ListRequestsOutput contains the matching requests in board order.
type ListRequestsOutput struct {
	Requests []domain.ChangeRequest
}

// ListRequests is the use case for listing change requests.
type ListRequests struct {
	engine domain.SyncEngine
}

// NewListRequests creates a new ListRequests use case.
func NewListRequests(engine domain.SyncEngine) *ListRequests {
	return &ListRequests{engine: engine}
}

// Execute returns the requests, optionally filtered by status.
func (uc *ListRequests) Execute(ctx context.Context, in ListRequestsInput) (*ListRequestsOutput, error) {
	doc, err := currentDocument(ctx, uc.engine)
	if err != nil {
		return nil, err
	}
	reqs := make([]domain.ChangeRequest, 0, len(doc.Requests))
	for _, r := range doc.Requests {
		if in.Status == "" || r.Status == in.Status {
			reqs = append(reqs, r)
		}
	}
	return &ListRequestsOutput{Requests: reqs}, nil
}

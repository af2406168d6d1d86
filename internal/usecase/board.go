package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runoshun/boardsync/internal/domain"
)

// mutateAs runs fn inside an engine mutation after checking that actor is on
// the roster and may edit the board. Viewers are read-only.
func mutateAs(ctx context.Context, engine domain.SyncEngine, actor, summary string, fn func(doc *domain.Document, user domain.User) error) (domain.SaveResult, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return domain.SaveResult{}, domain.ErrEmptyActor
	}
	return engine.Mutate(ctx, func(doc *domain.Document) error {
		user, ok := doc.FindUser(actor)
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, actor)
		}
		if !user.HasRole(domain.RoleTechLead) && !user.HasRole(domain.RoleSalesLead) {
			return fmt.Errorf("%w: %s is read-only", domain.ErrPermissionDenied, actor)
		}
		return fn(doc, user)
	}, summary)
}

// historyEntry builds an attributed history record.
func historyEntry(at time.Time, taskID, actor, action, reason string, change *domain.FieldChange) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:        domain.NewEntityID(),
		Timestamp: at,
		TaskID:    taskID,
		Actor:     actor,
		Action:    action,
		Reason:    reason,
		Change:    change,
	}
}

// validateDay checks an optional YYYY-MM-DD date.
func validateDay(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, value); err != nil {
		return fmt.Errorf("%w: %s must be YYYY-MM-DD, got %q", domain.ErrValidation, field, value)
	}
	return nil
}

// validateAssignee checks that a non-empty assignee is on the roster.
func validateAssignee(doc *domain.Document, assignee string) error {
	if assignee == "" {
		return nil
	}
	if _, ok := doc.FindUser(assignee); !ok {
		return fmt.Errorf("%w: assignee %s", domain.ErrUserNotFound, assignee)
	}
	return nil
}

// currentDocument returns the engine document, loading it first if needed.
func currentDocument(ctx context.Context, engine domain.SyncEngine) (*domain.Document, error) {
	if doc := engine.Document(); doc != nil {
		return doc, nil
	}
	doc, _, err := engine.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return doc, nil
}

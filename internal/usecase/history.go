package usecase

import (
	"context"

	"github.com/runoshun/boardsync/internal/domain"
)

// ListHistoryInput contains optional filters.
type ListHistoryInput struct {
	TaskID string // Only entries for this task
	Actor  string // Only entries by this user
	Limit  int    // 0 = all
}

// ListHistoryOutput contains the matching entries, newest first.
type ListHistoryOutput struct {
	Entries []domain.HistoryEntry
}

// ListHistory is the use case for reading the audit log.
type ListHistory struct {
	engine domain.SyncEngine
}

// NewListHistory creates a new ListHistory use case.
func NewListHistory(engine domain.SyncEngine) *ListHistory {
	return &ListHistory{engine: engine}
}

// Execute returns the history entries matching the filters.
func (uc *ListHistory) Execute(ctx context.Context, in ListHistoryInput) (*ListHistoryOutput, error) {
	doc, err := currentDocument(ctx, uc.engine)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.HistoryEntry, 0, len(doc.History))
	for _, h := range doc.History {
		if in.TaskID != "" && h.TaskID != in.TaskID {
			continue
		}
		if in.Actor != "" && h.Actor != in.Actor {
			continue
		}
		entries = append(entries, h)
		if in.Limit > 0 && len(entries) == in.Limit {
			break
		}
	}
	return &ListHistoryOutput{Entries: entries}, nil
}

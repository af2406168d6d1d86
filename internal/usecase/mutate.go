package usecase

import (
	"context"
	"strings"

	"github.com/runoshun/boardsync/internal/domain"
)

// MutateInput contains the parameters for an arbitrary document change.
type MutateInput struct {
	Fn      func(doc *domain.Document) error // Applied to a copy of the current document
	Actor   string                           // User making the change (required)
	Summary string                           // Commit message / queue summary (required)
}

// MutateOutput contains the result of a mutation.
type MutateOutput struct {
	Result domain.SaveResult
}

// Mutate is the generic use case behind every board change.
type Mutate struct {
	engine domain.SyncEngine
}

// NewMutate creates a new Mutate use case.
func NewMutate(engine domain.SyncEngine) *Mutate {
	return &Mutate{engine: engine}
}

// Execute applies the change as actor and saves it.
func (uc *Mutate) Execute(ctx context.Context, in MutateInput) (*MutateOutput, error) {
	if strings.TrimSpace(in.Summary) == "" {
		in.Summary = "Update board"
	}
	res, err := mutateAs(ctx, uc.engine, in.Actor, in.Summary, func(doc *domain.Document, _ domain.User) error {
		return in.Fn(doc)
	})
	if err != nil {
		return nil, err
	}
	return &MutateOutput{Result: res}, nil
}

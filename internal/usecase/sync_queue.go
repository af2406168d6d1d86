package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/boardsync/internal/domain"
)

// FlushQueueOutput contains the result of a flush.
type FlushQueueOutput struct {
	Result domain.FlushResult
	Status domain.ConnectivityStatus
}

// FlushQueue is the use case for an explicit sync.
type FlushQueue struct {
	engine domain.SyncEngine
}

// NewFlushQueue creates a new FlushQueue use case.
func NewFlushQueue(engine domain.SyncEngine) *FlushQueue {
	return &FlushQueue{engine: engine}
}

// Execute delivers pending operations in order.
func (uc *FlushQueue) Execute(ctx context.Context) (*FlushQueueOutput, error) {
	res, err := uc.engine.FlushQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("flush queue: %w", err)
	}
	return &FlushQueueOutput{Result: res, Status: uc.engine.Status()}, nil
}

// ListQueueOutput contains the pending operations.
type ListQueueOutput struct {
	Operations []domain.PendingOperation
	Status     domain.ConnectivityStatus
}

// ListQueue is the use case for inspecting pending operations.
type ListQueue struct {
	engine domain.SyncEngine
}

// NewListQueue creates a new ListQueue use case.
func NewListQueue(engine domain.SyncEngine) *ListQueue {
	return &ListQueue{engine: engine}
}

// Execute returns the queue in FIFO order.
func (uc *ListQueue) Execute(_ context.Context) (*ListQueueOutput, error) {
	ops, err := uc.engine.Queue()
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	return &ListQueueOutput{Operations: ops, Status: uc.engine.Status()}, nil
}

// ReconfigureInput contains the new sync configuration.
type ReconfigureInput struct {
	Config domain.SyncConfig
}

// Reconfigure is the use case for changing the remote coordinates or credential.
type Reconfigure struct {
	engine domain.SyncEngine
}

// NewReconfigure creates a new Reconfigure use case.
func NewReconfigure(engine domain.SyncEngine) *Reconfigure {
	return &Reconfigure{engine: engine}
}

// Execute stores the configuration and reinitializes the engine with it.
func (uc *Reconfigure) Execute(ctx context.Context, in ReconfigureInput) (*InitializeOutput, error) {
	if err := uc.engine.Reconfigure(in.Config); err != nil {
		return nil, fmt.Errorf("reconfigure: %w", err)
	}
	return NewInitialize(uc.engine).Execute(ctx, InitializeInput{})
}

// Package usecase contains application use cases.
package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/boardsync/internal/domain"
)

// InitializeInput contains the parameters for initializing the board.
type InitializeInput struct{}

// InitializeOutput contains the result of initializing the board.
type InitializeOutput struct {
	Document *domain.Document          // The loaded document
	Flush    *domain.FlushResult       // Set when queued operations were flushed
	Status   domain.ConnectivityStatus // Connectivity after loading (and flushing)
}

// Initialize is the use case for loading the board at startup.
type Initialize struct {
	engine domain.SyncEngine
}

// NewInitialize creates a new Initialize use case.
func NewInitialize(engine domain.SyncEngine) *Initialize {
	return &Initialize{engine: engine}
}

// Execute loads the document and delivers any queued operations when the
// remote is reachable.
func (uc *Initialize) Execute(ctx context.Context, _ InitializeInput) (*InitializeOutput, error) {
	doc, status, err := uc.engine.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	out := &InitializeOutput{Document: doc, Status: status}

	if status.State != domain.StateSynced || status.QueueLength == 0 {
		return out, nil
	}

	flush, err := uc.engine.FlushQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("flush queue: %w", err)
	}
	out.Flush = &flush
	out.Document = uc.engine.Document()
	out.Status = uc.engine.Status()
	return out, nil
}

// GetDocumentOutput contains the current document.
type GetDocumentOutput struct {
	Document *domain.Document
}

// GetDocument is the use case for reading the last loaded or merged snapshot.
type GetDocument struct {
	engine domain.SyncEngine
}

// NewGetDocument creates a new GetDocument use case.
func NewGetDocument(engine domain.SyncEngine) *GetDocument {
	return &GetDocument{engine: engine}
}

// Execute returns the current document, loading it if nothing is loaded yet.
func (uc *GetDocument) Execute(ctx context.Context) (*GetDocumentOutput, error) {
	doc, err := currentDocument(ctx, uc.engine)
	if err != nil {
		return nil, err
	}
	return &GetDocumentOutput{Document: doc}, nil
}

// Package app provides the dependency injection container for the application.
package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/runoshun/boardsync/internal/domain"
	"github.com/runoshun/boardsync/internal/engine"
	"github.com/runoshun/boardsync/internal/infra/config"
	"github.com/runoshun/boardsync/internal/infra/contentapi"
	"github.com/runoshun/boardsync/internal/infra/gitstore"
	"github.com/runoshun/boardsync/internal/infra/jsonstore"
	"github.com/runoshun/boardsync/internal/infra/logging"
	"github.com/runoshun/boardsync/internal/infra/sqlitestore"
	"github.com/runoshun/boardsync/internal/usecase"
)

// Options are the command-line overrides applied on top of config.toml.
type Options struct {
	DataDir  string        // Data directory ("" = domain.DefaultDataDir)
	LogLevel string        // Overrides [log].level when set
	Timeout  time.Duration // Overrides [remote].timeout when positive
}

// Config holds the resolved application paths.
type Config struct {
	DataDir   string // Root of all client-side state
	StorePath string // local.json or local.db
}

// newConfig resolves paths for a data directory and store kind.
func newConfig(dataDir, store string) Config {
	name := "local.json"
	if store == domain.StoreSQLite {
		name = "local.db"
	}
	return Config{DataDir: dataDir, StorePath: filepath.Join(dataDir, name)}
}

// Container provides dependency injection for the application.
// It holds all port implementations and provides factory methods for use cases.
type Container struct {
	// Ports (interfaces bound to implementations)
	Local  domain.LocalStore
	Engine domain.SyncEngine
	Clock  domain.Clock
	Logger domain.Logger

	// Pointer fields
	Settings *domain.Settings
	closers  []func() error

	Roster []domain.User
	Config Config
}

// New loads settings from the data directory and wires the production
// adapters selected by them.
func New(opts Options) (*Container, error) {
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = domain.DefaultDataDir()
	}

	settings, err := config.NewLoader(dataDir).Load()
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		settings.Log.Level = opts.LogLevel
	}
	if opts.Timeout > 0 {
		settings.Remote.Timeout = opts.Timeout
	}

	logger := logging.New(dataDir, logging.ParseLevel(settings.Log.Level))
	for _, w := range settings.Warnings {
		logger.Warn("config", w)
	}

	roster, err := config.LoadRoster(settings.Seed.Roster, dataDir)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	cfg := newConfig(dataDir, settings.Local.Store)
	c := &Container{
		Clock:    domain.RealClock{},
		Logger:   logger,
		Settings: settings,
		Roster:   roster,
		Config:   cfg,
		closers:  []func() error{logger.Close},
	}

	if settings.Local.Store == domain.StoreSQLite {
		store, err := sqlitestore.Open(cfg.StorePath)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.Local = store
		c.closers = append(c.closers, store.Close)
	} else {
		c.Local = jsonstore.New(cfg.StorePath)
	}

	c.Engine = engine.New(c.Local, c.remoteFactory(), c.Clock, logger, engine.Options{
		Roster:  roster,
		Timeout: settings.Remote.Timeout,
	})
	return c, nil
}

// NewWithDeps creates a new Container with custom dependencies for testing.
func NewWithDeps(cfg Config, local domain.LocalStore, factory domain.RemoteFactory, clock domain.Clock, logger domain.Logger) *Container {
	settings := domain.NewDefaultSettings()
	return &Container{
		Local:    local,
		Engine:   engine.New(local, factory, clock, logger, engine.Options{Timeout: settings.Remote.Timeout}),
		Clock:    clock,
		Logger:   logger,
		Settings: settings,
		Config:   cfg,
	}
}

// Close releases the log file and database handles.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}

// seed returns the document used when the remote path does not exist yet.
func (c *Container) seed() *domain.Document {
	return domain.NewSeedDocument(c.Clock.Now(), c.Roster)
}

// remoteFactory builds the remote client for the configured backend.
func (c *Container) remoteFactory() domain.RemoteFactory {
	remote := c.Settings.Remote
	return func(cfg domain.SyncConfig) (domain.RemoteDocumentClient, error) {
		switch remote.Backend {
		case domain.BackendGit:
			root := remote.GitRoot
			if root == "" {
				root = filepath.Join(c.Config.DataDir, "repos")
			}
			return gitstore.NewRemote(root, cfg, c.seed), nil
		case domain.BackendContents, "":
			return contentapi.New(remote.APIURL, cfg, remote.Timeout, c.seed), nil
		default:
			return nil, fmt.Errorf("%w: unknown remote backend %q", domain.ErrValidation, remote.Backend)
		}
	}
}

// UseCase factory methods

// InitializeUseCase returns a new Initialize use case.
func (c *Container) InitializeUseCase() *usecase.Initialize {
	return usecase.NewInitialize(c.Engine)
}

// GetDocumentUseCase returns a new GetDocument use case.
func (c *Container) GetDocumentUseCase() *usecase.GetDocument {
	return usecase.NewGetDocument(c.Engine)
}

// MutateUseCase returns a new Mutate use case.
func (c *Container) MutateUseCase() *usecase.Mutate {
	return usecase.NewMutate(c.Engine)
}

// FlushQueueUseCase returns a new FlushQueue use case.
func (c *Container) FlushQueueUseCase() *usecase.FlushQueue {
	return usecase.NewFlushQueue(c.Engine)
}

// ListQueueUseCase returns a new ListQueue use case.
func (c *Container) ListQueueUseCase() *usecase.ListQueue {
	return usecase.NewListQueue(c.Engine)
}

// ReconfigureUseCase returns a new Reconfigure use case.
func (c *Container) ReconfigureUseCase() *usecase.Reconfigure {
	return usecase.NewReconfigure(c.Engine)
}

// AddTaskUseCase returns a new AddTask use case.
func (c *Container) AddTaskUseCase() *usecase.AddTask {
	return usecase.NewAddTask(c.Engine, c.Clock)
}

// UpdateTaskUseCase returns a new UpdateTask use case.
func (c *Container) UpdateTaskUseCase() *usecase.UpdateTask {
	return usecase.NewUpdateTask(c.Engine, c.Clock)
}

// MoveTaskUseCase returns a new MoveTask use case.
func (c *Container) MoveTaskUseCase() *usecase.MoveTask {
	return usecase.NewMoveTask(c.Engine, c.Clock)
}

// SetPriorityUseCase returns a new SetPriority use case.
func (c *Container) SetPriorityUseCase() *usecase.SetPriority {
	return usecase.NewSetPriority(c.Engine, c.Clock)
}

// DeleteTaskUseCase returns a new DeleteTask use case.
func (c *Container) DeleteTaskUseCase() *usecase.DeleteTask {
	return usecase.NewDeleteTask(c.Engine, c.Clock)
}

// ListTasksUseCase returns a new ListTasks use case.
func (c *Container) ListTasksUseCase() *usecase.ListTasks {
	return usecase.NewListTasks(c.Engine)
}

// AddRequestUseCase returns a new AddRequest use case.
func (c *Container) AddRequestUseCase() *usecase.AddRequest {
	return usecase.NewAddRequest(c.Engine, c.Clock)
}

// ResolveRequestUseCase returns a new ResolveRequest use case.
func (c *Container) ResolveRequestUseCase() *usecase.ResolveRequest {
	return usecase.NewResolveRequest(c.Engine, c.Clock)
}

// ListRequestsUseCase returns a new ListRequests use case.
func (c *Container) ListRequestsUseCase() *usecase.ListRequests {
	return usecase.NewListRequests(c.Engine)
}

// ListHistoryUseCase returns a new ListHistory use case.
func (c *Container) ListHistoryUseCase() *usecase.ListHistory {
	return usecase.NewListHistory(c.Engine)
}

// ExportSnapshotUseCase returns a new ExportSnapshot use case.
func (c *Container) ExportSnapshotUseCase() *usecase.ExportSnapshot {
	return usecase.NewExportSnapshot(c.Engine)
}

// ImportSnapshotUseCase returns a new ImportSnapshot use case.
func (c *Container) ImportSnapshotUseCase() *usecase.ImportSnapshot {
	return usecase.NewImportSnapshot(c.Engine, c.Clock)
}

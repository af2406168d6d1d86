// Package engine implements the sync engine: loading, saving and queue
// flushing of the board document against a remote with optimistic
// concurrency, falling back to the local store when the remote is
// unreachable.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/runoshun/boardsync/internal/domain"
)

const logCategory = "sync"

// mergedSuffix is appended to the message of a write retried after a merge.
const mergedSuffix = " (merged)"

// Options configures an Engine.
type Options struct {
	Roster  []domain.User // Seed roster (nil = built-in)
	Timeout time.Duration // Per remote call; 0 = domain.DefaultTimeout
}

// Engine serializes every operation on the document behind one mutex.
// The lock is held across remote calls so concurrent callers queue behind
// the in-flight operation.
type Engine struct {
	local   domain.LocalStore
	factory domain.RemoteFactory
	clock   domain.Clock
	logger  domain.Logger
	remote  domain.RemoteDocumentClient
	lastErr error
	doc     *domain.Document
	cfg     *domain.SyncConfig
	state   domain.SyncState
	token   domain.VersionToken
	opts    Options
	mu      sync.Mutex
	authErr bool
}

var _ domain.SyncEngine = (*Engine)(nil)

// New creates an engine in the Unloaded state.
func New(local domain.LocalStore, factory domain.RemoteFactory, clock domain.Clock, logger domain.Logger, opts Options) *Engine {
	if clock == nil {
		clock = domain.RealClock{}
	}
	if logger == nil {
		logger = domain.NopLogger{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = domain.DefaultTimeout
	}
	return &Engine{
		local:   local,
		factory: factory,
		clock:   clock,
		logger:  logger,
		opts:    opts,
		state:   domain.StateUnloaded,
	}
}

// Document returns a copy of the current document, or nil before Load.
func (e *Engine) Document() *domain.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// Status returns the current connectivity status.
func (e *Engine) Status() domain.ConnectivityStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// Queue returns the pending operations in FIFO order.
func (e *Engine) Queue() ([]domain.PendingOperation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.local.LoadQueue()
}

// Load fetches the document from the remote when configured, falling back to
// the local snapshot (or the seed document) on failure. The returned error is
// reserved for local store failures; remote failures are reported in the
// status.
func (e *Engine) Load(ctx context.Context) (*domain.Document, domain.ConnectivityStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.loadLocked(ctx); err != nil {
		return nil, e.statusLocked(), err
	}
	return e.doc.Clone(), e.statusLocked(), nil
}

func (e *Engine) loadLocked(ctx context.Context) error {
	e.state = domain.StateLoading

	cfg, err := e.local.LoadConfig()
	if err != nil {
		e.state = domain.StateError
		return fmt.Errorf("load sync config: %w", err)
	}

	if cfg == nil || !cfg.IsComplete() {
		e.cfg, e.remote, e.lastErr, e.token = nil, nil, nil, ""
		if err := e.fallbackLocked(); err != nil {
			return err
		}
		e.state = domain.StateLocalOnly
		e.logger.Info(logCategory, "no sync configuration; working locally")
		return nil
	}

	if e.cfg == nil || *e.cfg != *cfg {
		e.cfg, e.remote = cfg, nil
	}
	if !e.authErr {
		if err := e.resumeHeldLocked(); err != nil {
			return err
		}
	}
	if e.authErr {
		if err := e.fallbackLocked(); err != nil {
			return err
		}
		e.state = domain.StateError
		return nil
	}

	if err := e.connectLocked(ctx); err != nil {
		e.failLocked(err)
		return e.fallbackLocked()
	}

	queue, err := e.local.LoadQueue()
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	e.overlayQueueLocked(queue)
	if err := e.local.SaveDocument(e.doc); err != nil {
		return fmt.Errorf("save local document: %w", err)
	}
	e.logger.Info(logCategory, fmt.Sprintf("loaded %s at %q (%d pending)", e.cfg, e.token, len(queue)))
	return nil
}

// resumeHeldLocked restores the auth block of an earlier process: held
// operations in the queue mean the credential was rejected and nothing has
// reconfigured the engine since.
func (e *Engine) resumeHeldLocked() error {
	queue, err := e.local.LoadQueue()
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	if !slices.ContainsFunc(queue, func(op domain.PendingOperation) bool { return op.Held }) {
		return nil
	}
	e.authErr = true
	if e.lastErr == nil {
		e.lastErr = fmt.Errorf("%w: credential rejected earlier", domain.ErrAuth)
	}
	e.logger.Warn(logCategory, "held changes pending; sync blocked until reconfigured")
	return nil
}

// connectLocked probes and reads the remote. On success the engine is
// Synced with the remote document and token.
func (e *Engine) connectLocked(ctx context.Context) error {
	if e.remote == nil {
		remote, err := e.factory(*e.cfg)
		if err != nil {
			return fmt.Errorf("create remote client: %w", err)
		}
		e.remote = remote
	}

	if err := e.call(ctx, func(ctx context.Context) error {
		return e.remote.Probe(ctx)
	}); err != nil {
		return err
	}

	var (
		doc   *domain.Document
		token domain.VersionToken
	)
	if err := e.call(ctx, func(ctx context.Context) error {
		var err error
		doc, token, err = e.remote.Read(ctx)
		return err
	}); err != nil {
		return err
	}

	e.doc, e.token = doc, token
	e.state, e.lastErr = domain.StateSynced, nil
	return nil
}

// overlayQueueLocked shows queued edits on top of the current document until
// a flush lands them. The newest snapshot carries all earlier ones.
func (e *Engine) overlayQueueLocked(queue []domain.PendingOperation) {
	if len(queue) > 0 {
		e.doc = Merge(e.doc, queue[len(queue)-1].Document)
	}
}

// fallbackLocked loads the local snapshot, or the seed document if none.
func (e *Engine) fallbackLocked() error {
	doc, err := e.local.LoadDocument()
	if err != nil {
		return fmt.Errorf("load local document: %w", err)
	}
	if doc == nil {
		doc = domain.NewSeedDocument(e.clock.Now(), e.opts.Roster)
	}
	e.doc = doc
	return nil
}

// failLocked records a remote failure and moves to the Error state.
func (e *Engine) failLocked(err error) {
	e.state, e.lastErr = domain.StateError, err
	if errors.Is(err, domain.ErrAuth) {
		e.authErr = true
		e.logger.Error(logCategory, "credential rejected; sync blocked until reconfigured: "+err.Error())
		return
	}
	e.logger.Warn(logCategory, "remote unavailable: "+err.Error())
}

// Save accepts doc locally and tries to write it to the remote.
//
// The result tag tells the caller whether the document is durably synced or
// deferred. The error is non-nil only when local persistence failed.
func (e *Engine) Save(ctx context.Context, doc *domain.Document, message string) (domain.SaveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveLocked(ctx, doc, message)
}

// Mutate applies fn to a copy of the current document and saves the result.
// If fn fails nothing is saved. An Unloaded engine is loaded first.
func (e *Engine) Mutate(ctx context.Context, fn func(doc *domain.Document) error, message string) (domain.SaveResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == domain.StateUnloaded || e.doc == nil {
		if err := e.loadLocked(ctx); err != nil {
			return domain.SaveResult{}, err
		}
	}

	doc := e.doc.Clone()
	if err := fn(doc); err != nil {
		return domain.SaveResult{}, err
	}
	return e.saveLocked(ctx, doc, message)
}

func (e *Engine) saveLocked(ctx context.Context, doc *domain.Document, message string) (domain.SaveResult, error) {
	if doc == nil {
		return domain.SaveResult{}, fmt.Errorf("%w: nil document", domain.ErrValidation)
	}
	doc = doc.Clone()
	doc.Normalize()
	doc.LastUpdated = e.clock.Now()

	if e.authErr {
		if err := e.persistLocked(doc); err != nil {
			return domain.SaveResult{}, err
		}
		if err := e.enqueueLocked(doc, message, e.token, true); err != nil {
			return domain.SaveResult{}, err
		}
		return domain.SaveResult{Status: domain.SaveLocal, Document: doc.Clone(), Err: e.lastErr}, nil
	}

	if e.state != domain.StateSynced {
		if err := e.persistLocked(doc); err != nil {
			return domain.SaveResult{}, err
		}
		if err := e.enqueueLocked(doc, message, e.token, false); err != nil {
			return domain.SaveResult{}, err
		}
		return domain.SaveResult{Status: domain.SaveQueued, Document: doc.Clone(), Err: e.lastErr}, nil
	}

	queue, err := e.local.LoadQueue()
	if err != nil {
		return domain.SaveResult{}, fmt.Errorf("load queue: %w", err)
	}
	if len(queue) > 0 {
		// Older operations go first.
		if err := e.persistLocked(doc); err != nil {
			return domain.SaveResult{}, err
		}
		if err := e.enqueueLocked(doc, message, e.token, false); err != nil {
			return domain.SaveResult{}, err
		}
		res, err := e.flushLocked(ctx)
		if err != nil {
			return domain.SaveResult{}, err
		}
		if res.Remaining == 0 {
			return domain.SaveResult{Status: domain.SaveSuccess, Document: e.doc.Clone()}, nil
		}
		return domain.SaveResult{Status: domain.SaveQueued, Document: doc.Clone(), Err: res.Err}, nil
	}

	landed, token, _, err := e.writeMergingLocked(ctx, doc, e.token, message)
	if err == nil {
		e.doc, e.token = landed, token
		if err := e.local.SaveDocument(landed); err != nil {
			return domain.SaveResult{Status: domain.SaveSuccess, Document: landed.Clone()}, fmt.Errorf("save local document: %w", err)
		}
		return domain.SaveResult{Status: domain.SaveSuccess, Document: landed.Clone()}, nil
	}

	if perr := e.persistLocked(doc); perr != nil {
		return domain.SaveResult{}, perr
	}
	switch {
	case errors.Is(err, domain.ErrAuth):
		e.failLocked(err)
		if qerr := e.enqueueLocked(doc, message, e.token, true); qerr != nil {
			return domain.SaveResult{}, qerr
		}
		return domain.SaveResult{Status: domain.SaveLocal, Document: doc.Clone(), Err: err}, nil
	case errors.Is(err, domain.ErrConflict):
		e.lastErr = err
		e.logger.Warn(logCategory, "merge retry conflicted; queued: "+message)
		if qerr := e.enqueueLocked(doc, message, e.token, false); qerr != nil {
			return domain.SaveResult{}, qerr
		}
		return domain.SaveResult{Status: domain.SaveConflict, Document: doc.Clone(), Err: err}, nil
	default:
		e.failLocked(err)
		if qerr := e.enqueueLocked(doc, message, e.token, false); qerr != nil {
			return domain.SaveResult{}, qerr
		}
		return domain.SaveResult{Status: domain.SaveQueued, Document: doc.Clone(), Err: err}, nil
	}
}

// writeMergingLocked writes doc against token. On a conflict it reads the
// remote, merges and retries exactly once. It returns the document that
// landed, its token, and whether a merge was needed.
func (e *Engine) writeMergingLocked(ctx context.Context, doc *domain.Document, token domain.VersionToken, message string) (*domain.Document, domain.VersionToken, bool, error) {
	newToken, err := e.write(ctx, doc, token, message)
	if err == nil {
		return doc, newToken, false, nil
	}
	if !errors.Is(err, domain.ErrConflict) {
		return nil, "", false, err
	}
	e.logger.Info(logCategory, fmt.Sprintf("conflict writing %q at %q; merging", message, token))

	var (
		remoteDoc   *domain.Document
		remoteToken domain.VersionToken
	)
	if err := e.call(ctx, func(ctx context.Context) error {
		var err error
		remoteDoc, remoteToken, err = e.remote.Read(ctx)
		return err
	}); err != nil {
		return nil, "", false, err
	}

	merged := Merge(remoteDoc, doc)
	merged.LastUpdated = e.clock.Now()
	newToken, err = e.write(ctx, merged, remoteToken, message+mergedSuffix)
	if err != nil {
		return nil, "", false, err
	}
	return merged, newToken, true, nil
}

func (e *Engine) write(ctx context.Context, doc *domain.Document, token domain.VersionToken, message string) (domain.VersionToken, error) {
	var newToken domain.VersionToken
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		newToken, err = e.remote.Write(ctx, doc, token, message)
		return err
	})
	return newToken, err
}

// call runs one remote call under the per-call timeout. A deadline or
// cancellation is reported as a network error.
func (e *Engine) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	err := fn(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNetwork) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil) {
		return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	return err
}

func (e *Engine) persistLocked(doc *domain.Document) error {
	if err := e.local.SaveDocument(doc); err != nil {
		return fmt.Errorf("save local document: %w", err)
	}
	e.doc = doc.Clone()
	return nil
}

func (e *Engine) enqueueLocked(doc *domain.Document, summary string, base domain.VersionToken, held bool) error {
	queue, err := e.local.LoadQueue()
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	now := e.clock.Now()
	queue = append(queue, domain.PendingOperation{
		ID:         domain.NewOperationID(now),
		EnqueuedAt: now,
		Summary:    summary,
		BaseToken:  base,
		Document:   doc.Clone(),
		Held:       held,
	})
	if err := e.local.SaveQueue(queue); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	e.logger.Debug(logCategory, fmt.Sprintf("queued %q (%d pending)", summary, len(queue)))
	return nil
}

// FlushQueue delivers pending operations strictly in FIFO order and stops at
// the first failure. A non-Synced engine reconnects first. The error is
// non-nil only for local store failures; remote failures are in the result.
func (e *Engine) FlushQueue(ctx context.Context) (domain.FlushResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked(ctx)
}

func (e *Engine) flushLocked(ctx context.Context) (domain.FlushResult, error) {
	queue, err := e.local.LoadQueue()
	if err != nil {
		return domain.FlushResult{}, fmt.Errorf("load queue: %w", err)
	}
	if len(queue) == 0 {
		return domain.FlushResult{}, nil
	}

	switch {
	case e.authErr:
		return domain.FlushResult{Remaining: len(queue), Err: e.lastErr}, nil
	case e.state == domain.StateUnloaded:
		if err := e.loadLocked(ctx); err != nil {
			return domain.FlushResult{}, err
		}
		if e.state != domain.StateSynced {
			return domain.FlushResult{Remaining: len(queue), Err: e.unsyncedErr()}, nil
		}
	case e.state != domain.StateSynced:
		if e.cfg == nil {
			return domain.FlushResult{Remaining: len(queue), Err: domain.ErrNotConfigured}, nil
		}
		if err := e.connectLocked(ctx); err != nil {
			e.failLocked(err)
			return domain.FlushResult{Remaining: len(queue), Err: err}, nil
		}
		e.overlayQueueLocked(queue)
	}

	var (
		prevBase     domain.VersionToken
		prevToken    domain.VersionToken
		prevVerbatim bool
	)
	for i, op := range queue {
		base := op.BaseToken
		if i > 0 && prevVerbatim && op.BaseToken == prevBase {
			// The previous snapshot landed unchanged and this one builds on it.
			base = prevToken
		}

		landed, token, merged, err := e.writeMergingLocked(ctx, op.Document, base, op.Summary)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				e.lastErr = err
				e.logger.Warn(logCategory, fmt.Sprintf("flush stopped at %q: %v", op.Summary, err))
			} else {
				e.failLocked(err)
			}
			e.overlayQueueLocked(queue[i:])
			return domain.FlushResult{Processed: i, Remaining: len(queue) - i, Err: err}, nil
		}

		e.doc, e.token = landed, token
		prevBase, prevToken, prevVerbatim = op.BaseToken, token, !merged
		if err := e.local.SaveQueue(queue[i+1:]); err != nil {
			return domain.FlushResult{Processed: i + 1, Remaining: len(queue) - i - 1}, fmt.Errorf("save queue: %w", err)
		}
		e.logger.Info(logCategory, fmt.Sprintf("flushed %q (merged=%t)", op.Summary, merged))
	}

	if err := e.local.SaveDocument(e.doc); err != nil {
		return domain.FlushResult{Processed: len(queue)}, fmt.Errorf("save local document: %w", err)
	}
	return domain.FlushResult{Processed: len(queue)}, nil
}

func (e *Engine) unsyncedErr() error {
	if e.lastErr != nil {
		return e.lastErr
	}
	return domain.ErrNotConfigured
}

// Reconfigure stores a new sync configuration and resets the engine to
// Unloaded. Operations held while auth-blocked are released into the queue,
// each run folded into one snapshot, so they reach the remote on the next
// flush. Held operations survive restarts, so this works from a fresh process.
func (e *Engine) Reconfigure(cfg domain.SyncConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.local.SaveConfig(cfg); err != nil {
		return fmt.Errorf("save sync config: %w", err)
	}

	queue, err := e.local.LoadQueue()
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}
	if released, n := releaseHeld(queue); n > 0 {
		if err := e.local.SaveQueue(released); err != nil {
			return fmt.Errorf("save queue: %w", err)
		}
		e.logger.Info(logCategory, fmt.Sprintf("released %d held change(s)", n))
	}

	e.logger.Info(logCategory, "reconfigured: "+cfg.String())
	e.authErr = false
	e.remote, e.cfg, e.lastErr = nil, nil, nil
	e.state = domain.StateUnloaded
	return nil
}

// releaseHeld clears the held flag. Each run of consecutive held operations
// becomes one carrying the newest snapshot and every summary; snapshots are
// cumulative, so the last one holds all of the run's edits.
func releaseHeld(queue []domain.PendingOperation) ([]domain.PendingOperation, int) {
	out := make([]domain.PendingOperation, 0, len(queue))
	held, inRun := 0, false
	for _, op := range queue {
		if !op.Held {
			out = append(out, op)
			inRun = false
			continue
		}
		held++
		if inRun {
			last := &out[len(out)-1]
			last.Summary += "; " + op.Summary
			last.Document = op.Document
			continue
		}
		op.Held = false
		out = append(out, op)
		inRun = true
	}
	return out, held
}

func (e *Engine) statusLocked() domain.ConnectivityStatus {
	st := domain.ConnectivityStatus{
		State:       e.state,
		Err:         e.lastErr,
		AuthBlocked: e.authErr,
	}
	if queue, err := e.local.LoadQueue(); err == nil {
		st.QueueLength = len(queue)
	}

	switch e.state {
	case domain.StateUnloaded, domain.StateLoading:
		st.Message = "not loaded"
	case domain.StateLocalOnly:
		st.Message = "sync not configured; changes are kept locally"
	case domain.StateSynced:
		st.Message = "synced with " + e.cfg.String()
		if st.QueueLength > 0 {
			st.Message += fmt.Sprintf(" (%d pending)", st.QueueLength)
		}
	case domain.StateError:
		switch {
		case e.authErr:
			st.Message = "credential rejected; reconfigure to resume syncing"
		case errors.Is(e.lastErr, domain.ErrNotFound):
			st.Message = "repository not found: " + e.cfg.String()
		default:
			st.Message = fmt.Sprintf("remote unavailable (%s); changes are queued", domain.ErrorKind(e.lastErr))
		}
	}
	return st
}

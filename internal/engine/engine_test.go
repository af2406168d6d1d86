package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/boardsync/internal/domain"
	"github.com/runoshun/boardsync/internal/testutil"
)

type fixture struct {
	engine *Engine
	remote *testutil.MockRemote
	local  *testutil.MockLocalStore
	clock  *testutil.MockClock
}

func newFixture(t *testing.T, configured bool) *fixture {
	t.Helper()
	f := &fixture{
		remote: testutil.NewMockRemote(),
		local:  testutil.NewMockLocalStore(),
		clock:  &testutil.MockClock{NowTime: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	if configured {
		cfg := testutil.CompleteConfig()
		f.local.Config = &cfg
	}
	f.engine = New(f.local, f.remote.Factory(nil), f.clock, nil, Options{Timeout: time.Second})
	return f
}

func (f *fixture) load(t *testing.T) domain.ConnectivityStatus {
	t.Helper()
	_, st, err := f.engine.Load(context.Background())
	require.NoError(t, err)
	return st
}

func withTask(doc *domain.Document, id, name string) *domain.Document {
	doc = doc.Clone()
	doc.Tasks = append(doc.Tasks, domain.Task{ID: id, Name: name, PlanStatus: domain.PlanTodo, ActualStatus: domain.StatusTodo, Priority: domain.PriorityNormal})
	return doc
}

func taskIDs(doc *domain.Document) []string {
	ids := make([]string, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestLoad_UnconfiguredReturnsSeed(t *testing.T) {
	f := newFixture(t, false)

	doc, st, err := f.engine.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.StateLocalOnly, st.State)
	assert.Equal(t, domain.SchemaVersion, doc.Version)
	assert.Len(t, doc.Users, len(domain.DefaultRoster()))
	assert.Empty(t, doc.Tasks)
	assert.Zero(t, f.remote.ProbeCalls)
}

func TestLoad_PartialConfigIsUnconfigured(t *testing.T) {
	f := newFixture(t, true)
	f.local.Config.Credential = " "

	st := f.load(t)
	assert.Equal(t, domain.StateLocalOnly, st.State)
	assert.Zero(t, f.remote.ProbeCalls)
}

func TestLoad_UsesRosterForSeed(t *testing.T) {
	f := newFixture(t, false)
	roster := []domain.User{{ID: "alice", Name: "Alice", Roles: []domain.Role{domain.RoleTechLead}}}
	f.engine = New(f.local, f.remote.Factory(nil), f.clock, nil, Options{Roster: roster})

	doc, _, err := f.engine.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, roster, doc.Users)
}

func TestLoad_UnconfiguredPrefersLocalSnapshot(t *testing.T) {
	f := newFixture(t, false)
	f.local.Doc = withTask(domain.NewSeedDocument(f.clock.Now(), nil), "t1", "cached")

	doc, _, err := f.engine.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, taskIDs(doc))
}

func TestLoad_ConfiguredReadsRemote(t *testing.T) {
	f := newFixture(t, true)
	f.remote.Put(withTask(domain.NewSeedDocument(f.clock.Now(), nil), "r1", "remote"))

	st := f.load(t)

	assert.Equal(t, domain.StateSynced, st.State)
	assert.Nil(t, st.Err)
	assert.Contains(t, st.Message, "acme/board@main:data/board.json")
	require.NotNil(t, f.local.Doc)
	assert.Equal(t, []string{"r1"}, taskIDs(f.local.Doc))
}

func TestLoad_FallsBackOnProbeFailure(t *testing.T) {
	f := newFixture(t, true)
	f.local.Doc = withTask(domain.NewSeedDocument(f.clock.Now(), nil), "t1", "cached")
	f.remote.ProbeErr = fmt.Errorf("%w: connection refused", domain.ErrNetwork)

	doc, st, err := f.engine.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.StateError, st.State)
	assert.ErrorIs(t, st.Err, domain.ErrNetwork)
	assert.False(t, st.AuthBlocked)
	assert.Equal(t, []string{"t1"}, taskIDs(doc))
	assert.Zero(t, f.remote.ReadCalls)
}

func TestLoad_FallsBackToSeedOnReadFailure(t *testing.T) {
	f := newFixture(t, true)
	f.remote.ReadErr = fmt.Errorf("%w: bad base64", domain.ErrCodec)

	doc, st, err := f.engine.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.StateError, st.State)
	assert.ErrorIs(t, st.Err, domain.ErrCodec)
	assert.Equal(t, domain.SchemaVersion, doc.Version)
}

func TestLoad_NotFoundMessage(t *testing.T) {
	f := newFixture(t, true)
	f.remote.ProbeErr = fmt.Errorf("%w: repository", domain.ErrNotFound)

	st := f.load(t)
	assert.Equal(t, domain.StateError, st.State)
	assert.Contains(t, st.Message, "repository not found")
}

func TestLoad_AuthFailureBlocksLaterLoads(t *testing.T) {
	f := newFixture(t, true)
	f.remote.ProbeErr = fmt.Errorf("%w: 401", domain.ErrAuth)

	st := f.load(t)
	assert.Equal(t, domain.StateError, st.State)
	assert.True(t, st.AuthBlocked)
	assert.Contains(t, st.Message, "reconfigure")

	f.remote.ProbeErr = nil
	st = f.load(t)
	assert.True(t, st.AuthBlocked)
	assert.Equal(t, 1, f.remote.ProbeCalls)
}

func TestLoad_LocalStoreFailure(t *testing.T) {
	f := newFixture(t, true)
	f.local.LoadErr = errors.New("disk gone")

	_, _, err := f.engine.Load(context.Background())
	require.Error(t, err)
}

func TestSave_SyncedWritesRemote(t *testing.T) {
	f := newFixture(t, true)
	first := f.remote.Put(domain.NewSeedDocument(f.clock.Now(), nil))
	f.load(t)

	f.clock.Advance(time.Minute)
	doc := withTask(f.engine.Document(), "t1", "Write docs")
	res, err := f.engine.Save(context.Background(), doc, "add t1")
	require.NoError(t, err)

	assert.Equal(t, domain.SaveSuccess, res.Status)
	assert.Nil(t, res.Err)
	assert.Equal(t, f.clock.Now(), res.Document.LastUpdated)

	require.Len(t, f.remote.Writes, 1)
	assert.Equal(t, first, f.remote.Writes[0].Token)
	assert.Equal(t, "add t1", f.remote.Writes[0].Message)

	remoteDoc, token := f.remote.Current()
	assert.Equal(t, []string{"t1"}, taskIDs(remoteDoc))
	assert.Equal(t, []string{"t1"}, taskIDs(f.local.Doc))
	assert.Equal(t, domain.StateSynced, f.engine.Status().State)

	// The next save uses the token returned by the previous write.
	_, err = f.engine.Save(context.Background(), withTask(res.Document, "t2", "more"), "add t2")
	require.NoError(t, err)
	assert.Equal(t, token, f.remote.Writes[1].Token)
}

func TestSave_CreatesMissingDocument(t *testing.T) {
	f := newFixture(t, true)
	f.load(t)

	res, err := f.engine.Save(context.Background(), withTask(f.engine.Document(), "t1", "x"), "init")
	require.NoError(t, err)
	assert.Equal(t, domain.SaveSuccess, res.Status)
	assert.Equal(t, domain.VersionToken(""), f.remote.Writes[0].Token)
}

func TestSave_ConflictMergesAndRetriesOnce(t *testing.T) {
	f := newFixture(t, true)
	base := domain.NewSeedDocument(f.clock.Now(), nil)
	base = withTask(base, "shared", "original")
	f.remote.Put(base)
	f.load(t)

	// Another client adds a task and a history entry.
	other := withTask(base, "theirs", "remote task")
	other.History = append(other.History, domain.HistoryEntry{ID: "h-remote", TaskID: "theirs", Action: domain.ActionCreate, Timestamp: f.clock.Now().Add(time.Second)})
	f.remote.Put(other)

	// This client edits the shared task and adds its own.
	mine := f.engine.Document()
	mine.Tasks[0].Name = "edited here"
	mine = withTask(mine, "mine", "local task")
	mine.History = append(mine.History, domain.HistoryEntry{ID: "h-local", TaskID: "mine", Action: domain.ActionCreate, Timestamp: f.clock.Now().Add(2 * time.Second)})

	res, err := f.engine.Save(context.Background(), mine, "edit")
	require.NoError(t, err)

	assert.Equal(t, domain.SaveSuccess, res.Status)
	assert.Equal(t, []string{"edit", "edit (merged)"}, f.remote.WriteMessages())
	assert.Equal(t, []string{"shared", "theirs", "mine"}, taskIDs(res.Document))
	assert.Equal(t, "edited here", res.Document.Tasks[0].Name)
	assert.Len(t, res.Document.History, 2)
	assert.NotEqual(t, taskIDs(mine), taskIDs(res.Document))

	remoteDoc, _ := f.remote.Current()
	assert.Equal(t, taskIDs(res.Document), taskIDs(remoteDoc))
	assert.Equal(t, taskIDs(res.Document), taskIDs(f.engine.Document()))
	assert.Empty(t, f.local.Queue)
}

func TestSave_RetryConflictQueuesOriginal(t *testing.T) {
	f := newFixture(t, true)
	f.remote.Put(domain.NewSeedDocument(f.clock.Now(), nil))
	f.load(t)
	conflict := fmt.Errorf("%w: 409", domain.ErrConflict)
	f.remote.WriteErrs = []error{conflict, conflict}

	doc := withTask(f.engine.Document(), "t1", "contended")
	res, err := f.engine.Save(context.Background(), doc, "contended edit")
	require.NoError(t, err)

	assert.Equal(t, domain.SaveConflict, res.Status)
	assert.ErrorIs(t, res.Err, domain.ErrConflict)
	assert.Len(t, f.remote.Writes, 2)
	assert.Equal(t, 2, f.remote.ReadCalls, "one read to load, one to merge")

	require.Len(t, f.local.Queue, 1)
	assert.Equal(t, "contended edit", f.local.Queue[0].Summary)
	assert.Equal(t, []string{"t1"}, taskIDs(f.local.Queue[0].Document))
	assert.Equal(t, []string{"t1"}, taskIDs(f.local.Doc))
}

func TestSave_RetryNetworkFailureQueues(t *testing.T) {
	f := newFixture(t, true)
	f.remote.Put(domain.NewSeedDocument(f.clock.Now(), nil))
	f.load(t)
	f.remote.WriteErrs = []error{fmt.Errorf("%w: 409", domain.ErrConflict), fmt.Errorf("%w: reset", domain.ErrNetwork)}

	res, err := f.engine.Save(context.Background(), withTask(f.engine.Document(), "t1", "x"), "edit")
	require.NoError(t, err)

	assert.Equal(t, domain.SaveQueued, res.Status)
	assert.Len(t, f.local.Queue, 1)
	assert.Equal(t, domain.StateError, f.engine.Status().State)
}

// slowRemote blocks every write until the caller's deadline passes.
type slowRemote struct {
	*testutil.MockRemote
}

func (s slowRemote) Write(ctx context.Context, _ *domain.Document, _ domain.VersionToken, _ string) (domain.VersionToken, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSave_TimeoutQueues(t *testing.T) {
	f := newFixture(t, true)
	f.remote.Put(domain.NewSeedDocument(f.clock.Now(), nil))
	slow := slowRemote{f.remote}
	factory := func(domain.SyncConfig) (domain.RemoteDocumentClient, error) { return slow, nil }
	f.engine = New(f.local, factory, f.clock, nil, Options{Timeout: 20 * time.Millisecond})
	f.load(t)

	doc := withTask(f.engine.Document(), "t1", "offline edit")
	res, err := f.engine.Save(context.Background(), doc, "edit")
	require.NoError(t, err)

	assert.Equal(t, domain.SaveQueued, res.Status)
	assert.ErrorIs(t, res.Err, domain.ErrNetwork)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Equal(t, []string{"t1"}, taskIDs(f.local.Doc))
	assert.Len(t, f.local.Queue, 1)

	st := f.engine.Status()
	assert.Equal(t, domain.StateError, st.State)
	assert.Equal(t, 1, st.QueueLength)
}

func TestSave_NotSyncedQueuesWithoutRemote(t *testing.T) {
	f := newFixture(t, false)
	f.load(t)

	res, err := f.engine.Save(context.Background(), withTask(f.engine.Document(), "t1", "x"), "offline")
	require.NoError(t, err)

	assert.Equal(t, domain.SaveQueued, res.Status)
	assert.Empty(t, f.remote.Writes)
	require.Len(t, f.local.Queue, 1)
	assert.NotEmpty(t, f.local.Queue[0].ID)
	assert.Equal(t, f.clock.Now(), f.local.Queue[0].EnqueuedAt)
}

func TestSave_AuthErrorKeepsLocalOnly(t *testing.T) {
	f := newFixture(t, true)
	f.remote.Put(domain.NewSeedDocument(f.clock.Now(), nil))
	f.load(t)
	f.remote.WriteErr = fmt.Errorf("%w: 401", domain.ErrAuth)

	res, err := f.engine.Save(context.Background(), withTask(f.engine.Document(), "t1", "x"), "first")
	require.NoError(t, err)
	assert.Equal(t, domain.SaveLocal, res.Status)
	assert.ErrorIs(t, res.Err, domain.ErrAuth)
	require.Len(t, f.local.Queue, 1)
	assert.True(t, f.local.Queue[0].Held)

	res, err = f.engine.Save(context.Background(), withTask(res.Document, "t2", "y"), "second")
	require.NoError(t, err)
	assert.Equal(t, domain.SaveLocal, res.Status)
	assert.Len(t, f.remote.Writes, 1, "blocked saves never reach the remote")
	assert.Equal(t, []string{"t1", "t2"}, taskIDs(f.local.Doc))

	st := f.engine.Status()
	assert.True(t, st.AuthBlocked)
	assert.Equal(t, domain.StateError, st.State)

	flush, err := f.engine.FlushQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, flush.Processed)

	// Reconfiguring releases the held saves as one snapshot.
	f.remote.WriteErr = nil
	require.NoError(t, f.engine.Reconfigure(testutil.CompleteConfig()))
	assert.Equal(t, []string{"first; second"}, f.local.QueueSummaries())
	assert.False(t, f.local.Queue[0].Held)
	assert.Equal(t, domain.StateUnloaded, f.engine.Status().State)

	st = f.load(t)
	assert.Equal(t, domain.StateSynced, st.State)
	flush, err = f.engine.FlushQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, flush.Processed)

	remoteDoc, _ := f.remote.Current()
	assert.Equal(t, []string{"t1", "t2"}, taskIDs(remoteDoc))
}

func TestSave_HeldChangesSurviveRestart(t *testing.T) {
	f := newFixture(t, true)
	f.remote.Put(domain.NewSeedDocument(f.clock.Now(), nil))
	f.remote.ProbeErr = fmt.Errorf("%w: 401", domain.ErrAuth)
	f.load(t)

	res, err := f.engine.Mutate(context.Background(), func(doc *domain.Document) error {
		doc.Tasks = append(doc.Tasks, domain.Task{ID: "t1", Name: "written while blocked"})
		return nil
	}, "add t1")
	require.NoError(t, err)
	assert.Equal(t, domain.SaveLocal, res.Status)

	// A second engine on the same store stands in for the next CLI process.
	f.remote.ProbeErr = nil
	next := New(f.local, f.remote.Factory(nil), f.clock, nil, Options{Timeout: time.Second})

	doc, st, err := next.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, st.AuthBlocked, "the block outlives the process")
	assert.ErrorIs(t, st.Err, domain.ErrAuth)
	assert.Equal(t, 1, f.remote.ProbeCalls)
	assert.Equal(t, []string{"t1"}, taskIDs(doc))

	require.NoError(t, next.Reconfigure(testutil.CompleteConfig()))
	doc, st, err = next.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StateSynced, st.State)
	assert.Equal(t, []string{"t1"}, taskIDs(doc))
	assert.Equal(t, []string{"t1"}, taskIDs(f.local.Doc))

	flush, err := next.FlushQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, flush.Processed)
	assert.Empty(t, f.local.Queue)

	remoteDoc, _ := f.remote.Current()
	assert.Equal(t, []string{"t1"}, taskIDs(remoteDoc))
}

func TestReleaseHeld(t *testing.T) {
	doc := func(id string) *domain.Document { return withTask(domain.NewSeedDocument(time.Time{}, nil), id, id) }
	queue := []domain.PendingOperation{
		{ID: "a", Summary: "a", Document: doc("a")},
		{ID: "b", Summary: "b", Document: doc("b"), Held: true, BaseToken: "v1"},
		{ID: "c", Summary: "c", Document: doc("c"), Held: true, BaseToken: "v1"},
		{ID: "d", Summary: "d", Document: doc("d")},
		{ID: "e", Summary: "e", Document: doc("e"), Held: true},
	}

	out, n := releaseHeld(queue)

	assert.Equal(t, 3, n)
	require.Len(t, out, 4)
	summaries := make([]string, 0, len(out))
	for _, op := range out {
		assert.False(t, op.Held)
		summaries = append(summaries, op.Summary)
	}
	assert.Equal(t, []string{"a", "b; c", "d", "e"}, summaries)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, domain.VersionToken("v1"), out[1].BaseToken)
	assert.Equal(t, []string{"c"}, taskIDs(out[1].Document), "the newest snapshot of the run is kept")
	assert.True(t, queue[1].Held, "input is not modified")
}

func TestSave_LocalStoreFullIsSurfaced(t *testing.T) {
	f := newFixture(t, false)
	f.load(t)
	f.local.SaveDocErr = fmt.Errorf("%w: quota", domain.ErrStorageFull)

	_, err := f.engine.Save(context.Background(), f.engine.Document(), "x")
	assert.ErrorIs(t, err, domain.ErrStorageFull)
	assert.Empty(t, f.local.Queue)
}

func TestSave_QueueAheadIsFlushedFirst(t *testing.T) {
	f := newFixture(t, true)
	seed := domain.NewSeedDocument(f.clock.Now(), nil)
	f.remote.Put(seed)
	f.local.Queue = []domain.PendingOperation{{ID: "op1", Summary: "older", Document: withTask(seed, "t1", "older")}}
	f.load(t)

	doc := withTask(f.engine.Document(), "t2", "newer")
	res, err := f.engine.Save(context.Background(), doc, "newer")
	require.NoError(t, err)

	assert.Equal(t, domain.SaveSuccess, res.Status)
	msgs := f.remote.WriteMessages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "older", msgs[0])
	assert.Contains(t, msgs[len(msgs)-1], "newer")
	assert.Empty(t, f.local.Queue)

	remoteDoc, _ := f.remote.Current()
	assert.ElementsMatch(t, []string{"t1", "t2"}, taskIDs(remoteDoc))
}

func TestLoad_ShowsQueuedEdits(t *testing.T) {
	f := newFixture(t, true)
	seed := domain.NewSeedDocument(f.clock.Now(), nil)
	f.remote.Put(withTask(seed, "r1", "remote"))
	f.local.Queue = []domain.PendingOperation{{ID: "op1", Summary: "offline", Document: withTask(seed, "q1", "queued")}}

	doc, st, err := f.engine.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, st.QueueLength)
	assert.Equal(t, []string{"r1", "q1"}, taskIDs(doc))
}

func queuedOps(base *domain.Document, n int) []domain.PendingOperation {
	ops := make([]domain.PendingOperation, 0, n)
	doc := base
	for i := 1; i <= n; i++ {
		doc = withTask(doc, fmt.Sprintf("t%d", i), fmt.Sprintf("task %d", i))
		ops = append(ops, domain.PendingOperation{ID: fmt.Sprintf("op%d", i), Summary: fmt.Sprintf("op%d", i), Document: doc})
	}
	return ops
}

func TestFlushQueue_StopsAtFirstFailure(t *testing.T) {
	f := newFixture(t, true)
	f.local.Queue = queuedOps(domain.NewSeedDocument(f.clock.Now(), nil), 3)
	f.load(t)
	f.remote.WriteErrs = []error{nil, fmt.Errorf("%w: timeout", domain.ErrNetwork)}

	res, err := f.engine.FlushQueue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 2, res.Remaining)
	assert.ErrorIs(t, res.Err, domain.ErrNetwork)
	assert.Equal(t, []string{"op2", "op3"}, f.local.QueueSummaries())
	assert.Equal(t, []string{"op1", "op2"}, f.remote.WriteMessages(), "op3 is never attempted")

	remoteDoc, _ := f.remote.Current()
	assert.Equal(t, []string{"t1"}, taskIDs(remoteDoc))
	assert.Equal(t, []string{"t1", "t2", "t3"}, taskIDs(f.engine.Document()), "queued edits stay visible")
	assert.Equal(t, domain.StateError, f.engine.Status().State)

	// The next flush reconnects and delivers the rest in order.
	res, err = f.engine.FlushQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Zero(t, res.Remaining)
	assert.Empty(t, f.local.Queue)

	remoteDoc, _ = f.remote.Current()
	assert.Equal(t, []string{"t1", "t2", "t3"}, taskIDs(remoteDoc))
	assert.Equal(t, domain.StateSynced, f.engine.Status().State)
}

func TestFlushQueue_ChainsVerbatimWrites(t *testing.T) {
	f := newFixture(t, true)
	f.local.Queue = queuedOps(domain.NewSeedDocument(f.clock.Now(), nil), 3)
	f.load(t)

	res, err := f.engine.FlushQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)

	// Each snapshot builds on the previous one, so no merges are needed.
	assert.Equal(t, []string{"op1", "op2", "op3"}, f.remote.WriteMessages())
	assert.Equal(t, domain.VersionToken(""), f.remote.Writes[0].Token)
	assert.Equal(t, domain.VersionToken("v1"), f.remote.Writes[1].Token)
	assert.Equal(t, domain.VersionToken("v2"), f.remote.Writes[2].Token)
}

func TestFlushQueue_MergesWhenRemoteMovedOn(t *testing.T) {
	f := newFixture(t, true)
	seed := domain.NewSeedDocument(f.clock.Now(), nil)
	base := f.remote.Put(seed)
	ops := queuedOps(seed, 1)
	ops[0].BaseToken = base
	f.local.Queue = ops
	f.remote.Put(withTask(seed, "r1", "remote while offline"))
	f.load(t)

	res, err := f.engine.FlushQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, []string{"op1", "op1 (merged)"}, f.remote.WriteMessages())

	remoteDoc, _ := f.remote.Current()
	assert.Equal(t, []string{"r1", "t1"}, taskIDs(remoteDoc))
}

func TestFlushQueue_Unconfigured(t *testing.T) {
	f := newFixture(t, false)
	f.load(t)
	_, err := f.engine.Save(context.Background(), f.engine.Document(), "x")
	require.NoError(t, err)

	res, err := f.engine.FlushQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
	assert.ErrorIs(t, res.Err, domain.ErrNotConfigured)
}

func TestFlushQueue_Empty(t *testing.T) {
	f := newFixture(t, true)
	res, err := f.engine.FlushQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.FlushResult{}, res)
	assert.Zero(t, f.remote.ProbeCalls)
}

func TestFlushQueue_ReconnectFailureKeepsQueue(t *testing.T) {
	f := newFixture(t, true)
	f.remote.ProbeErr = fmt.Errorf("%w: offline", domain.ErrNetwork)
	f.load(t)
	_, err := f.engine.Save(context.Background(), withTask(f.engine.Document(), "t1", "x"), "offline")
	require.NoError(t, err)

	res, err := f.engine.FlushQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, 2, f.remote.ProbeCalls)
}

func TestMutate(t *testing.T) {
	f := newFixture(t, true)

	res, err := f.engine.Mutate(context.Background(), func(doc *domain.Document) error {
		doc.Tasks = append(doc.Tasks, domain.Task{ID: "t1", Name: "via mutate"})
		return nil
	}, "mutate")
	require.NoError(t, err)

	assert.Equal(t, domain.SaveSuccess, res.Status)
	assert.Equal(t, 1, f.remote.ProbeCalls, "an unloaded engine loads first")

	boom := errors.New("boom")
	_, err = f.engine.Mutate(context.Background(), func(doc *domain.Document) error {
		doc.Tasks = nil
		return boom
	}, "fails")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, f.remote.Writes, 1)
	assert.Equal(t, []string{"t1"}, taskIDs(f.engine.Document()))
}

func TestMutate_Serialized(t *testing.T) {
	f := newFixture(t, true)
	f.load(t)

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Mutate(context.Background(), func(doc *domain.Document) error {
				doc.Tasks = append(doc.Tasks, domain.Task{ID: fmt.Sprintf("t%02d", i)})
				return nil
			}, fmt.Sprintf("add %d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	remoteDoc, _ := f.remote.Current()
	assert.Len(t, remoteDoc.Tasks, n)
	assert.Len(t, f.remote.Writes, n, "no write ever conflicted")
}

func TestReconfigure_Idempotent(t *testing.T) {
	f := newFixture(t, false)
	cfg := testutil.CompleteConfig()

	require.NoError(t, f.engine.Reconfigure(cfg))
	st1 := f.load(t)
	require.NoError(t, f.engine.Reconfigure(cfg))
	st2 := f.load(t)

	assert.Equal(t, st1, st2)
	assert.Equal(t, domain.StateSynced, st2.State)
	assert.Empty(t, f.local.Queue)
	assert.Equal(t, cfg, *f.local.Config)
}

package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/boardsync/internal/domain"
	"github.com/runoshun/boardsync/internal/testutil"
)

func TestReconfigure_Execute_FromLocalOnly(t *testing.T) {
	env := loaded(t, false)
	task := env.addTask(t, "written before sync was set up")
	require.Len(t, env.local.QueueSummaries(), 1)

	out, err := NewReconfigure(env.engine).Execute(context.Background(), ReconfigureInput{Config: testutil.CompleteConfig()})
	require.NoError(t, err)

	assert.Equal(t, domain.StateSynced, out.Status.State)
	assert.Zero(t, out.Status.QueueLength)
	require.NotNil(t, out.Flush)
	assert.Equal(t, 1, out.Flush.Processed)
	assert.Equal(t, 0, out.Document.FindTask(task.ID))

	remoteDoc, _ := env.remote.Current()
	assert.Equal(t, 0, remoteDoc.FindTask(task.ID))
	require.NotNil(t, env.local.Config)
	assert.Equal(t, "acme", env.local.Config.Owner)
}

func TestReconfigure_Execute_Partial(t *testing.T) {
	env := loaded(t, true)

	out, err := NewReconfigure(env.engine).Execute(context.Background(), ReconfigureInput{Config: domain.SyncConfig{Owner: "acme"}})
	require.NoError(t, err)
	assert.Equal(t, domain.StateLocalOnly, out.Status.State)
}

func TestListQueue_Execute(t *testing.T) {
	env := newTestEnv(t, true)
	env.remote.ProbeErr = domain.ErrNetwork
	env.addTask(t, "one")
	env.addTask(t, "two")

	out, err := NewListQueue(env.engine).Execute(context.Background())
	require.NoError(t, err)

	require.Len(t, out.Operations, 2)
	assert.Equal(t, `Add task "one"`, out.Operations[0].Summary)
	assert.Equal(t, `Add task "two"`, out.Operations[1].Summary)
	assert.Equal(t, domain.StateError, out.Status.State)
	assert.Equal(t, 2, out.Status.QueueLength)
}

func TestFlushQueue_Execute(t *testing.T) {
	env := newTestEnv(t, true)
	env.remote.ProbeErr = domain.ErrNetwork
	env.addTask(t, "one")
	env.addTask(t, "two")
	env.remote.ProbeErr = nil

	out, err := NewFlushQueue(env.engine).Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.FlushResult{Processed: 2}, out.Result)
	assert.Equal(t, domain.StateSynced, out.Status.State)
	remoteDoc, _ := env.remote.Current()
	assert.Len(t, remoteDoc.Tasks, 2)
	assert.Equal(t, []string{`Add task "one"`, `Add task "two"`}, env.remote.WriteMessages())
}

func TestFlushQueue_Execute_NotConfigured(t *testing.T) {
	env := loaded(t, false)
	env.addTask(t, "local")

	out, err := NewFlushQueue(env.engine).Execute(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, out.Result.Err, domain.ErrNotConfigured)
	assert.Equal(t, 1, out.Result.Remaining)
	assert.Equal(t, domain.StateLocalOnly, out.Status.State)
}

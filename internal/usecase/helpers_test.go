package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runoshun/boardsync/internal/domain"
	"github.com/runoshun/boardsync/internal/engine"
	"github.com/runoshun/boardsync/internal/testutil"
)

func testNow() time.Time {
	return time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
}

type testEnv struct {
	engine *engine.Engine
	remote *testutil.MockRemote
	local  *testutil.MockLocalStore
	clock  *testutil.MockClock
}

func newTestEnv(t *testing.T, configured bool) *testEnv {
	t.Helper()
	env := &testEnv{
		remote: testutil.NewMockRemote(),
		local:  testutil.NewMockLocalStore(),
		clock:  &testutil.MockClock{NowTime: testNow()},
	}
	if configured {
		cfg := testutil.CompleteConfig()
		env.local.Config = &cfg
	}
	env.engine = engine.New(env.local, env.remote.Factory(nil), env.clock, nil, engine.Options{Timeout: time.Second})
	return env
}

// loaded returns an environment whose engine has been initialized.
func loaded(t *testing.T, configured bool) *testEnv {
	t.Helper()
	env := newTestEnv(t, configured)
	_, err := NewInitialize(env.engine).Execute(context.Background(), InitializeInput{})
	require.NoError(t, err)
	return env
}

func (env *testEnv) addTask(t *testing.T, name string) domain.Task {
	t.Helper()
	out, err := NewAddTask(env.engine, env.clock).Execute(context.Background(), AddTaskInput{Actor: "admin", Name: name})
	require.NoError(t, err)
	return out.Task
}

func ptr[T any](v T) *T {
	return &v
}

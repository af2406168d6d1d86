package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runoshun/boardsync/internal/codec"
	"github.com/runoshun/boardsync/internal/domain"
)

func TestExportSnapshot_Execute(t *testing.T) {
	env := loaded(t, true)
	env.addTask(t, "見積もり作成")
	uc := NewExportSnapshot(env.engine)

	out, err := uc.Execute(context.Background(), ExportSnapshotInput{})
	require.NoError(t, err)
	assert.Contains(t, string(out.Data), "見積もり作成")
	doc, err := codec.Unmarshal(out.Data)
	require.NoError(t, err)
	assert.Equal(t, env.engine.Document().Tasks[0].ID, doc.Tasks[0].ID)

	wrapped, err := uc.Execute(context.Background(), ExportSnapshotInput{Envelope: true})
	require.NoError(t, err)
	assert.NotContains(t, string(wrapped.Data), "{")
	doc, err = codec.Decode(wrapped.Data)
	require.NoError(t, err)
	assert.Len(t, doc.Tasks, 1)
}

func snapshotWithTask(t *testing.T, name string) *domain.Document {
	t.Helper()
	doc := domain.NewSeedDocument(testNow(), nil)
	doc.Tasks = append(doc.Tasks, domain.Task{
		ID:           "imported-1",
		Name:         name,
		PlanStatus:   domain.PlanTodo,
		ActualStatus: domain.StatusTodo,
		Priority:     domain.PriorityNormal,
	})
	return doc
}

func TestImportSnapshot_Execute(t *testing.T) {
	env := loaded(t, true)
	env.addTask(t, "replaced")
	data, err := codec.Marshal(snapshotWithTask(t, "from backup"))
	require.NoError(t, err)

	out, err := NewImportSnapshot(env.engine, env.clock).Execute(context.Background(), ImportSnapshotInput{Actor: "admin", Data: data})
	require.NoError(t, err)
	assert.Equal(t, domain.SaveSuccess, out.Result.Status)

	remoteDoc, _ := env.remote.Current()
	require.Len(t, remoteDoc.Tasks, 1)
	assert.Equal(t, "from backup", remoteDoc.Tasks[0].Name)
	require.NotEmpty(t, remoteDoc.History)
	assert.Equal(t, domain.ActionImport, remoteDoc.History[0].Action)
	assert.Equal(t, "Import snapshot", env.remote.WriteMessages()[len(env.remote.Writes)-1])
}

func TestImportSnapshot_Execute_Envelope(t *testing.T) {
	env := loaded(t, false)
	data, err := codec.Encode(snapshotWithTask(t, "wrapped"))
	require.NoError(t, err)

	_, err = NewImportSnapshot(env.engine, env.clock).Execute(context.Background(), ImportSnapshotInput{
		Actor:   "tech-lead",
		Summary: "Restore Friday backup",
		Data:    append([]byte("\n"), data...),
	})
	require.NoError(t, err)

	assert.Equal(t, "wrapped", env.engine.Document().Tasks[0].Name)
	assert.Equal(t, []string{"Restore Friday backup"}, env.local.QueueSummaries())
}

func TestImportSnapshot_Execute_Rejected(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		actor string
		want  error
	}{
		{"missing fields", `{"version": "1.0.0", "tasks": []}`, "admin", domain.ErrValidation},
		{"malformed", `{"version": `, "admin", domain.ErrCodec},
		{"bad envelope", `not base64!`, "admin", domain.ErrCodec},
		{"viewer", "", "viewer", domain.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := loaded(t, true)
			data := []byte(tt.data)
			if len(data) == 0 {
				var err error
				data, err = codec.Marshal(snapshotWithTask(t, "x"))
				require.NoError(t, err)
			}

			_, err := NewImportSnapshot(env.engine, env.clock).Execute(context.Background(), ImportSnapshotInput{Actor: tt.actor, Data: data})
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, env.remote.Writes)
			assert.Empty(t, env.local.QueueSummaries())
			assert.Empty(t, env.engine.Document().Tasks)
		})
	}
}

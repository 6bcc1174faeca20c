package scheduler

import (
	"context"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgreenly/nuagent/internal/store"
	"github.com/mgreenly/nuagent/internal/tool"
)

// fakeTool is a minimal Tool whose classification and affected paths
// are fixed at construction, so tests can exercise the batching rule
// directly without real file I/O.
type fakeTool struct {
	name  string
	class tool.Classification
	paths []string
}

func (f *fakeTool) Name() string                                          { return f.name }
func (f *fakeTool) Description() string                                   { return "" }
func (f *fakeTool) GenerateSchema() *jsonschema.Schema                    { return nil }
func (f *fakeTool) ValidateInput(tool.State, string) error                { return nil }
func (f *fakeTool) Execute(context.Context, tool.State, string) tool.Result { return nil }
func (f *fakeTool) Classification() tool.Classification                  { return f.class }
func (f *fakeTool) AffectedPaths(tool.State, string) []string            { return f.paths }

type fakeState struct{}

func (fakeState) Store() *store.Gateway  { return nil }
func (fakeState) ConversationID() int64  { return 1 }
func (fakeState) Model() string          { return "test" }
func (fakeState) WorkingDir() string     { return "/work" }
func (fakeState) Tools() []tool.Tool     { return nil }
func (fakeState) LockFile(string)        {}
func (fakeState) UnlockFile(string)      {}

func read(name string, paths []string) *fakeTool {
	return &fakeTool{name: name, class: tool.Classification{OperationType: tool.OpRead, Scope: tool.ScopeConfined}, paths: paths}
}

func write(name string, paths []string) *fakeTool {
	return &fakeTool{name: name, class: tool.Classification{OperationType: tool.OpWrite, Scope: tool.ScopeConfined}, paths: paths}
}

func unconfinedWrite(name string) *fakeTool {
	return &fakeTool{name: name, class: tool.Classification{OperationType: tool.OpWrite, Scope: tool.ScopeUnconfined}, paths: nil}
}

func nonFile(name string) *fakeTool {
	return &fakeTool{name: name, class: tool.Classification{OperationType: tool.OpRead, Scope: tool.ScopeUnconfined}, paths: nil}
}

func TestBatch_Scenarios(t *testing.T) {
	t.Run("parallel reads batch together", func(t *testing.T) {
		reg := tool.NewRegistry(read("read_a", []string{"/a"}), read("read_b", []string{"/b"}), read("read_c", []string{"/c"}))
		calls := []Call{
			{ID: "1", ToolName: "read_a"},
			{ID: "2", ToolName: "read_b"},
			{ID: "3", ToolName: "read_c"},
		}
		batches, err := Batch(reg, fakeState{}, calls)
		require.NoError(t, err)
		require.Len(t, batches, 1)
		assert.Len(t, batches[0], 3)
	})

	t.Run("write then read on same path is ordered", func(t *testing.T) {
		reg := tool.NewRegistry(write("write_a", []string{"/a"}), read("read_a", []string{"/a"}))
		calls := []Call{
			{ID: "1", ToolName: "write_a"},
			{ID: "2", ToolName: "read_a"},
		}
		batches, err := Batch(reg, fakeState{}, calls)
		require.NoError(t, err)
		require.Len(t, batches, 2)
		assert.Equal(t, "1", batches[0][0].ID)
		assert.Equal(t, "2", batches[1][0].ID)
	})

	t.Run("different-path writes commute", func(t *testing.T) {
		reg := tool.NewRegistry(write("write_a", []string{"/a"}), write("write_b", []string{"/b"}))
		calls := []Call{
			{ID: "1", ToolName: "write_a"},
			{ID: "2", ToolName: "write_b"},
		}
		batches, err := Batch(reg, fakeState{}, calls)
		require.NoError(t, err)
		require.Len(t, batches, 1)
		assert.Len(t, batches[0], 2)
	})

	t.Run("unconfined write is a barrier", func(t *testing.T) {
		reg := tool.NewRegistry(read("read_a", []string{"/a"}), unconfinedWrite("bash"), read("read_b", []string{"/b"}))
		calls := []Call{
			{ID: "1", ToolName: "read_a"},
			{ID: "2", ToolName: "bash"},
			{ID: "3", ToolName: "read_b"},
		}
		batches, err := Batch(reg, fakeState{}, calls)
		require.NoError(t, err)
		require.Len(t, batches, 3)
		assert.Equal(t, "1", batches[0][0].ID)
		assert.Equal(t, "2", batches[1][0].ID)
		assert.Equal(t, "3", batches[2][0].ID)
	})

	t.Run("non-file tools never conflict", func(t *testing.T) {
		reg := tool.NewRegistry(nonFile("db_query"), write("write_a", []string{"/a"}))
		calls := []Call{
			{ID: "1", ToolName: "db_query"},
			{ID: "2", ToolName: "write_a"},
			{ID: "3", ToolName: "db_query"},
		}
		batches, err := Batch(reg, fakeState{}, calls)
		require.NoError(t, err)
		require.Len(t, batches, 1)
		assert.Len(t, batches[0], 3)
	})

	t.Run("same-path writes are ordered", func(t *testing.T) {
		reg := tool.NewRegistry(write("write_a", []string{"/a"}))
		calls := []Call{
			{ID: "1", ToolName: "write_a"},
			{ID: "2", ToolName: "write_a"},
		}
		batches, err := Batch(reg, fakeState{}, calls)
		require.NoError(t, err)
		require.Len(t, batches, 2)
	})

	t.Run("flattened batches preserve input order", func(t *testing.T) {
		reg := tool.NewRegistry(read("read_a", []string{"/a"}), write("write_a", []string{"/a"}), read("read_b", []string{"/b"}))
		calls := []Call{
			{ID: "1", ToolName: "read_a"},
			{ID: "2", ToolName: "write_a"},
			{ID: "3", ToolName: "read_b"},
		}
		batches, err := Batch(reg, fakeState{}, calls)
		require.NoError(t, err)
		var flattened []string
		for _, b := range batches {
			for _, c := range b {
				flattened = append(flattened, c.ID)
			}
		}
		assert.Equal(t, []string{"1", "2", "3"}, flattened)
	})

	t.Run("unknown tool returns error", func(t *testing.T) {
		reg := tool.NewRegistry(read("read_a", []string{"/a"}))
		calls := []Call{{ID: "1", ToolName: "does_not_exist"}}
		_, err := Batch(reg, fakeState{}, calls)
		assert.Error(t, err)
	})
}

package toolloop

import (
	"context"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgreenly/nuagent/internal/provider"
	"github.com/mgreenly/nuagent/internal/store"
	"github.com/mgreenly/nuagent/internal/tool"
)

type echoTool struct{}

func (echoTool) Name() string                                              { return "echo" }
func (echoTool) Description() string                                       { return "" }
func (echoTool) GenerateSchema() *jsonschema.Schema                        { return nil }
func (echoTool) ValidateInput(tool.State, string) error                    { return nil }
func (echoTool) Classification() tool.Classification                       { return tool.Classification{OperationType: tool.OpRead, Scope: tool.ScopeConfined} }
func (echoTool) AffectedPaths(tool.State, string) []string                 { return []string{} }
func (echoTool) Execute(context.Context, tool.State, string) tool.Result {
	return tool.BaseResult{ToolName: "echo", Result: "echoed"}
}

type fakeState struct{}

func (fakeState) Store() *store.Gateway { return nil }
func (fakeState) ConversationID() int64 { return 1 }
func (fakeState) Model() string         { return "test" }
func (fakeState) WorkingDir() string    { return "/work" }
func (fakeState) Tools() []tool.Tool    { return nil }
func (fakeState) LockFile(string)       {}
func (fakeState) UnlockFile(string)     {}

// scriptedAdapter returns one canned Response per call, in order.
type scriptedAdapter struct {
	responses []provider.Response
	calls     int
}

func (s *scriptedAdapter) Name() string    { return "scripted" }
func (s *scriptedAdapter) Model() string   { return "test-model" }
func (s *scriptedAdapter) MaxContext() int { return 100_000 }
func (s *scriptedAdapter) CalculateCost(int, int) float64 { return 0 }
func (s *scriptedAdapter) FormatTools(*tool.Registry) []provider.ToolSchema { return nil }
func (s *scriptedAdapter) SendMessage(context.Context, []provider.Message, string, []provider.ToolSchema) (provider.Response, error) {
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestRun_NoToolCallsTerminatesImmediately(t *testing.T) {
	adapter := &scriptedAdapter{responses: []provider.Response{
		{Content: strPtr("hello"), Tokens: provider.Tokens{Input: intPtr(10), Output: intPtr(5)}},
	}}
	reg := tool.NewRegistry(echoTool{})

	outcome := Run(context.Background(), adapter, reg, fakeState{}, nil, "", nil, 0, nil)

	assert.False(t, outcome.Error)
	assert.Equal(t, "hello", outcome.Response)
	assert.Equal(t, 1, outcome.Metrics.MessageCount)
	assert.Equal(t, 10, outcome.Metrics.TokensInput)
	assert.Equal(t, 5, outcome.Metrics.TokensOutput)
}

func TestRun_ToolCallThenFinalResponse(t *testing.T) {
	adapter := &scriptedAdapter{responses: []provider.Response{
		{ToolCalls: []provider.ToolCall{{ID: "1", Name: "echo", Arguments: map[string]interface{}{}}}},
		{Content: strPtr("done")},
	}}
	reg := tool.NewRegistry(echoTool{})

	outcome := Run(context.Background(), adapter, reg, fakeState{}, nil, "", nil, 0, nil)

	require.False(t, outcome.Error)
	assert.Equal(t, "done", outcome.Response)
	assert.Equal(t, 1, outcome.Metrics.ToolCallCount)
	require.Len(t, outcome.Persisted, 2)
	assert.Equal(t, "assistant", outcome.Persisted[0].Role)
	assert.True(t, outcome.Persisted[0].Redacted)
	assert.Equal(t, "tool", outcome.Persisted[1].Role)
	assert.True(t, outcome.Persisted[1].Redacted)
}

func TestRun_ProviderErrorTerminatesAsFailure(t *testing.T) {
	adapter := &scriptedAdapter{responses: []provider.Response{
		{Error: &provider.ResponseError{RawError: "rate limited"}},
	}}
	reg := tool.NewRegistry(echoTool{})

	outcome := Run(context.Background(), adapter, reg, fakeState{}, nil, "", nil, 0, nil)

	assert.True(t, outcome.Error)
	assert.Equal(t, "rate limited", outcome.ErrorText)
	require.Len(t, outcome.Persisted, 1)
	assert.False(t, outcome.Persisted[0].Redacted)
}

func TestRun_IterationCapReached(t *testing.T) {
	responses := make([]provider.Response, 3)
	for i := range responses {
		responses[i] = provider.Response{ToolCalls: []provider.ToolCall{{ID: "1", Name: "echo", Arguments: map[string]interface{}{}}}}
	}
	adapter := &scriptedAdapter{responses: responses}
	reg := tool.NewRegistry(echoTool{})

	outcome := Run(context.Background(), adapter, reg, fakeState{}, nil, "", nil, 3, nil)

	assert.True(t, outcome.Error)
	assert.Contains(t, outcome.ErrorText, "iteration cap")
}

func TestRun_CancelledContextTerminates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	adapter := &scriptedAdapter{responses: []provider.Response{{Content: strPtr("unreachable")}}}
	reg := tool.NewRegistry(echoTool{})

	outcome := Run(ctx, adapter, reg, fakeState{}, nil, "", nil, 0, nil)

	assert.True(t, outcome.Error)
	assert.Equal(t, 0, adapter.calls)
}

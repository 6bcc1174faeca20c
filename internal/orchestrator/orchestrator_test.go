package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgreenly/nuagent/internal/eventbus"
	"github.com/mgreenly/nuagent/internal/provider"
	"github.com/mgreenly/nuagent/internal/store"
	"github.com/mgreenly/nuagent/internal/store/migrations"
	"github.com/mgreenly/nuagent/internal/tool"
)

// scriptedAdapter returns one canned Response per SendMessage call, in order.
type scriptedAdapter struct {
	responses []provider.Response
	calls     int
}

func (s *scriptedAdapter) Name() string    { return "scripted" }
func (s *scriptedAdapter) Model() string   { return "test-model" }
func (s *scriptedAdapter) MaxContext() int { return 100_000 }
func (s *scriptedAdapter) CalculateCost(int, int) float64                   { return 0 }
func (s *scriptedAdapter) FormatTools(*tool.Registry) []provider.ToolSchema { return nil }
func (s *scriptedAdapter) SendMessage(context.Context, []provider.Message, string, []provider.ToolSchema) (provider.Response, error) {
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newTestGateway(t *testing.T) *store.Gateway {
	t.Helper()
	gw, err := store.NewWithMigrations(context.Background(), ":memory:", migrations.All())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func TestProcessTurn_SuccessCommitsExchangeAndPublishesEvent(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)

	adapter := &scriptedAdapter{responses: []provider.Response{
		{Content: strPtr("hi there"), Tokens: provider.Tokens{Input: intPtr(10), Output: intPtr(4)}},
	}}
	reg := tool.NewRegistry()
	bus := eventbus.New()

	var published interface{}
	bus.Subscribe(eventbus.TopicExchangeCompleted, func(data interface{}) { published = data })

	orch := New(gw, reg, adapter, bus, "test-model", "/work", 0, nil)

	result, err := orch.ProcessTurn(ctx, convID, "hello", nil)
	require.NoError(t, err)
	assert.False(t, result.Failed)
	assert.Equal(t, "hi there", result.Response)
	assert.NotNil(t, published)

	ex, err := gw.GetExchange(ctx, result.ExchangeID)
	require.NoError(t, err)
	assert.Equal(t, store.ExchangeCompleted, ex.Status)
	require.NotNil(t, ex.AssistantMessage)
	assert.Equal(t, "hi there", *ex.AssistantMessage)

	idle, err := gw.WorkersIdle(ctx)
	require.NoError(t, err)
	assert.True(t, idle)

	msgs, err := gw.Messages(ctx, convID, store.MessagesQuery{})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
}

func TestProcessTurn_ProviderErrorCommitsFailedExchange(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)

	adapter := &scriptedAdapter{responses: []provider.Response{
		{Error: &provider.ResponseError{RawError: "rate limited"}},
	}}
	reg := tool.NewRegistry()
	bus := eventbus.New()

	orch := New(gw, reg, adapter, bus, "test-model", "/work", 0, nil)

	result, err := orch.ProcessTurn(ctx, convID, "hello", nil)
	require.NoError(t, err)
	assert.True(t, result.Failed)
	assert.Equal(t, "rate limited", result.FailReason)

	ex, err := gw.GetExchange(ctx, result.ExchangeID)
	require.NoError(t, err)
	assert.Equal(t, store.ExchangeFailed, ex.Status)
	require.NotNil(t, ex.Error)
	assert.Equal(t, "rate limited", *ex.Error)

	idle, err := gw.WorkersIdle(ctx)
	require.NoError(t, err)
	assert.True(t, idle)
}

func TestProcessTurn_CancelledContextRollsBackAndStillDecrementsWorkers(t *testing.T) {
	gw := newTestGateway(t)
	bg := context.Background()

	convID, err := gw.CreateConversation(bg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(bg)
	cancel()

	adapter := &scriptedAdapter{responses: []provider.Response{{Content: strPtr("unreachable")}}}
	reg := tool.NewRegistry()
	bus := eventbus.New()

	published := false
	bus.Subscribe(eventbus.TopicExchangeCompleted, func(interface{}) { published = true })

	orch := New(gw, reg, adapter, bus, "test-model", "/work", 0, nil)

	_, err = orch.ProcessTurn(ctx, convID, "hello", nil)
	assert.Error(t, err)
	assert.False(t, published)

	idle, err := gw.WorkersIdle(bg)
	require.NoError(t, err)
	assert.True(t, idle)
}

func TestBuildContextDocument_EmptyRAGUsesSentinel(t *testing.T) {
	doc := buildContextDocument(nil, []string{"bash", "file_read"}, "what time is it?", nil)
	assert.Contains(t, doc, "No Augmented Information Generated")
	assert.Contains(t, doc, "## Available Tools")
	assert.Contains(t, doc, "bash, file_read")
	assert.Contains(t, doc, "## User Query")
	assert.Contains(t, doc, "what time is it?")
}

func TestBuildContextDocument_RedactedIDsAndSpellCorrection(t *testing.T) {
	all := []store.Message{
		{ID: 1, Redacted: true},
		{ID: 2, Redacted: true},
		{ID: 4, Redacted: true},
	}
	doc := buildContextDocument(all, nil, "q", &SpellCorrection{Said: "recieve", Means: "receive"})
	assert.Contains(t, doc, "1-2, 4")
	assert.Contains(t, doc, `user said "recieve" but means "receive"`)
}

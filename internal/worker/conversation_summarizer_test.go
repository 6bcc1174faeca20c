package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgreenly/nuagent/internal/provider"
	"github.com/mgreenly/nuagent/internal/store"
)

func TestConversationSummarizer_SummarizesOldestUnsummarizedConversation(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)
	exID, err := gw.CreateExchange(ctx, convID, "hello")
	require.NoError(t, err)
	_, err = gw.AddMessage(ctx, store.NewMessage{
		ConversationID: convID, ExchangeID: exID, Role: store.RoleUser,
		Content: "hello", IncludeInContext: true,
	})
	require.NoError(t, err)

	adapter := &fakeAdapter{response: provider.Response{Content: strPtr("a short summary"), Spend: 0.001}}
	critical := NewCriticalSection()

	s := NewConversationSummarizer(gw, adapter, critical, func() int64 { return 0 })

	err = s.doWork(ctx, &s.status)
	require.NoError(t, err)
	assert.Equal(t, 1, adapter.calls)

	conv, err := gw.GetConversation(ctx, convID)
	require.NoError(t, err)
	require.NotNil(t, conv.Summary)
	assert.Equal(t, "a short summary", *conv.Summary)
	require.NotNil(t, conv.SummaryModel)
	assert.Equal(t, "fake-model", *conv.SummaryModel)
}

func TestConversationSummarizer_ExcludesActiveConversation(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)
	exID, err := gw.CreateExchange(ctx, convID, "hello")
	require.NoError(t, err)
	_, err = gw.AddMessage(ctx, store.NewMessage{
		ConversationID: convID, ExchangeID: exID, Role: store.RoleUser,
		Content: "hello", IncludeInContext: true,
	})
	require.NoError(t, err)

	adapter := &fakeAdapter{response: provider.Response{Content: strPtr("x")}}
	s := NewConversationSummarizer(gw, adapter, NewCriticalSection(), func() int64 { return convID })

	err = s.doWork(ctx, &s.status)
	require.NoError(t, err)
	assert.Equal(t, 0, adapter.calls)

	conv, err := gw.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Nil(t, conv.Summary)
}

func TestConversationSummarizer_NothingToDoIsNotAnError(t *testing.T) {
	gw := newTestGateway(t)
	adapter := &fakeAdapter{}
	s := NewConversationSummarizer(gw, adapter, NewCriticalSection(), func() int64 { return 0 })

	require.NoError(t, s.doWork(context.Background(), &s.status))
	assert.Equal(t, 0, adapter.calls)
}

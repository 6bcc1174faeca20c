package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCreateExchange_GapFreeNumbering covers P2: successive exchanges
// on the same conversation get exchange_number 1, 2, 3, ... in order.
func TestCreateExchange_GapFreeNumbering(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)

	for i := int64(1); i <= 3; i++ {
		id, err := gw.CreateExchange(ctx, convID, "message")
		require.NoError(t, err)

		ex, err := gw.GetExchange(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, i, ex.ExchangeNumber)
	}
}

// TestCreateExchange_NumberingScopedPerConversation covers R3: a new
// conversation's exchange_number sequence restarts at 1, independent
// of any other conversation's history.
func TestCreateExchange_NumberingScopedPerConversation(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	firstConv, err := gw.CreateConversation(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := gw.CreateExchange(ctx, firstConv, "message")
		require.NoError(t, err)
	}

	secondConv, err := gw.CreateConversation(ctx)
	require.NoError(t, err)

	id, err := gw.CreateExchange(ctx, secondConv, "hello again")
	require.NoError(t, err)

	ex, err := gw.GetExchange(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ex.ExchangeNumber)
}

// TestCompleteExchange_PersistsMetrics covers P6: the metrics the
// Tool-Calling Loop accumulates land unchanged on the Exchange row.
func TestCompleteExchange_PersistsMetrics(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)
	exchangeID, err := gw.CreateExchange(ctx, convID, "message")
	require.NoError(t, err)

	assistantMessage := "final answer"
	metrics := ExchangeMetrics{
		TokensInput:   120,
		TokensOutput:  340,
		Spend:         0.0456,
		MessageCount:  3,
		ToolCallCount: 2,
	}
	err = gw.CompleteExchange(ctx, exchangeID, nil, &assistantMessage, metrics)
	require.NoError(t, err)

	ex, err := gw.GetExchange(ctx, exchangeID)
	require.NoError(t, err)
	assert.Equal(t, ExchangeCompleted, ex.Status)
	assert.NotNil(t, ex.CompletedAt)
	require.NotNil(t, ex.AssistantMessage)
	assert.Equal(t, assistantMessage, *ex.AssistantMessage)
	assert.Equal(t, metrics.TokensInput, ex.TokensInput)
	assert.Equal(t, metrics.TokensOutput, ex.TokensOutput)
	assert.InDelta(t, metrics.Spend, ex.Spend, 0.0001)
	assert.Equal(t, metrics.MessageCount, ex.MessageCount)
	assert.Equal(t, metrics.ToolCallCount, ex.ToolCallCount)
}

// TestMessageTokens_SumAndMaxMatchExchange covers P6 at the message
// level: summed tokens_output across a completed exchange's Messages
// equals the exchange's own tokens_output, and the max per-message
// tokens_input equals the exchange's tokens_input, mirroring how
// toolloop.Metrics itself accumulates (sum for output, max for input).
func TestMessageTokens_SumAndMaxMatchExchange(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)
	exchangeID, err := gw.CreateExchange(ctx, convID, "message")
	require.NoError(t, err)

	calls := []struct {
		input  int64
		output int64
		spend  float64
	}{
		{input: 100, output: 50, spend: 0.01},
		{input: 150, output: 75, spend: 0.02},
		{input: 120, output: 30, spend: 0.005},
	}

	var maxInput, sumOutput int64
	var sumSpend float64
	for _, c := range calls {
		in, out, sp := c.input, c.output, c.spend
		_, err := gw.AddMessage(ctx, NewMessage{
			ConversationID:   convID,
			ExchangeID:       exchangeID,
			Role:             RoleAssistant,
			Content:          "partial",
			TokensInput:      &in,
			TokensOutput:     &out,
			Spend:            &sp,
			IncludeInContext: true,
		})
		require.NoError(t, err)

		if in > maxInput {
			maxInput = in
		}
		sumOutput += out
		sumSpend += sp
	}

	assistantMessage := "done"
	err = gw.CompleteExchange(ctx, exchangeID, nil, &assistantMessage, ExchangeMetrics{
		TokensInput:  maxInput,
		TokensOutput: sumOutput,
		Spend:        sumSpend,
	})
	require.NoError(t, err)

	ex, err := gw.GetExchange(ctx, exchangeID)
	require.NoError(t, err)

	msgs, err := gw.Messages(ctx, convID, MessagesQuery{})
	require.NoError(t, err)

	var gotSumOutput, gotMaxInput int64
	for _, m := range msgs {
		if m.TokensOutput != nil {
			gotSumOutput += *m.TokensOutput
		}
		if m.TokensInput != nil && *m.TokensInput > gotMaxInput {
			gotMaxInput = *m.TokensInput
		}
	}

	assert.Equal(t, ex.TokensOutput, gotSumOutput)
	assert.Equal(t, ex.TokensInput, gotMaxInput)
}

// TestSessionTokens_AggregatesSinceBoundary exercises the session_tokens
// operation (§4.1) that backs /info: it must aggregate tokens/spend
// across an entire conversation's messages from a given boundary.
func TestSessionTokens_AggregatesSinceBoundary(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)
	conv, err := gw.GetConversation(ctx, convID)
	require.NoError(t, err)

	exchangeID, err := gw.CreateExchange(ctx, convID, "message")
	require.NoError(t, err)

	in1, out1, spend1 := int64(200), int64(40), 0.03
	_, err = gw.AddMessage(ctx, NewMessage{
		ConversationID: convID, ExchangeID: exchangeID, Role: RoleAssistant,
		Content: "a", TokensInput: &in1, TokensOutput: &out1, Spend: &spend1,
		IncludeInContext: true,
	})
	require.NoError(t, err)

	in2, out2, spend2 := int64(210), int64(60), 0.04
	_, err = gw.AddMessage(ctx, NewMessage{
		ConversationID: convID, ExchangeID: exchangeID, Role: RoleAssistant,
		Content: "b", TokensInput: &in2, TokensOutput: &out2, Spend: &spend2,
		IncludeInContext: true,
	})
	require.NoError(t, err)

	session, err := gw.SessionTokens(ctx, convID, conv.CreatedAt)
	require.NoError(t, err)

	assert.Equal(t, int64(210), session.Input)
	assert.Equal(t, int64(100), session.Output)
	assert.InDelta(t, 0.07, session.Spend, 0.0001)
}

// TestUpdateExchange_NoFieldsIsInvalidArgument guards the dynamic
// SET-clause builder: calling update_exchange with a zero-value
// ExchangeUpdate must fail loudly rather than issuing a no-op UPDATE.
func TestUpdateExchange_NoFieldsIsInvalidArgument(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)
	exchangeID, err := gw.CreateExchange(ctx, convID, "message")
	require.NoError(t, err)

	err = gw.UpdateExchange(ctx, exchangeID, ExchangeUpdate{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

// TestGetExchange_NotFound covers the ErrNotFound wrapping on a
// nonexistent exchange id.
func TestGetExchange_NotFound(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	_, err := gw.GetExchange(ctx, 999999)
	assert.ErrorIs(t, err, ErrNotFound)
}

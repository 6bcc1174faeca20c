package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgreenly/nuagent/internal/store/migrations"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	ctx := context.Background()
	gw, err := NewWithMigrations(ctx, ":memory:", migrations.All())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

// TestWithTx_CommitsOnSuccess covers P1: a transaction that returns no
// error commits everything written inside it.
func TestWithTx_CommitsOnSuccess(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)

	var exchangeID int64
	err = gw.WithTx(ctx, func(ctx context.Context, tx *Tx) error {
		id, err := tx.CreateExchange(ctx, convID, "hello")
		if err != nil {
			return err
		}
		exchangeID = id
		return nil
	})
	require.NoError(t, err)

	_, err = gw.GetExchange(ctx, exchangeID)
	assert.NoError(t, err)
}

// TestWithTx_RollsBackOnError covers P1: an error returned from inside
// WithTx must roll back everything the closure wrote, including
// intermediate writes that themselves succeeded.
func TestWithTx_RollsBackOnError(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)

	var exchangeID int64
	txErr := gw.WithTx(ctx, func(ctx context.Context, tx *Tx) error {
		id, err := tx.CreateExchange(ctx, convID, "hello")
		if err != nil {
			return err
		}
		exchangeID = id

		if _, err := tx.AddMessage(ctx, NewMessage{
			ConversationID:   convID,
			ExchangeID:       id,
			Role:             RoleUser,
			Content:          "hello",
			IncludeInContext: true,
		}); err != nil {
			return err
		}

		return InvalidArgument("simulated mid-turn failure")
	})
	require.Error(t, txErr)

	_, err = gw.GetExchange(ctx, exchangeID)
	assert.ErrorIs(t, err, ErrNotFound)

	msgs, err := gw.Messages(ctx, convID, MessagesQuery{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

// TestWithTx_RollsBackOnPanic covers P1's panic path: a panicking
// closure still rolls back rather than leaving a half-written exchange.
func TestWithTx_RollsBackOnPanic(t *testing.T) {
	gw := newTestGateway(t)
	ctx := context.Background()

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)

	var exchangeID int64
	assert.Panics(t, func() {
		_ = gw.WithTx(ctx, func(ctx context.Context, tx *Tx) error {
			id, err := tx.CreateExchange(ctx, convID, "hello")
			require.NoError(t, err)
			exchangeID = id
			panic("simulated panic mid-transaction")
		})
	})

	_, err = gw.GetExchange(ctx, exchangeID)
	assert.ErrorIs(t, err, ErrNotFound)
}

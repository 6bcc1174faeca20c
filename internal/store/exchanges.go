package store

import (
	"context"

	"github.com/pkg/errors"
)

// createExchange assigns exchange_number = COALESCE(MAX,0)+1 for the
// conversation, holding invariant 6 (gap-free 1..N sequence) as long as
// callers only ever create exchanges inside a WithTx — the MAX read and
// the INSERT must be serialized against concurrent exchange creation on
// the same conversation, which single-writer SQLite plus one shared
// connection already guarantees.
func createExchange(ctx context.Context, q querier, conversationID int64, userMessage string) (int64, error) {
	var nextNumber int64
	err := q.GetContext(ctx, &nextNumber,
		`SELECT COALESCE(MAX(exchange_number), 0) + 1 FROM exchanges WHERE conversation_id = ?`,
		conversationID,
	)
	if err != nil {
		return 0, StoreErrorf(err, "failed to compute next exchange number")
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO exchanges (
			conversation_id, exchange_number, started_at, status, user_message
		) VALUES (?, ?, ?, ?, ?)
	`, conversationID, nextNumber, nowUTC(), ExchangeInProgress, userMessage)
	if err != nil {
		return 0, StoreErrorf(err, "failed to create exchange")
	}
	return res.LastInsertId()
}

func (g *Gateway) CreateExchange(ctx context.Context, conversationID int64, userMessage string) (int64, error) {
	return createExchange(ctx, g.db, conversationID, userMessage)
}

func (t *Tx) CreateExchange(ctx context.Context, conversationID int64, userMessage string) (int64, error) {
	return createExchange(ctx, t.tx, conversationID, userMessage)
}

func getExchange(ctx context.Context, q querier, id int64) (Exchange, error) {
	var e Exchange
	if err := q.GetContext(ctx, &e, `SELECT * FROM exchanges WHERE id = ?`, id); err != nil {
		return Exchange{}, errors.Wrapf(ErrNotFound, "exchange %d", id)
	}
	return e, nil
}

func (g *Gateway) GetExchange(ctx context.Context, id int64) (Exchange, error) {
	return getExchange(ctx, g.db, id)
}

func (t *Tx) GetExchange(ctx context.Context, id int64) (Exchange, error) {
	return getExchange(ctx, t.tx, id)
}

// updateExchange applies the §4.1 update_exchange whitelist.
func updateExchange(ctx context.Context, q querier, exchangeID int64, u ExchangeUpdate) error {
	sets := []string{}
	args := []interface{}{}

	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.Summary != nil {
		add("summary", *u.Summary)
	}
	if u.SummaryModel != nil {
		add("summary_model", *u.SummaryModel)
	}
	if u.Error != nil {
		add("error", *u.Error)
	}
	if u.AssistantMessage != nil {
		add("assistant_message", *u.AssistantMessage)
	}
	if u.CompletedAt != nil {
		add("completed_at", *u.CompletedAt)
	}
	if u.TokensInput != nil {
		add("tokens_input", *u.TokensInput)
	}
	if u.TokensOutput != nil {
		add("tokens_output", *u.TokensOutput)
	}
	if u.Spend != nil {
		add("spend", *u.Spend)
	}
	if u.MessageCount != nil {
		add("message_count", *u.MessageCount)
	}
	if u.ToolCallCount != nil {
		add("tool_call_count", *u.ToolCallCount)
	}

	if len(sets) == 0 {
		return InvalidArgument("update_exchange called with no fields to update")
	}

	query := "UPDATE exchanges SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = ?"
	args = append(args, exchangeID)

	_, err := q.ExecContext(ctx, query, args...)
	return StoreErrorf(err, "failed to update exchange %d", exchangeID)
}

func (g *Gateway) UpdateExchange(ctx context.Context, exchangeID int64, u ExchangeUpdate) error {
	return updateExchange(ctx, g.db, exchangeID, u)
}

func (t *Tx) UpdateExchange(ctx context.Context, exchangeID int64, u ExchangeUpdate) error {
	return updateExchange(ctx, t.tx, exchangeID, u)
}

// CompleteExchange sets status=completed, completed_at=now, and the
// final metrics/assistant message in one whitelisted update (§4.1).
func completeExchange(ctx context.Context, q querier, exchangeID int64, summary, assistantMessage *string, m ExchangeMetrics) error {
	completed := ExchangeCompleted
	now := nowUTC()
	return updateExchange(ctx, q, exchangeID, ExchangeUpdate{
		Status:           &completed,
		Summary:          summary,
		AssistantMessage: assistantMessage,
		CompletedAt:      &now,
		TokensInput:      &m.TokensInput,
		TokensOutput:     &m.TokensOutput,
		Spend:            &m.Spend,
		MessageCount:     &m.MessageCount,
		ToolCallCount:    &m.ToolCallCount,
	})
}

func (g *Gateway) CompleteExchange(ctx context.Context, exchangeID int64, summary, assistantMessage *string, m ExchangeMetrics) error {
	return completeExchange(ctx, g.db, exchangeID, summary, assistantMessage, m)
}

func (t *Tx) CompleteExchange(ctx context.Context, exchangeID int64, summary, assistantMessage *string, m ExchangeMetrics) error {
	return completeExchange(ctx, t.tx, exchangeID, summary, assistantMessage, m)
}

// getUnsummarizedExchanges returns exchanges with a NULL summary,
// newest first, excluding anything belonging to excludeConversationID
// (the active conversation, mirroring getUnsummarizedConversations —
// the summarizer must never touch an exchange still in flight).
func getUnsummarizedExchanges(ctx context.Context, q querier, excludeConversationID int64) ([]Exchange, error) {
	var exchanges []Exchange
	err := q.SelectContext(ctx, &exchanges, `
		SELECT * FROM exchanges
		WHERE summary IS NULL AND status = 'completed' AND conversation_id != ?
		ORDER BY id DESC
	`, excludeConversationID)
	if err != nil {
		return nil, StoreErrorf(err, "failed to query unsummarized exchanges")
	}
	return exchanges, nil
}

func (g *Gateway) GetUnsummarizedExchanges(ctx context.Context, excludeConversationID int64) ([]Exchange, error) {
	return getUnsummarizedExchanges(ctx, g.db, excludeConversationID)
}

// GetExchangesNeedingEmbeddings returns exchanges with a non-null
// summary but no embedding row yet (§4.1).
func getExchangesNeedingEmbeddings(ctx context.Context, q querier, excludeConversationID int64) ([]Exchange, error) {
	var exchanges []Exchange
	err := q.SelectContext(ctx, &exchanges, `
		SELECT e.* FROM exchanges e
		LEFT JOIN text_embeddings t ON t.kind = 'exchange' AND t.source = CAST(e.id AS TEXT)
		WHERE e.summary IS NOT NULL AND t.source IS NULL AND e.conversation_id != ?
		ORDER BY e.id ASC
	`, excludeConversationID)
	if err != nil {
		return nil, StoreErrorf(err, "failed to query exchanges needing embeddings")
	}
	return exchanges, nil
}

func (g *Gateway) GetExchangesNeedingEmbeddings(ctx context.Context, excludeConversationID int64) ([]Exchange, error) {
	return getExchangesNeedingEmbeddings(ctx, g.db, excludeConversationID)
}

// GetConversationsNeedingEmbeddings mirrors the exchange query over conversations.
func getConversationsNeedingEmbeddings(ctx context.Context, q querier, excludeConversationID int64) ([]Conversation, error) {
	var convs []Conversation
	err := q.SelectContext(ctx, &convs, `
		SELECT c.* FROM conversations c
		LEFT JOIN text_embeddings t ON t.kind = 'conversation' AND t.source = CAST(c.id AS TEXT)
		WHERE c.summary IS NOT NULL AND t.source IS NULL AND c.id != ?
		ORDER BY c.id ASC
	`, excludeConversationID)
	if err != nil {
		return nil, StoreErrorf(err, "failed to query conversations needing embeddings")
	}
	return convs, nil
}

func (g *Gateway) GetConversationsNeedingEmbeddings(ctx context.Context, excludeConversationID int64) ([]Conversation, error) {
	return getConversationsNeedingEmbeddings(ctx, g.db, excludeConversationID)
}

// SessionTokens computes input=MAX, output=SUM, spend=SUM over
// messages created on/after since (§4.1).
func sessionTokens(ctx context.Context, q querier, conversationID int64, since interface{}) (SessionTokens, error) {
	var st SessionTokens
	err := q.GetContext(ctx, &st, `
		SELECT
			COALESCE(MAX(tokens_input), 0) AS input,
			COALESCE(SUM(tokens_output), 0) AS output,
			COALESCE(MAX(tokens_input), 0) + COALESCE(SUM(tokens_output), 0) AS total,
			COALESCE(SUM(spend), 0) AS spend
		FROM messages
		WHERE conversation_id = ? AND created_at >= ?
	`, conversationID, since)
	if err != nil {
		return SessionTokens{}, StoreErrorf(err, "failed to compute session tokens")
	}
	return st, nil
}

func (g *Gateway) SessionTokens(ctx context.Context, conversationID int64, since interface{}) (SessionTokens, error) {
	return sessionTokens(ctx, g.db, conversationID, since)
}

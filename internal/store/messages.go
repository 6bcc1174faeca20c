package store

import (
	"context"
	"time"
)

// addMessage appends one Message and returns its id. Messages are
// never updated after insertion (§3 invariant: append-only, id
// strictly increasing in write order).
func addMessage(ctx context.Context, q querier, m NewMessage) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO messages (
			conversation_id, exchange_id, actor, role, content, model,
			tokens_input, tokens_output, spend, tool_calls, tool_call_id,
			tool_result, error, redacted, include_in_context, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ConversationID, m.ExchangeID, m.Actor, m.Role, m.Content, m.Model,
		m.TokensInput, m.TokensOutput, m.Spend, m.ToolCalls, m.ToolCallID,
		m.ToolResult, m.Error, m.Redacted, m.IncludeInContext, nowUTC(),
	)
	if err != nil {
		return 0, StoreErrorf(err, "failed to add message")
	}
	return res.LastInsertId()
}

func (g *Gateway) AddMessage(ctx context.Context, m NewMessage) (int64, error) {
	return addMessage(ctx, g.db, m)
}

func (t *Tx) AddMessage(ctx context.Context, m NewMessage) (int64, error) {
	return addMessage(ctx, t.tx, m)
}

// MessagesQuery narrows the Messages listing per §4.1.
type MessagesQuery struct {
	Since                *time.Time
	IncludeInContextOnly bool
}

// messages returns Messages for a conversation ordered by id ascending.
func messages(ctx context.Context, q querier, conversationID int64, mq MessagesQuery) ([]Message, error) {
	query := `SELECT * FROM messages WHERE conversation_id = ?`
	args := []interface{}{conversationID}

	if mq.Since != nil {
		query += ` AND created_at >= ?`
		args = append(args, *mq.Since)
	}
	if mq.IncludeInContextOnly {
		query += ` AND include_in_context = 1 AND redacted = 0`
	}
	query += ` ORDER BY id ASC`

	var msgs []Message
	if err := q.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, StoreErrorf(err, "failed to list messages")
	}
	return msgs, nil
}

func (g *Gateway) Messages(ctx context.Context, conversationID int64, mq MessagesQuery) ([]Message, error) {
	return messages(ctx, g.db, conversationID, mq)
}

func (t *Tx) Messages(ctx context.Context, conversationID int64, mq MessagesQuery) ([]Message, error) {
	return messages(ctx, t.tx, conversationID, mq)
}

// messagesSince returns messages with id strictly greater than afterID,
// used for incremental UI refresh (§4.1).
func messagesSince(ctx context.Context, q querier, conversationID int64, afterID int64) ([]Message, error) {
	var msgs []Message
	err := q.SelectContext(ctx, &msgs, `
		SELECT * FROM messages WHERE conversation_id = ? AND id > ? ORDER BY id ASC
	`, conversationID, afterID)
	if err != nil {
		return nil, StoreErrorf(err, "failed to list messages since %d", afterID)
	}
	return msgs, nil
}

func (g *Gateway) MessagesSince(ctx context.Context, conversationID int64, afterID int64) ([]Message, error) {
	return messagesSince(ctx, g.db, conversationID, afterID)
}

func (t *Tx) MessagesSince(ctx context.Context, conversationID int64, afterID int64) ([]Message, error) {
	return messagesSince(ctx, t.tx, conversationID, afterID)
}

// FindCorruptedMessages implements the schema-agnostic scan for the
// legacy `{redacted:true}` sentinel accidentally stored as a tool_call
// argument (DESIGN NOTES §9). SQLite has no JSON path indexing here,
// so the scan is a LIKE prefilter in SQL followed by a precise decode
// in Go — cheap because the prefilter already excludes the overwhelming
// majority of rows.
func findCorruptedMessages(ctx context.Context, q querier) ([]Message, error) {
	var candidates []Message
	err := q.SelectContext(ctx, &candidates, `
		SELECT * FROM messages
		WHERE tool_calls IS NOT NULL AND tool_calls LIKE '%redacted%'
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, StoreErrorf(err, "failed to scan for corrupted messages")
	}

	corrupted := make([]Message, 0, len(candidates))
	for _, m := range candidates {
		if m.ToolCalls != nil && messageIsCorrupted(*m.ToolCalls) {
			corrupted = append(corrupted, m)
		}
	}
	return corrupted, nil
}

func (g *Gateway) FindCorruptedMessages(ctx context.Context) ([]Message, error) {
	return findCorruptedMessages(ctx, g.db)
}

// DeleteMessages removes messages by id, used by the corruption-scrub
// admin command (SPEC_FULL.md supplemented feature 1).
func deleteMessages(ctx context.Context, q querier, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args := inClause(`DELETE FROM messages WHERE id IN (%s)`, ids)
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, StoreErrorf(err, "failed to delete corrupted messages")
	}
	return res.RowsAffected()
}

func (g *Gateway) DeleteMessages(ctx context.Context, ids []int64) (int64, error) {
	return deleteMessages(ctx, g.db, ids)
}

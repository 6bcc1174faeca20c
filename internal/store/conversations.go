package store

import (
	"context"

	"github.com/pkg/errors"
)

func createConversation(ctx context.Context, q querier) (int64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO conversations (created_at, status) VALUES (?, ?)`,
		nowUTC(), ConversationActive,
	)
	if err != nil {
		return 0, StoreErrorf(err, "failed to create conversation")
	}
	return res.LastInsertId()
}

// CreateConversation creates a new Conversation and returns its id.
func (g *Gateway) CreateConversation(ctx context.Context) (int64, error) {
	return createConversation(ctx, g.db)
}

// CreateConversation is the transactional form.
func (t *Tx) CreateConversation(ctx context.Context) (int64, error) {
	return createConversation(ctx, t.tx)
}

func getConversation(ctx context.Context, q querier, id int64) (Conversation, error) {
	var c Conversation
	err := q.GetContext(ctx, &c, `SELECT * FROM conversations WHERE id = ?`, id)
	if err != nil {
		return Conversation{}, errors.Wrapf(ErrNotFound, "conversation %d", id)
	}
	return c, nil
}

// GetConversation loads a Conversation by id.
func (g *Gateway) GetConversation(ctx context.Context, id int64) (Conversation, error) {
	return getConversation(ctx, g.db, id)
}

// GetConversation is the transactional form.
func (t *Tx) GetConversation(ctx context.Context, id int64) (Conversation, error) {
	return getConversation(ctx, t.tx, id)
}

// GetUnsummarizedConversations returns conversations with a NULL
// summary, newest first, excluding excludeID (the active conversation,
// per §4.1 — the summarizer must never touch the one in flight).
func getUnsummarizedConversations(ctx context.Context, q querier, excludeID int64) ([]Conversation, error) {
	var convs []Conversation
	err := q.SelectContext(ctx, &convs, `
		SELECT * FROM conversations
		WHERE summary IS NULL AND id != ?
		ORDER BY id DESC
	`, excludeID)
	if err != nil {
		return nil, StoreErrorf(err, "failed to query unsummarized conversations")
	}
	return convs, nil
}

func (g *Gateway) GetUnsummarizedConversations(ctx context.Context, excludeID int64) ([]Conversation, error) {
	return getUnsummarizedConversations(ctx, g.db, excludeID)
}

// SetConversationSummary is the worker-owned write to summary*
// fields on a completed conversation (§3 lifecycle ownership).
func setConversationSummary(ctx context.Context, q querier, id int64, summary string, model string, cost float64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE conversations SET summary = ?, summary_model = ?, summary_cost = ? WHERE id = ?
	`, summary, model, cost, id)
	return StoreErrorf(err, "failed to set conversation summary")
}

func (g *Gateway) SetConversationSummary(ctx context.Context, id int64, summary, model string, cost float64) error {
	return setConversationSummary(ctx, g.db, id, summary, model, cost)
}

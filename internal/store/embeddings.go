package store

import (
	"context"
	"strconv"
)

// upsertEmbedding is the shared ON CONFLICT(kind, source) DO NOTHING
// implementation backing both per-kind convenience wrappers and the
// generic StoreEmbeddings batch call (§4.1, R2: idempotent upsert).
func upsertEmbedding(ctx context.Context, q querier, rec EmbeddingRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO text_embeddings (kind, source, content, dim, embedding, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, source) DO NOTHING
	`, rec.Kind, rec.Source, rec.Content, rec.Dim, rec.Embedding, nowUTC())
	return StoreErrorf(err, "failed to upsert embedding (%s, %s)", rec.Kind, rec.Source)
}

// UpsertConversationEmbedding is the worker-owned write for a
// conversation's summary embedding.
func (g *Gateway) UpsertConversationEmbedding(ctx context.Context, id int64, content string, embedding []byte, dim int) error {
	return upsertEmbedding(ctx, g.db, EmbeddingRecord{
		Kind: "conversation", Source: formatID(id), Content: content, Dim: dim, Embedding: embedding,
	})
}

// UpsertExchangeEmbedding is the worker-owned write for an exchange's summary embedding.
func (g *Gateway) UpsertExchangeEmbedding(ctx context.Context, id int64, content string, embedding []byte, dim int) error {
	return upsertEmbedding(ctx, g.db, EmbeddingRecord{
		Kind: "exchange", Source: formatID(id), Content: content, Dim: dim, Embedding: embedding,
	})
}

// StoreEmbeddings upserts an arbitrary batch of records in one
// transaction, used by tool-backed embedding producers (e.g. man_page
// indexing) that aren't one of the two built-in kinds.
func (g *Gateway) StoreEmbeddings(ctx context.Context, records []EmbeddingRecord) error {
	return g.WithTx(ctx, func(ctx context.Context, tx *Tx) error {
		for _, rec := range records {
			if err := upsertEmbedding(ctx, tx.tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

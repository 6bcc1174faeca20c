package worker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/mgreenly/nuagent/internal/provider"
	"github.com/mgreenly/nuagent/internal/store"
)

// EmbeddingGenerator polls conversations and exchanges that have a
// summary but no embedding yet, embeds them in batches, and upserts
// the resulting vectors. Grounded on the pack's embeddings.Provider
// batch/cache usage (haasonsaas-nexus's memory manager) since the
// teacher has no embedding surface of its own.
type EmbeddingGenerator struct {
	*PausableTask
	gateway      *store.Gateway
	embedder     provider.Embedder
	critical     *CriticalSection
	cache        *embeddingCache
	activeConvID func() int64
	batchSize    int
	rateLimit    time.Duration
}

func NewEmbeddingGenerator(
	gateway *store.Gateway,
	embedder provider.Embedder,
	critical *CriticalSection,
	cache *embeddingCache,
	activeConvID func() int64,
	batchSize int,
	rateLimit time.Duration,
) *EmbeddingGenerator {
	if batchSize <= 0 {
		batchSize = 10
	}
	g := &EmbeddingGenerator{
		gateway: gateway, embedder: embedder, critical: critical, cache: cache,
		activeConvID: activeConvID, batchSize: batchSize, rateLimit: rateLimit,
	}
	g.PausableTask = NewPausableTask("embedding_generator", g.doWork, DefaultRetryConfig())
	return g
}

func (g *EmbeddingGenerator) doWork(ctx context.Context, status *statusBox) error {
	if err := g.embedConversations(ctx, status); err != nil {
		return err
	}
	return g.embedExchanges(ctx, status)
}

func (g *EmbeddingGenerator) embedConversations(ctx context.Context, status *statusBox) error {
	convs, err := g.gateway.GetConversationsNeedingEmbeddings(ctx, g.activeConvID())
	if err != nil {
		return errors.Wrap(err, "failed to list conversations needing embeddings")
	}

	for batch := range chunkConversations(convs, g.batchSize) {
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = *c.Summary
		}
		status.SetCurrent("conversation_batch", batch[0].ID)

		vectors, spend, err := g.embedWithCache(ctx, texts)
		if err != nil {
			return errors.Wrap(err, "failed to embed conversation batch")
		}

		g.critical.Enter()
		for i, c := range batch {
			encoded := encodeVector(vectors[i])
			if err := g.gateway.UpsertConversationEmbedding(ctx, c.ID, texts[i], encoded, g.embedder.Dimension()); err != nil {
				g.critical.Exit()
				return errors.Wrapf(err, "failed to upsert conversation embedding %d", c.ID)
			}
		}
		g.critical.Exit()
		status.AddSpend(spend)

		if !g.throttle(ctx) {
			return nil
		}
	}
	return nil
}

func (g *EmbeddingGenerator) embedExchanges(ctx context.Context, status *statusBox) error {
	exchanges, err := g.gateway.GetExchangesNeedingEmbeddings(ctx, g.activeConvID())
	if err != nil {
		return errors.Wrap(err, "failed to list exchanges needing embeddings")
	}

	for batch := range chunkExchanges(exchanges, g.batchSize) {
		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = *e.Summary
		}
		status.SetCurrent("exchange_batch", batch[0].ID)

		vectors, spend, err := g.embedWithCache(ctx, texts)
		if err != nil {
			return errors.Wrap(err, "failed to embed exchange batch")
		}

		g.critical.Enter()
		for i, e := range batch {
			encoded := encodeVector(vectors[i])
			if err := g.gateway.UpsertExchangeEmbedding(ctx, e.ID, texts[i], encoded, g.embedder.Dimension()); err != nil {
				g.critical.Exit()
				return errors.Wrapf(err, "failed to upsert exchange embedding %d", e.ID)
			}
		}
		g.critical.Exit()
		status.AddSpend(spend)

		if !g.throttle(ctx) {
			return nil
		}
	}
	return nil
}

// throttle enforces the rate-limit gap between batches, returning
// false if ctx was cancelled while waiting.
func (g *EmbeddingGenerator) throttle(ctx context.Context) bool {
	if g.rateLimit <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(g.rateLimit):
		return true
	}
}

// embedWithCache checks the optional cache for each text before
// calling the underlying embedder, only paying for cache misses.
func (g *EmbeddingGenerator) embedWithCache(ctx context.Context, texts []string) ([][]float32, float64, error) {
	if g.cache == nil {
		return g.embedder.EmbedBatch(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	var misses []string
	var missIdx []int

	for i, t := range texts {
		if v, ok := g.cache.get(ctx, t); ok {
			vectors[i] = v
			continue
		}
		misses = append(misses, t)
		missIdx = append(missIdx, i)
	}

	if len(misses) == 0 {
		return vectors, 0, nil
	}

	fresh, spend, err := g.embedder.EmbedBatch(ctx, misses)
	if err != nil {
		return nil, 0, err
	}
	for j, idx := range missIdx {
		vectors[idx] = fresh[j]
		g.cache.set(ctx, misses[j], fresh[j])
	}
	return vectors, spend, nil
}

func chunkConversations(convs []store.Conversation, size int) <-chan []store.Conversation {
	out := make(chan []store.Conversation)
	go func() {
		defer close(out)
		for i := 0; i < len(convs); i += size {
			end := i + size
			if end > len(convs) {
				end = len(convs)
			}
			out <- convs[i:end]
		}
	}()
	return out
}

func chunkExchanges(exchanges []store.Exchange, size int) <-chan []store.Exchange {
	out := make(chan []store.Exchange)
	go func() {
		defer close(out)
		for i := 0; i < len(exchanges); i += size {
			end := i + size
			if end > len(exchanges) {
				end = len(exchanges)
			}
			out <- exchanges[i:end]
		}
	}()
	return out
}

// encodeVector serializes a []float32 as little-endian bytes, matching
// EmbeddingRecord.Embedding's documented wire format.
func encodeVector(v []float32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(v) * 4)
	for _, f := range v {
		_ = binary.Write(buf, binary.LittleEndian, f)
	}
	return buf.Bytes()
}

// embeddingCache is the optional Redis-backed response cache (DOMAIN
// STACK: go-redis). Grounded on intelligencedev-manifold's
// redis_cache.go nil-safe wrapper: every method tolerates a nil
// client so the feature can be compiled in and left unconfigured.
type embeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEmbeddingCache(client *redis.Client, ttl time.Duration) *embeddingCache {
	return &embeddingCache{client: client, ttl: ttl}
}

func (c *embeddingCache) get(ctx context.Context, text string) ([]float32, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(text)).Result()
	if err != nil {
		return nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, false
	}
	return decodeVector(decoded), true
}

func (c *embeddingCache) set(ctx context.Context, text string, v []float32) {
	if c == nil || c.client == nil {
		return
	}
	encoded := base64.StdEncoding.EncodeToString(encodeVector(v))
	c.client.Set(ctx, cacheKey(text), encoded, c.ttl)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embed:" + base64.RawURLEncoding.EncodeToString(sum[:])
}

func decodeVector(raw []byte) []float32 {
	v := make([]float32, len(raw)/4)
	r := bytes.NewReader(raw)
	for i := range v {
		_ = binary.Read(r, binary.LittleEndian, &v[i])
	}
	return v
}

package provider

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Embedder generates vector embeddings for the EmbeddingGenerator
// worker (§4.7). Grounded on the embeddings.Provider shape used by
// the pack's retrieval-augmented example (EmbedBatch over a slice of
// texts, returning one vector per input in request order) — the
// teacher itself has no embedding surface.
type Embedder interface {
	// EmbedBatch returns one vector per text, in input order, plus the
	// dollar cost of the call.
	EmbedBatch(ctx context.Context, texts []string) (vectors [][]float32, spend float64, err error)
	Dimension() int
}

// openAIEmbedder wraps go-openai's CreateEmbeddings, already a wired
// dependency for the chat adapter — reused here rather than adding a
// second embeddings SDK.
type openAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

// openAIEmbeddingPricing is USD per input token; OpenAI prices
// embeddings per-token with no output tokens, unlike the chat models.
var openAIEmbeddingPricing = map[string]float64{
	"text-embedding-3-small": 0.00000002,
	"text-embedding-3-large": 0.00000013,
	"text-embedding-ada-002": 0.0000001,
}

// NewOpenAIEmbedder constructs an Embedder for model (default
// "text-embedding-3-small" per Open Question (ii)'s dim=1536 default).
func NewOpenAIEmbedder(model, apiKey string) Embedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &openAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
		dim:    embeddingDimFor(model),
	}
}

func embeddingDimFor(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

func (e *openAIEmbedder) Dimension() int { return e.dim }

func (e *openAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, float64, error) {
	if len(texts) == 0 {
		return nil, 0, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to create embeddings")
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}

	pricePerToken := openAIEmbeddingPricing[e.model]
	spend := float64(resp.Usage.TotalTokens) * pricePerToken

	return vectors, spend, nil
}

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/Ashnajames/Agentic-AI/internal/types"
)

// embeddingBatchSize caps how many texts go to the model per call. Batches
// are processed sequentially and concatenated in input order.
const embeddingBatchSize = 32

// EmbeddingClient is the slice of the model API the embedder needs.
// *ollama.LLM satisfies it; tests inject fakes.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	Dimension int
}

// Embedder wraps the embedding model and batches text for vectorization.
type Embedder struct {
	config EmbedderConfig
	client EmbeddingClient
	logger *slog.Logger
}

func NewEmbedderWithConfig(config EmbedderConfig, logger *slog.Logger) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Dimension == 0 {
		config.Dimension = 768
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return &Embedder{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

// NewEmbedderWithClient builds an embedder around an existing client.
func NewEmbedderWithClient(client EmbeddingClient, dimension int, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		config: EmbedderConfig{Dimension: dimension},
		client: client,
		logger: logger,
	}
}

// EncodeBatch vectorizes texts in sub-batches of at most 32, preserving
// input order in the concatenated result.
func (e *Embedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.client == nil {
		return nil, types.ErrNotInitialized
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		embeddings, err := e.client.CreateEmbedding(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: create embedding: %v", types.ErrUpstreamUnavailable, err)
		}
		all = append(all, embeddings...)
	}

	e.logger.Debug("encoded texts", "count", len(texts))
	return all, nil
}

// EncodeQuery vectorizes a single text.
func (e *Embedder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned for query", types.ErrUpstreamUnavailable)
	}
	return embeddings[0], nil
}

// EncodeAverage returns the L2-normalized component-wise mean of the texts'
// embeddings. An empty input yields a zero vector of the configured
// dimension rather than an error.
func (e *Embedder) EncodeAverage(ctx context.Context, texts []string) ([]float32, error) {
	if len(texts) == 0 {
		return make([]float32, e.config.Dimension), nil
	}

	embeddings, err := e.EncodeBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		e.logger.Warn("no embeddings generated, returning a zero vector")
		return make([]float32, e.config.Dimension), nil
	}

	avg := make([]float64, len(embeddings[0]))
	for _, embedding := range embeddings {
		for i, v := range embedding {
			avg[i] += float64(v)
		}
	}

	var norm float64
	for i := range avg {
		avg[i] /= float64(len(embeddings))
		norm += avg[i] * avg[i]
	}
	norm = math.Sqrt(norm)

	result := make([]float32, len(avg))
	for i, v := range avg {
		if norm > 0 {
			v /= norm
		}
		result[i] = float32(v)
	}
	return result, nil
}

// Dimension returns the configured embedding dimensionality.
func (e *Embedder) Dimension() int {
	return e.config.Dimension
}

func (e *Embedder) Ready() bool {
	return e.client != nil
}

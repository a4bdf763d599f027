package types

import (
	"context"
	"errors"

	"github.com/Ashnajames/Agentic-AI/internal/models"
)

// Error taxonomy for the pipeline. Gateways wrap these sentinels so the
// orchestrator can map failures to degraded outcomes instead of letting them
// reach the request boundary.
var (
	// ErrNotInitialized marks a gateway used before its setup completed.
	// Fatal at startup, never expected afterwards.
	ErrNotInitialized = errors.New("gateway not initialized")

	// ErrUpstreamUnavailable marks an unreachable store or model backend.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrIngestionFailure marks a scrape, parse, or embedding failure during
	// a knowledge base refresh.
	ErrIngestionFailure = errors.New("ingestion failure")

	// ErrGenerationFailure marks a model inference error. Callers replace it
	// with templated fallback text; it never fails a request.
	ErrGenerationFailure = errors.New("generation failure")
)

// SearchFilter narrows a nearest-neighbor search to matching documents.
// Zero-valued fields impose no restriction.
type SearchFilter struct {
	Category string
	ToolName string
}

// SearchOption configures a SearchFilter.
type SearchOption func(*SearchFilter)

// WithCategory restricts a search to documents of one category.
func WithCategory(category string) SearchOption {
	return func(f *SearchFilter) { f.Category = category }
}

// WithToolName restricts a search to documents tagged with one tool.
func WithToolName(toolName string) SearchOption {
	return func(f *SearchFilter) { f.ToolName = toolName }
}

// NewSearchFilter applies options to an empty filter.
func NewSearchFilter(opts ...SearchOption) SearchFilter {
	var f SearchFilter
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// VectorStore is the nearest-neighbor document store.
type VectorStore interface {
	// EnsureSchema connects to the store and creates the collection if it is
	// absent. Idempotent.
	EnsureSchema(ctx context.Context) error

	// Insert writes documents with their precomputed vectors in fixed-size
	// sub-batches. A failing sub-batch aborts the remainder.
	Insert(ctx context.Context, docs []models.Document) error

	// Search returns the nearest documents ordered by decreasing certainty,
	// optionally narrowed by filter options. An unreachable store yields an
	// empty slice, not an error.
	Search(ctx context.Context, vector []float32, limit int, opts ...SearchOption) ([]models.SearchResult, error)

	Count(ctx context.Context) (int, error)

	// WipeAndRecreate drops the collection and recreates the schema.
	WipeAndRecreate(ctx context.Context) error

	Ready() bool
	Close()
}

// Embedder turns text into vectors.
type Embedder interface {
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	EncodeAverage(ctx context.Context, texts []string) ([]float32, error)
	Dimension() int
	Ready() bool
}

// Generator produces a grounded answer from retrieved context. A generation
// failure is absorbed into a templated fallback answer, so Generate only
// errors when it cannot produce any text at all.
type Generator interface {
	Generate(ctx context.Context, question string, docs []models.SearchResult, history []models.ChatMessage) (string, error)
	Ready() bool
}

// Scraper fetches a target page and extracts raw structured content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.ScrapedPage, error)
}

// Processor turns a scraped page into pre-embedding documents.
type Processor interface {
	Structure(page *models.ScrapedPage) []models.Document
}

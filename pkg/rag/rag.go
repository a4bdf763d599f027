// Package rag coordinates the ingestion pipeline (scrape, structure, chunk,
// embed, index) and the query pipeline (embed, search, generate, score).
// Errors from the gateways are mapped to degraded outcome values here; they
// never propagate to the request boundary.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ashnajames/Agentic-AI/internal/models"
	"github.com/Ashnajames/Agentic-AI/internal/types"
)

const noRelevantInfoResponse = "I couldn't find relevant information to answer your question. Please try rephrasing or ask about specific ITSM tools."

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type ServiceConfig struct {
	TargetURL  string
	MaxResults int
}

// Service is the top-level RAG coordinator. The gateways it owns are
// long-lived singletons wired in once at startup; after Initialize they are
// only read. A refresh running concurrently with queries may expose a
// transiently empty or partially repopulated store; that race is accepted.
type Service struct {
	config    ServiceConfig
	scraper   types.Scraper
	processor types.Processor
	embedder  types.Embedder
	generator types.Generator
	store     types.VectorStore
	logger    *slog.Logger

	initialized atomic.Bool

	mu          sync.Mutex
	lastUpdated *time.Time
}

func New(config ServiceConfig, scraper types.Scraper, processor types.Processor, embedder types.Embedder, generator types.Generator, store types.VectorStore, logger *slog.Logger) *Service {
	if config.MaxResults == 0 {
		config.MaxResults = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config:    config,
		scraper:   scraper,
		processor: processor,
		embedder:  embedder,
		generator: generator,
		store:     store,
		logger:    logger,
	}
}

// Initialize ensures the store schema and, when the store is empty, runs one
// ingestion pass. Any failure here is fatal: the process must not serve
// traffic on a partially initialized pipeline.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info("initializing RAG service")

	if err := s.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure store schema: %w", err)
	}

	if !s.embedder.Ready() {
		return fmt.Errorf("%w: embedding model", types.ErrNotInitialized)
	}
	if !s.generator.Ready() {
		s.logger.Warn("generation model not loaded, responses will use metadata fallback")
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}

	if count == 0 {
		s.logger.Info("no documents found, loading initial data")
		result := s.Refresh(ctx, false)
		if result.Status != StatusSuccess {
			return fmt.Errorf("initial ingestion failed: %s", result.Message)
		}
	}

	s.initialized.Store(true)
	s.logger.Info("RAG service initialized")
	return nil
}

// Query runs the retrieval-and-generation pipeline for one question. It never
// returns an error: every failure becomes a degraded outcome with confidence
// zero.
func (s *Service) Query(ctx context.Context, question string, history []models.ChatMessage, maxResults int) models.QueryResult {
	start := time.Now()

	result, err := s.query(ctx, question, history, maxResults, start)
	if err != nil {
		s.logger.Error("error processing query", "error", err)
		return models.QueryResult{
			Response:       fmt.Sprintf("An error occurred while processing your request: %v", err),
			Sources:        []models.SourceInfo{},
			Confidence:     0.0,
			ProcessingTime: time.Since(start).Seconds(),
		}
	}
	return result
}

func (s *Service) query(ctx context.Context, question string, history []models.ChatMessage, maxResults int, start time.Time) (models.QueryResult, error) {
	if !s.initialized.Load() {
		return models.QueryResult{}, types.ErrNotInitialized
	}
	if maxResults <= 0 {
		maxResults = s.config.MaxResults
	}

	embedding, err := s.embedder.EncodeQuery(ctx, question)
	if err != nil {
		return models.QueryResult{}, err
	}

	docs, err := s.store.Search(ctx, embedding, maxResults)
	if err != nil {
		return models.QueryResult{}, err
	}

	// No grounding found: short-circuit instead of generating ungrounded.
	if len(docs) == 0 {
		return models.QueryResult{
			Response:       noRelevantInfoResponse,
			Sources:        []models.SourceInfo{},
			Confidence:     0.0,
			ProcessingTime: time.Since(start).Seconds(),
		}, nil
	}

	response, err := s.generator.Generate(ctx, question, docs, history)
	if err != nil {
		return models.QueryResult{}, fmt.Errorf("%w: %v", types.ErrGenerationFailure, err)
	}

	sources := make([]models.SourceInfo, 0, len(docs))
	var certaintySum float64
	for _, doc := range docs {
		sources = append(sources, models.SourceInfo{
			Source:    doc.Source,
			Category:  doc.Category,
			ToolName:  doc.ToolName,
			Certainty: doc.Certainty,
			Distance:  doc.Distance,
		})
		certaintySum += doc.Certainty
	}

	confidence := certaintySum / float64(len(docs))
	elapsed := time.Since(start).Seconds()

	s.logger.Info("processed query", "processing_time", elapsed, "confidence", confidence)

	return models.QueryResult{
		Response:       response,
		Sources:        sources,
		Confidence:     confidence,
		ProcessingTime: elapsed,
	}, nil
}

// Refresh rebuilds the knowledge base: scrape, structure, embed, then insert.
// Embedding happens before any destructive wipe so a scrape or embedding
// failure never leaves the store empty. A stage failure yields an error
// outcome with zero documents processed.
func (s *Service) Refresh(ctx context.Context, forceRefresh bool) models.RefreshResult {
	start := time.Now()
	s.logger.Info("starting knowledge base refresh", "force", forceRefresh)

	docs, err := s.refresh(ctx, forceRefresh)
	if err != nil {
		s.logger.Error("error refreshing knowledge base", "error", err)
		return models.RefreshResult{
			Status:         StatusError,
			Message:        fmt.Sprintf("Failed to refresh knowledge base: %v", err),
			ProcessingTime: time.Since(start).Seconds(),
		}
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.lastUpdated = &now
	s.mu.Unlock()

	elapsed := time.Since(start).Seconds()
	s.logger.Info("knowledge base refreshed", "documents", docs, "processing_time", elapsed)

	return models.RefreshResult{
		Status:             StatusSuccess,
		Message:            "Knowledge base updated successfully",
		DocumentsProcessed: docs,
		ProcessingTime:     elapsed,
	}
}

func (s *Service) refresh(ctx context.Context, forceRefresh bool) (int, error) {
	page, err := s.scraper.Scrape(ctx, s.config.TargetURL)
	if err != nil {
		return 0, fmt.Errorf("%w: scrape: %v", types.ErrIngestionFailure, err)
	}
	if page == nil {
		return 0, fmt.Errorf("%w: failed to scrape content from website", types.ErrIngestionFailure)
	}

	documents := s.processor.Structure(page)
	if len(documents) == 0 {
		return 0, fmt.Errorf("%w: no documents were processed from scraped content", types.ErrIngestionFailure)
	}

	texts := make([]string, len(documents))
	for i, doc := range documents {
		texts[i] = doc.Content
	}

	embeddings, err := s.embedder.EncodeBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: embed: %v", types.ErrIngestionFailure, err)
	}
	if len(embeddings) != len(documents) {
		return 0, fmt.Errorf("%w: got %d embeddings for %d documents", types.ErrIngestionFailure, len(embeddings), len(documents))
	}

	for i := range documents {
		documents[i].Vector = embeddings[i]
	}

	// Only wipe once the replacement documents are fully embedded.
	if forceRefresh {
		if err := s.store.WipeAndRecreate(ctx); err != nil {
			return 0, fmt.Errorf("failed to wipe store: %w", err)
		}
	}

	if err := s.store.Insert(ctx, documents); err != nil {
		return 0, fmt.Errorf("failed to index documents: %w", err)
	}

	return len(documents), nil
}

// Health reports aggregate readiness. It never fails; internal errors degrade
// to an all-false snapshot with an error status.
func (s *Service) Health(ctx context.Context) models.HealthStatus {
	count, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Error("error getting health status", "error", err)
		return models.HealthStatus{Status: StatusError}
	}

	status := "healthy"
	if !s.initialized.Load() {
		status = "initializing"
	}

	s.mu.Lock()
	lastUpdated := s.lastUpdated
	s.mu.Unlock()

	return models.HealthStatus{
		Status:          status,
		StoreReady:      s.store.Ready(),
		EmbeddingReady:  s.embedder.Ready(),
		GenerationReady: s.generator.Ready(),
		DocumentCount:   count,
		LastUpdated:     lastUpdated,
	}
}

// IsReady reports whether the full pipeline can serve queries.
func (s *Service) IsReady() bool {
	return s.initialized.Load() && s.store.Ready() && s.embedder.Ready()
}

// StartAutoRefresh re-ingests on a fixed interval until the context is
// canceled. Refresh outcomes are logged, not surfaced.
func (s *Service) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if result := s.Refresh(ctx, false); result.Status != StatusSuccess {
					s.logger.Warn("scheduled refresh failed", "message", result.Message)
				}
			}
		}
	}()
}

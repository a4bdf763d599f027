package rag_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashnajames/Agentic-AI/internal/models"
	"github.com/Ashnajames/Agentic-AI/internal/types"
	"github.com/Ashnajames/Agentic-AI/pkg/rag"
)

type fakeStore struct {
	ops *[]string

	results   []models.SearchResult
	searchErr error
	count     int
	countErr  error
	insertErr error
	inserted  []models.Document
}

func (f *fakeStore) EnsureSchema(ctx context.Context) error {
	*f.ops = append(*f.ops, "schema")
	return nil
}

func (f *fakeStore) Insert(ctx context.Context, docs []models.Document) error {
	*f.ops = append(*f.ops, "insert")
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, docs...)
	return nil
}

func (f *fakeStore) Search(ctx context.Context, vector []float32, limit int, opts ...types.SearchOption) ([]models.SearchResult, error) {
	*f.ops = append(*f.ops, "search")
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit < len(f.results) {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func (f *fakeStore) Count(ctx context.Context) (int, error) {
	*f.ops = append(*f.ops, "count")
	return f.count, f.countErr
}

func (f *fakeStore) WipeAndRecreate(ctx context.Context) error {
	*f.ops = append(*f.ops, "wipe")
	return nil
}

func (f *fakeStore) Ready() bool { return true }
func (f *fakeStore) Close()      {}

type fakeEmbedder struct {
	ops *[]string

	queryErr error
	batchErr error
}

func (f *fakeEmbedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	*f.ops = append(*f.ops, "embed")
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return []float32{0.5, 0.5}, nil
}

func (f *fakeEmbedder) EncodeAverage(ctx context.Context, texts []string) ([]float32, error) {
	return []float32{0, 0}, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }
func (f *fakeEmbedder) Ready() bool    { return true }

type fakeGenerator struct {
	response string
	called   bool
}

func (f *fakeGenerator) Generate(ctx context.Context, question string, docs []models.SearchResult, history []models.ChatMessage) (string, error) {
	f.called = true
	return f.response, nil
}

func (f *fakeGenerator) Ready() bool { return true }

type fakeScraper struct {
	page   *models.ScrapedPage
	err    error
	called bool
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (*models.ScrapedPage, error) {
	f.called = true
	return f.page, f.err
}

type fakeProcessor struct {
	docs []models.Document
}

func (f *fakeProcessor) Structure(page *models.ScrapedPage) []models.Document {
	return f.docs
}

type pipeline struct {
	service   *rag.Service
	store     *fakeStore
	embedder  *fakeEmbedder
	generator *fakeGenerator
	scraper   *fakeScraper
	ops       *[]string
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	ops := &[]string{}
	p := &pipeline{
		store:     &fakeStore{ops: ops, count: 2},
		embedder:  &fakeEmbedder{ops: ops},
		generator: &fakeGenerator{response: "a grounded answer"},
		scraper: &fakeScraper{page: &models.ScrapedPage{
			URL:      "https://example.com",
			Sections: []models.Section{{Title: "Intro", Content: "text"}},
		}},
		ops: ops,
	}

	p.service = rag.New(rag.ServiceConfig{
		TargetURL:  "https://example.com",
		MaxResults: 5,
	}, p.scraper, &fakeProcessor{docs: []models.Document{
		{Content: "doc one"},
		{Content: "doc two"},
	}}, p.embedder, p.generator, p.store, nil)

	return p
}

func (p *pipeline) initialize(t *testing.T) {
	t.Helper()
	require.NoError(t, p.service.Initialize(context.Background()))
}

func TestQueryEmptyResultsShortCircuits(t *testing.T) {
	p := newPipeline(t)
	p.initialize(t)

	result := p.service.Query(context.Background(), "unknown topic", nil, 0)

	assert.Contains(t, result.Response, "couldn't find relevant information")
	assert.Empty(t, result.Sources)
	assert.Zero(t, result.Confidence)
	assert.False(t, p.generator.called, "generation must not run without grounding")
}

func TestQueryConfidenceIsMeanCertainty(t *testing.T) {
	p := newPipeline(t)
	p.store.results = []models.SearchResult{
		{Content: "first", ToolName: "ServiceNow", Certainty: 0.9},
		{Content: "second", ToolName: "Zendesk", Certainty: 0.7},
	}
	p.initialize(t)

	result := p.service.Query(context.Background(), "compare tools", nil, 0)

	assert.Equal(t, "a grounded answer", result.Response)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "ServiceNow", result.Sources[0].ToolName)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.True(t, p.generator.called)
}

func TestQueryEmbedderErrorDegrades(t *testing.T) {
	p := newPipeline(t)
	p.embedder.queryErr = errors.New("model offline")
	p.initialize(t)

	result := p.service.Query(context.Background(), "anything", nil, 0)

	assert.Contains(t, result.Response, "An error occurred while processing your request")
	assert.Empty(t, result.Sources)
	assert.Zero(t, result.Confidence)
}

func TestQueryBeforeInitialize(t *testing.T) {
	p := newPipeline(t)

	result := p.service.Query(context.Background(), "anything", nil, 0)

	assert.Contains(t, result.Response, "An error occurred while processing your request")
	assert.Zero(t, result.Confidence)
}

func TestRefreshEmbedsBeforeWiping(t *testing.T) {
	p := newPipeline(t)

	result := p.service.Refresh(context.Background(), true)

	require.Equal(t, rag.StatusSuccess, result.Status)
	assert.Equal(t, 2, result.DocumentsProcessed)

	ops := *p.ops
	embedIdx := indexOf(ops, "embed")
	wipeIdx := indexOf(ops, "wipe")
	insertIdx := indexOf(ops, "insert")
	require.GreaterOrEqual(t, embedIdx, 0)
	require.GreaterOrEqual(t, wipeIdx, 0)
	require.GreaterOrEqual(t, insertIdx, 0)
	assert.Less(t, embedIdx, wipeIdx, "wipe must wait for embeddings")
	assert.Less(t, wipeIdx, insertIdx)
}

func TestRefreshEmbedFailureLeavesStoreIntact(t *testing.T) {
	p := newPipeline(t)
	p.embedder.batchErr = errors.New("model offline")

	result := p.service.Refresh(context.Background(), true)

	assert.Equal(t, rag.StatusError, result.Status)
	assert.Zero(t, result.DocumentsProcessed)
	assert.NotContains(t, *p.ops, "wipe")
	assert.NotContains(t, *p.ops, "insert")
}

func TestRefreshScrapeFailure(t *testing.T) {
	p := newPipeline(t)
	p.scraper.err = errors.New("status 503")
	p.scraper.page = nil

	result := p.service.Refresh(context.Background(), false)

	assert.Equal(t, rag.StatusError, result.Status)
	assert.Contains(t, result.Message, "Failed to refresh knowledge base")
	assert.Zero(t, result.DocumentsProcessed)
}

func TestRefreshAttachesVectors(t *testing.T) {
	p := newPipeline(t)

	result := p.service.Refresh(context.Background(), false)

	require.Equal(t, rag.StatusSuccess, result.Status)
	require.Len(t, p.store.inserted, 2)
	for i, doc := range p.store.inserted {
		assert.Len(t, doc.Vector, 2, "document %d has no embedding", i)
	}

	health := p.service.Health(context.Background())
	assert.NotNil(t, health.LastUpdated)
}

func TestInitializeIngestsWhenStoreEmpty(t *testing.T) {
	p := newPipeline(t)
	p.store.count = 0

	p.initialize(t)

	assert.True(t, p.scraper.called, "empty store must trigger ingestion")
	assert.Contains(t, *p.ops, "insert")
	assert.True(t, p.service.IsReady())
}

func TestInitializeSkipsIngestWhenPopulated(t *testing.T) {
	p := newPipeline(t)

	p.initialize(t)

	assert.False(t, p.scraper.called)
	assert.True(t, p.service.IsReady())
}

func TestHealthDegradesOnStoreError(t *testing.T) {
	p := newPipeline(t)
	p.store.countErr = errors.New("connection refused")

	health := p.service.Health(context.Background())

	assert.Equal(t, rag.StatusError, health.Status)
	assert.False(t, health.StoreReady)
	assert.False(t, health.EmbeddingReady)
}

func TestHealthReportsReadiness(t *testing.T) {
	p := newPipeline(t)
	p.initialize(t)

	health := p.service.Health(context.Background())

	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.StoreReady)
	assert.True(t, health.EmbeddingReady)
	assert.True(t, health.GenerationReady)
	assert.Equal(t, 2, health.DocumentCount)
}

func indexOf(ops []string, op string) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}

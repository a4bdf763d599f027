package models

import "time"

// Document is one retrievable unit of the knowledge base. The embedding is
// attached by the embedding gateway before indexing and is nil until then.
// Once stored, a document is never patched in place; refreshes append or
// replace the whole collection.
type Document struct {
	Content    string    `json:"content"`
	Source     string    `json:"source"`
	Category   string    `json:"category"`
	ToolName   string    `json:"tool_name"`
	Section    string    `json:"section"`
	ChunkIndex int       `json:"chunk_index"`
	ToolRank   int       `json:"tool_rank"`
	Timestamp  time.Time `json:"timestamp"`
	Vector     []float32 `json:"-"`
}

// ScrapedPage is the raw structured output of one scrape. It only lives for
// the duration of a single ingestion run.
type ScrapedPage struct {
	URL      string
	Title    string
	Sections []Section
	Tools    []ToolEntry
	Metadata map[string]string
}

// Section is a heading-delimited block of page content.
type Section struct {
	Title   string
	Level   int // heading depth 1-6
	Content string
	Type    string
}

// ToolEntry is one ranked tool extracted from the page. Rank 0 means the
// entry is not a ranked tool.
type ToolEntry struct {
	Rank        int
	Name        string
	Description string
	Details     ToolDetails
}

// ToolDetails holds the per-tool aspects extracted by best-effort heuristics.
// Any field may be empty when extraction found nothing.
type ToolDetails struct {
	Features []string
	Pricing  string
	Pros     []string
	Cons     []string
	Rating   string
	BestFor  string
}

// SearchResult is a document returned by nearest-neighbor search together
// with its similarity scores. Higher certainty and lower distance both mean
// more similar.
type SearchResult struct {
	Content    string
	Source     string
	Category   string
	ToolName   string
	Section    string
	ChunkIndex int
	ToolRank   int
	Certainty  float64
	Distance   float64
}

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SourceInfo describes one grounding document in a chat response.
type SourceInfo struct {
	Source    string  `json:"source"`
	Category  string  `json:"category"`
	ToolName  string  `json:"tool_name"`
	Certainty float64 `json:"certainty"`
	Distance  float64 `json:"distance"`
}

// QueryResult is the outcome of one chat query.
type QueryResult struct {
	Response       string       `json:"response"`
	Sources        []SourceInfo `json:"sources"`
	Confidence     float64      `json:"confidence"`
	ProcessingTime float64      `json:"processing_time"`
}

// RefreshResult is the outcome of one knowledge base refresh.
type RefreshResult struct {
	Status             string  `json:"status"`
	Message            string  `json:"message"`
	DocumentsProcessed int     `json:"documents_processed"`
	ProcessingTime     float64 `json:"processing_time"`
}

// HealthStatus is an aggregate readiness snapshot of the pipeline.
type HealthStatus struct {
	Status          string     `json:"status"`
	StoreReady      bool       `json:"store_ready"`
	EmbeddingReady  bool       `json:"embedding_ready"`
	GenerationReady bool       `json:"generation_ready"`
	DocumentCount   int        `json:"document_count"`
	LastUpdated     *time.Time `json:"last_updated"`
}

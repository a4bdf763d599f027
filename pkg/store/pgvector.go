package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Ashnajames/Agentic-AI/internal/models"
	"github.com/Ashnajames/Agentic-AI/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// VectorStore wraps the pgvector-backed document table. Vectors are always
// supplied by the caller, never computed here.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewWithConfig(config VectorStoreConfig, logger *slog.Logger) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "itsm_documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &VectorStore{
		config: config,
		pool:   pool,
		logger: logger,
	}, nil
}

// EnsureSchema connects to the database and creates the extension, table,
// and vector index if absent. Idempotent. The pool itself connects lazily,
// so this is where an unreachable database first surfaces.
func (vs *VectorStore) EnsureSchema(ctx context.Context) error {
	if vs.pool == nil {
		return types.ErrNotInitialized
	}

	if err := vs.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping failed: %v", types.ErrUpstreamUnavailable, err)
	}

	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			category TEXT NOT NULL,
			tool_name TEXT NOT NULL DEFAULT '',
			section TEXT NOT NULL DEFAULT '',
			chunk_index INTEGER NOT NULL DEFAULT 0,
			tool_rank INTEGER NOT NULL DEFAULT 0,
			timestamp TIMESTAMPTZ NOT NULL,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Insert writes documents in sub-batches. A failing sub-batch aborts the
// remaining ones and surfaces the underlying error; there is no partial
// silent success within a batch.
func (vs *VectorStore) Insert(ctx context.Context, docs []models.Document) error {
	if vs.pool == nil {
		return types.ErrNotInitialized
	}

	for i, doc := range docs {
		if len(doc.Vector) != vs.config.VectorDim {
			return fmt.Errorf("%w: document %d has vector dimension %d, want %d",
				types.ErrIngestionFailure, i, len(doc.Vector), vs.config.VectorDim)
		}
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (content, source, category, tool_name, section, chunk_index, tool_rank, timestamp, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		vs.config.TableName)

	for start := 0; start < len(docs); start += vs.config.BatchSize {
		end := start + vs.config.BatchSize
		if end > len(docs) {
			end = len(docs)
		}

		if err := vs.insertBatch(ctx, stmt, docs[start:end]); err != nil {
			return fmt.Errorf("failed to insert batch starting at %d: %w", start, err)
		}
	}

	vs.logger.Info("inserted documents", "count", len(docs))
	return nil
}

func (vs *VectorStore) insertBatch(ctx context.Context, stmt string, docs []models.Document) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, doc := range docs {
		_, err := tx.Exec(ctx, stmt,
			doc.Content,
			doc.Source,
			doc.Category,
			doc.ToolName,
			doc.Section,
			doc.ChunkIndex,
			doc.ToolRank,
			doc.Timestamp,
			pgvector.NewVector(doc.Vector),
		)
		if err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Search returns the nearest documents ordered by decreasing certainty,
// optionally narrowed by filter options. An unreachable store or failing
// query degrades to an empty result set; callers treat empty as "no grounding
// found", not as a hard failure.
func (vs *VectorStore) Search(ctx context.Context, vector []float32, limit int, opts ...types.SearchOption) ([]models.SearchResult, error) {
	if vs.pool == nil {
		return nil, types.ErrNotInitialized
	}

	query, args := vs.searchQuery(vector, limit, types.NewSearchFilter(opts...))

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		vs.logger.Warn("vector search failed, returning no results", "error", err)
		return []models.SearchResult{}, nil
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(
			&r.Content,
			&r.Source,
			&r.Category,
			&r.ToolName,
			&r.Section,
			&r.ChunkIndex,
			&r.ToolRank,
			&r.Distance,
		); err != nil {
			vs.logger.Warn("failed to scan search row", "error", err)
			return []models.SearchResult{}, nil
		}
		r.Certainty = CertaintyFromDistance(r.Distance)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		vs.logger.Warn("vector search failed, returning no results", "error", err)
		return []models.SearchResult{}, nil
	}

	return results, nil
}

// searchQuery renders the nearest-neighbor statement with any filter
// conditions appended as positional parameters after the vector and limit.
func (vs *VectorStore) searchQuery(vector []float32, limit int, filter types.SearchFilter) (string, []any) {
	args := []any{pgvector.NewVector(vector), limit}

	var conditions []string
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.ToolName != "" {
		args = append(args, filter.ToolName)
		conditions = append(conditions, fmt.Sprintf("tool_name = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ") + "\n\t\t"
	}

	query := fmt.Sprintf(`
		SELECT content, source, category, tool_name, section, chunk_index, tool_rank,
		       embedding <=> $1 AS distance
		FROM %s
		%sORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName, where)

	return query, args
}

// Count returns the total number of stored documents.
func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	if vs.pool == nil {
		return 0, types.ErrNotInitialized
	}

	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.TableName)
	if err := vs.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count failed: %v", types.ErrUpstreamUnavailable, err)
	}
	return count, nil
}

// WipeAndRecreate drops the table and recreates the schema. Destructive;
// used only for forced refresh.
func (vs *VectorStore) WipeAndRecreate(ctx context.Context) error {
	if vs.pool == nil {
		return types.ErrNotInitialized
	}

	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", vs.config.TableName)
	if _, err := vs.pool.Exec(ctx, drop); err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}

	vs.logger.Info("wiped document table", "table", vs.config.TableName)
	return vs.EnsureSchema(ctx)
}

func (vs *VectorStore) Ready() bool {
	return vs.pool != nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// CertaintyFromDistance maps cosine distance (0..2) onto the certainty scale
// (1 = identical, 0 = opposite).
func CertaintyFromDistance(distance float64) float64 {
	certainty := 1 - distance/2
	if certainty < 0 {
		return 0
	}
	if certainty > 1 {
		return 1
	}
	return certainty
}

package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"sam-assistant/internal/model"
)

const matchFunctionSQL = `
CREATE OR REPLACE FUNCTION match_content_chunks(
	query_embedding vector(%d),
	match_threshold float,
	match_count int
)
RETURNS TABLE (
	id bigint,
	url text,
	title text,
	chunk_text text,
	metadata jsonb,
	similarity float
)
LANGUAGE sql STABLE
AS $$
	SELECT
		c.id,
		c.url::text,
		c.title::text,
		c.chunk_text,
		c.metadata,
		1 - (c.embedding <=> query_embedding) AS similarity
	FROM content_chunks c
	WHERE c.embedding IS NOT NULL
		AND 1 - (c.embedding <=> query_embedding) >= match_threshold
	ORDER BY c.embedding <=> query_embedding
	LIMIT match_count;
$$;`

const embeddingIndexSQL = `CREATE INDEX IF NOT EXISTS content_chunks_embedding_idx
	ON content_chunks USING hnsw (embedding vector_cosine_ops)`

// Migrate creates the tables and, on postgres, the pgvector extension plus the
// match_content_chunks search function.
func Migrate(ctx context.Context, db *gorm.DB, dimensions int) error {
	if dimensions != model.EmbeddingDimensions {
		return fmt.Errorf("embedding dimensions %d do not match the content_chunks.embedding column (%d)",
			dimensions, model.EmbeddingDimensions)
	}
	db = db.WithContext(ctx)
	isPostgres := db.Dialector.Name() == "postgres"

	if isPostgres {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("create vector extension failed: %w", err)
		}
	}

	if err := db.AutoMigrate(&model.ContentChunk{}, &model.Operator{}); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	if !isPostgres {
		return nil
	}
	if err := db.Exec(fmt.Sprintf(matchFunctionSQL, dimensions)).Error; err != nil {
		return fmt.Errorf("create match function failed: %w", err)
	}
	if err := db.Exec(embeddingIndexSQL).Error; err != nil {
		return fmt.Errorf("create embedding index failed: %w", err)
	}
	return nil
}

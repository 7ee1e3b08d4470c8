package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sam-assistant/internal/model"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.ContentChunk{}, &model.Operator{}))
	return db
}

func pageChunks(baseURL string, texts ...string) []model.ContentChunk {
	now := time.Now().UTC()
	chunks := make([]model.ContentChunk, len(texts))
	for i, text := range texts {
		chunks[i] = model.ContentChunk{
			URL:       model.ChunkURL(baseURL, i),
			Title:     "Page",
			Content:   "full page",
			ChunkText: text,
			Metadata: datatypes.NewJSONType(model.ChunkMetadata{
				SourceURL:   baseURL,
				ChunkIndex:  i,
				TotalChunks: len(texts),
				ScrapedAt:   now,
			}),
			LastScrapedAt: now,
		}
	}
	return chunks
}

func TestContentChunkRepository_ReplaceLeavesNoResidue(t *testing.T) {
	ctx := context.Background()
	repo := NewContentChunkRepository(openTestDB(t))

	base := "https://builder.example/homes"
	require.NoError(t, repo.Upsert(ctx, pageChunks(base, "one", "two", "three")))
	require.NoError(t, repo.Upsert(ctx, pageChunks(base+"-for-sale", "other page")))

	deleted, err := repo.ReplaceForURL(ctx, base, pageChunks(base, "fresh"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	var urls []string
	require.NoError(t, repo.db.Model(&model.ContentChunk{}).Order("url").Pluck("url", &urls).Error)
	assert.Equal(t, []string{base + "#chunk-0", base + "-for-sale#chunk-0"}, urls)
}

func TestContentChunkRepository_DeleteByBaseURLEscapesWildcards(t *testing.T) {
	ctx := context.Background()
	repo := NewContentChunkRepository(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, pageChunks("https://x.example/a_b", "one")))
	require.NoError(t, repo.Upsert(ctx, pageChunks("https://x.example/aXb", "two")))

	deleted, err := repo.DeleteByBaseURL(ctx, "https://x.example/a_b")
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalChunks)
}

func TestContentChunkRepository_UpsertOverwritesByURL(t *testing.T) {
	ctx := context.Background()
	repo := NewContentChunkRepository(openTestDB(t))

	base := "https://builder.example/about"
	require.NoError(t, repo.Upsert(ctx, pageChunks(base, "old text")))
	require.NoError(t, repo.Upsert(ctx, pageChunks(base, "new text")))

	var chunks []model.ContentChunk
	require.NoError(t, repo.db.Find(&chunks).Error)
	require.Len(t, chunks, 1)
	assert.Equal(t, "new text", chunks[0].ChunkText)
	assert.Equal(t, base, chunks[0].Metadata.Data().SourceURL)
}

func TestContentChunkRepository_PendingAndEmbedded(t *testing.T) {
	ctx := context.Background()
	repo := NewContentChunkRepository(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, pageChunks("https://builder.example/a", "a0", "a1")))
	require.NoError(t, repo.Upsert(ctx, pageChunks("https://builder.example/b", "b0")))

	pending, err := repo.ListPendingEmbedding(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.False(t, pending[0].HasEmbedding())

	require.NoError(t, repo.UpdateEmbedding(ctx, pending[0].ID, []float32{0.1, 0.2, 0.3}))
	require.Error(t, repo.UpdateEmbedding(ctx, 9999, []float32{1}))

	pending, err = repo.ListPendingEmbedding(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	var stored model.ContentChunk
	require.NoError(t, repo.db.Where("url = ?", "https://builder.example/a#chunk-0").First(&stored).Error)
	require.True(t, stored.HasEmbedding())
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, stored.Embedding.Slice())

	embedded, err := repo.ListEmbedded(ctx, 5)
	require.NoError(t, err)
	require.Len(t, embedded, 1)
	assert.Equal(t, "a0", embedded[0].ChunkText)
	assert.Nil(t, embedded[0].Similarity)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, ContentStats{TotalChunks: 3, EmbeddedChunks: 1, DistinctURLs: 2}, *stats)
}

func TestContentChunkRepository_MatchChunksUnavailableOffPostgres(t *testing.T) {
	repo := NewContentChunkRepository(openTestDB(t))

	_, err := repo.MatchChunks(context.Background(), []float32{1, 0}, 0.7, 5)
	assert.ErrorIs(t, err, ErrVectorSearchUnavailable)
}

func TestContentChunkRepository_DeleteAll(t *testing.T) {
	ctx := context.Background()
	repo := NewContentChunkRepository(openTestDB(t))

	require.NoError(t, repo.Upsert(ctx, pageChunks("https://builder.example/a", "a0", "a1")))

	deleted, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)
	assert.Zero(t, stats.DistinctURLs)
}

func TestIsUndefinedFunction(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing function", &pgconn.PgError{Code: "42883", Message: "function match_content_chunks does not exist"}, true},
		{"wrapped missing function", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "42883"}), true},
		{"dimension mismatch", &pgconn.PgError{Code: "22000", Message: "different vector dimensions 768 and 1536"}, false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUndefinedFunction(tt.err))
		})
	}
}

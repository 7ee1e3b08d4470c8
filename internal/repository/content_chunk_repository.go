package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sam-assistant/internal/model"
)

// ErrVectorSearchUnavailable is returned when the store has no similarity search function.
var ErrVectorSearchUnavailable = errors.New("vector search unavailable")

const pgUndefinedFunction = "42883"

var upsertColumns = []string{"title", "content", "chunk_text", "metadata", "embedding", "last_scraped_at", "updated_at"}

// ContentStats are the raw counts behind the RAG readiness status.
type ContentStats struct {
	TotalChunks    int64
	EmbeddedChunks int64
	DistinctURLs   int64
}

type ContentChunkRepository struct {
	db *gorm.DB
}

func NewContentChunkRepository(db *gorm.DB) *ContentChunkRepository {
	return &ContentChunkRepository{db: db}
}

// Upsert inserts chunks, overwriting any row that already holds the same url.
func (r *ContentChunkRepository) Upsert(ctx context.Context, chunks []model.ContentChunk) error {
	return upsertChunks(r.db.WithContext(ctx), chunks)
}

// DeleteByBaseURL removes every chunk of the given page.
func (r *ContentChunkRepository) DeleteByBaseURL(ctx context.Context, baseURL string) (int64, error) {
	return deleteByBaseURL(r.db.WithContext(ctx), baseURL)
}

// ReplaceForURL swaps the chunk set of a page in one transaction, so readers
// never observe a half-written page and no stale chunk survives a re-scrape.
func (r *ContentChunkRepository) ReplaceForURL(ctx context.Context, baseURL string, chunks []model.ContentChunk) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := deleteByBaseURL(tx, baseURL)
		if err != nil {
			return err
		}
		deleted = n
		return upsertChunks(tx, chunks)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ListPendingEmbedding returns up to limit chunks that have no embedding yet.
func (r *ContentChunkRepository) ListPendingEmbedding(ctx context.Context, limit int) ([]model.ContentChunk, error) {
	if limit <= 0 {
		limit = 50
	}
	var chunks []model.ContentChunk
	if err := r.db.WithContext(ctx).
		Where("embedding IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list pending chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *ContentChunkRepository) UpdateEmbedding(ctx context.Context, id uint, embedding []float32) error {
	res := r.db.WithContext(ctx).
		Model(&model.ContentChunk{}).
		Where("id = ?", id).
		Update("embedding", model.NewVector(embedding))
	if res.Error != nil {
		return fmt.Errorf("update chunk embedding failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update chunk embedding failed: chunk %d not found", id)
	}
	return nil
}

// MatchChunks calls the store-side match_content_chunks function, which ranks
// embedded chunks by cosine similarity and keeps those at or above threshold.
func (r *ContentChunkRepository) MatchChunks(ctx context.Context, embedding []float32, threshold float64, count int) ([]model.MatchedChunk, error) {
	if r.db.Dialector.Name() != "postgres" {
		return nil, ErrVectorSearchUnavailable
	}
	var rows []model.MatchedChunk
	err := r.db.WithContext(ctx).
		Raw("SELECT id, url, title, chunk_text, metadata, similarity FROM match_content_chunks(?, ?, ?)",
			pgvector.NewVector(embedding), threshold, count).
		Scan(&rows).Error
	if err != nil {
		if isUndefinedFunction(err) {
			return nil, fmt.Errorf("%w: %v", ErrVectorSearchUnavailable, err)
		}
		return nil, fmt.Errorf("match chunks failed: %w", err)
	}
	return rows, nil
}

// isUndefinedFunction reports whether postgres rejected the call because
// match_content_chunks (or the vector type behind it) is not installed.
func isUndefinedFunction(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedFunction
}

// ListEmbedded returns up to limit embedded chunks in no particular order.
func (r *ContentChunkRepository) ListEmbedded(ctx context.Context, limit int) ([]model.MatchedChunk, error) {
	var rows []model.MatchedChunk
	if err := r.db.WithContext(ctx).
		Model(&model.ContentChunk{}).
		Select("id, url, title, chunk_text, metadata").
		Where("embedding IS NOT NULL").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list embedded chunks failed: %w", err)
	}
	return rows, nil
}

func (r *ContentChunkRepository) Stats(ctx context.Context) (*ContentStats, error) {
	db := r.db.WithContext(ctx)
	var stats ContentStats
	if err := db.Model(&model.ContentChunk{}).Count(&stats.TotalChunks).Error; err != nil {
		return nil, fmt.Errorf("count chunks failed: %w", err)
	}
	if err := db.Model(&model.ContentChunk{}).Where("embedding IS NOT NULL").Count(&stats.EmbeddedChunks).Error; err != nil {
		return nil, fmt.Errorf("count embedded chunks failed: %w", err)
	}

	var urls []string
	if err := db.Model(&model.ContentChunk{}).Pluck("url", &urls).Error; err != nil {
		return nil, fmt.Errorf("list chunk urls failed: %w", err)
	}
	bases := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		bases[model.BaseURL(u)] = struct{}{}
	}
	stats.DistinctURLs = int64(len(bases))
	return &stats, nil
}

// DeleteAll wipes the content store.
func (r *ContentChunkRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&model.ContentChunk{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete all chunks failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func upsertChunks(db *gorm.DB, chunks []model.ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(&chunks).Error
	if err != nil {
		return fmt.Errorf("upsert chunks failed: %w", err)
	}
	return nil
}

func deleteByBaseURL(db *gorm.DB, baseURL string) (int64, error) {
	pattern := escapeLike(model.ChunkURLPrefix(baseURL)) + "%"
	res := db.Where("url LIKE ? ESCAPE '!'", pattern).Delete(&model.ContentChunk{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete chunks by url failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

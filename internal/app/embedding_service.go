package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"sam-assistant/internal/repository"
)

const (
	defaultEmbedBatchSize = 50
	defaultEmbedDelay     = 100 * time.Millisecond
)

// TextEmbedder turns text into an embedding vector.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Configured() bool
}

type EmbedResult struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
	Total     int `json:"total"`
}

type EmbeddingService struct {
	chunkRepo        *repository.ContentChunkRepository
	embedder         TextEmbedder
	delay            time.Duration
	defaultBatchSize int

	sleep func(ctx context.Context, d time.Duration) error
}

func NewEmbeddingService(chunkRepo *repository.ContentChunkRepository, embedder TextEmbedder, delay time.Duration, defaultBatchSize int) *EmbeddingService {
	if delay < 0 {
		delay = defaultEmbedDelay
	}
	if defaultBatchSize <= 0 {
		defaultBatchSize = defaultEmbedBatchSize
	}
	return &EmbeddingService{
		chunkRepo:        chunkRepo,
		embedder:         embedder,
		delay:            delay,
		defaultBatchSize: defaultBatchSize,
		sleep:            sleepContext,
	}
}

// EmbedPending embeds up to batchSize chunks that have no embedding yet.
// Rows that fail stay pending for the next run; nothing is retried here.
func (s *EmbeddingService) EmbedPending(ctx context.Context, batchSize int) (*EmbedResult, error) {
	if s.embedder == nil || !s.embedder.Configured() {
		return nil, ErrEmbeddingNotConfigured
	}
	if batchSize <= 0 {
		batchSize = s.defaultBatchSize
	}

	pending, err := s.chunkRepo.ListPendingEmbedding(ctx, batchSize)
	if err != nil {
		return nil, err
	}

	result := &EmbedResult{Total: len(pending)}
	for i, chunk := range pending {
		if i > 0 && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return result, err
			}
		}

		vec, err := s.embedder.Embed(ctx, chunk.ChunkText)
		if err != nil {
			result.Errors++
			log.Warn().Err(err).Uint("chunk_id", chunk.ID).Str("url", chunk.URL).Msg("embed chunk failed")
			continue
		}
		if err := s.chunkRepo.UpdateEmbedding(ctx, chunk.ID, vec); err != nil {
			result.Errors++
			log.Warn().Err(err).Uint("chunk_id", chunk.ID).Msg("store chunk embedding failed")
			continue
		}
		result.Processed++
	}

	log.Info().
		Int("processed", result.Processed).
		Int("errors", result.Errors).
		Int("total", result.Total).
		Str("model", s.embedder.Model()).
		Msg("embedding batch finished")
	return result, nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"sam-assistant/internal/model"
	"sam-assistant/internal/repository"
)

const (
	defaultMatchCount     = 5
	defaultMatchThreshold = 0.7
)

// QueryEmbeddingCache remembers query embeddings per model.
type QueryEmbeddingCache interface {
	Get(ctx context.Context, model, query string) ([]float32, bool, error)
	Set(ctx context.Context, model, query string, embedding []float32) error
}

// ChunkMatcher is the part of the content store retrieval reads from.
type ChunkMatcher interface {
	MatchChunks(ctx context.Context, embedding []float32, threshold float64, count int) ([]model.MatchedChunk, error)
	ListEmbedded(ctx context.Context, limit int) ([]model.MatchedChunk, error)
}

// RetrievalResult holds the matched chunks. Degraded means the store could
// not rank by similarity and Chunks is an arbitrary, unordered sample of
// embedded rows.
type RetrievalResult struct {
	Chunks   []model.MatchedChunk `json:"chunks"`
	Degraded bool                 `json:"degraded"`
}

type RetrievalService struct {
	chunks           ChunkMatcher
	embedder         TextEmbedder
	cache            QueryEmbeddingCache
	defaultLimit     int
	defaultThreshold float64
}

func NewRetrievalService(
	chunks ChunkMatcher,
	embedder TextEmbedder,
	cache QueryEmbeddingCache,
	defaultLimit int,
	defaultThreshold float64,
) *RetrievalService {
	if defaultLimit <= 0 {
		defaultLimit = defaultMatchCount
	}
	if defaultThreshold <= 0 || defaultThreshold > 1 {
		defaultThreshold = defaultMatchThreshold
	}
	return &RetrievalService{
		chunks:           chunks,
		embedder:         embedder,
		cache:            cache,
		defaultLimit:     defaultLimit,
		defaultThreshold: defaultThreshold,
	}
}

// Retrieve returns at most limit chunks whose similarity to query is at least
// threshold. Zero values select the configured defaults.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, limit int, threshold float64) (*RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be between 0 and 1", ErrInvalidInput)
	}
	if s.embedder == nil || !s.embedder.Configured() {
		return nil, ErrEmbeddingNotConfigured
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if threshold == 0 {
		threshold = s.defaultThreshold
	}

	embedding, err := s.queryEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.chunks.MatchChunks(ctx, embedding, threshold, limit)
	if errors.Is(err, repository.ErrVectorSearchUnavailable) {
		log.Warn().Err(err).Msg("similarity search unavailable, returning unranked chunks")
		rows, listErr := s.chunks.ListEmbedded(ctx, limit)
		if listErr != nil {
			return nil, listErr
		}
		return &RetrievalResult{Chunks: rows, Degraded: true}, nil
	}
	if err != nil {
		return nil, err
	}

	ranked := make([]model.MatchedChunk, 0, len(matches))
	for _, m := range matches {
		if m.Similarity != nil && *m.Similarity < threshold {
			continue
		}
		ranked = append(ranked, m)
		if len(ranked) == limit {
			break
		}
	}
	return &RetrievalResult{Chunks: ranked}, nil
}

func (s *RetrievalService) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, s.embedder.Model(), query)
		if err != nil {
			log.Warn().Err(err).Msg("query embedding cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.embedder.Model(), query, embedding); err != nil {
			log.Warn().Err(err).Msg("query embedding cache write failed")
		}
	}
	return embedding, nil
}

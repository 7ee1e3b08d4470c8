package app

import (
	"context"

	"sam-assistant/internal/repository"
)

// RAGStatus tells callers whether grounded answers can be expected.
type RAGStatus struct {
	TotalURLs         int64   `json:"totalUrls"`
	TotalChunks       int64   `json:"totalChunks"`
	EmbeddedChunks    int64   `json:"embeddedChunks"`
	PendingChunks     int64   `json:"pendingChunks"`
	IsReady           bool    `json:"isReady"`
	CompletionPercent float64 `json:"completionPercent"`
}

type StatusService struct {
	chunkRepo *repository.ContentChunkRepository
}

func NewStatusService(chunkRepo *repository.ContentChunkRepository) *StatusService {
	return &StatusService{chunkRepo: chunkRepo}
}

func (s *StatusService) Status(ctx context.Context) (*RAGStatus, error) {
	stats, err := s.chunkRepo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return newRAGStatus(stats), nil
}

func newRAGStatus(stats *repository.ContentStats) *RAGStatus {
	status := &RAGStatus{
		TotalURLs:      stats.DistinctURLs,
		TotalChunks:    stats.TotalChunks,
		EmbeddedChunks: stats.EmbeddedChunks,
		PendingChunks:  stats.TotalChunks - stats.EmbeddedChunks,
		IsReady:        stats.TotalChunks > 0 && stats.EmbeddedChunks == stats.TotalChunks,
	}
	if stats.TotalChunks > 0 {
		status.CompletionPercent = float64(stats.EmbeddedChunks*100) / float64(stats.TotalChunks)
	}
	return status
}

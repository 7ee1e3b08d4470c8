package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"sam-assistant/internal/model"
)

const defaultURLsPerJob = 5

var ErrJobQueueUnavailable = errors.New("scrape job queue is unavailable")

type JobPublisher interface {
	Publish(ctx context.Context, job model.ScrapeJob) error
}

type EnqueueScrapeInput struct {
	URLs       []string
	BatchSize  int
	EmbedAfter bool
}

type ScrapeJobResult struct {
	JobID   string         `json:"jobId"`
	Results []ScrapeResult `json:"results"`
	Summary ScrapeSummary  `json:"summary"`
	Embed   *EmbedResult   `json:"embed,omitempty"`
}

// ScrapeJobService splits large URL lists into fixed-size jobs and runs them
// when the queue delivers them. Jobs are consumed one at a time.
type ScrapeJobService struct {
	publisher JobPublisher
	scraper   *ScraperService
	embedder  *EmbeddingService

	now func() time.Time
}

func NewScrapeJobService(publisher JobPublisher, scraper *ScraperService, embedder *EmbeddingService) *ScrapeJobService {
	return &ScrapeJobService{
		publisher: publisher,
		scraper:   scraper,
		embedder:  embedder,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ScrapeJobService) Enqueue(ctx context.Context, input EnqueueScrapeInput) ([]model.ScrapeJob, error) {
	if s.publisher == nil {
		return nil, ErrJobQueueUnavailable
	}
	urls, err := cleanURLs(input.URLs)
	if err != nil {
		return nil, err
	}
	size := input.BatchSize
	if size <= 0 {
		size = defaultURLsPerJob
	}

	batches := splitBatches(urls, size)
	jobs := make([]model.ScrapeJob, 0, len(batches))
	for i, batch := range batches {
		job := model.ScrapeJob{
			ID:         uuid.NewString(),
			URLs:       batch,
			EmbedAfter: input.EmbedAfter,
			BatchSize:  size,
			Batch:      i + 1,
			Batches:    len(batches),
			CreatedAt:  s.now(),
		}
		if err := s.publisher.Publish(ctx, job); err != nil {
			return jobs, fmt.Errorf("%w: %v", ErrJobQueueUnavailable, err)
		}
		jobs = append(jobs, job)
	}

	log.Info().Int("urls", len(urls)).Int("jobs", len(jobs)).Msg("scrape jobs enqueued")
	return jobs, nil
}

// Run scrapes the job's URLs and, when asked, embeds whatever is pending.
func (s *ScrapeJobService) Run(ctx context.Context, job model.ScrapeJob) (*ScrapeJobResult, error) {
	results, err := s.scraper.ScrapeAll(ctx, job.URLs)
	if err != nil {
		return nil, err
	}
	out := &ScrapeJobResult{JobID: job.ID, Results: results, Summary: Summarize(results)}

	if job.EmbedAfter && s.embedder != nil {
		embedded, err := s.embedder.EmbedPending(ctx, 0)
		if err != nil {
			return out, err
		}
		out.Embed = embedded
	}

	log.Info().
		Str("job_id", job.ID).
		Int("batch", job.Batch).
		Int("batches", job.Batches).
		Int("success", out.Summary.Success).
		Int("total", out.Summary.Total).
		Msg("scrape job finished")
	return out, nil
}

func splitBatches(urls []string, size int) [][]string {
	batches := make([][]string, 0, (len(urls)+size-1)/size)
	for start := 0; start < len(urls); start += size {
		end := start + size
		if end > len(urls) {
			end = len(urls)
		}
		batches = append(batches, urls[start:end])
	}
	return batches
}

package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"sam-assistant/internal/model"
	"sam-assistant/internal/repository"
	"sam-assistant/internal/scrape"
)

const (
	ScrapeSuccess = "success"
	ScrapeFailed  = "failed"
	ScrapeSkipped = "skipped"
	ScrapeError   = "error"

	defaultMinContentChars = 100
	defaultScrapeDelay     = time.Second
)

// ScrapeResult is the outcome for one URL of a batch.
type ScrapeResult struct {
	URL        string `json:"url"`
	Status     string `json:"status"`
	Chunks     int    `json:"chunks,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ScrapeSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
	Chunks  int `json:"chunks"`
}

type ScraperService struct {
	scraper         scrape.PageScraper
	chunkRepo       *repository.ContentChunkRepository
	chunker         *Chunker
	minContentChars int
	delay           time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewScraperService(
	scraper scrape.PageScraper,
	chunkRepo *repository.ContentChunkRepository,
	chunker *Chunker,
	minContentChars int,
	delay time.Duration,
) *ScraperService {
	if minContentChars <= 0 {
		minContentChars = defaultMinContentChars
	}
	if delay < 0 {
		delay = defaultScrapeDelay
	}
	return &ScraperService{
		scraper:         scraper,
		chunkRepo:       chunkRepo,
		chunker:         chunker,
		minContentChars: minContentChars,
		delay:           delay,
		sleep:           sleepContext,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// ScrapeAll scrapes the URLs one after another. A failure on one URL is
// recorded in its result and never aborts the batch. The returned error is
// non-nil only when the batch could not start or the context ended.
func (s *ScraperService) ScrapeAll(ctx context.Context, urls []string) ([]ScrapeResult, error) {
	if s.scraper == nil || !s.scraper.Configured() {
		return nil, ErrScrapeNotConfigured
	}
	cleaned, err := cleanURLs(urls)
	if err != nil {
		return nil, err
	}

	results := make([]ScrapeResult, 0, len(cleaned))
	for i, pageURL := range cleaned {
		if i > 0 && s.delay > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				summary := Summarize(results)
				log.Warn().Err(err).
					Int("done", len(results)).
					Int("remaining", len(cleaned)-len(results)).
					Int("success", summary.Success).
					Int("chunks", summary.Chunks).
					Msg("scrape batch interrupted")
				return results, err
			}
		}
		result := s.scrapeOne(ctx, pageURL)
		results = append(results, result)

		ev := log.Info()
		if result.Status == ScrapeError || result.Status == ScrapeFailed {
			ev = log.Warn()
		}
		ev.Str("url", pageURL).
			Str("status", result.Status).
			Int("chunks", result.Chunks).
			Int("status_code", result.StatusCode).
			Str("error", result.Error).
			Msg("page scraped")
	}

	summary := Summarize(results)
	log.Info().
		Int("total", summary.Total).
		Int("success", summary.Success).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Int("chunks", summary.Chunks).
		Msg("scrape batch finished")
	return results, nil
}

func (s *ScraperService) scrapeOne(ctx context.Context, pageURL string) ScrapeResult {
	page, err := s.scraper.Scrape(ctx, pageURL)
	if err != nil {
		return ScrapeResult{URL: pageURL, Status: ScrapeError, Error: err.Error()}
	}
	if !page.OK() {
		return ScrapeResult{URL: pageURL, Status: ScrapeFailed, StatusCode: page.StatusCode}
	}

	if utf8.RuneCountInString(strings.TrimSpace(page.Markdown)) < s.minContentChars {
		// The page now carries no usable content, so its old chunks go too.
		if _, err := s.chunkRepo.ReplaceForURL(ctx, pageURL, nil); err != nil {
			return ScrapeResult{URL: pageURL, Status: ScrapeError, Error: err.Error()}
		}
		return ScrapeResult{URL: pageURL, Status: ScrapeSkipped}
	}

	n, err := s.store(ctx, pageURL, page.Title, page.Markdown)
	if err != nil {
		return ScrapeResult{URL: pageURL, Status: ScrapeError, Error: err.Error()}
	}
	return ScrapeResult{URL: pageURL, Status: ScrapeSuccess, Chunks: n}
}

// IngestText chunks text that was obtained outside the scrape provider, such
// as an uploaded PDF, and stores it under pageURL like a scraped page.
func (s *ScraperService) IngestText(ctx context.Context, pageURL, title, text string) (*ScrapeResult, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrDocumentHasNoText
	}

	n, err := s.store(ctx, pageURL, strings.TrimSpace(title), text)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return &ScrapeResult{URL: pageURL, Status: ScrapeSkipped}, nil
	}
	return &ScrapeResult{URL: pageURL, Status: ScrapeSuccess, Chunks: n}, nil
}

// ClearAll wipes every stored chunk.
func (s *ScraperService) ClearAll(ctx context.Context) (int64, error) {
	deleted, err := s.chunkRepo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	log.Warn().Int64("deleted", deleted).Msg("content store cleared")
	return deleted, nil
}

func (s *ScraperService) store(ctx context.Context, pageURL, title, content string) (int, error) {
	pieces := s.chunker.Chunk(content)
	chunks := buildChunks(pageURL, title, content, pieces, s.now())

	deleted, err := s.chunkRepo.ReplaceForURL(ctx, pageURL, chunks)
	if err != nil {
		return 0, err
	}
	log.Debug().Str("url", pageURL).Int64("deleted", deleted).Int("inserted", len(chunks)).Msg("chunk set replaced")
	return len(chunks), nil
}

func buildChunks(pageURL, title, content string, pieces []string, scrapedAt time.Time) []model.ContentChunk {
	if title == "" {
		title = pageURL
	}
	chunks := make([]model.ContentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = model.ContentChunk{
			URL:       model.ChunkURL(pageURL, i),
			Title:     fmt.Sprintf("%s (part %d/%d)", title, i+1, len(pieces)),
			Content:   content,
			ChunkText: piece,
			Metadata: datatypes.NewJSONType(model.ChunkMetadata{
				SourceURL:   pageURL,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
				ScrapedAt:   scrapedAt,
			}),
			LastScrapedAt: scrapedAt,
		}
	}
	return chunks
}

func Summarize(results []ScrapeResult) ScrapeSummary {
	summary := ScrapeSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case ScrapeSuccess:
			summary.Success++
		case ScrapeFailed:
			summary.Failed++
		case ScrapeSkipped:
			summary.Skipped++
		default:
			summary.Errors++
		}
		summary.Chunks += r.Chunks
	}
	return summary
}

func cleanURLs(urls []string) ([]string, error) {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		cleaned = append(cleaned, u)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: urls array is required", ErrInvalidInput)
	}
	return cleaned, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

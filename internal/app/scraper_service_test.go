package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sam-assistant/internal/model"
	"sam-assistant/internal/scrape"
)

func okPage(title string, sentences int) *scrape.Page {
	return &scrape.Page{StatusCode: http.StatusOK, Title: title, Markdown: samplePageText(sentences)}
}

func newTestScraperService(t *testing.T, scraper *fakeScraper) (*ScraperService, *[]time.Duration) {
	svc := NewScraperService(scraper, newChunkRepo(t), NewChunker(800, 200, 50), 100, time.Second)
	var slept []time.Duration
	svc.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return svc, &slept
}

func TestScrapeAll_IsolatesFailures(t *testing.T) {
	scraper := newFakeScraper()
	scraper.pages["https://builder.example/a"] = okPage("A", 20)
	scraper.pages["https://builder.example/b"] = &scrape.Page{StatusCode: http.StatusInternalServerError}
	scraper.pages["https://builder.example/c"] = okPage("C", 5)

	svc, slept := newTestScraperService(t, scraper)
	results, err := svc.ScrapeAll(context.Background(), []string{
		"https://builder.example/a",
		"https://builder.example/b",
		"https://builder.example/c",
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, ScrapeSuccess, results[0].Status)
	assert.Equal(t, 2, results[0].Chunks)
	assert.Equal(t, ScrapeFailed, results[1].Status)
	assert.Equal(t, http.StatusInternalServerError, results[1].StatusCode)
	assert.Equal(t, ScrapeSuccess, results[2].Status)
	assert.Equal(t, 1, results[2].Chunks)

	assert.Equal(t, []time.Duration{time.Second, time.Second}, *slept)

	summary := Summarize(results)
	assert.Equal(t, ScrapeSummary{Total: 3, Success: 2, Failed: 1, Chunks: 3}, summary)
}

func TestScrapeAll_ErrorBecomesItemResult(t *testing.T) {
	scraper := newFakeScraper()
	scraper.errs["https://builder.example/a"] = errors.New("connection reset")
	scraper.pages["https://builder.example/b"] = okPage("B", 5)

	svc, _ := newTestScraperService(t, scraper)
	results, err := svc.ScrapeAll(context.Background(), []string{"https://builder.example/a", "https://builder.example/b"})
	require.NoError(t, err)

	assert.Equal(t, ScrapeError, results[0].Status)
	assert.Equal(t, "connection reset", results[0].Error)
	assert.Equal(t, ScrapeSuccess, results[1].Status)
}

func TestScrapeAll_RescrapeLeavesOnlyNewChunks(t *testing.T) {
	ctx := context.Background()
	scraper := newFakeScraper()
	svc, _ := newTestScraperService(t, scraper)
	url := "https://builder.example/communities"

	scraper.pages[url] = okPage("Communities", 40)
	results, err := svc.ScrapeAll(ctx, []string{url})
	require.NoError(t, err)
	require.Equal(t, 4, results[0].Chunks)

	scraper.pages[url] = &scrape.Page{StatusCode: http.StatusOK, Title: "Communities", Markdown: "Only one community is left for sale this season, so book a tour soon."}
	results, err = svc.ScrapeAll(ctx, []string{url})
	require.NoError(t, err)
	require.Equal(t, ScrapeSkipped, results[0].Status)

	scraper.pages[url] = okPage("Communities", 5)
	results, err = svc.ScrapeAll(ctx, []string{url})
	require.NoError(t, err)
	require.Equal(t, 1, results[0].Chunks)

	stats, err := svc.chunkRepo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalChunks)

	pending, err := svc.chunkRepo.ListPendingEmbedding(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.ChunkURL(url, 0), pending[0].URL)
	assert.Equal(t, "Communities (part 1/1)", pending[0].Title)
	assert.Equal(t, url, pending[0].Metadata.Data().SourceURL)
	assert.Equal(t, 1, pending[0].Metadata.Data().TotalChunks)
}

func TestScrapeAll_SkipClearsOldChunks(t *testing.T) {
	ctx := context.Background()
	scraper := newFakeScraper()
	svc, _ := newTestScraperService(t, scraper)
	url := "https://builder.example/promo"

	scraper.pages[url] = okPage("Promo", 10)
	_, err := svc.ScrapeAll(ctx, []string{url})
	require.NoError(t, err)

	scraper.pages[url] = &scrape.Page{StatusCode: http.StatusOK, Markdown: "Coming soon."}
	results, err := svc.ScrapeAll(ctx, []string{url})
	require.NoError(t, err)
	assert.Equal(t, ScrapeSkipped, results[0].Status)

	stats, err := svc.chunkRepo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalChunks)
}

func TestScrapeAll_FailureKeepsPreviousChunks(t *testing.T) {
	ctx := context.Background()
	scraper := newFakeScraper()
	svc, _ := newTestScraperService(t, scraper)
	url := "https://builder.example/floorplans"

	scraper.pages[url] = okPage("Floor plans", 10)
	_, err := svc.ScrapeAll(ctx, []string{url})
	require.NoError(t, err)

	scraper.pages[url] = &scrape.Page{StatusCode: http.StatusBadGateway}
	results, err := svc.ScrapeAll(ctx, []string{url})
	require.NoError(t, err)
	assert.Equal(t, ScrapeFailed, results[0].Status)

	stats, err := svc.chunkRepo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalChunks)
}

func TestScrapeAll_RejectsBadBatches(t *testing.T) {
	scraper := newFakeScraper()
	svc, _ := newTestScraperService(t, scraper)

	_, err := svc.ScrapeAll(context.Background(), []string{" ", ""})
	assert.ErrorIs(t, err, ErrInvalidInput)

	scraper.configured = false
	_, err = svc.ScrapeAll(context.Background(), []string{"https://builder.example"})
	assert.ErrorIs(t, err, ErrScrapeNotConfigured)
	assert.Empty(t, scraper.calls)
}

func TestScrapeAll_StopsWhenContextEnds(t *testing.T) {
	scraper := newFakeScraper()
	scraper.pages["https://builder.example/a"] = okPage("A", 5)
	svc, _ := newTestScraperService(t, scraper)
	svc.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := svc.ScrapeAll(ctx, []string{"https://builder.example/a", "https://builder.example/b"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
	assert.Equal(t, []string{"https://builder.example/a"}, scraper.calls)
}

func TestIngestText_StoresDocumentAsPage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestScraperService(t, newFakeScraper())

	result, err := svc.IngestText(ctx, "https://builder.example/brochure.pdf", "Brochure", samplePageText(20))
	require.NoError(t, err)
	assert.Equal(t, ScrapeSuccess, result.Status)
	assert.Equal(t, 2, result.Chunks)

	_, err = svc.IngestText(ctx, "https://builder.example/empty.pdf", "Empty", "  \n ")
	assert.ErrorIs(t, err, ErrDocumentHasNoText)

	_, err = svc.IngestText(ctx, "", "Brochure", samplePageText(3))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildChunks_FallsBackToURLForTitle(t *testing.T) {
	chunks := buildChunks("https://builder.example", "", "body", []string{"a", "b"}, time.Now())
	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[1].Title, "https://builder.example (part 2/2)"))
	assert.Equal(t, "https://builder.example#chunk-1", chunks[1].URL)
}

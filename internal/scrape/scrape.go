package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sam-assistant/internal/config"
)

var ErrDisallowedByRobots = errors.New("disallowed by robots.txt")

// Page is the outcome of one scrape. A non-2xx StatusCode means the page
// could not be fetched; Markdown and Title are empty in that case.
type Page struct {
	StatusCode int
	Markdown   string
	Title      string
}

func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

type PageScraper interface {
	Scrape(ctx context.Context, url string) (*Page, error)
	Configured() bool
}

// New builds the scraper named by cfg.Provider.
func New(cfg config.ScrapeConfig) (PageScraper, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	switch cfg.Provider {
	case "firecrawl", "":
		return NewFirecrawlScraper(httpClient, cfg.BaseURL, cfg.APIKey), nil
	case "direct":
		return NewDirectScraper(httpClient, cfg.UserAgent), nil
	default:
		return nil, fmt.Errorf("unsupported scrape provider %q", cfg.Provider)
	}
}

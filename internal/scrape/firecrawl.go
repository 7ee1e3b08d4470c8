package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type FirecrawlScraper struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewFirecrawlScraper(httpClient *http.Client, baseURL, apiKey string) *FirecrawlScraper {
	return &FirecrawlScraper{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type firecrawlRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title string `json:"title"`
		} `json:"metadata"`
	} `json:"data"`
}

func (s *FirecrawlScraper) Configured() bool {
	return s.apiKey != "" && s.baseURL != ""
}

func (s *FirecrawlScraper) Scrape(ctx context.Context, pageURL string) (*Page, error) {
	bodyBytes, err := json.Marshal(firecrawlRequest{URL: pageURL, Formats: []string{"markdown"}})
	if err != nil {
		return nil, fmt.Errorf("marshal scrape request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/scrape", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build scrape request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &Page{StatusCode: resp.StatusCode}, nil
	}

	var parsed firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse scrape json failed: %w", err)
	}
	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("scrape api reported failure: %s", msg)
	}

	return &Page{
		StatusCode: resp.StatusCode,
		Markdown:   parsed.Data.Markdown,
		Title:      strings.TrimSpace(parsed.Data.Metadata.Title),
	}, nil
}

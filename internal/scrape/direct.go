package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
)

var (
	whitespaceRe = regexp.MustCompile(`[ \t]+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	blockTagRe   = regexp.MustCompile(`(?i)</(p|div|li|h[1-6]|tr|section|article)>|<br\s*/?>`)
)

// DirectScraper fetches pages itself and extracts the readable article text.
// It needs no credentials and honours robots.txt for its user agent.
type DirectScraper struct {
	httpClient *http.Client
	userAgent  string

	mu     sync.Mutex
	robots map[string]*robotstxt.Group
}

func NewDirectScraper(httpClient *http.Client, userAgent string) *DirectScraper {
	return &DirectScraper{
		httpClient: httpClient,
		userAgent:  userAgent,
		robots:     make(map[string]*robotstxt.Group),
	}
}

func (s *DirectScraper) Configured() bool {
	return true
}

func (s *DirectScraper) Scrape(ctx context.Context, pageURL string) (*Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", pageURL)
	}

	if group := s.robotsGroup(ctx, u); group != nil && !group.Test(u.EscapedPath()) {
		return nil, ErrDisallowedByRobots
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request failed: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("page request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &Page{StatusCode: resp.StatusCode}, nil
	}

	utf8Reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		utf8Reader = resp.Body
	}

	article, err := readability.FromReader(utf8Reader, u)
	if err != nil {
		return nil, fmt.Errorf("extract article failed: %w", err)
	}

	text, err := articleText(article.Content)
	if err != nil {
		return nil, err
	}

	return &Page{
		StatusCode: resp.StatusCode,
		Markdown:   text,
		Title:      strings.TrimSpace(article.Title),
	}, nil
}

func (s *DirectScraper) robotsGroup(ctx context.Context, u *url.URL) *robotstxt.Group {
	host := u.Scheme + "://" + u.Host

	s.mu.Lock()
	group, ok := s.robots[host]
	s.mu.Unlock()
	if ok {
		return group
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("host", host).Msg("fetch robots.txt failed, allowing all")
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		log.Warn().Err(err).Str("host", host).Msg("parse robots.txt failed, allowing all")
		return nil
	}
	group = data.FindGroup(s.userAgent)

	s.mu.Lock()
	s.robots[host] = group
	s.mu.Unlock()
	return group
}

// articleText flattens readability HTML into plain text, one block per line.
func articleText(html string) (string, error) {
	html = blockTagRe.ReplaceAllStringFunc(html, func(tag string) string { return tag + "\n" })
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse article html failed: %w", err)
	}

	lines := strings.Split(doc.Text(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
		kept = append(kept, line)
	}
	text := strings.Join(kept, "\n")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n\n")), nil
}

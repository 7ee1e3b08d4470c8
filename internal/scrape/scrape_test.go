package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sam-assistant/internal/config"
)

func TestFirecrawlScraper_ParsesMarkdownAndTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-key", r.Header.Get("Authorization"))

		var body firecrawlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://builder.example/homes", body.URL)
		assert.Equal(t, []string{"markdown"}, body.Formats)

		_, _ = w.Write([]byte(`{"success":true,"data":{"markdown":"# Homes\nBig yards.","metadata":{"title":" Homes "}}}`))
	}))
	defer srv.Close()

	s := NewFirecrawlScraper(srv.Client(), srv.URL+"/v1/", "fc-key")
	require.True(t, s.Configured())

	page, err := s.Scrape(context.Background(), "https://builder.example/homes")
	require.NoError(t, err)
	assert.True(t, page.OK())
	assert.Equal(t, "# Homes\nBig yards.", page.Markdown)
	assert.Equal(t, "Homes", page.Title)
}

func TestFirecrawlScraper_NonOKStatusIsAPageNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	page, err := NewFirecrawlScraper(srv.Client(), srv.URL, "fc-key").Scrape(context.Background(), "https://builder.example")
	require.NoError(t, err)
	assert.False(t, page.OK())
	assert.Equal(t, http.StatusInternalServerError, page.StatusCode)
}

func TestFirecrawlScraper_UnsuccessfulBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"blocked"}`))
	}))
	defer srv.Close()

	_, err := NewFirecrawlScraper(srv.Client(), srv.URL, "fc-key").Scrape(context.Background(), "https://builder.example")
	assert.ErrorContains(t, err, "blocked")
}

func TestFirecrawlScraper_NotConfiguredWithoutKey(t *testing.T) {
	assert.False(t, NewFirecrawlScraper(http.DefaultClient, "https://api.firecrawl.dev/v1", "").Configured())
}

const samplePage = `<!doctype html>
<html><head><title>Willow Creek Community</title></head>
<body>
<nav><a href="/">Home</a></nav>
<article>
<h1>Willow Creek Community</h1>
<p>Willow Creek offers single-family homes with three to five bedrooms, open kitchens, and large backyards for growing families.</p>
<p>Residents enjoy walking trails, a community pool, and a clubhouse, all within ten minutes of top-rated schools and shopping.</p>
<p>Model homes are open daily from ten to six, and our sales team can schedule a private tour at a time that suits you.</p>
</article>
</body></html>`

func TestDirectScraper_ExtractsArticleText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/communities/willow-creek", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SAMBot/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewDirectScraper(srv.Client(), "SAMBot/1.0")
	page, err := s.Scrape(context.Background(), srv.URL+"/communities/willow-creek")
	require.NoError(t, err)
	assert.True(t, page.OK())
	assert.Contains(t, page.Markdown, "walking trails, a community pool, and a clubhouse")
	assert.NotContains(t, page.Markdown, "<p>")
	assert.True(t, strings.Contains(page.Title, "Willow Creek"))
}

func TestDirectScraper_RespectsRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/private/pricing", func(w http.ResponseWriter, r *http.Request) {
		t.Error("disallowed page must not be fetched")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := NewDirectScraper(srv.Client(), "SAMBot/1.0").Scrape(context.Background(), srv.URL+"/private/pricing")
	assert.ErrorIs(t, err, ErrDisallowedByRobots)
}

func TestDirectScraper_MissingPage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	page, err := NewDirectScraper(srv.Client(), "SAMBot/1.0").Scrape(context.Background(), srv.URL+"/gone")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, page.StatusCode)
}

func TestNew_SelectsProvider(t *testing.T) {
	s, err := New(config.ScrapeConfig{Provider: "direct", UserAgent: "SAMBot/1.0"})
	require.NoError(t, err)
	assert.IsType(t, &DirectScraper{}, s)

	s, err = New(config.ScrapeConfig{Provider: "firecrawl", BaseURL: "https://api.firecrawl.dev/v1"})
	require.NoError(t, err)
	assert.IsType(t, &FirecrawlScraper{}, s)
	assert.False(t, s.Configured())

	_, err = New(config.ScrapeConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

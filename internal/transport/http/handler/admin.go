package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"sam-assistant/internal/app"
	"sam-assistant/internal/pkg/pdfextract"
	"sam-assistant/internal/transport/http/response"
)

const maxPDFSize = 10 << 20

type AdminHandler struct {
	scraper   *app.ScraperService
	embedder  *app.EmbeddingService
	retrieval *app.RetrievalService
	status    *app.StatusService
	jobs      *app.ScrapeJobService
}

type ScrapeRequest struct {
	URLs []string `json:"urls"`
}

type EnqueueScrapeRequest struct {
	URLs       []string `json:"urls"`
	BatchSize  int      `json:"batchSize"`
	EmbedAfter bool     `json:"embedAfter"`
}

type EmbedRequest struct {
	BatchSize int `json:"batchSize"`
}

type SearchRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"`
}

func NewAdminHandler(
	scraper *app.ScraperService,
	embedder *app.EmbeddingService,
	retrieval *app.RetrievalService,
	status *app.StatusService,
	jobs *app.ScrapeJobService,
) *AdminHandler {
	return &AdminHandler{
		scraper:   scraper,
		embedder:  embedder,
		retrieval: retrieval,
		status:    status,
		jobs:      jobs,
	}
}

func (h *AdminHandler) Scrape(c *gin.Context) {
	var req ScrapeRequest
	if err := bindJSON(c, &req, false); err != nil {
		writeError(c, err)
		return
	}

	results, err := h.scraper.ScrapeAll(c.Request.Context(), req.URLs)
	if err != nil && len(results) > 0 {
		_ = c.Error(err)
		response.ErrorWith(c, http.StatusInternalServerError, err.Error(), gin.H{
			"results": results,
			"summary": app.Summarize(results),
		})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{
		"results": results,
		"summary": app.Summarize(results),
	})
}

func (h *AdminHandler) EnqueueScrape(c *gin.Context) {
	var req EnqueueScrapeRequest
	if err := bindJSON(c, &req, false); err != nil {
		writeError(c, err)
		return
	}

	jobs, err := h.jobs.Enqueue(c.Request.Context(), app.EnqueueScrapeInput{
		URLs:       req.URLs,
		BatchSize:  req.BatchSize,
		EmbedAfter: req.EmbedAfter,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"jobs": jobs})
}

func (h *AdminHandler) GenerateEmbeddings(c *gin.Context) {
	var req EmbedRequest
	if err := bindJSON(c, &req, true); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.embedder.EmbedPending(c.Request.Context(), req.BatchSize)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{
		"processed": result.Processed,
		"errors":    result.Errors,
		"total":     result.Total,
	})
}

func (h *AdminHandler) Status(c *gin.Context) {
	status, err := h.status.Status(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{
		"totalUrls":         status.TotalURLs,
		"totalChunks":       status.TotalChunks,
		"embeddedChunks":    status.EmbeddedChunks,
		"pendingChunks":     status.PendingChunks,
		"isReady":           status.IsReady,
		"completionPercent": status.CompletionPercent,
	})
}

func (h *AdminHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := bindJSON(c, &req, false); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.retrieval.Retrieve(c.Request.Context(), req.Query, req.Limit, req.Threshold)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{
		"chunks":   result.Chunks,
		"degraded": result.Degraded,
	})
}

func (h *AdminHandler) ClearContent(c *gin.Context) {
	deleted, err := h.scraper.ClearAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}

// UploadPDF ingests a multipart "file" as the content of "url", replacing
// whatever that URL held before.
func (h *AdminHandler) UploadPDF(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		writeError(c, fmt.Errorf("%w: missing file", app.ErrInvalidInput))
		return
	}
	if file.Size > maxPDFSize {
		writeError(c, fmt.Errorf("%w: file too large (max 10MB)", app.ErrInvalidInput))
		return
	}
	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".pdf" {
		writeError(c, fmt.Errorf("%w: only PDF files are allowed", app.ErrInvalidInput))
		return
	}

	pageURL := strings.TrimSpace(c.PostForm("url"))
	if pageURL == "" {
		pageURL = "document://" + filepath.Base(file.Filename)
	}
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(file.Filename), filepath.Ext(file.Filename))
	}

	f, err := file.Open()
	if err != nil {
		writeError(c, fmt.Errorf("open uploaded file failed: %w", err))
		return
	}
	defer f.Close()

	text, err := pdfextract.ExtractText(f, maxPDFSize)
	if err != nil {
		if errors.Is(err, pdfextract.ErrTooLarge) {
			err = fmt.Errorf("%w: file too large (max 10MB)", app.ErrInvalidInput)
		}
		writeError(c, err)
		return
	}

	result, err := h.scraper.IngestText(c.Request.Context(), pageURL, title, text)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{"result": result})
}

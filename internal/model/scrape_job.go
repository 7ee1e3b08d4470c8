package model

import "time"

// ScrapeJob is one batch of pages queued for background scraping.
type ScrapeJob struct {
	ID         string    `json:"id"`
	URLs       []string  `json:"urls"`
	EmbedAfter bool      `json:"embed_after"`
	BatchSize  int       `json:"batch_size"`
	Batch      int       `json:"batch"`
	Batches    int       `json:"batches"`
	CreatedAt  time.Time `json:"created_at"`
}

package model

import (
	"regexp"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

const chunkMarker = "#chunk-"

// EmbeddingDimensions is the width of the embedding column. It must equal the
// `dimensions` tag on ContentChunk.Embedding and the configured model output.
const EmbeddingDimensions = 1536

var chunkSuffixRe = regexp.MustCompile(`#chunk-\d+$`)

// ContentChunk is one retrievable slice of a scraped page. URL carries a
// "#chunk-N" suffix so every chunk of a page has its own unique key.
type ContentChunk struct {
	ID            uint                              `gorm:"primaryKey" json:"id"`
	URL           string                            `gorm:"size:768;not null;uniqueIndex" json:"url"`
	Title         string                            `gorm:"size:512" json:"title"`
	Content       string                            `gorm:"type:text;not null" json:"content"`
	ChunkText     string                            `gorm:"type:text;not null" json:"chunk_text"`
	Metadata      datatypes.JSONType[ChunkMetadata] `json:"metadata"`
	Embedding     *Vector                           `gorm:"column:embedding;dimensions:1536" json:"-"`
	LastScrapedAt time.Time                         `json:"last_scraped_at"`
	CreatedAt     time.Time                         `json:"created_at"`
	UpdatedAt     time.Time                         `json:"updated_at"`
}

func (ContentChunk) TableName() string {
	return "content_chunks"
}

type ChunkMetadata struct {
	SourceURL   string    `json:"source_url"`
	ChunkIndex  int       `json:"chunk_index"`
	TotalChunks int       `json:"total_chunks"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// HasEmbedding reports whether the embedding generator has processed the row.
func (c *ContentChunk) HasEmbedding() bool {
	return c.Embedding != nil && len(c.Embedding.Slice()) > 0
}

// ChunkURL builds the unique key of the index-th chunk of a page.
func ChunkURL(baseURL string, index int) string {
	return ChunkURLPrefix(baseURL) + strconv.Itoa(index)
}

// ChunkURLPrefix is the key prefix shared by all chunks of a page.
func ChunkURLPrefix(baseURL string) string {
	return baseURL + chunkMarker
}

// BaseURL strips the chunk suffix from a chunk key.
func BaseURL(chunkURL string) string {
	return chunkSuffixRe.ReplaceAllString(chunkURL, "")
}

// MatchedChunk is a row returned by the store-side similarity search.
type MatchedChunk struct {
	ID         uint                              `json:"id"`
	URL        string                            `json:"url"`
	Title      string                            `json:"title"`
	ChunkText  string                            `json:"chunk_text"`
	Metadata   datatypes.JSONType[ChunkMetadata] `json:"metadata"`
	Similarity *float64                          `json:"similarity,omitempty"`
}

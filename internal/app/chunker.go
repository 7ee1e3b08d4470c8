package app

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"sam-assistant/internal/config"
)

const (
	defaultChunkSize     = 800
	defaultChunkOverlap  = 200
	defaultMinChunkChars = 50

	// overlapWordDivisor turns a character overlap into a trailing word count.
	overlapWordDivisor = 5
)

// A sentence runs up to and including its terminal punctuation. Text after
// the last mark is kept as a final sentence.
var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`)

// Chunker splits page text into overlapping, sentence-aligned pieces sized
// for the embedding model. Lengths are counted in characters, not bytes.
type Chunker struct {
	size     int
	overlap  int
	minChars int
}

func NewChunker(size, overlap, minChars int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if minChars <= 0 {
		minChars = defaultMinChunkChars
	}
	return &Chunker{size: size, overlap: overlap, minChars: minChars}
}

func NewChunkerFromConfig(cfg config.RAGConfig) *Chunker {
	return NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MinChunkChars)
}

// ChunkText chunks with the default minimum chunk length.
func ChunkText(text string, size, overlap int) []string {
	return NewChunker(size, overlap, defaultMinChunkChars).Chunk(text)
}

func (c *Chunker) Chunk(text string) []string {
	sentences := sentenceRe.FindAllString(text, -1)

	var (
		pieces  []string
		current string
	)
	for _, sentence := range sentences {
		if current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence) > c.size {
			seed := c.overlapSeed(current)
			pieces = append(pieces, strings.TrimSpace(current))
			current = sentence
			if seed != "" {
				current = seed + " " + strings.TrimLeftFunc(sentence, unicode.IsSpace)
			}
			continue
		}
		current += sentence
	}
	if current != "" {
		pieces = append(pieces, strings.TrimSpace(current))
	}

	chunks := pieces[:0]
	for _, piece := range pieces {
		if utf8.RuneCountInString(piece) >= c.minChars {
			chunks = append(chunks, piece)
		}
	}
	return chunks
}

// overlapSeed carries the last overlap/5 words of a closed chunk into the next one.
func (c *Chunker) overlapSeed(closed string) string {
	n := c.overlap / overlapWordDivisor
	if n <= 0 {
		return ""
	}
	words := strings.Fields(closed)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

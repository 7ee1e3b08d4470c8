package app

import "errors"

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrScrapeNotConfigured     = errors.New("scrape provider is not configured")
	ErrEmbeddingNotConfigured  = errors.New("embedding provider is not configured")
	ErrLLMConfig               = errors.New("llm config is invalid")
	ErrDocumentHasNoText       = errors.New("document has no extractable text")
	ErrRegistrationUnavailable = errors.New("registration is disabled")
)

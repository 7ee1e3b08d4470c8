package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// EmbeddingCache stores query embeddings keyed by a hash of model and query.
type EmbeddingCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewEmbeddingCache(client *redisv9.Client, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &EmbeddingCache{client: client, ttl: ttl}
}

func (c *EmbeddingCache) Get(ctx context.Context, model, query string) ([]float32, bool, error) {
	raw, err := c.client.Get(ctx, embeddingKey(model, query)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get embedding failed: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal(raw, &embedding); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached embedding failed: %w", err)
	}
	return embedding, true, nil
}

func (c *EmbeddingCache) Set(ctx context.Context, model, query string, embedding []float32) error {
	payload, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding cache failed: %w", err)
	}
	if err := c.client.Set(ctx, embeddingKey(model, query), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set embedding failed: %w", err)
	}
	return nil
}

func embeddingKey(model, query string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + query))
	return "sam:embedding:query:" + hex.EncodeToString(sum[:])
}

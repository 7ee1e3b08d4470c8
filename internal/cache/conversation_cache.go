package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"sam-assistant/internal/ai"
)

// ConversationCache keeps the latest turns of each chat session in a Redis
// list, trimmed to maxMessages and expiring after ttl of inactivity.
type ConversationCache struct {
	client      *redisv9.Client
	ttl         time.Duration
	maxMessages int64
}

func NewConversationCache(client *redisv9.Client, ttl time.Duration, maxMessages int) *ConversationCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxMessages <= 0 {
		maxMessages = 20
	}
	return &ConversationCache{
		client:      client,
		ttl:         ttl,
		maxMessages: int64(maxMessages),
	}
}

func (c *ConversationCache) Load(ctx context.Context, sessionID string) ([]ai.ChatMessage, error) {
	raw, err := c.client.LRange(ctx, c.historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get history failed: %w", err)
	}

	messages := make([]ai.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg ai.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal cached history failed: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (c *ConversationCache) Append(ctx context.Context, sessionID string, messages ...ai.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]interface{}, len(messages))
	for i, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal history message failed: %w", err)
		}
		values[i] = payload
	}

	key := c.historyKey(sessionID)
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -c.maxMessages, -1)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append history failed: %w", err)
	}
	return nil
}

func (c *ConversationCache) Delete(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, c.historyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (c *ConversationCache) historyKey(sessionID string) string {
	return "sam:chat:history:" + sessionID
}

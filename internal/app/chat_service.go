package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"sam-assistant/internal/ai"
	"sam-assistant/internal/config"
	"sam-assistant/internal/model"
)

var ErrMessageEmpty = errors.New("message content is empty")

const emptyReply = "Sorry, I don't have an answer for that right now."

type ChatCompleter interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
}

// ConversationStore keeps the recent turns of a chat session.
type ConversationStore interface {
	Load(ctx context.Context, sessionID string) ([]ai.ChatMessage, error)
	Append(ctx context.Context, sessionID string, messages ...ai.ChatMessage) error
}

type ChatInput struct {
	SessionID string
	Message   string
}

type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type ChatReply struct {
	SessionID string   `json:"sessionId"`
	Reply     string   `json:"reply"`
	Sources   []Source `json:"sources"`
	Grounded  bool     `json:"grounded"`
}

type ChatService struct {
	retrieval     *RetrievalService
	llm           ChatCompleter
	history       ConversationStore
	chatConfig    ai.ChatConfig
	assistant     config.AssistantConfig
	contextChunks int
	maxHistory    int
}

func NewChatService(
	retrieval *RetrievalService,
	llm ChatCompleter,
	history ConversationStore,
	chatConfig ai.ChatConfig,
	assistant config.AssistantConfig,
	contextChunks int,
	maxHistory int,
) *ChatService {
	if contextChunks <= 0 {
		contextChunks = 3
	}
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &ChatService{
		retrieval:     retrieval,
		llm:           llm,
		history:       history,
		chatConfig:    chatConfig,
		assistant:     assistant,
		contextChunks: contextChunks,
		maxHistory:    maxHistory,
	}
}

// SendMessage answers one visitor message, grounding the reply in retrieved
// website chunks when any are available.
func (s *ChatService) SendMessage(ctx context.Context, input ChatInput) (*ChatReply, error) {
	content := strings.TrimSpace(input.Message)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if s.chatConfig.BaseURL == "" || s.chatConfig.APIKey == "" || s.chatConfig.Model == "" {
		return nil, ErrLLMConfig
	}
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	chunks := s.contextFor(ctx, content)

	var past []ai.ChatMessage
	if s.history != nil {
		loaded, err := s.history.Load(ctx, sessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("load chat history failed")
		} else {
			past = trimHistory(loaded, s.maxHistory)
		}
	}

	messages := make([]ai.ChatMessage, 0, len(past)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: s.systemPrompt(chunks)})
	messages = append(messages, past...)
	messages = append(messages, ai.ChatMessage{Role: "user", Content: content})

	reply, err := s.llm.Complete(ctx, s.chatConfig, messages)
	if err != nil {
		return nil, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = emptyReply
	}

	if s.history != nil {
		turn := []ai.ChatMessage{{Role: "user", Content: content}, {Role: "assistant", Content: reply}}
		if err := s.history.Append(ctx, sessionID, turn...); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("save chat history failed")
		}
	}

	return &ChatReply{
		SessionID: sessionID,
		Reply:     reply,
		Sources:   sourcesOf(chunks),
		Grounded:  len(chunks) > 0,
	}, nil
}

// contextFor retrieves grounding chunks. Retrieval problems degrade to an
// ungrounded answer.
func (s *ChatService) contextFor(ctx context.Context, query string) []model.MatchedChunk {
	if s.retrieval == nil {
		return nil
	}
	result, err := s.retrieval.Retrieve(ctx, query, s.contextChunks, 0)
	if err != nil {
		log.Warn().Err(err).Msg("retrieve chat context failed")
		return nil
	}
	return result.Chunks
}

func (s *ChatService) systemPrompt(chunks []model.MatchedChunk) string {
	var b strings.Builder
	b.WriteString(s.assistant.SystemPrompt)
	if s.assistant.CompanyName != "" {
		fmt.Fprintf(&b, "\nYou represent %s.", s.assistant.CompanyName)
	}
	if len(chunks) == 0 {
		return b.String()
	}

	b.WriteString("\n\nUse the following information from the website when it is relevant:\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "\n[%d] %s (%s)\n%s\n", i+1, c.Title, model.BaseURL(c.URL), c.ChunkText)
	}
	return b.String()
}

func sourcesOf(chunks []model.MatchedChunk) []Source {
	sources := make([]Source, 0, len(chunks))
	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		base := model.BaseURL(c.URL)
		if _, ok := seen[base]; ok {
			continue
		}
		seen[base] = struct{}{}
		sources = append(sources, Source{URL: base, Title: c.Title})
	}
	return sources
}

func trimHistory(messages []ai.ChatMessage, limit int) []ai.ChatMessage {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sam-assistant/internal/ai"
	"sam-assistant/internal/model"
	"sam-assistant/internal/repository"
	"sam-assistant/internal/scrape"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.ContentChunk{}, &model.Operator{}))
	return db
}

func newChunkRepo(t *testing.T) *repository.ContentChunkRepository {
	return repository.NewContentChunkRepository(openTestDB(t))
}

func noSleep(context.Context, time.Duration) error { return nil }

// seedChunks stores n chunks of one page, the first embedded of them carrying a vector.
func seedChunks(t *testing.T, repo *repository.ContentChunkRepository, baseURL string, n, embedded int) {
	t.Helper()
	ctx := context.Background()
	pieces := make([]string, n)
	for i := range pieces {
		pieces[i] = fmt.Sprintf("Chunk %d of %s talks about floor plans and community amenities.", i, baseURL)
	}
	chunks := buildChunks(baseURL, "Page", strings.Join(pieces, " "), pieces, time.Now().UTC())
	_, err := repo.ReplaceForURL(ctx, baseURL, chunks)
	require.NoError(t, err)

	pending, err := repo.ListPendingEmbedding(ctx, n)
	require.NoError(t, err)
	for i := 0; i < embedded; i++ {
		require.NoError(t, repo.UpdateEmbedding(ctx, pending[i].ID, []float32{0.1, 0.2, 0.3}))
	}
}

type fakeScraper struct {
	pages      map[string]*scrape.Page
	errs       map[string]error
	configured bool
	calls      []string
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{pages: map[string]*scrape.Page{}, errs: map[string]error{}, configured: true}
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*scrape.Page, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return &scrape.Page{StatusCode: 404}, nil
}

func (f *fakeScraper) Configured() bool { return f.configured }

type fakeEmbedder struct {
	mu         sync.Mutex
	failOn     map[string]bool
	err        error
	configured bool
	calls      []string
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{failOn: map[string]bool{}, configured: true}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	if f.failOn[text] {
		return nil, errors.New("embedding api returned 500")
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) Model() string    { return "test-embedding" }
func (f *fakeEmbedder) Configured() bool { return f.configured }

type memoryQueryCache struct {
	entries map[string][]float32
	sets    int
}

func newMemoryQueryCache() *memoryQueryCache {
	return &memoryQueryCache{entries: map[string][]float32{}}
}

func (c *memoryQueryCache) Get(_ context.Context, model, query string) ([]float32, bool, error) {
	v, ok := c.entries[model+"|"+query]
	return v, ok, nil
}

func (c *memoryQueryCache) Set(_ context.Context, model, query string, embedding []float32) error {
	c.sets++
	c.entries[model+"|"+query] = embedding
	return nil
}

type fakeCompleter struct {
	reply    string
	err      error
	messages []ai.ChatMessage
}

func (f *fakeCompleter) Complete(_ context.Context, _ ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

type memoryConversations struct {
	sessions map[string][]ai.ChatMessage
}

func newMemoryConversations() *memoryConversations {
	return &memoryConversations{sessions: map[string][]ai.ChatMessage{}}
}

func (m *memoryConversations) Load(_ context.Context, sessionID string) ([]ai.ChatMessage, error) {
	return m.sessions[sessionID], nil
}

func (m *memoryConversations) Append(_ context.Context, sessionID string, messages ...ai.ChatMessage) error {
	m.sessions[sessionID] = append(m.sessions[sessionID], messages...)
	return nil
}

package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Empty(t *testing.T) {
	status, err := NewStatusService(newChunkRepo(t)).Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.IsReady)
	assert.Zero(t, status.TotalChunks)
	assert.Zero(t, status.CompletionPercent)
}

func TestStatus_AllEmbeddedIsReady(t *testing.T) {
	repo := newChunkRepo(t)
	seedChunks(t, repo, "https://builder.example/a", 6, 6)
	seedChunks(t, repo, "https://builder.example/b", 4, 4)

	status, err := NewStatusService(repo).Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.IsReady)
	assert.Equal(t, int64(10), status.TotalChunks)
	assert.Equal(t, int64(2), status.TotalURLs)
	assert.Equal(t, float64(100), status.CompletionPercent)
}

func TestStatus_PartiallyEmbedded(t *testing.T) {
	repo := newChunkRepo(t)
	seedChunks(t, repo, "https://builder.example/a", 10, 7)

	status, err := NewStatusService(repo).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &RAGStatus{
		TotalURLs:         1,
		TotalChunks:       10,
		EmbeddedChunks:    7,
		PendingChunks:     3,
		IsReady:           false,
		CompletionPercent: 70,
	}, status)
}

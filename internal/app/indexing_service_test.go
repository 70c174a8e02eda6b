package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"judgment-rag/internal/ai/mock"
	"judgment-rag/internal/model"
	"judgment-rag/internal/vectorstore"
	"judgment-rag/internal/vectorstore/memory"
)

type fixedChunker struct {
	pieces []string
	err    error
}

func (c fixedChunker) Split(string) ([]string, error) {
	return c.pieces, c.err
}

type recordingIndex struct {
	mu      sync.Mutex
	batches [][]vectorstore.Point
	err     error
}

func (r *recordingIndex) Upsert(_ context.Context, points []vectorstore.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, points)
	return nil
}

func (r *recordingIndex) Search(context.Context, []float32, int, float64) ([]model.SearchMatch, error) {
	return nil, r.err
}

func newTestIndexer(t *testing.T, chunker Chunker, embedder *mock.MockEmbedder, index vectorstore.Index) *ChunkIndexer {
	t.Helper()
	x, err := NewChunkIndexer(chunker, embedder, index, 2, nil)
	require.NoError(t, err)
	t.Cleanup(x.Close)
	return x
}

func TestChunkIndexer_IndexesEveryChunkInOrder(t *testing.T) {
	index := &recordingIndex{}
	pieces := []string{"first chunk", "second chunk", "third chunk", "fourth chunk", "fifth chunk"}
	embedder := mock.NewMockEmbedder()
	x := newTestIndexer(t, fixedChunker{pieces: pieces}, embedder, index)

	require.NoError(t, x.Index(context.Background(), "whole text", "doc-1"))

	require.Len(t, index.batches, 1)
	batch := index.batches[0]
	require.Len(t, batch, len(pieces))
	for i, p := range batch {
		assert.Equal(t, "doc-1", p.Chunk.DocumentID)
		assert.Equal(t, i, p.Chunk.Index)
		assert.Equal(t, pieces[i], p.Chunk.Text)
		assert.Equal(t, vectorstore.PointID("doc-1", i), p.ID)
		assert.Len(t, p.Vector, embedder.Dimension())
	}
	assert.Equal(t, len(pieces), embedder.CallCount())
}

func TestChunkIndexer_BlankTextIsNoop(t *testing.T) {
	index := &recordingIndex{}
	embedder := mock.NewMockEmbedder()
	x := newTestIndexer(t, fixedChunker{pieces: []string{"unused"}}, embedder, index)

	require.NoError(t, x.Index(context.Background(), "  \n ", "doc-1"))
	assert.Empty(t, index.batches)
	assert.Zero(t, embedder.CallCount())
}

func TestChunkIndexer_EmbedFailureAbortsUpsert(t *testing.T) {
	index := &recordingIndex{}
	embedder := mock.NewMockEmbedder()
	embedder.EmbedFunc = func(_ context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, errors.New("embedding service unavailable")
		}
		return mock.BagOfWordsVector(text, 384), nil
	}
	x := newTestIndexer(t, fixedChunker{pieces: []string{"good", "bad", "good again"}}, embedder, index)

	err := x.Index(context.Background(), "text", "doc-1")
	require.ErrorIs(t, err, ErrIndexing)
	assert.Contains(t, err.Error(), "embedding service unavailable")
	assert.Empty(t, index.batches)
}

func TestChunkIndexer_ChunkerAndUpsertFailures(t *testing.T) {
	x := newTestIndexer(t, fixedChunker{err: errors.New("split broke")}, mock.NewMockEmbedder(), &recordingIndex{})
	require.ErrorIs(t, x.Index(context.Background(), "text", "doc-1"), ErrIndexing)

	failing := &recordingIndex{err: errors.New("qdrant down")}
	x = newTestIndexer(t, fixedChunker{pieces: []string{"a chunk"}}, mock.NewMockEmbedder(), failing)
	err := x.Index(context.Background(), "text", "doc-1")
	require.ErrorIs(t, err, ErrIndexing)
	assert.Contains(t, err.Error(), "qdrant down")
}

func TestChunkIndexer_ReindexIsIdempotent(t *testing.T) {
	index := memory.New(384)
	x := newTestIndexer(t, NewRecursiveChunker(500, 50), mock.NewMockEmbedder(), index)

	text := strings.Repeat("The court examined the contract and the conduct of both parties. ", 40)
	require.NoError(t, x.Index(context.Background(), text, "doc-1"))
	first := index.Len()
	require.Greater(t, first, 1)

	require.NoError(t, x.Index(context.Background(), text, "doc-1"))
	assert.Equal(t, first, index.Len())
}

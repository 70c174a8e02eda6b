package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"judgment-rag/internal/ai/mock"
	"judgment-rag/internal/model"
	"judgment-rag/internal/vectorstore"
	"judgment-rag/internal/vectorstore/memory"
)

func seedIndex(t *testing.T, index *memory.Store, docID string, texts ...string) {
	t.Helper()
	points := make([]vectorstore.Point, len(texts))
	for i, text := range texts {
		chunk := model.TextChunk{DocumentID: docID, Index: i, Text: text}
		points[i] = vectorstore.NewPoint(chunk, mock.BagOfWordsVector(text, 384))
	}
	require.NoError(t, index.Upsert(context.Background(), points))
}

func TestRetriever_RanksByScore(t *testing.T) {
	index := memory.New(384)
	seedIndex(t, index, "doc-1",
		"The appeal was dismissed by the High Court.",
		"Weather report for harbour district.",
		"The High Court dismissed the appeal with costs.",
	)
	r := NewRetriever(mock.NewMockEmbedder(), index, RetrievalConfig{TopK: 15, MinScore: 0.30}, nil)

	matches, err := r.Search(context.Background(), "Was the appeal dismissed by the High Court?")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	for i, m := range matches {
		assert.GreaterOrEqual(t, m.Score, 0.30)
		if i > 0 {
			assert.GreaterOrEqual(t, matches[i-1].Score, m.Score)
		}
		assert.NotContains(t, m.Text, "Weather")
	}
}

func TestRetriever_CapsAtTopK(t *testing.T) {
	index := memory.New(384)
	texts := make([]string, 30)
	for i := range texts {
		texts[i] = fmt.Sprintf("contract breach damages clause %d", i)
	}
	seedIndex(t, index, "doc-1", texts...)
	r := NewRetriever(mock.NewMockEmbedder(), index, RetrievalConfig{TopK: 15, MinScore: 0.30}, nil)

	matches, err := r.Search(context.Background(), "contract breach damages")
	require.NoError(t, err)
	assert.Len(t, matches, 15)
}

func TestRetriever_NoMatchIsEmptyNotError(t *testing.T) {
	r := NewRetriever(mock.NewMockEmbedder(), memory.New(384), RetrievalConfig{TopK: 15, MinScore: 0.30}, nil)

	matches, err := r.Search(context.Background(), "What was held in Doe v. Roe?")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Empty(t, Texts(matches))
}

func TestRetriever_Errors(t *testing.T) {
	r := NewRetriever(mock.NewMockEmbedder(), memory.New(384), RetrievalConfig{TopK: 15, MinScore: 0.30}, nil)
	_, err := r.Search(context.Background(), "   ")
	require.ErrorIs(t, err, ErrInvalidInput)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedFunc = func(context.Context, string) ([]float32, error) {
		return nil, errors.New("model not loaded")
	}
	r = NewRetriever(embedder, memory.New(384), RetrievalConfig{TopK: 15, MinScore: 0.30}, nil)
	_, err = r.Search(context.Background(), "holding")
	require.ErrorIs(t, err, ErrCompletionService)

	r = NewRetriever(mock.NewMockEmbedder(), &recordingIndex{err: errors.New("connection refused")}, RetrievalConfig{TopK: 15, MinScore: 0.30}, nil)
	_, err = r.Search(context.Background(), "holding")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

// misbehavingIndex ignores topK and minScore.
type misbehavingIndex struct{ matches []model.SearchMatch }

func (m misbehavingIndex) Upsert(context.Context, []vectorstore.Point) error { return nil }

func (m misbehavingIndex) Search(context.Context, []float32, int, float64) ([]model.SearchMatch, error) {
	return m.matches, nil
}

func TestRetriever_EnforcesContractOverBackend(t *testing.T) {
	index := misbehavingIndex{matches: []model.SearchMatch{
		{Text: "low", Score: 0.10},
		{Text: "mid", Score: 0.50},
		{Text: "high", Score: 0.90},
		{Text: "edge", Score: 0.30},
	}}
	r := NewRetriever(mock.NewMockEmbedder(), index, RetrievalConfig{TopK: 2, MinScore: 0.30}, nil)

	matches, err := r.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "mid"}, Texts(matches))
}

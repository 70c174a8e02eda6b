package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"
)

const defaultDimension = 384

// MockEmbedder hashes lowercase word tokens into buckets and L2-normalises the
// counts, so cosine similarity tracks word overlap. Same text, same vector.
type MockEmbedder struct {
	Dim       int
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	calls atomic.Int64
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dim: defaultDimension}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return BagOfWordsVector(text, m.Dimension()), nil
}

func (m *MockEmbedder) Dimension() int {
	if m.Dim <= 0 {
		return defaultDimension
	}
	return m.Dim
}

func (m *MockEmbedder) ModelVersion() string {
	return "mock-bow@1"
}

func (m *MockEmbedder) CallCount() int {
	return int(m.calls.Load())
}

// BagOfWordsVector is exported so tests can build index fixtures directly.
func BagOfWordsVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(dim)]++
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}

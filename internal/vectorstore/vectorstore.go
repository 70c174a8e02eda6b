package vectorstore

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"judgment-rag/internal/model"
)

// Payload keys stored next to every vector.
const (
	PayloadDocumentID = "document_id"
	PayloadChunkIndex = "chunk_index"
	PayloadText       = "text"
)

// Point is one chunk with its embedding, ready for upsert.
type Point struct {
	ID     string
	Chunk  model.TextChunk
	Vector []float32
}

// Index is a nearest-neighbour store over cosine similarity.
type Index interface {
	Upsert(ctx context.Context, points []Point) error
	// Search returns at most topK matches with score >= minScore, best first.
	Search(ctx context.Context, vector []float32, topK int, minScore float64) ([]model.SearchMatch, error)
}

// Provisioner creates the collection or table behind an Index. It is only
// used by the bootstrap command.
type Provisioner interface {
	EnsureCollection(ctx context.Context, dimension int) error
}

// Pinger reports backend reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

var pointNamespace = uuid.MustParse("6f1c2a7e-3b0d-5c55-9a8e-0d2f4b1e7c90")

// PointID derives a stable id from the owning document and chunk position so
// re-indexing a document overwrites its previous points.
func PointID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s:%d", documentID, chunkIndex))).String()
}

// NewPoint builds a Point for chunk with its stable id.
func NewPoint(chunk model.TextChunk, vector []float32) Point {
	return Point{ID: PointID(chunk.DocumentID, chunk.Index), Chunk: chunk, Vector: vector}
}

func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

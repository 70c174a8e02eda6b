package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"judgment-rag/internal/model"
	"judgment-rag/internal/vectorstore"
)

// Store is a brute-force in-process index. Suitable for tests and small
// single-node deployments; contents are lost on restart.
type Store struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]vectorstore.Point
}

func New(dimension int) *Store {
	return &Store{
		dimension: dimension,
		points:    make(map[string]vectorstore.Point),
	}
}

func (s *Store) Upsert(_ context.Context, points []vectorstore.Point) error {
	for _, p := range points {
		if len(p.Vector) != s.dimension {
			return fmt.Errorf("point %s has dimension %d, want %d", p.ID, len(p.Vector), s.dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		s.points[p.ID] = p
	}
	return nil
}

func (s *Store) Search(_ context.Context, vector []float32, topK int, minScore float64) ([]model.SearchMatch, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query has dimension %d, want %d", len(vector), s.dimension)
	}
	if topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	matches := make([]model.SearchMatch, 0, len(s.points))
	for _, p := range s.points {
		score := vectorstore.CosineSimilarity(vector, p.Vector)
		if score < minScore {
			continue
		}
		matches = append(matches, model.SearchMatch{
			DocumentID: p.Chunk.DocumentID,
			ChunkIndex: p.Chunk.Index,
			Text:       p.Chunk.Text,
			Score:      score,
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].DocumentID != matches[j].DocumentID {
			return matches[i].DocumentID < matches[j].DocumentID
		}
		return matches[i].ChunkIndex < matches[j].ChunkIndex
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) EnsureCollection(_ context.Context, dimension int) error {
	if dimension != s.dimension {
		return fmt.Errorf("memory index has dimension %d, want %d", s.dimension, dimension)
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored points.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

package qdrant

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"judgment-rag/internal/model"
	"judgment-rag/internal/vectorstore"
)

// Store keeps chunk vectors in a Qdrant collection.
type Store struct {
	client     *qdrant.Client
	collection string
}

func New(client *qdrant.Client, collection string) *Store {
	return &Store{client: client, collection: collection}
}

func (s *Store) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				vectorstore.PayloadDocumentID: p.Chunk.DocumentID,
				vectorstore.PayloadChunkIndex: int64(p.Chunk.Index),
				vectorstore.PayloadText:       p.Chunk.Text,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int, minScore float64) ([]model.SearchMatch, error) {
	if topK <= 0 {
		return nil, nil
	}

	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		ScoreThreshold: qdrant.PtrOf(float32(minScore)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	matches := make([]model.SearchMatch, 0, len(scored))
	for _, p := range scored {
		payload := p.GetPayload()
		matches = append(matches, model.SearchMatch{
			DocumentID: payload[vectorstore.PayloadDocumentID].GetStringValue(),
			ChunkIndex: int(payload[vectorstore.PayloadChunkIndex].GetIntegerValue()),
			Text:       payload[vectorstore.PayloadText].GetStringValue(),
			Score:      float64(p.GetScore()),
		})
	}
	return matches, nil
}

// EnsureCollection creates a cosine collection of the given dimension unless
// one already exists.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant check collection failed: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection failed: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.HealthCheck(ctx)
	return err
}

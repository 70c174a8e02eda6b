package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"judgment-rag/internal/ai"
	"judgment-rag/internal/model"
	"judgment-rag/internal/vectorstore"
)

const defaultIndexWorkers = 4

// Chunker splits document text into retrieval-sized pieces.
type Chunker interface {
	Split(text string) ([]string, error)
}

// Indexer makes a persisted judgment's text searchable.
type Indexer interface {
	Index(ctx context.Context, text, documentID string) error
}

// ChunkIndexer chunks text, embeds every chunk on a bounded worker pool and
// upserts the document's points as one batch.
type ChunkIndexer struct {
	chunker  Chunker
	embedder ai.Embedder
	index    vectorstore.Index
	pool     *ants.Pool
	logger   *slog.Logger
}

func NewChunkIndexer(chunker Chunker, embedder ai.Embedder, index vectorstore.Index, workers int, logger *slog.Logger) (*ChunkIndexer, error) {
	if workers <= 0 {
		workers = defaultIndexWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create embedding pool failed: %w", err)
	}
	return &ChunkIndexer{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		pool:     pool,
		logger:   logger.With("component", "chunk_indexer"),
	}, nil
}

// Index is a no-op for blank text. Any failure is wrapped in ErrIndexing and
// leaves the index without a partial batch for this call.
func (x *ChunkIndexer) Index(ctx context.Context, text, documentID string) error {
	if strings.TrimSpace(text) == "" {
		x.logger.Warn("skipping indexing of empty text", "document_id", documentID)
		return nil
	}

	pieces, err := x.chunker.Split(text)
	if err != nil {
		return fmt.Errorf("%w: split document %s: %v", ErrIndexing, documentID, err)
	}
	if len(pieces) == 0 {
		x.logger.Warn("chunker produced no chunks", "document_id", documentID)
		return nil
	}

	points := make([]vectorstore.Point, len(pieces))
	errs := make([]error, len(pieces))
	var wg sync.WaitGroup
	for i, piece := range pieces {
		chunk := model.TextChunk{DocumentID: documentID, Index: i, Text: piece}
		wg.Add(1)
		submitErr := x.pool.Submit(func() {
			defer wg.Done()
			vec, err := x.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				errs[chunk.Index] = err
				return
			}
			points[chunk.Index] = vectorstore.NewPoint(chunk, vec)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("%w: embed chunk %d of %s: %v", ErrIndexing, i, documentID, err)
		}
	}

	if err := x.index.Upsert(ctx, points); err != nil {
		return fmt.Errorf("%w: upsert %d chunks of %s: %v", ErrIndexing, len(points), documentID, err)
	}

	x.logger.Info("document indexed", "document_id", documentID, "chunks", len(points))
	return nil
}

// Close releases the embedding pool.
func (x *ChunkIndexer) Close() {
	x.pool.Release()
}

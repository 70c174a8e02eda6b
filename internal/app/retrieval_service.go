package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"judgment-rag/internal/ai"
	"judgment-rag/internal/model"
	"judgment-rag/internal/vectorstore"
)

type RetrievalConfig struct {
	TopK     int
	MinScore float64
}

// Retriever finds the chunks most similar to a question.
type Retriever struct {
	embedder ai.Embedder
	index    vectorstore.Index
	cfg      RetrievalConfig
	logger   *slog.Logger
}

func NewRetriever(embedder ai.Embedder, index vectorstore.Index, cfg RetrievalConfig, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger.With("component", "retriever"),
	}
}

// Search returns at most TopK matches scoring at least MinScore, best first.
// No match is a valid empty result.
func (r *Retriever) Search(ctx context.Context, query string) ([]model.SearchMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidInput)
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrCompletionService, err)
	}

	found, err := r.index.Search(ctx, vec, r.cfg.TopK, r.cfg.MinScore)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	// Backends filter and rank already; re-check so the contract holds for any backend.
	matches := make([]model.SearchMatch, 0, len(found))
	for _, m := range found {
		if m.Score >= r.cfg.MinScore {
			matches = append(matches, m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > r.cfg.TopK {
		matches = matches[:r.cfg.TopK]
	}

	r.logger.Debug("retrieved chunks", "candidates", len(found), "matches", len(matches))
	return matches, nil
}

// Texts returns the chunk texts of matches in order.
func Texts(matches []model.SearchMatch) []string {
	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Text
	}
	return texts
}

package pgvector

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"judgment-rag/internal/model"
	"judgment-rag/internal/vectorstore"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store keeps chunk vectors in a PostgreSQL table with the pgvector extension.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

func New(pool *pgxpool.Pool, table string) (*Store, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid pgvector table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

func (s *Store) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5::vector)
		ON CONFLICT (id) DO UPDATE
		SET document_id = EXCLUDED.document_id,
		    chunk_index = EXCLUDED.chunk_index,
		    content = EXCLUDED.content,
		    embedding = EXCLUDED.embedding
	`, s.table)

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(query, p.ID, p.Chunk.DocumentID, p.Chunk.Index, p.Chunk.Text, formatVector(p.Vector))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin pgvector upsert failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("pgvector upsert failed: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit pgvector upsert failed: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int, minScore float64) ([]model.SearchMatch, error) {
	if topK <= 0 {
		return nil, nil
	}

	// <=> is cosine distance; similarity = 1 - distance.
	query := fmt.Sprintf(`
		SELECT document_id, chunk_index, content, 1 - (embedding <=> $1::vector) AS score
		FROM %s
		WHERE 1 - (embedding <=> $1::vector) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3
	`, s.table)

	rows, err := s.pool.Query(ctx, query, formatVector(vector), minScore, topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector search failed: %w", err)
	}
	defer rows.Close()

	var matches []model.SearchMatch
	for rows.Next() {
		var m model.SearchMatch
		if err := rows.Scan(&m.DocumentID, &m.ChunkIndex, &m.Text, &m.Score); err != nil {
			return nil, fmt.Errorf("scan pgvector match failed: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pgvector matches failed: %w", err)
	}
	return matches, nil
}

func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.table, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_document_id_idx ON %s (document_id)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector bootstrap failed: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// formatVector renders a pgvector literal such as [0.1,0.2,0.3].
func formatVector(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v) * 10)
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

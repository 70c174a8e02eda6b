package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"judgment-rag/internal/ai"
)

const defaultEmbeddingTTL = 24 * time.Hour

// EmbeddingCache wraps an Embedder with a redis read-through cache keyed by
// model version and text digest. Cache failures never fail an embedding.
type EmbeddingCache struct {
	next   ai.Embedder
	client *redisv9.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ ai.Embedder = (*EmbeddingCache)(nil)

func NewEmbeddingCache(next ai.Embedder, client *redisv9.Client, ttl time.Duration, logger *slog.Logger) *EmbeddingCache {
	if ttl <= 0 {
		ttl = defaultEmbeddingTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingCache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "embedding_cache"),
	}
}

func (c *EmbeddingCache) Dimension() int {
	return c.next.Dimension()
}

func (c *EmbeddingCache) ModelVersion() string {
	return c.next.ModelVersion()
}

func (c *EmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.embeddingKey(text)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == redisv9.Nil:
	case err != nil:
		c.logger.Warn("redis get embedding failed", "error", err)
	default:
		if vec, ok := decodeVector(raw, c.next.Dimension()); ok {
			return vec, nil
		}
		c.logger.Warn("discarding malformed cached embedding", "key", key, "bytes", len(raw))
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		c.logger.Warn("redis set embedding failed", "error", err)
	}
	return vec, nil
}

func (c *EmbeddingCache) embeddingKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", c.next.ModelVersion(), hex.EncodeToString(sum[:]))
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw []byte, dim int) ([]float32, bool) {
	if len(raw) != 4*dim {
		return nil, false
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, true
}

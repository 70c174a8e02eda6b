package model

// TextChunk is a bounded slice of a judgment's text. It only lives in the
// vector index, next to its embedding.
type TextChunk struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"chunk_index"`
	Text       string `json:"text"`
}

// SearchMatch pairs a stored chunk with its cosine similarity to a query.
type SearchMatch struct {
	DocumentID string  `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

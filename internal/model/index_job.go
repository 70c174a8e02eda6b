package model

// IndexJob is the queued request to index a persisted judgment's text.
type IndexJob struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
}

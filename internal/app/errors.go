package app

import (
	"errors"

	"judgment-rag/internal/pkg/pdfextract"
)

var (
	// ErrEmptyInput: no document bytes or no text were supplied.
	ErrEmptyInput = pdfextract.ErrEmptyDocument
	// ErrParse: the document could not be opened or read.
	ErrParse = pdfextract.ErrUnreadable
	// ErrSchemaViolation: the completion was not JSON of the expected shape.
	ErrSchemaViolation = errors.New("extraction output violates schema")
	// ErrCompletionService: the completion or embedding call itself failed.
	ErrCompletionService = errors.New("completion service failed")
	// ErrIndexing: chunking, embedding or upsert failed during ingestion.
	// Never returned from Pipeline.Ingest.
	ErrIndexing = errors.New("indexing failed")

	ErrInvalidInput = errors.New("invalid input")
)

// IsClientError reports whether err was caused by the request itself rather
// than by a collaborator.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrParse) || errors.Is(err, ErrInvalidInput)
}

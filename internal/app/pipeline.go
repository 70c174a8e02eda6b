package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"judgment-rag/internal/model"
)

var (
	ErrTextExtractorRequired  = errors.New("text extractor is required")
	ErrFieldExtractorRequired = errors.New("field extractor is required")
	ErrStoreRequired          = errors.New("judgment store is required")
	ErrIndexerRequired        = errors.New("indexer is required")
	ErrRetrieverRequired      = errors.New("retriever is required")
	ErrSynthesizerRequired    = errors.New("answer synthesizer is required")
	ErrJudgmentNotFound       = errors.New("judgment not found")
	ErrArchiveDisabled        = errors.New("document archive is disabled")
)

// TextExtractor converts an uploaded document into plain text.
type TextExtractor interface {
	Extract(data []byte, contentType string) (string, error)
}

// JudgmentStore is the system of record. Save assigns the identifier.
type JudgmentStore interface {
	Save(ctx context.Context, record *model.JudgmentRecord) error
	FindByID(ctx context.Context, id string) (*model.JudgmentRecord, error)
	SearchByTitle(ctx context.Context, fragment string) ([]model.JudgmentRecord, error)
}

// DocumentArchive keeps the uploaded originals.
type DocumentArchive interface {
	Upload(ctx context.Context, key, contentType string, data io.Reader) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

type PipelineDeps struct {
	TextExtractor  TextExtractor
	FieldExtractor *FieldExtractor
	Store          JudgmentStore
	Indexer        Indexer
	Retriever      *Retriever
	Synthesizer    *AnswerSynthesizer
}

type Option func(*Pipeline) error

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// WithArchive stores every ingested original under judgments/<id>.pdf.
func WithArchive(archive DocumentArchive) Option {
	return func(p *Pipeline) error {
		p.archive = archive
		return nil
	}
}

// Pipeline sequences ingestion and querying. Metadata persistence is the
// durable step of ingestion; indexing and archiving after it are best-effort.
type Pipeline struct {
	deps    PipelineDeps
	archive DocumentArchive
	logger  *slog.Logger
}

func NewPipeline(deps PipelineDeps, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.TextExtractor == nil:
		return nil, ErrTextExtractorRequired
	case deps.FieldExtractor == nil:
		return nil, ErrFieldExtractorRequired
	case deps.Store == nil:
		return nil, ErrStoreRequired
	case deps.Indexer == nil:
		return nil, ErrIndexerRequired
	case deps.Retriever == nil:
		return nil, ErrRetrieverRequired
	case deps.Synthesizer == nil:
		return nil, ErrSynthesizerRequired
	}

	p := &Pipeline{deps: deps, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

type IngestInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Ingest extracts, structures and persists a judgment, then indexes it.
// Errors from indexing are logged and never returned.
func (p *Pipeline) Ingest(ctx context.Context, input IngestInput) (*model.JudgmentRecord, error) {
	text, err := p.deps.TextExtractor.Extract(input.Data, input.ContentType)
	if err != nil {
		return nil, err
	}

	record, err := p.deps.FieldExtractor.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	record.OriginalText = text

	if err := p.deps.Store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("persist judgment failed: %w", err)
	}
	p.logger.Info("judgment persisted", "document_id", record.ID, "title", record.Title, "file", input.Filename)

	if err := p.deps.Indexer.Index(ctx, text, record.ID); err != nil {
		p.logger.Error("indexing failed, judgment kept without vectors", "document_id", record.ID, "error", err)
	}

	if p.archive != nil {
		if _, err := p.archive.Upload(ctx, archiveKey(record.ID), input.ContentType, bytes.NewReader(input.Data)); err != nil {
			p.logger.Error("archiving original failed", "document_id", record.ID, "error", err)
		}
	}

	return record, nil
}

type QueryResult struct {
	Answer string `json:"answer"`
}

// Query answers question from the indexed judgments. Synthesis failures
// surface as a fallback answer, not as an error.
func (p *Pipeline) Query(ctx context.Context, question string) (*QueryResult, error) {
	matches, err := p.deps.Retriever.Search(ctx, question)
	if err != nil {
		return nil, err
	}
	answer := p.deps.Synthesizer.Synthesize(ctx, strings.TrimSpace(question), Texts(matches))
	return &QueryResult{Answer: answer}, nil
}

func (p *Pipeline) FindJudgment(ctx context.Context, id string) (*model.JudgmentRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalidInput
	}
	record, err := p.deps.Store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrJudgmentNotFound
	}
	return record, nil
}

func (p *Pipeline) SearchJudgments(ctx context.Context, title string) ([]model.JudgmentRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is empty", ErrInvalidInput)
	}
	return p.deps.Store.SearchByTitle(ctx, title)
}

// OpenDocument returns the archived original of a persisted judgment.
func (p *Pipeline) OpenDocument(ctx context.Context, id string) (io.ReadCloser, error) {
	if p.archive == nil {
		return nil, ErrArchiveDisabled
	}
	if _, err := p.FindJudgment(ctx, id); err != nil {
		return nil, err
	}
	return p.archive.Download(ctx, archiveKey(id))
}

func archiveKey(id string) string {
	return "judgments/" + id + ".pdf"
}

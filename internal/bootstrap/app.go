package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"judgment-rag/internal/app"
	"judgment-rag/internal/config"
	"judgment-rag/internal/pkg/pdfextract"
	rabbitmqClient "judgment-rag/internal/platform/rabbitmq"
	"judgment-rag/internal/vectorstore"
	"judgment-rag/internal/worker"
)

// HealthCheck probes one external dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pipeline    *app.Pipeline
	Provisioner vectorstore.Provisioner
	Checks      []HealthCheck

	StartedAt time.Time

	mqConn       *amqp.Connection
	chunkIndexer *app.ChunkIndexer
	indexWorker  *worker.IndexWorker
	closers      []func() error
}

// New wires the configured backends into a pipeline. On error every resource
// opened so far is released.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		StartedAt: time.Now(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	store, err := a.openMetadataStore(ctx)
	if err != nil {
		return nil, err
	}

	index, err := a.openVectorIndex(ctx)
	if err != nil {
		return nil, err
	}

	embedder, err := a.newEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	completer, err := a.newCompleter(ctx)
	if err != nil {
		return nil, err
	}

	chunkIndexer, err := app.NewChunkIndexer(
		app.NewRecursiveChunker(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap),
		embedder,
		index,
		cfg.Pipeline.IndexWorkers,
		logger,
	)
	if err != nil {
		return nil, err
	}
	a.chunkIndexer = chunkIndexer

	var indexer app.Indexer = chunkIndexer
	if cfg.RabbitMQ.Enabled {
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		a.mqConn = conn
		a.Checks = append(a.Checks, HealthCheck{Name: "rabbitmq", Check: func(context.Context) error {
			return rabbitmqClient.Ping(conn)
		}})
		indexer = rabbitmqClient.NewIndexJobPublisher(conn, cfg.RabbitMQ.IndexQueue)
		logger.Info("indexing deferred to queue", "queue", cfg.RabbitMQ.IndexQueue)
	}

	opts := []app.Option{app.WithLogger(logger)}
	if cfg.Archive.Enabled {
		archive, err := a.newArchive(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, app.WithArchive(archive))
	}

	pipeline, err := app.NewPipeline(app.PipelineDeps{
		TextExtractor: pdfextract.New(logger),
		FieldExtractor: app.NewFieldExtractor(completer, app.ExtractionConfig{
			MaxChars:    cfg.Pipeline.MaxExtractionChars,
			MaxAttempts: cfg.LLM.MaxAttempts,
			RetryDelay:  cfg.RetryDelay(),
		}, logger),
		Store:   store,
		Indexer: indexer,
		Retriever: app.NewRetriever(embedder, index, app.RetrievalConfig{
			TopK:     cfg.Pipeline.TopK,
			MinScore: cfg.Pipeline.MinScore,
		}, logger),
		Synthesizer: app.NewAnswerSynthesizer(completer, logger),
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("build pipeline failed: %w", err)
	}
	a.Pipeline = pipeline

	logger.Info("application wired",
		"metadata", cfg.Metadata.Backend,
		"vector", cfg.Vector.Backend,
		"collection", cfg.Vector.Collection,
		"embedding", embedder.ModelVersion(),
		"llm", cfg.LLM.Provider,
	)
	return a, nil
}

// StartIndexWorker consumes queued index jobs in this process. It is a no-op
// when async indexing is disabled.
func (a *App) StartIndexWorker(ctx context.Context) error {
	if a.mqConn == nil || a.indexWorker != nil {
		return nil
	}
	w := worker.NewIndexWorker(a.mqConn, a.chunkIndexer, a.Config.RabbitMQ.IndexQueue, a.Logger)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start index worker failed: %w", err)
	}
	a.indexWorker = w
	return nil
}

func (a *App) addCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close stops the worker first, then releases resources in reverse order of
// acquisition.
func (a *App) Close() error {
	var errs []error
	if a.indexWorker != nil {
		a.indexWorker.Close()
		a.indexWorker = nil
	}
	if a.mqConn != nil {
		if err := a.mqConn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		a.mqConn = nil
	}
	if a.chunkIndexer != nil {
		a.chunkIndexer.Close()
		a.chunkIndexer = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

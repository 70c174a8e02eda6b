package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"judgment-rag/internal/ai"
	"judgment-rag/internal/app"
	"judgment-rag/internal/cache"
	"judgment-rag/internal/embedding/onnx"
	badgerClient "judgment-rag/internal/platform/badger"
	mysqlClient "judgment-rag/internal/platform/mysql"
	postgresClient "judgment-rag/internal/platform/postgres"
	qdrantClient "judgment-rag/internal/platform/qdrant"
	redisClient "judgment-rag/internal/platform/redis"
	"judgment-rag/internal/repository"
	"judgment-rag/internal/storage"
	"judgment-rag/internal/vectorstore"
	"judgment-rag/internal/vectorstore/memory"
	"judgment-rag/internal/vectorstore/pgvector"
	qdrantstore "judgment-rag/internal/vectorstore/qdrant"
)

func (a *App) openMetadataStore(ctx context.Context) (app.JudgmentStore, error) {
	switch a.Config.Metadata.Backend {
	case "mysql":
		db, err := mysqlClient.New(ctx, a.Config.MySQLDSN(), a.Logger)
		if err != nil {
			return nil, err
		}
		a.addCloser(func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		a.Checks = append(a.Checks, HealthCheck{Name: "mysql", Check: func(ctx context.Context) error {
			return mysqlClient.Ping(ctx, db)
		}})
		return repository.NewJudgmentRepository(db), nil

	case "badger":
		db, err := badgerClient.Open(a.Config.Badger.Path, a.Config.Badger.InMemory, a.Logger)
		if err != nil {
			return nil, err
		}
		a.addCloser(db.Close)
		a.Checks = append(a.Checks, HealthCheck{Name: "badger", Check: func(context.Context) error {
			if db.IsClosed() {
				return errors.New("database closed")
			}
			return nil
		}})
		return repository.NewKVJudgmentRepository(db), nil

	default:
		return nil, fmt.Errorf("unknown metadata backend %q", a.Config.Metadata.Backend)
	}
}

type vectorBackend interface {
	vectorstore.Index
	vectorstore.Provisioner
	vectorstore.Pinger
}

func (a *App) openVectorIndex(ctx context.Context) (vectorstore.Index, error) {
	cfg := a.Config
	var backend vectorBackend

	switch cfg.Vector.Backend {
	case "qdrant":
		client, err := qdrantClient.New(ctx, cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.APIKey, cfg.Qdrant.UseTLS)
		if err != nil {
			return nil, err
		}
		a.addCloser(client.Close)
		backend = qdrantstore.New(client, cfg.Vector.Collection)

	case "pgvector":
		pool, err := postgresClient.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		a.addCloser(func() error {
			pool.Close()
			return nil
		})
		store, err := pgvector.New(pool, cfg.Vector.Collection)
		if err != nil {
			return nil, err
		}
		backend = store

	case "memory":
		a.Logger.Warn("using in-process vector index, contents are lost on restart")
		backend = memory.New(cfg.Embedding.Dimension)

	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}

	a.Provisioner = backend
	a.Checks = append(a.Checks, HealthCheck{Name: "vector_index", Check: backend.Ping})
	return backend, nil
}

func (a *App) newEmbedder(ctx context.Context) (ai.Embedder, error) {
	cfg := a.Config
	var embedder ai.Embedder

	switch cfg.Embedding.Provider {
	case "onnx":
		encoder := onnx.NewEncoder(onnx.Config{
			ModelPath:     cfg.Embedding.ONNXModelPath,
			VocabPath:     cfg.Embedding.ONNXVocabPath,
			SharedLibPath: cfg.Embedding.ONNXSharedLib,
			MaxTokens:     cfg.Embedding.ONNXMaxTokens,
			Dimension:     cfg.Embedding.Dimension,
			Version:       cfg.Embedding.Model + "@" + cfg.Embedding.Version,
		})
		a.addCloser(encoder.Close)
		embedder = encoder

	case "openai":
		embedder = ai.NewOpenAIEmbedder(ai.EmbeddingConfig{
			BaseURL:   cfg.Embedding.BaseURL,
			APIKey:    cfg.Embedding.APIKey,
			Model:     cfg.Embedding.Model,
			Version:   cfg.Embedding.Version,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.EmbeddingTimeout(),
		})

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	if !cfg.Redis.Enabled {
		return embedder, nil
	}

	client, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	a.addCloser(client.Close)
	a.Checks = append(a.Checks, HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}})
	return cache.NewEmbeddingCache(embedder, client, cfg.EmbeddingCacheTTL(), a.Logger), nil
}

func (a *App) newCompleter(ctx context.Context) (ai.Completer, error) {
	cfg := a.Config
	switch cfg.LLM.Provider {
	case "gemini":
		completer, err := ai.NewGeminiCompleter(ctx, ai.GeminiConfig{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLMTimeout(),
		})
		if err != nil {
			return nil, err
		}
		a.addCloser(completer.Close)
		return completer, nil

	case "openai":
		return ai.NewOpenAICompatibleClient(ai.ChatConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLMTimeout(),
		}), nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func (a *App) newArchive(ctx context.Context) (app.DocumentArchive, error) {
	cfg := a.Config.Archive
	archive, err := storage.NewStorage(ctx, storage.StorageConfig{
		Type:         storage.StorageType(cfg.Type),
		LocalPath:    cfg.LocalPath,
		S3Bucket:     cfg.S3Bucket,
		S3Region:     cfg.S3Region,
		AWSAccessKey: cfg.AWSAccessKey,
		AWSSecretKey: cfg.AWSSecretKey,
	})
	if err != nil {
		return nil, fmt.Errorf("open document archive failed: %w", err)
	}
	return archive, nil
}

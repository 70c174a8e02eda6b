package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, 20000, cfg.Pipeline.MaxExtractionChars)
	assert.Equal(t, 500, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 50, cfg.Pipeline.ChunkOverlap)
	assert.Equal(t, 15, cfg.Pipeline.TopK)
	assert.InDelta(t, 0.30, cfg.Pipeline.MinScore, 1e-9)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, "legal_judgments", cfg.Vector.Collection)
	assert.Equal(t, 0.0, cfg.LLM.Temperature)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
}

func TestLoadFile_DecodesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[app]
port = 9090

[llm]
provider = "openai"
model = "gpt-4o-mini"

[pipeline]
top_k = 5
min_score = 0.5

[metadata]
backend = "badger"

[vector]
backend = "memory"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Pipeline.TopK)
	assert.InDelta(t, 0.5, cfg.Pipeline.MinScore, 1e-9)
	assert.Equal(t, "badger", cfg.Metadata.Backend)
	assert.Equal(t, "memory", cfg.Vector.Backend)
	// untouched sections keep their defaults
	assert.Equal(t, 500, cfg.Pipeline.ChunkSize)
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	t.Setenv("PIPELINE_MIN_SCORE", "0.42")
	t.Setenv("VECTOR_BACKEND", "pgvector")
	t.Setenv("APP_PORT", "not-a-number")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.InDelta(t, 0.42, cfg.Pipeline.MinScore, 1e-9)
	assert.Equal(t, "pgvector", cfg.Vector.Backend)
	assert.Equal(t, 8080, cfg.App.Port)
}

func TestLoadFile_RejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[app\nport = "), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode config file failed")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults are valid", func(c *Config) {}, ""},
		{"overlap not below size", func(c *Config) { c.Pipeline.ChunkOverlap = 500 }, "chunk_overlap"},
		{"negative overlap", func(c *Config) { c.Pipeline.ChunkOverlap = -1 }, "chunk_overlap"},
		{"zero top k", func(c *Config) { c.Pipeline.TopK = 0 }, "top_k"},
		{"score out of range", func(c *Config) { c.Pipeline.MinScore = 1.5 }, "min_score"},
		{"unpinned embedding version", func(c *Config) { c.Embedding.Version = "" }, "must be pinned"},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "bard" }, "llm.provider"},
		{"unknown vector backend", func(c *Config) { c.Vector.Backend = "faiss" }, "vector.backend"},
		{"unknown metadata backend", func(c *Config) { c.Metadata.Backend = "mongo" }, "metadata.backend"},
		{"unknown archive type", func(c *Config) {
			c.Archive.Enabled = true
			c.Archive.Type = "gcs"
		}, "archive.type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

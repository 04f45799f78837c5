package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, 800, cfg.Chunker.MaxSize)
	assert.Equal(t, 150, cfg.Chunker.Overlap)
	assert.Equal(t, 6, cfg.Retrieval.K)
	assert.Nil(t, cfg.Retrieval.ScoreThreshold)
	assert.Equal(t, 300, cfg.Retrieval.MinContextChars)
	assert.Equal(t, 4, cfg.Indexer.Workers)
	assert.Equal(t, 0.3, cfg.Generation.Temperature)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, VectorStoreSQLite, cfg.VectorStore)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "examgen.yaml", `
db_path: /tmp/exams.db
vector_store: memory
http:
  addr: ":9000"
chunker:
  max_size: 400
  overlap: 50
retrieval:
  k: 3
  score_threshold: 0.25
timeouts:
  model: 2m
llm:
  provider: openai
  openai:
    api_key: sk-test
`)

	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/exams.db", cfg.DBPath)
	assert.Equal(t, VectorStoreMemory, cfg.VectorStore)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 400, cfg.Chunker.MaxSize)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 3, cfg.Retrieval.K)
	require.NotNil(t, cfg.Retrieval.ScoreThreshold)
	assert.Equal(t, 0.25, *cfg.Retrieval.ScoreThreshold)

	// Unset keys keep their defaults.
	assert.Equal(t, 300, cfg.Retrieval.MinContextChars)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.OpenAI.Model)

	llmCfg := cfg.LLMConfig()
	assert.Equal(t, "openai", llmCfg.Provider)
	assert.Equal(t, 2*time.Minute, llmCfg.Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnvFile(t))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeFile(t, "bad.yaml", "chunker: [1, 2")
	_, err := Load(path, noEnvFile(t))
	assert.Error(t, err)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeFile(t, "examgen.yaml", "http:\n  addr: \":9000\"\nretrieval:\n  k: 3\n")
	t.Setenv("EXAMGEN_HTTP_ADDR", ":7000")
	t.Setenv("EXAMGEN_RETRIEVAL_K", "8")
	t.Setenv("EXAMGEN_SCORE_THRESHOLD", "0.4")
	t.Setenv("EXAMGEN_VECTOR_STORE_TIMEOUT", "3s")
	t.Setenv("EXAMGEN_EMBEDDING_PROVIDER", "openai")
	t.Setenv("EXAMGEN_EMBEDDING_API_KEY", "sk")

	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, 8, cfg.Retrieval.K)
	require.NotNil(t, cfg.Retrieval.ScoreThreshold)
	assert.Equal(t, 0.4, *cfg.Retrieval.ScoreThreshold)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.VectorStore)
	assert.Equal(t, "openai", cfg.EmbeddingConfig().Provider)
}

func TestDotEnvFile(t *testing.T) {
	envFile := writeFile(t, "test.env", "EXAMGEN_INDEXER_WORKERS=7\nEXAMGEN_LOG_LEVEL=debug\n")
	t.Cleanup(func() {
		os.Unsetenv("EXAMGEN_INDEXER_WORKERS")
		os.Unsetenv("EXAMGEN_LOG_LEVEL")
	})

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Indexer.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	envFile := writeFile(t, "test.env", "EXAMGEN_HTTP_ADDR=:1111\n")
	t.Setenv("EXAMGEN_HTTP_ADDR", ":2222")

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, ":2222", cfg.HTTP.Addr)
}

func TestEmbeddingConfigUsesTimeouts(t *testing.T) {
	cfg := Default()
	cfg.Timeouts.Embedding = 5 * time.Second
	assert.Equal(t, 5*time.Second, cfg.EmbeddingConfig().Timeout)
}

func TestExamConfig(t *testing.T) {
	cfg := Default()
	threshold := 0.5
	cfg.Retrieval.ScoreThreshold = &threshold
	cfg.Generation.MaxTokens = 1000

	ec := cfg.ExamConfig()
	assert.Equal(t, 6, ec.K)
	assert.Equal(t, &threshold, ec.ScoreThreshold)
	assert.Equal(t, 300, ec.MinContextChars)
	assert.Equal(t, 1000, ec.MaxTokens)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown vector store", func(c *Config) { c.VectorStore = "pinecone" }},
		{"overlap not below size", func(c *Config) { c.Chunker.Overlap = c.Chunker.MaxSize }},
		{"zero k", func(c *Config) { c.Retrieval.K = 0 }},
		{"zero min context", func(c *Config) { c.Retrieval.MinContextChars = 0 }},
		{"zero workers", func(c *Config) { c.Indexer.Workers = 0 }},
		{"temperature too high", func(c *Config) { c.Generation.Temperature = 1.5 }},
		{"negative timeout", func(c *Config) { c.Timeouts.Model = -time.Second }},
		{"embedding without key", func(c *Config) { c.Embedding.Provider = "gemini" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

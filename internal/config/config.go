// Package config assembles the process configuration once at startup from
// defaults, an optional YAML file, a .env file and EXAMGEN_* environment
// variables. Command-line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek/examgen/internal/chunker"
	"github.com/abhisek/examgen/internal/embedding"
	"github.com/abhisek/examgen/internal/examgen"
	"github.com/abhisek/examgen/internal/indexer"
	"github.com/abhisek/examgen/internal/llm"
	"github.com/abhisek/examgen/internal/retriever"
)

// DefaultFile is read when no config file is given and it exists in the
// working directory.
const DefaultFile = "examgen.yaml"

// Vector store backends.
const (
	VectorStoreSQLite = "sqlite"
	VectorStoreMemory = "memory"
)

type Config struct {
	// DBPath is the SQLite database holding events and, with the sqlite
	// vector store, the chunks. Empty means store.DefaultDBPath.
	DBPath string `yaml:"db_path"`

	// VectorStore is "sqlite" or "memory".
	VectorStore string `yaml:"vector_store"`

	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Indexer    IndexerConfig    `yaml:"indexer"`
	Generation GenerationConfig `yaml:"generation"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts"`
	Embedding  embedding.Config `yaml:"embedding"`
	LLM        llm.Config       `yaml:"llm"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type ChunkerConfig struct {
	MaxSize int `yaml:"max_size"`
	Overlap int `yaml:"overlap"`
}

type RetrievalConfig struct {
	K               int      `yaml:"k"`
	ScoreThreshold  *float64 `yaml:"score_threshold"`
	MinContextChars int      `yaml:"min_context_chars"`
}

type IndexerConfig struct {
	Workers int `yaml:"workers"`
}

type GenerationConfig struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	// Attempts is how many times the CLI runs a generation that failed on
	// model output or infrastructure. The server never retries.
	Attempts int `yaml:"attempts"`
}

// TimeoutsConfig holds the per-call deadlines for external services.
type TimeoutsConfig struct {
	Embedding   time.Duration `yaml:"embedding"`
	VectorStore time.Duration `yaml:"vector_store"`
	Model       time.Duration `yaml:"model"`
}

// Default returns the built-in configuration.
func Default() Config {
	gen := examgen.DefaultConfig()
	return Config{
		VectorStore: VectorStoreSQLite,
		HTTP:        HTTPConfig{Addr: ":8000"},
		Log:         LogConfig{Level: "info", Format: "text"},
		Chunker: ChunkerConfig{
			MaxSize: chunker.DefaultMaxSize,
			Overlap: chunker.DefaultOverlap,
		},
		Retrieval: RetrievalConfig{
			K:               retriever.DefaultK,
			MinContextChars: examgen.DefaultMinContextChars,
		},
		Indexer: IndexerConfig{Workers: indexer.DefaultWorkers},
		Generation: GenerationConfig{
			MaxTokens:   gen.MaxTokens,
			Temperature: gen.Temperature,
			Attempts:    1,
		},
		Timeouts: TimeoutsConfig{
			Embedding:   30 * time.Second,
			VectorStore: 10 * time.Second,
			Model:       60 * time.Second,
		},
		Embedding: embedding.DefaultConfig(),
		LLM:       llm.DefaultConfig(),
	}
}

// Load builds the configuration. file may be empty, in which case
// DefaultFile is used if present. envFiles default to ".env"; missing env
// files are skipped. Variables already set in the environment win over
// env files.
func Load(file string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if file == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			file = DefaultFile
		}
	}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", file, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg.ApplyEnv()
	return &cfg, nil
}

// ApplyEnv overrides fields with any EXAMGEN_* variables that are set.
func (c *Config) ApplyEnv() {
	setString(&c.DBPath, "EXAMGEN_DB")
	setString(&c.VectorStore, "EXAMGEN_VECTOR_STORE")
	setString(&c.HTTP.Addr, "EXAMGEN_HTTP_ADDR")
	setString(&c.Log.Level, "EXAMGEN_LOG_LEVEL")
	setString(&c.Log.Format, "EXAMGEN_LOG_FORMAT")

	setInt(&c.Chunker.MaxSize, "EXAMGEN_CHUNK_SIZE")
	setInt(&c.Chunker.Overlap, "EXAMGEN_CHUNK_OVERLAP")
	setInt(&c.Retrieval.K, "EXAMGEN_RETRIEVAL_K")
	setInt(&c.Retrieval.MinContextChars, "EXAMGEN_MIN_CONTEXT_CHARS")
	if v := os.Getenv("EXAMGEN_SCORE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.ScoreThreshold = &f
		}
	}
	setInt(&c.Indexer.Workers, "EXAMGEN_INDEXER_WORKERS")
	setInt(&c.Generation.MaxTokens, "EXAMGEN_MAX_TOKENS")
	setInt(&c.Generation.Attempts, "EXAMGEN_GENERATION_ATTEMPTS")

	setDuration(&c.Timeouts.Embedding, "EXAMGEN_EMBEDDING_TIMEOUT")
	setDuration(&c.Timeouts.VectorStore, "EXAMGEN_VECTOR_STORE_TIMEOUT")
	setDuration(&c.Timeouts.Model, "EXAMGEN_LLM_TIMEOUT")

	embedding.ApplyEnv(&c.Embedding)
	llm.ApplyEnv(&c.LLM)
}

// EmbeddingConfig returns the embedder settings with the configured timeout.
func (c *Config) EmbeddingConfig() embedding.Config {
	e := c.Embedding
	e.Timeout = c.Timeouts.Embedding
	return e
}

// LLMConfig returns the provider settings with the configured model
// timeout. When the selected provider has no API key and
// EXAMGEN_LLM_PROVIDER is unset, it falls back to the first provider whose
// standard key variable, such as OPENAI_API_KEY, is present.
func (c *Config) LLMConfig() llm.Config {
	l := c.LLM
	if l.Validate() != nil && os.Getenv("EXAMGEN_LLM_PROVIDER") == "" {
		if discovered, ok := llm.DiscoverConfig(); ok {
			discovered.Retry = l.Retry
			l = discovered
		}
	}
	l.Timeout = c.Timeouts.Model
	return l
}

// ExamConfig returns the orchestrator settings.
func (c *Config) ExamConfig() examgen.Config {
	return examgen.Config{
		K:               c.Retrieval.K,
		ScoreThreshold:  c.Retrieval.ScoreThreshold,
		MinContextChars: c.Retrieval.MinContextChars,
		MaxTokens:       c.Generation.MaxTokens,
		Temperature:     c.Generation.Temperature,
	}
}

// NewChunker builds the configured chunker.
func (c *Config) NewChunker() (*chunker.Chunker, error) {
	return chunker.New(chunker.WithMaxSize(c.Chunker.MaxSize), chunker.WithOverlap(c.Chunker.Overlap))
}

// Validate checks settings shared by every command. Provider credentials
// are checked by the commands that need them.
func (c *Config) Validate() error {
	var problems []error

	if c.VectorStore != VectorStoreSQLite && c.VectorStore != VectorStoreMemory {
		problems = append(problems, fmt.Errorf("vector_store must be %q or %q, got %q", VectorStoreSQLite, VectorStoreMemory, c.VectorStore))
	}
	if _, err := c.NewChunker(); err != nil {
		problems = append(problems, err)
	}
	if c.Retrieval.K <= 0 {
		problems = append(problems, fmt.Errorf("retrieval.k must be positive, got %d", c.Retrieval.K))
	}
	if c.Retrieval.MinContextChars <= 0 {
		problems = append(problems, fmt.Errorf("retrieval.min_context_chars must be positive, got %d", c.Retrieval.MinContextChars))
	}
	if c.Indexer.Workers <= 0 {
		problems = append(problems, fmt.Errorf("indexer.workers must be positive, got %d", c.Indexer.Workers))
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 1 {
		problems = append(problems, fmt.Errorf("generation.temperature must be within 0..1, got %v", c.Generation.Temperature))
	}
	for name, d := range map[string]time.Duration{
		"timeouts.embedding":    c.Timeouts.Embedding,
		"timeouts.vector_store": c.Timeouts.VectorStore,
		"timeouts.model":        c.Timeouts.Model,
	} {
		if d < 0 {
			problems = append(problems, fmt.Errorf("%s must not be negative, got %s", name, d))
		}
	}
	if err := c.Embedding.Validate(); err != nil {
		problems = append(problems, err)
	}
	return errors.Join(problems...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

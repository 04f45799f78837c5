// Package embedding turns text into dense vectors for similarity search.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Embedder converts text to vectors. Documents and queries are separate
// calls because some services embed them with different task types.
type Embedder interface {
	// EmbedDocuments returns one vector per text, in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery returns the vector for a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// ModelID returns the embedding model identifier.
	ModelID() string
}

// Config selects and configures an embedding backend.
type Config struct {
	// Provider is one of "openai", "gemini", "hash".
	Provider string `yaml:"provider"`

	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"` // openai only
	Dimensions int    `yaml:"dimensions"`

	// BatchSize caps the number of texts sent per request.
	BatchSize int `yaml:"batch_size"`

	// Timeout is the deadline for a single embedding call. Zero disables it.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the offline hash embedder configuration.
func DefaultConfig() Config {
	return Config{
		Provider:   "hash",
		Dimensions: DefaultHashDimensions,
		BatchSize:  64,
		Timeout:    30 * time.Second,
	}
}

// ApplyEnv overrides fields of cfg with any EXAMGEN_EMBEDDING_* variables.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("EXAMGEN_EMBEDDING_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("EXAMGEN_EMBEDDING_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("EXAMGEN_EMBEDDING_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("EXAMGEN_EMBEDDING_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("EXAMGEN_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dimensions = n
		}
	}
	if v := os.Getenv("EXAMGEN_EMBEDDING_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
		}
	}
}

// Validate checks the configuration for the selected provider.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "gemini":
		if c.APIKey == "" {
			return fmt.Errorf("EXAMGEN_EMBEDDING_API_KEY is required for the %s embedding provider", c.Provider)
		}
	case "hash":
		if c.Dimensions <= 0 {
			return fmt.Errorf("hash embedder needs positive dimensions, got %d", c.Dimensions)
		}
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Provider)
	}
	if c.Dimensions < 0 {
		return fmt.Errorf("embedding dimensions must not be negative, got %d", c.Dimensions)
	}
	return nil
}

// New creates an Embedder from configuration, wrapped with the per-call
// timeout.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "openai":
		e, err = NewOpenAIEmbedder(cfg)
	case "gemini":
		e, err = NewGeminiEmbedder(ctx, cfg)
	case "hash":
		e = NewHashEmbedder(cfg.Dimensions)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s embedder: %w", cfg.Provider, err)
	}
	return WithTimeout(e, cfg.Timeout), nil
}

// ErrTimeout indicates a single embedding call exceeded its deadline.
type ErrTimeout struct {
	After time.Duration
	Err   error
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("embedding call timed out after %s: %v", e.After, e.Err)
}

func (e *ErrTimeout) Unwrap() error { return e.Err }

func (e *ErrTimeout) Timeout() bool { return true }

// ErrCountMismatch indicates the service returned a different number of
// vectors than texts sent.
type ErrCountMismatch struct {
	Want, Got int
}

func (e *ErrCountMismatch) Error() string {
	return fmt.Sprintf("embedding service returned %d vectors for %d texts", e.Got, e.Want)
}

type timeoutEmbedder struct {
	inner   Embedder
	timeout time.Duration
}

// WithTimeout bounds every call to e with its own deadline. A non-positive d
// returns e unchanged.
func WithTimeout(e Embedder, d time.Duration) Embedder {
	if d <= 0 {
		return e
	}
	return &timeoutEmbedder{inner: e, timeout: d}
}

func (t *timeoutEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	vecs, err := t.inner.EmbedDocuments(callCtx, texts)
	return vecs, t.wrap(ctx, callCtx, err)
}

func (t *timeoutEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	vec, err := t.inner.EmbedQuery(callCtx, text)
	return vec, t.wrap(ctx, callCtx, err)
}

func (t *timeoutEmbedder) ModelID() string { return t.inner.ModelID() }

func (t *timeoutEmbedder) wrap(parent, call context.Context, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() == nil && errors.Is(call.Err(), context.DeadlineExceeded) {
		return &ErrTimeout{After: t.timeout, Err: err}
	}
	return err
}

// batches splits texts into consecutive groups of at most size.
func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}

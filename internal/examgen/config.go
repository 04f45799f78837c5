package examgen

import (
	"time"

	"github.com/abhisek/examgen/internal/retriever"
)

// Config controls the Orchestrator.
type Config struct {
	// K is the number of chunks retrieved per request.
	K int

	// ScoreThreshold drops retrieved chunks scoring below it. Nil disables
	// the cutoff.
	ScoreThreshold *float64

	// MinContextChars is the shortest joined context accepted.
	MinContextChars int

	// MaxTokens is the token budget for the model response.
	MaxTokens int

	// Temperature controls model output randomness (0.0-1.0).
	Temperature float64

	// ModelTimeout bounds the generation call. Zero leaves the deadline to
	// the provider chain.
	ModelTimeout time.Duration
}

// DefaultConfig returns the recommended generation settings.
func DefaultConfig() Config {
	return Config{
		K:               retriever.DefaultK,
		MinContextChars: DefaultMinContextChars,
		MaxTokens:       4096,
		Temperature:     0.3,
	}
}

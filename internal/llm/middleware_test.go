package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/examgen/internal/store"
)

// blockingProvider waits until its context is done.
type blockingProvider struct{}

func (blockingProvider) Generate(ctx context.Context, _ Request) (*Response, error) {
	<-ctx.Done()
	return nil, &ErrProviderUnavailable{Err: ctx.Err()}
}

func (blockingProvider) ModelID() string { return "blocking" }

func TestTimeout_ExpiresAsErrTimeout(t *testing.T) {
	p := WithTimeout(blockingProvider{}, 10*time.Millisecond)

	_, err := p.Generate(context.Background(), Request{})
	var te *ErrTimeout
	if !errors.As(err, &te) {
		t.Fatalf("expected ErrTimeout, got %T: %v", err, err)
	}
	if !te.Timeout() {
		t.Fatal("ErrTimeout.Timeout() should be true")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("ErrTimeout should wrap the deadline error")
	}
}

func TestTimeout_CallerCancellationPassesThrough(t *testing.T) {
	p := WithTimeout(blockingProvider{}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, Request{})
	var te *ErrTimeout
	if errors.As(err, &te) {
		t.Fatal("caller cancellation must not be reported as a timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
}

func TestTimeout_ZeroDisables(t *testing.T) {
	mock := NewMockProvider()
	if got := WithTimeout(mock, 0); got != Provider(mock) {
		t.Fatal("zero timeout should return the provider unchanged")
	}
}

func TestRetry_TimeoutIsRetried(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrTimeout{After: time.Second, Err: context.DeadlineExceeded}},
		MockResponse{Text: `[]`},
	)
	p := WithRetry(mock, retryConfig())

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.CallCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.CallCount())
	}
}

func openEventStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLogging_RecordsSuccessAndFailure(t *testing.T) {
	s := openEventStore(t)
	repo := s.EventRepo()

	mock := NewMockProvider(
		MockResponse{Text: `[{"content":"q"}]`, Usage: Usage{InputTokens: 40, OutputTokens: 12}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
	)
	p := WithLogging(mock, repo)
	ctx := WithPurpose(context.Background(), "exam-generation")

	req := Request{Messages: []Message{{Role: RoleUser, Content: "context here"}}, MaxTokens: 100}
	if _, err := p.Generate(ctx, req); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := p.Generate(ctx, req); err == nil {
		t.Fatal("second call should fail")
	}

	events, err := repo.QueryLLMEvents(context.Background(), store.QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	failed, ok := events[0], events[1]
	if failed.Success || !strings.Contains(failed.ErrorMessage, "down") {
		t.Errorf("failed event = %+v", failed)
	}
	if !ok.Success || ok.InputTokens != 40 || ok.Purpose != "exam-generation" || ok.Provider != "mock" {
		t.Errorf("success event = %+v", ok)
	}
	if !strings.Contains(ok.RequestBody, "context here") {
		t.Errorf("request body not captured: %q", ok.RequestBody)
	}
}

func TestWrap_Chain(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = time.Second
	cfg.Retry = retryConfig()

	p := Wrap(NewMockProvider(), cfg, nil)
	if _, ok := p.(*RetryProvider); !ok {
		t.Fatalf("outermost = %T, want *RetryProvider", p)
	}
	if ProviderName(p) != "mock" {
		t.Errorf("ProviderName = %q, want mock", ProviderName(p))
	}

	cfg.Retry.MaxAttempts = 1
	p = Wrap(NewMockProvider(), cfg, nil)
	if _, ok := p.(*TimeoutProvider); !ok {
		t.Fatalf("outermost = %T, want *TimeoutProvider when retries are off", p)
	}
}

func TestNewProvider_Mock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "mock"

	p, err := NewProvider(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Errorf("ModelID = %q, want mock", p.ModelID())
	}

	cfg.Provider = "nope"
	if _, err := NewProvider(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("EXAMGEN_LLM_PROVIDER", "openrouter")
	t.Setenv("EXAMGEN_OPENROUTER_API_KEY", "sk-or")
	t.Setenv("EXAMGEN_LLM_TIMEOUT", "15s")
	t.Setenv("EXAMGEN_LLM_MAX_ATTEMPTS", "3")

	cfg := ConfigFromEnv()
	if cfg.Provider != "openrouter" || cfg.OpenRouter.APIKey != "sk-or" {
		t.Fatalf("provider config = %+v", cfg)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("timeout = %s, want 15s", cfg.Timeout)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("max attempts = %d, want 3", cfg.Retry.MaxAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLookupCost(t *testing.T) {
	c := LookupCost("gpt-4o-mini")
	if c == nil {
		t.Fatal("expected pricing for gpt-4o-mini")
	}
	if got := c.Cost(1_000_000, 1_000_000); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("cost = %v, want 0.75", got)
	}
	if LookupCost("unknown-model") != nil {
		t.Error("expected nil for unknown model")
	}
}

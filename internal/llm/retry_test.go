package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func retryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: time.Millisecond,
		MaxWait:     10 * time.Millisecond,
		Multiplier:  2.0,
	}
}

const questionsJSON = `[{"material_id":1,"content":"q","difficulty":"hard","taxonomy_level":"C5","answers":[{"label":"A","text":"a","is_correct":true}]}]`

func TestRetry(t *testing.T) {
	down := func() MockResponse { return MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}} }
	ok := MockResponse{Text: questionsJSON}

	tests := []struct {
		name      string
		responses []MockResponse
		wantCalls int
		wantErr   bool
	}{
		{"first attempt succeeds", []MockResponse{ok}, 1, false},
		{"unavailable then success", []MockResponse{down(), ok}, 2, false},
		{"rate limit then success", []MockResponse{{Err: &ErrRateLimit{RetryAfter: time.Millisecond, Err: errors.New("429")}}, ok}, 2, false},
		{"timeout then success", []MockResponse{{Err: &ErrTimeout{After: time.Second, Err: context.DeadlineExceeded}}, ok}, 2, false},
		{"all attempts fail", []MockResponse{down(), down(), down()}, 3, true},
		{"truncated output not retried", []MockResponse{{Text: `[{"material_id":1,`, Truncated: true}, ok}, 1, true},
		{"empty output retried once", []MockResponse{{Text: ""}, {Text: "  "}, ok}, 2, true},
		{"caller deadline not retried", []MockResponse{{Err: context.DeadlineExceeded}, ok}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockProvider(tt.responses...)
			resp, err := WithRetry(mock, retryConfig()).Generate(context.Background(), Request{MaxTokens: 100})

			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && resp.Text != questionsJSON {
				t.Fatalf("text = %q", resp.Text)
			}
			if mock.CallCount() != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", mock.CallCount(), tt.wantCalls)
			}
		})
	}
}

func TestRetry_TruncationKeepsPartial(t *testing.T) {
	mock := NewMockProvider(MockResponse{Text: `[{"material_id":1,`, Truncated: true})

	_, err := WithRetry(mock, retryConfig()).Generate(context.Background(), Request{MaxTokens: 8})
	var maxTok *ErrMaxTokensExceeded
	if !errors.As(err, &maxTok) {
		t.Fatalf("err = %T, want *ErrMaxTokensExceeded", err)
	}
	if maxTok.Partial != `[{"material_id":1,` || maxTok.MaxTokens != 8 {
		t.Fatalf("got %+v", maxTok)
	}
}

func TestRetry_CancelledDuringBackoff(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
		MockResponse{Text: questionsJSON},
	)
	cfg := retryConfig()
	cfg.InitialWait = time.Hour
	cfg.MaxWait = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WithRetry(mock, cfg).Generate(ctx, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if mock.CallCount() != 1 {
		t.Fatalf("calls = %d, want 1", mock.CallCount())
	}
}

func TestRetry_Delegates(t *testing.T) {
	p := WithRetry(NewMockProvider(), retryConfig())
	if p.ModelID() != "mock" || ProviderName(p) != "mock" {
		t.Fatalf("ModelID = %q, name = %q", p.ModelID(), ProviderName(p))
	}
}

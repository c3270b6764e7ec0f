package planner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestAssemblePromptIncludesSystemToolsAndTranscript(t *testing.T) {
	req := Request{
		SystemPrompt:     "You are an agent.",
		ToolsDescription: "echo: echoes stdin",
		Messages: []Message{
			{Role: RoleUser, Content: "do the thing"},
			{Role: RoleAssistant, Content: "ok"},
		},
	}
	got := AssemblePrompt(req, 0)

	for _, want := range []string{"You are an agent.", "echo: echoes stdin", "USER: do the thing", "ASSISTANT: ok"} {
		if !strings.Contains(got, want) {
			t.Errorf("AssemblePrompt() = %q, want to contain %q", got, want)
		}
	}
}

func TestAssemblePromptRetainsTailWhenOverBudget(t *testing.T) {
	req := Request{
		Messages: []Message{
			{Role: RoleUser, Content: strings.Repeat("a", 100)},
			{Role: RoleUser, Content: "the important recent bit"},
		},
	}
	got := AssemblePrompt(req, 10) // budget = 40 chars
	if len(got) > 40 {
		t.Errorf("AssemblePrompt() length = %d, want <= 40", len(got))
	}
	if !strings.Contains(got, "important recent bit") {
		t.Errorf("AssemblePrompt() = %q, want the tail to be retained", got)
	}
}

func TestAssemblePromptIsPure(t *testing.T) {
	req := Request{SystemPrompt: "s", Messages: []Message{{Role: RoleUser, Content: "m"}}}
	a := AssemblePrompt(req, 100)
	b := AssemblePrompt(req, 100)
	if a != b {
		t.Errorf("AssemblePrompt is not pure: %q != %q", a, b)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		msg  string
		want FailoverReason
	}{
		{"429 Too Many Requests", ReasonRateLimit},
		{"503 Service Unavailable", ReasonServerError},
		{"context deadline exceeded", ReasonTimeout},
		{"401 Unauthorized", ReasonAuth},
		{"something else broke", ReasonUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyError(errors.New(tt.msg)); got != tt.want {
			t.Errorf("ClassifyError(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(errors.New("429 rate limit")) {
		t.Error("expected a rate-limit error to be retryable")
	}
	if IsRetryable(errors.New("401 unauthorized")) {
		t.Error("expected an auth error to not be retryable")
	}
}

func TestBaseProviderRetryStopsOnNonRetryable(t *testing.T) {
	base := NewBaseProvider("test", 5, time.Millisecond, 0)
	attempts := 0
	err := base.Retry(context.Background(), func() error {
		attempts++
		return errors.New("401 unauthorized")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (non-retryable stops immediately)", attempts)
	}
}

func TestBaseProviderRetryExhaustsOnRetryable(t *testing.T) {
	base := NewBaseProvider("test", 3, time.Millisecond, 0)
	attempts := 0
	err := base.Retry(context.Background(), func() error {
		attempts++
		return errors.New("503 server error")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestBaseProviderRetrySucceedsAfterTransientFailure(t *testing.T) {
	base := NewBaseProvider("test", 3, time.Millisecond, 0)
	attempts := 0
	err := base.Retry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("500 internal server error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

package openai

import (
	"strings"
	"testing"

	"github.com/intervoq/intervoq/pkg/provider/llm"
	"github.com/intervoq/intervoq/pkg/types"
)

// TestNew_Validation checks constructor argument validation.
func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Fatal("expected error for empty api key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o-mini", WithBaseURL("https://openrouter.ai/api/v1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestConvertMessage checks role conversion for the roles the engine uses.
func TestConvertMessage(t *testing.T) {
	sys, err := convertMessage(types.Message{Role: "system", Content: "You are an interviewer."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sys.OfSystem == nil {
		t.Fatal("expected OfSystem to be set")
	}

	usr, err := convertMessage(types.Message{Role: "user", Content: "My answer."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usr.OfUser == nil {
		t.Fatal("expected OfUser to be set")
	}

	asst, err := convertMessage(types.Message{Role: "assistant", Content: "Next question."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asst.OfAssistant == nil {
		t.Fatal("expected OfAssistant to be set")
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles are rejected.
func TestConvertMessage_UnknownRole(t *testing.T) {
	_, err := convertMessage(types.Message{Role: "tool", Content: "x"})
	if err == nil {
		t.Fatal("expected error for unknown role")
	}
	if !strings.Contains(err.Error(), "unknown message role") {
		t.Errorf("unexpected error text: %v", err)
	}
}

// TestBuildParams checks that system prompt, temperature, and max tokens
// are carried into SDK params.
func TestBuildParams(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params, err := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a technical interviewer.",
		Messages: []types.Message{
			{Role: "user", Content: "Evaluate this answer."},
		},
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(params.Messages) != 2 {
		t.Fatalf("expected 2 messages (system + user), got %d", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("expected first message to be the system prompt")
	}
	if !params.Temperature.Valid() || params.Temperature.Value != 0.3 {
		t.Errorf("temperature not carried: %+v", params.Temperature)
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 1000 {
		t.Errorf("max tokens not carried: %+v", params.MaxCompletionTokens)
	}
}

// TestCountTokens checks the approximation is non-zero and monotonic.
func TestCountTokens(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	short, _ := p.CountTokens([]types.Message{{Role: "user", Content: "hi"}})
	long, _ := p.CountTokens([]types.Message{{Role: "user", Content: strings.Repeat("word ", 200)}})
	if short <= 0 {
		t.Errorf("expected positive count, got %d", short)
	}
	if long <= short {
		t.Errorf("expected longer content to count more tokens: short=%d long=%d", short, long)
	}
}

// TestModelCapabilities checks a few known model families.
func TestModelCapabilities(t *testing.T) {
	tests := []struct {
		model  string
		window int
		maxOut int
		vision bool
	}{
		{"gpt-4o-mini", 128_000, 16_384, true},
		{"gpt-3.5-turbo", 16_385, 4_096, false},
		{"anthropic/claude-3-haiku", 200_000, 8_192, true},
		{"google/gemini-2.0-flash-lite-001", 1_048_576, 8_192, true},
		{"some-unknown-model", 128_000, 4_096, false},
	}
	for _, tt := range tests {
		caps := modelCapabilities(tt.model)
		if caps.ContextWindow != tt.window {
			t.Errorf("%s: context window = %d, want %d", tt.model, caps.ContextWindow, tt.window)
		}
		if caps.MaxOutputTokens != tt.maxOut {
			t.Errorf("%s: max output = %d, want %d", tt.model, caps.MaxOutputTokens, tt.maxOut)
		}
		if caps.SupportsVision != tt.vision {
			t.Errorf("%s: vision = %v, want %v", tt.model, caps.SupportsVision, tt.vision)
		}
		if !caps.SupportsStreaming {
			t.Errorf("%s: expected streaming support", tt.model)
		}
	}
}

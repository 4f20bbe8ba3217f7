package interview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/intervoq/intervoq/pkg/provider/llm"
)

func TestFrame_ToneBands(t *testing.T) {
	tests := []struct {
		name   string
		score  float64
		answer string
		want   string
	}{
		{"strong answer", 0.9, "Detailed answer.", "Acknowledge it neutrally"},
		{"partial answer", 0.6, "Half an answer.", "encourage more depth"},
		{"honest unsure", 0.2, "I'm not sure about that one.", "honesty"},
		{"weak answer", 0.2, "Something wrong.", "brief and kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			c := completerFunc(func(_ context.Context, task string, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if task != TaskFraming {
					t.Errorf("task = %q", task)
				}
				seen = req.Messages[0].Content
				return llm.CompletionResponse{Content: "Thanks for that."}, nil
			})
			f := NewFramer(c, nil)
			got := f.Frame(context.Background(), Evaluation{Score: tt.score}, tt.answer, Question{Skill: "go"})
			if got != "Thanks for that." {
				t.Errorf("framing = %q", got)
			}
			if !strings.Contains(seen, tt.want) {
				t.Errorf("prompt %q missing tone hint %q", seen, tt.want)
			}
		})
	}
}

func TestFrame_FallbackOnError(t *testing.T) {
	c := completerFunc(func(context.Context, string, llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{}, errors.New("unavailable")
	})
	f := NewFramer(c, nil)
	got := f.Frame(context.Background(), Evaluation{Score: 0.8}, "answer", Question{Skill: "kubernetes"})
	if got != "Let's talk about kubernetes." {
		t.Errorf("fallback = %q", got)
	}
}

func TestFrame_FallbackOnEmptyResponse(t *testing.T) {
	c := completerFunc(func(context.Context, string, llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: "  \"\" "}, nil
	})
	f := NewFramer(c, nil)
	got := f.Frame(context.Background(), Evaluation{Score: 0.8}, "answer", Question{})
	if got != "Alright, let's move on to the next question." {
		t.Errorf("fallback = %q", got)
	}
}

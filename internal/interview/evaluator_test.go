package interview

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/intervoq/intervoq/pkg/provider/llm"
)

// completerFunc adapts a function to the Completer interface.
type completerFunc func(ctx context.Context, task string, req llm.CompletionRequest) (llm.CompletionResponse, error)

func (f completerFunc) Complete(ctx context.Context, task string, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	return f(ctx, task, req)
}

func TestEvaluate_ParsesWrappedJSON(t *testing.T) {
	c := completerFunc(func(_ context.Context, task string, req llm.CompletionRequest) (llm.CompletionResponse, error) {
		if task != TaskAnswerEvaluation {
			t.Errorf("task = %q", task)
		}
		if !strings.Contains(req.SystemPrompt, "DO NOT include next_difficulty") {
			t.Error("system prompt missing difficulty exclusion")
		}
		return llm.CompletionResponse{Content: "Sure, here is my evaluation:\n```json\n" +
			`{"score": 0.82, "feedback": "Solid answer.", "strengths": ["clear"], "skill_assessment": {"go": 0.8}, "next_difficulty": 4}` +
			"\n```"}, nil
	})
	e := NewEvaluator(c, nil)
	eval, err := e.Evaluate(context.Background(), Question{Skill: "go", Type: QuestionConceptual, Difficulty: DifficultyIntermediate}, Answer{Text: "Goroutines are lightweight."})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.Score != 0.82 {
		t.Errorf("score = %v", eval.Score)
	}
	if eval.Feedback != "Solid answer." {
		t.Errorf("feedback = %q", eval.Feedback)
	}
	if eval.NextDifficulty != 0 {
		t.Errorf("model-provided next_difficulty must be dropped, got %d", eval.NextDifficulty)
	}
	if eval.SkillAssessment["go"] != 0.8 {
		t.Errorf("skill assessment = %v", eval.SkillAssessment)
	}
}

func TestEvaluate_FallbackOnGarbage(t *testing.T) {
	c := completerFunc(func(context.Context, string, llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: "I cannot evaluate this."}, nil
	})
	e := NewEvaluator(c, nil)
	eval, err := e.Evaluate(context.Background(), Question{}, Answer{Text: "whatever"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.Score != 0.5 {
		t.Errorf("fallback score = %v, want 0.5", eval.Score)
	}
	if eval.Feedback != fallbackFeedback {
		t.Errorf("fallback feedback = %q", eval.Feedback)
	}
}

func TestEvaluate_GatewayErrorPropagates(t *testing.T) {
	c := completerFunc(func(context.Context, string, llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{}, errors.New("service configuration error")
	})
	e := NewEvaluator(c, nil)
	if _, err := e.Evaluate(context.Background(), Question{}, Answer{Text: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestEvaluate_CodeIncludedInPrompt(t *testing.T) {
	var seen string
	c := completerFunc(func(_ context.Context, _ string, req llm.CompletionRequest) (llm.CompletionResponse, error) {
		seen = req.Messages[0].Content
		return llm.CompletionResponse{Content: `{"score": 0.9, "feedback": "ok"}`}, nil
	})
	e := NewEvaluator(c, nil)
	_, err := e.Evaluate(context.Background(), Question{Type: QuestionCoding}, Answer{
		Text:     "Here is my solution.",
		Code:     "def reverse(s): return s[::-1]",
		Language: "python",
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !strings.Contains(seen, "def reverse") || !strings.Contains(seen, "(python)") {
		t.Errorf("prompt missing code submission: %q", seen)
	}
}

func TestParseEvaluation_ClampsScore(t *testing.T) {
	eval, err := parseEvaluation(`{"score": 1.7, "feedback": "f"}`)
	if err != nil {
		t.Fatalf("parseEvaluation: %v", err)
	}
	if eval.Score != 1 {
		t.Errorf("score = %v, want clamped to 1", eval.Score)
	}
	eval, err = parseEvaluation(`{"score": -0.2, "feedback": "f"}`)
	if err != nil {
		t.Fatalf("parseEvaluation: %v", err)
	}
	if eval.Score != 0 {
		t.Errorf("score = %v, want clamped to 0", eval.Score)
	}
}

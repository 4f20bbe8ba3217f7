package interview

import (
	"context"
	"errors"
	"testing"

	"github.com/intervoq/intervoq/pkg/provider/llm"
)

func TestAnalyze(t *testing.T) {
	c := completerFunc(func(_ context.Context, task string, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		if task != TaskResumeAnalysis {
			t.Errorf("task = %q", task)
		}
		return llm.CompletionResponse{Content: "Here is the analysis:\n" +
			`{"skills":[{"name":"Go","years":4,"projects":3}],"projects":[{"name":"CDN","technologies":["Go"]}],"summary":"Experienced backend engineer."}`}, nil
	})
	a := NewResumeAnalyzer(c)
	data, err := a.Analyze(context.Background(), "Jordan Smith. Backend engineer, 4 years of Go...")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(data.Skills) != 1 || data.Skills[0].Name != "Go" || data.Skills[0].Years != 4 {
		t.Errorf("skills = %+v", data.Skills)
	}
	if len(data.Projects) != 1 || data.Projects[0].Name != "CDN" {
		t.Errorf("projects = %+v", data.Projects)
	}
}

func TestAnalyze_EmptyInput(t *testing.T) {
	a := NewResumeAnalyzer(completerFunc(func(context.Context, string, llm.CompletionRequest) (llm.CompletionResponse, error) {
		t.Fatal("completer must not be called for empty input")
		return llm.CompletionResponse{}, nil
	}))
	if _, err := a.Analyze(context.Background(), "   "); err == nil {
		t.Fatal("expected error")
	}
}

func TestAnalyze_NoSkillsFound(t *testing.T) {
	a := NewResumeAnalyzer(completerFunc(func(context.Context, string, llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: `{"skills":[],"summary":"..."}`}, nil
	}))
	if _, err := a.Analyze(context.Background(), "some text"); err == nil {
		t.Fatal("expected error when no skills extracted")
	}
}

func TestAnalyze_GatewayError(t *testing.T) {
	a := NewResumeAnalyzer(completerFunc(func(context.Context, string, llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{}, errors.New("service configuration error")
	}))
	if _, err := a.Analyze(context.Background(), "some text"); err == nil {
		t.Fatal("expected error")
	}
}

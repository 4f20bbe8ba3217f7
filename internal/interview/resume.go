package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/intervoq/intervoq/pkg/provider/llm"
	"github.com/intervoq/intervoq/pkg/types"
)

const resumeSystemPrompt = `You are an expert resume analyst extracting structured data from a resume.

Respond with ONLY a JSON object in this exact shape:
{
  "skills": [{"name": "Python", "years": 3.5, "projects": 2}],
  "projects": [{"name": "...", "description": "...", "technologies": ["..."], "duration": "..."}],
  "experience": [{"role": "...", "company": "...", "duration": "...", "skills_used": ["..."]}],
  "summary": "two sentences describing the candidate"
}

Estimate years of experience per skill from the work history when not stated explicitly. DO NOT include any text outside the JSON object.`

// maxResumeChars bounds how much resume text is sent to the model.
const maxResumeChars = 20000

// ResumeAnalyzer turns raw resume text into structured ResumeData.
type ResumeAnalyzer struct {
	completer Completer
}

// NewResumeAnalyzer builds an analyzer over the gateway.
func NewResumeAnalyzer(c Completer) *ResumeAnalyzer {
	return &ResumeAnalyzer{completer: c}
}

// Analyze extracts skills, projects, and experience from resume text.
func (a *ResumeAnalyzer) Analyze(ctx context.Context, text string) (ResumeData, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ResumeData{}, fmt.Errorf("interview: empty resume text")
	}
	if len(text) > maxResumeChars {
		text = text[:maxResumeChars]
	}

	resp, err := a.completer.Complete(ctx, TaskResumeAnalysis, llm.CompletionRequest{
		SystemPrompt: resumeSystemPrompt,
		Messages:     []types.Message{{Role: "user", Content: text}},
		Temperature:  0.2,
		MaxTokens:    2000,
	})
	if err != nil {
		return ResumeData{}, fmt.Errorf("interview: analyze resume: %w", err)
	}

	start := strings.Index(resp.Content, "{")
	end := strings.LastIndex(resp.Content, "}")
	if start == -1 || end <= start {
		return ResumeData{}, fmt.Errorf("interview: no JSON object in resume response")
	}
	var data ResumeData
	if err := json.Unmarshal([]byte(resp.Content[start:end+1]), &data); err != nil {
		return ResumeData{}, fmt.Errorf("interview: decode resume response: %w", err)
	}
	if len(data.Skills) == 0 {
		return ResumeData{}, fmt.Errorf("interview: resume analysis found no skills")
	}
	return data, nil
}

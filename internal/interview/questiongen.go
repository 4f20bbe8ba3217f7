package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/intervoq/intervoq/pkg/provider/llm"
	"github.com/intervoq/intervoq/pkg/types"
)

const questionSystemPrompt = `You are an expert technical interviewer. Generate exactly one spoken interview question.

Rules:
- The question must be answerable out loud in one to three minutes.
- Do not ask for code to be written.
- Do not repeat or closely mirror any question from the conversation history.
- Respond with ONLY the question text, no preamble and no quotation marks.`

const codingSystemPrompt = `You are an expert technical interviewer creating a coding exercise.

Respond with ONLY a JSON object in this exact shape:
{
  "tts_summary": "one or two spoken sentences introducing the exercise",
  "full_question": "the complete problem statement with an example, shown in the code editor"
}

DO NOT include any text outside the JSON object.`

// LLMGenerator produces dynamic questions through the LLM gateway. It
// implements Generator.
type LLMGenerator struct {
	completer Completer
}

// NewLLMGenerator builds a generator over the gateway.
func NewLLMGenerator(c Completer) *LLMGenerator {
	return &LLMGenerator{completer: c}
}

var _ Generator = (*LLMGenerator)(nil)

// GenerateQuestion asks the model for one spoken question tailored to the
// request. Follow-up requests produce a deep-dive on the prior exchange.
func (g *LLMGenerator) GenerateQuestion(ctx context.Context, req GenerateRequest) (Question, error) {
	resp, err := g.completer.Complete(ctx, TaskQuestionGeneration, llm.CompletionRequest{
		SystemPrompt: questionSystemPrompt,
		Messages:     []types.Message{{Role: "user", Content: buildQuestionPrompt(req)}},
		Temperature:  0.8,
		MaxTokens:    300,
	})
	if err != nil {
		return Question{}, fmt.Errorf("interview: generate question: %w", err)
	}

	text := cleanQuestionText(resp.Content)
	if text == "" {
		return Question{}, fmt.Errorf("interview: generator returned empty question")
	}
	return Question{
		ID:         uuid.NewString(),
		Text:       text,
		Skill:      req.Skill,
		Difficulty: req.Difficulty.Clamp(),
		Type:       QuestionConceptual,
		Context:    map[string]string{},
	}, nil
}

// GenerateCoding asks the model for a coding exercise with a spoken summary
// and a full statement.
func (g *LLMGenerator) GenerateCoding(ctx context.Context, skill string, difficulty Difficulty) (CodingProblem, error) {
	prompt := fmt.Sprintf("Create a %s coding exercise exercising %s. It should be solvable in 10-15 minutes.",
		strings.ToLower(difficulty.String()), skill)

	resp, err := g.completer.Complete(ctx, TaskQuestionGeneration, llm.CompletionRequest{
		SystemPrompt: codingSystemPrompt,
		Messages:     []types.Message{{Role: "user", Content: prompt}},
		Temperature:  0.8,
		MaxTokens:    700,
	})
	if err != nil {
		return CodingProblem{}, fmt.Errorf("interview: generate coding question: %w", err)
	}

	start := strings.Index(resp.Content, "{")
	end := strings.LastIndex(resp.Content, "}")
	if start == -1 || end <= start {
		return CodingProblem{}, fmt.Errorf("interview: no JSON object in coding response")
	}
	var out struct {
		TTSSummary   string `json:"tts_summary"`
		FullQuestion string `json:"full_question"`
	}
	if err := json.Unmarshal([]byte(resp.Content[start:end+1]), &out); err != nil {
		return CodingProblem{}, fmt.Errorf("interview: decode coding response: %w", err)
	}
	if out.TTSSummary == "" || out.FullQuestion == "" {
		return CodingProblem{}, fmt.Errorf("interview: incomplete coding response")
	}
	return CodingProblem{
		TTSSummary: out.TTSSummary,
		FullText:   out.FullQuestion,
		Difficulty: difficulty.Clamp(),
	}, nil
}

// buildQuestionPrompt renders the user message for question generation.
func buildQuestionPrompt(req GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s\nDifficulty: %s\n", req.Role, req.Difficulty)

	switch {
	case req.FollowUpTo != nil:
		fmt.Fprintf(&b, "\nThe candidate just answered this question well:\nQ: %s\nA: %s\n", req.FollowUpTo.Question, req.FollowUpTo.Answer)
		b.WriteString("\nAsk ONE deep-dive follow-up probing a specific technical detail of their answer.")
	case req.Project != nil:
		fmt.Fprintf(&b, "\nAsk about this project from the candidate's resume:\nName: %s\n", req.Project.Name)
		if req.Project.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", req.Project.Description)
		}
		if len(req.Project.Technologies) > 0 {
			fmt.Fprintf(&b, "Technologies: %s\n", strings.Join(req.Project.Technologies, ", "))
		}
		b.WriteString("\nAsk ONE open-ended question about their role, decisions, or challenges in this project.")
	default:
		fmt.Fprintf(&b, "\nAsk ONE question assessing the candidate's knowledge of %s.", req.Skill)
	}

	if len(req.RecentPairs) > 0 {
		b.WriteString("\n\nAlready covered in this interview:\n")
		for _, pair := range req.RecentPairs {
			fmt.Fprintf(&b, "- %s\n", pair.Question)
		}
	}
	return b.String()
}

// cleanQuestionText strips wrapping the model sometimes adds around the
// question.
func cleanQuestionText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Question:")
	s = strings.Trim(s, "\"` \n")
	return strings.TrimSpace(s)
}

package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/intervoq/intervoq/pkg/provider/llm"
	"github.com/intervoq/intervoq/pkg/types"
)

const evaluationSystemPrompt = `You are an expert technical interviewer evaluating a candidate's answer.

Score the answer from 0.0 to 1.0 considering correctness, depth, clarity, and practical understanding. Partial credit is expected for partially correct answers.

Respond with ONLY a JSON object in this exact shape:
{
  "score": 0.0,
  "feedback": "one or two sentences of evaluation",
  "strengths": ["..."],
  "weaknesses": ["..."],
  "suggestions": ["..."],
  "skill_assessment": {"skill name": 0.0}
}

DO NOT include next_difficulty in your response. DO NOT include any text outside the JSON object.`

// fallbackFeedback is used when the model response cannot be parsed.
const fallbackFeedback = "Unable to evaluate answer automatically."

// Evaluator scores candidate answers with the LLM gateway. Parsing is
// defensive: model chatter around the JSON object is tolerated, and a
// completely unusable response degrades to a neutral score rather than
// failing the turn.
type Evaluator struct {
	completer Completer
	logger    *slog.Logger
}

// NewEvaluator builds an evaluator over the gateway.
func NewEvaluator(c Completer, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{completer: c, logger: logger}
}

// Evaluate scores one answer against its question. The returned evaluation
// always has a score in [0,1]; NextDifficulty is left for the difficulty
// manager.
func (e *Evaluator) Evaluate(ctx context.Context, q Question, a Answer) (Evaluation, error) {
	answerText := a.Text
	if a.Code != "" {
		answerText = fmt.Sprintf("%s\n\nSubmitted code (%s):\n%s", a.Text, a.Language, a.Code)
	}

	prompt := fmt.Sprintf("Question (%s, difficulty %s, skill %s):\n%s\n\nCandidate's answer:\n%s",
		q.Type, q.Difficulty, q.Skill, q.Text, answerText)

	resp, err := e.completer.Complete(ctx, TaskAnswerEvaluation, llm.CompletionRequest{
		SystemPrompt: evaluationSystemPrompt,
		Messages:     []types.Message{{Role: "user", Content: prompt}},
		Temperature:  0.3,
		MaxTokens:    800,
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("interview: evaluate answer: %w", err)
	}

	eval, perr := parseEvaluation(resp.Content)
	if perr != nil {
		e.logger.Warn("unparseable evaluation response, using neutral fallback",
			"question_id", q.ID, "error", perr)
		eval = Evaluation{Score: 0.5, Feedback: fallbackFeedback}
	}
	return eval, nil
}

// parseEvaluation extracts the JSON object from a model response that may be
// wrapped in prose or code fences.
func parseEvaluation(content string) (Evaluation, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return Evaluation{}, fmt.Errorf("interview: no JSON object in evaluation response")
	}

	var eval Evaluation
	if err := json.Unmarshal([]byte(content[start:end+1]), &eval); err != nil {
		return Evaluation{}, fmt.Errorf("interview: decode evaluation: %w", err)
	}
	if eval.Score < 0 {
		eval.Score = 0
	}
	if eval.Score > 1 {
		eval.Score = 1
	}
	// The model is told not to send this; drop it if it does.
	eval.NextDifficulty = 0
	return eval, nil
}

package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/intervoq/intervoq/pkg/provider/llm"
	"github.com/intervoq/intervoq/pkg/types"
)

const framingSystemPrompt = `You are the voice of a friendly, professional technical interviewer. Write a single short spoken transition (one sentence, at most two) that acknowledges the candidate's previous answer and leads into the next question.

Never reveal scores or judgements. Never repeat the next question text; it is spoken separately. Respond with ONLY the transition sentence.`

// Framer produces the spoken transition between an answer and the next
// question. The tone tracks the evaluation score without ever exposing it.
type Framer struct {
	completer Completer
	logger    *slog.Logger
}

// NewFramer builds a framer over the gateway.
func NewFramer(c Completer, logger *slog.Logger) *Framer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Framer{completer: c, logger: logger}
}

// Frame returns the transition to speak before the next question. Failures
// degrade to a generic transition; framing must never block the interview.
func (f *Framer) Frame(ctx context.Context, eval Evaluation, answer string, next Question) string {
	resp, err := f.completer.Complete(ctx, TaskFraming, llm.CompletionRequest{
		SystemPrompt: framingSystemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: framingPrompt(eval, answer, next)},
		},
		Temperature: 0.7,
		MaxTokens:   100,
	})
	if err != nil {
		f.logger.Warn("framing generation failed, using fallback", "error", err)
		return fallbackFraming(next)
	}
	text := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Content), "\""))
	if text == "" {
		return fallbackFraming(next)
	}
	return text
}

// framingPrompt renders tone guidance from the score band:
//
//	>= 0.75                     confident answer, neutral acknowledgement
//	0.5 - 0.75                  partially correct, invite elaboration next time
//	<  0.5 and admitted unsure  thank the honesty
//	<  0.5 otherwise            brief, non-harsh acknowledgement
func framingPrompt(eval Evaluation, answer string, next Question) string {
	var tone string
	lower := strings.ToLower(answer)
	admittedUnsure := strings.Contains(lower, "don't know") ||
		strings.Contains(lower, "idk") ||
		strings.Contains(lower, "not sure")

	switch {
	case eval.Score >= 0.75:
		tone = "The answer was strong. Acknowledge it neutrally and move on."
	case eval.Score >= 0.5:
		tone = "The answer was partially correct. Gently encourage more depth without criticising."
	case admittedUnsure:
		tone = "The candidate admitted they were unsure. Thank them for their honesty and move on positively."
	default:
		tone = "The answer was weak. Keep the acknowledgement brief and kind, never harsh."
	}

	return fmt.Sprintf("%s\n\nCandidate's answer:\n%s\n\nThe next topic is %s.",
		tone, answer, next.Skill)
}

// fallbackFraming is spoken when the model is unavailable.
func fallbackFraming(next Question) string {
	if next.Skill == "" {
		return "Alright, let's move on to the next question."
	}
	return fmt.Sprintf("Let's talk about %s.", next.Skill)
}

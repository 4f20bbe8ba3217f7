package interview

import (
	"context"

	"github.com/intervoq/intervoq/pkg/provider/llm"
)

// LLM task names. The gateway routes each task to its configured model.
const (
	TaskQuestionGeneration = "question_generation"
	TaskAnswerEvaluation   = "answer_evaluation"
	TaskReportGeneration   = "report_generation"
	TaskFraming            = "framing"
	TaskResumeAnalysis     = "resume_analysis"
)

// Completer is the slice of the LLM gateway the interview engine needs: a
// single non-streaming completion routed by task name.
type Completer interface {
	Complete(ctx context.Context, task string, req llm.CompletionRequest) (llm.CompletionResponse, error)
}

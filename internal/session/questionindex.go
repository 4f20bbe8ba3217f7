package session

import (
	"context"
	"time"

	"github.com/intervoq/intervoq/internal/interview"
	"github.com/intervoq/intervoq/pkg/memory"
)

// QuestionIndex adapts the durable vector index to the engine's
// similarity-guard interface.
type QuestionIndex struct {
	index memory.QuestionIndex
}

var _ interview.QuestionIndex = (*QuestionIndex)(nil)

// NewQuestionIndex wraps a durable question index.
func NewQuestionIndex(index memory.QuestionIndex) *QuestionIndex {
	return &QuestionIndex{index: index}
}

// Add implements [interview.QuestionIndex].
func (qi *QuestionIndex) Add(ctx context.Context, interviewID string, q interview.Question, vector []float32) error {
	return qi.index.AddQuestion(ctx, interviewID, memory.QuestionVector{
		QuestionID: q.ID,
		Text:       q.Text,
		Skill:      q.Skill,
		Embedding:  vector,
		AskedAt:    time.Now().UTC(),
	})
}

// Nearest implements [interview.QuestionIndex].
func (qi *QuestionIndex) Nearest(ctx context.Context, interviewID string, vector []float32, limit int) ([]interview.IndexedQuestion, error) {
	matches, err := qi.index.NearestQuestions(ctx, interviewID, vector, limit)
	if err != nil {
		return nil, err
	}
	out := make([]interview.IndexedQuestion, len(matches))
	for i, m := range matches {
		out[i] = interview.IndexedQuestion{
			QuestionID: m.QuestionID,
			Text:       m.Text,
			Similarity: m.Similarity,
		}
	}
	return out, nil
}

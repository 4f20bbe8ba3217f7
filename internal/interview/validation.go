package interview

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/intervoq/intervoq/pkg/provider/embeddings"
)

// DefaultSimilarityThreshold is the cosine similarity above which a generated
// question counts as a repeat of an earlier one.
const DefaultSimilarityThreshold = 0.92

// IndexedQuestion is a previously asked question with its similarity to a
// probe vector.
type IndexedQuestion struct {
	QuestionID string
	Text       string
	Similarity float64
}

// QuestionIndex stores embedding vectors of asked questions per interview and
// serves nearest-neighbour lookups.
type QuestionIndex interface {
	// Add indexes one asked question.
	Add(ctx context.Context, interviewID string, q Question, vector []float32) error

	// Nearest returns up to limit previously asked questions ordered by
	// descending cosine similarity to the probe vector.
	Nearest(ctx context.Context, interviewID string, vector []float32, limit int) ([]IndexedQuestion, error)
}

// SimilarityGuard rejects generated questions that are near-duplicates of
// questions already asked in the same interview. It implements Validator.
type SimilarityGuard struct {
	embedder  embeddings.Provider
	index     QuestionIndex
	threshold float64
	logger    *slog.Logger
}

// GuardOption configures a SimilarityGuard.
type GuardOption func(*SimilarityGuard)

// WithSimilarityThreshold overrides the rejection threshold.
func WithSimilarityThreshold(t float64) GuardOption {
	return func(g *SimilarityGuard) { g.threshold = t }
}

// WithGuardLogger overrides the default logger.
func WithGuardLogger(l *slog.Logger) GuardOption {
	return func(g *SimilarityGuard) { g.logger = l }
}

// NewSimilarityGuard builds a guard over an embedder and index.
func NewSimilarityGuard(e embeddings.Provider, idx QuestionIndex, opts ...GuardOption) *SimilarityGuard {
	g := &SimilarityGuard{
		embedder:  e,
		index:     idx,
		threshold: DefaultSimilarityThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var _ Validator = (*SimilarityGuard)(nil)

// Validate embeds the question, rejects it when an earlier question is too
// similar, and indexes it on acceptance. Embedding or index failures accept
// the question: the guard degrades open so a vector outage cannot stall an
// interview.
func (g *SimilarityGuard) Validate(ctx context.Context, interviewID string, q Question) error {
	vec, err := g.embedder.Embed(ctx, q.Text)
	if err != nil {
		g.logger.Warn("question embedding failed, accepting without similarity check",
			"interview_id", interviewID, "error", err)
		return nil
	}

	nearest, err := g.index.Nearest(ctx, interviewID, vec, 1)
	if err != nil {
		g.logger.Warn("similarity lookup failed, accepting without check",
			"interview_id", interviewID, "error", err)
		return nil
	}
	if len(nearest) > 0 && nearest[0].Similarity >= g.threshold {
		return fmt.Errorf("interview: question too similar to %q (%.3f >= %.3f)",
			nearest[0].Text, nearest[0].Similarity, g.threshold)
	}

	if err := g.index.Add(ctx, interviewID, q, vec); err != nil {
		g.logger.Warn("question indexing failed", "interview_id", interviewID, "error", err)
	}
	return nil
}

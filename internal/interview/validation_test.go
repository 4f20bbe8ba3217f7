package interview

import (
	"context"
	"errors"
	"testing"

	embmock "github.com/intervoq/intervoq/pkg/provider/embeddings/mock"
)

// memoryIndex is an in-memory QuestionIndex for guard tests.
type memoryIndex struct {
	nearest    []IndexedQuestion
	nearestErr error
	addErr     error
	added      []Question
}

func (m *memoryIndex) Add(_ context.Context, _ string, q Question, _ []float32) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added = append(m.added, q)
	return nil
}

func (m *memoryIndex) Nearest(context.Context, string, []float32, int) ([]IndexedQuestion, error) {
	return m.nearest, m.nearestErr
}

func TestSimilarityGuard_RejectsNearDuplicate(t *testing.T) {
	idx := &memoryIndex{nearest: []IndexedQuestion{{Text: "What is a goroutine?", Similarity: 0.95}}}
	g := NewSimilarityGuard(&embmock.Provider{}, idx)
	err := g.Validate(context.Background(), "iv-1", Question{Text: "Explain what a goroutine is."})
	if err == nil {
		t.Fatal("expected rejection")
	}
	if len(idx.added) != 0 {
		t.Error("rejected question must not be indexed")
	}
}

func TestSimilarityGuard_AcceptsAndIndexes(t *testing.T) {
	idx := &memoryIndex{nearest: []IndexedQuestion{{Text: "unrelated", Similarity: 0.4}}}
	g := NewSimilarityGuard(&embmock.Provider{}, idx)
	if err := g.Validate(context.Background(), "iv-1", Question{Text: "New question"}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(idx.added) != 1 {
		t.Fatalf("added = %d, want 1", len(idx.added))
	}
}

func TestSimilarityGuard_ThresholdOverride(t *testing.T) {
	idx := &memoryIndex{nearest: []IndexedQuestion{{Text: "close", Similarity: 0.8}}}
	g := NewSimilarityGuard(&embmock.Provider{}, idx, WithSimilarityThreshold(0.75))
	if err := g.Validate(context.Background(), "iv-1", Question{Text: "q"}); err == nil {
		t.Fatal("expected rejection at lowered threshold")
	}
}

func TestSimilarityGuard_DegradesOpenOnEmbedFailure(t *testing.T) {
	idx := &memoryIndex{}
	g := NewSimilarityGuard(&embmock.Provider{EmbedErr: errors.New("embedding service down")}, idx)
	if err := g.Validate(context.Background(), "iv-1", Question{Text: "q"}); err != nil {
		t.Fatalf("guard must accept on embed failure, got %v", err)
	}
}

func TestSimilarityGuard_DegradesOpenOnIndexFailure(t *testing.T) {
	idx := &memoryIndex{nearestErr: errors.New("index unavailable")}
	g := NewSimilarityGuard(&embmock.Provider{}, idx)
	if err := g.Validate(context.Background(), "iv-1", Question{Text: "q"}); err != nil {
		t.Fatalf("guard must accept on index failure, got %v", err)
	}
}

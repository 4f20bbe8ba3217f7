package session

import (
	"fmt"
	"testing"

	"github.com/intervoq/intervoq/internal/interview"
)

func TestWindowEvictsOldest(t *testing.T) {
	var w Window
	for i := 1; i <= WindowSize+2; i++ {
		w.Push(interview.QAPair{Question: fmt.Sprintf("q%d", i), Answer: "a"})
	}
	if w.Len() != WindowSize {
		t.Fatalf("len = %d, want %d", w.Len(), WindowSize)
	}
	pairs := w.Pairs()
	if pairs[0].Question != "q3" {
		t.Errorf("oldest = %q, want q3", pairs[0].Question)
	}
	if pairs[len(pairs)-1].Question != fmt.Sprintf("q%d", WindowSize+2) {
		t.Errorf("newest = %q", pairs[len(pairs)-1].Question)
	}
}

func TestWindowPairsIsACopy(t *testing.T) {
	var w Window
	w.Push(interview.QAPair{Question: "q1", Answer: "a1"})
	pairs := w.Pairs()
	pairs[0].Question = "mutated"
	if w.Recent[0].Question != "q1" {
		t.Error("Pairs shares backing array with window")
	}
}

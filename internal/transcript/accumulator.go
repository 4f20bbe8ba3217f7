package transcript

import (
	"strings"
	"sync"
)

// Accumulator merges streaming transcript events into one answer text.
//
// Interim events are tentative and only extend the preview; final events are
// authoritative. A final whose text contains the current accumulated text
// replaces it (the recogniser re-emitted the full utterance), otherwise the
// final is appended as a new segment. Safe for concurrent use.
type Accumulator struct {
	mu        sync.Mutex
	committed string
	interim   string
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// AddInterim records a tentative transcript segment. Trailing ellipses the
// recogniser emits on unfinished speech are stripped.
func (a *Accumulator) AddInterim(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interim = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "..."))
}

// AddFinal commits a finalised transcript segment and clears any interim.
func (a *Accumulator) AddFinal(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.interim = ""
	a.committed = mergeFinal(a.committed, strings.TrimSpace(text))
}

// Text returns the committed text. Interim segments are excluded so the
// answer sent for evaluation never contains tentative words.
func (a *Accumulator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.committed
}

// Preview returns committed text plus the current interim segment, for
// live display.
func (a *Accumulator) Preview() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.interim == "" {
		return a.committed
	}
	if a.committed == "" {
		return a.interim
	}
	return a.committed + " " + a.interim
}

// Reset clears all accumulated text, ready for the next answer.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.committed = ""
	a.interim = ""
}

// mergeFinal folds one finalised segment into the committed text.
func mergeFinal(committed, segment string) string {
	if segment == "" {
		return committed
	}
	if committed == "" {
		return segment
	}
	// Recognisers sometimes re-emit the whole utterance so far as one
	// final; keep the longer version instead of duplicating.
	if strings.Contains(segment, committed) {
		return segment
	}
	if strings.Contains(committed, segment) {
		return committed
	}
	return committed + " " + segment
}

package session

import "github.com/intervoq/intervoq/internal/interview"

// WindowSize is how many prior exchanges the question generator sees. Older
// exchanges fall out; the full history lives in [State.Exchanges].
const WindowSize = 5

// Window is the sliding conversation context handed to the question
// generator. Not safe for concurrent use on its own; [State] guards it.
type Window struct {
	Recent []interview.QAPair `json:"recent,omitempty"`
}

// Push appends a pair, evicting the oldest once the window is full.
func (w *Window) Push(pair interview.QAPair) {
	w.Recent = append(w.Recent, pair)
	if len(w.Recent) > WindowSize {
		w.Recent = w.Recent[len(w.Recent)-WindowSize:]
	}
}

// Pairs returns a copy of the window contents, oldest first.
func (w *Window) Pairs() []interview.QAPair {
	out := make([]interview.QAPair, len(w.Recent))
	copy(out, w.Recent)
	return out
}

// Len reports how many pairs the window currently holds.
func (w *Window) Len() int { return len(w.Recent) }

package interview

// difficultyWindow is the number of recent scores the moving average covers.
const difficultyWindow = 3

// NextDifficulty computes the difficulty for the upcoming question from the
// current difficulty and the candidate's score history. The decision uses a
// moving average over the last few scores so one bad answer does not tank
// the interview:
//
//	avg >= 0.8  step up
//	avg >= 0.6  hold
//	avg <  0.6  step down
//
// The result is clamped to the valid range. An empty history holds.
func NextDifficulty(current Difficulty, scores []float64) Difficulty {
	if len(scores) == 0 {
		return current.Clamp()
	}

	window := scores
	if len(window) > difficultyWindow {
		window = window[len(window)-difficultyWindow:]
	}
	var sum float64
	for _, s := range window {
		sum += s
	}
	avg := sum / float64(len(window))

	switch {
	case avg >= 0.8:
		return (current + 1).Clamp()
	case avg >= 0.6:
		return current.Clamp()
	default:
		return (current - 1).Clamp()
	}
}

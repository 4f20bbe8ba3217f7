package interview

import "testing"

func TestNextDifficulty(t *testing.T) {
	tests := []struct {
		name    string
		current Difficulty
		scores  []float64
		want    Difficulty
	}{
		{"empty history holds", DifficultyIntermediate, nil, DifficultyIntermediate},
		{"high average steps up", DifficultyIntermediate, []float64{0.9, 0.85, 0.8}, DifficultyAdvanced},
		{"middle average holds", DifficultyIntermediate, []float64{0.7, 0.6, 0.65}, DifficultyIntermediate},
		{"low average steps down", DifficultyAdvanced, []float64{0.3, 0.4, 0.5}, DifficultyIntermediate},
		{"clamped at expert", DifficultyExpert, []float64{1, 1, 1}, DifficultyExpert},
		{"clamped at basic", DifficultyBasic, []float64{0, 0, 0}, DifficultyBasic},
		{"only last three count", DifficultyIntermediate, []float64{0, 0, 0.9, 0.9, 0.9}, DifficultyAdvanced},
		{"single score", DifficultyIntermediate, []float64{0.2}, DifficultyBasic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextDifficulty(tt.current, tt.scores); got != tt.want {
				t.Errorf("NextDifficulty(%d, %v) = %d, want %d", tt.current, tt.scores, got, tt.want)
			}
		})
	}
}

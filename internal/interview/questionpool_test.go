package interview

import "testing"

func TestPool_PickExactDifficulty(t *testing.T) {
	p := NewPoolWithSeed(1)
	q, ok := p.Pick("Python", DifficultyBasic, nil)
	if !ok {
		t.Fatal("expected a question")
	}
	if q.Difficulty != DifficultyBasic {
		t.Errorf("difficulty = %d, want %d", q.Difficulty, DifficultyBasic)
	}
	if q.Skill != "Python" {
		t.Errorf("skill = %q", q.Skill)
	}
	if q.Context["source"] != "pool" {
		t.Errorf("source = %q, want pool", q.Context["source"])
	}
	if q.ID == "" {
		t.Error("missing question id")
	}
}

func TestPool_AdjacentDifficultyFallback(t *testing.T) {
	p := NewPoolWithSeed(1)
	asked := map[string]bool{}
	// Exhaust the basic band for sql.
	for _, e := range questionPool["sql"] {
		if e.difficulty == DifficultyBasic {
			asked[e.text] = true
		}
	}
	q, ok := p.Pick("sql", DifficultyBasic, asked)
	if !ok {
		t.Fatal("expected fallback question")
	}
	if q.Difficulty == DifficultyBasic {
		t.Errorf("expected adjacent difficulty, got basic: %q", q.Text)
	}
}

func TestPool_ExcludesAsked(t *testing.T) {
	p := NewPoolWithSeed(1)
	asked := map[string]bool{}
	for i := 0; i < len(questionPool["go"]); i++ {
		q, ok := p.Pick("go", DifficultyBasic, asked)
		if !ok {
			t.Fatalf("ran out after %d picks", i)
		}
		if asked[q.Text] {
			t.Fatalf("repeated question %q", q.Text)
		}
		asked[q.Text] = true
	}
	if _, ok := p.Pick("go", DifficultyBasic, asked); ok {
		t.Error("expected exhaustion after all questions asked")
	}
}

func TestPool_UnknownSkill(t *testing.T) {
	p := NewPoolWithSeed(1)
	if _, ok := p.Pick("underwater basket weaving", DifficultyBasic, nil); ok {
		t.Error("expected no question for unknown skill")
	}
	if p.HasSkill("underwater basket weaving") {
		t.Error("HasSkill should be false")
	}
	if !p.HasSkill("Kubernetes") {
		t.Error("HasSkill should be true for kubernetes")
	}
}

func TestPool_PickCoding(t *testing.T) {
	p := NewPoolWithSeed(1)
	c, ok := p.PickCoding(DifficultyIntermediate, nil)
	if !ok {
		t.Fatal("expected a coding problem")
	}
	if c.Difficulty != DifficultyIntermediate {
		t.Errorf("difficulty = %d", c.Difficulty)
	}
	if c.TTSSummary == "" || c.FullText == "" {
		t.Error("coding problem missing summary or full text")
	}
}

func TestPool_PickCodingFallback(t *testing.T) {
	p := NewPoolWithSeed(1)
	asked := map[string]bool{}
	for _, c := range classicCodingProblems[DifficultyExpert] {
		asked[c.FullText] = true
	}
	c, ok := p.PickCoding(DifficultyExpert, asked)
	if !ok {
		t.Fatal("expected adjacent-band coding problem")
	}
	if c.Difficulty == DifficultyExpert {
		t.Errorf("expected non-expert fallback, got %q", c.TTSSummary)
	}
}

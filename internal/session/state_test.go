package session

import (
	"errors"
	"testing"
	"time"

	"github.com/intervoq/intervoq/internal/interview"
)

func newTestState() *State {
	return New("iv-1", "user-1", interview.RoleBackendDeveloper, interview.ResumeData{
		Skills: []interview.Skill{
			{Name: "Python", Years: 4},
			{Name: "Docker", Years: 2},
		},
	})
}

func TestLifecycleTransitions(t *testing.T) {
	st := newTestState()
	if st.Status != StatusCreated {
		t.Fatalf("status = %q", st.Status)
	}

	if err := st.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st.Status != StatusInProgress || st.StartedAt.IsZero() {
		t.Errorf("after Start: status=%q started=%v", st.Status, st.StartedAt)
	}

	if err := st.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double Start err = %v, want ErrInvalidTransition", err)
	}

	if err := st.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if st.EndedAt.IsZero() {
		t.Error("Complete did not stamp EndedAt")
	}
	if err := st.Abandon(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Abandon after Complete err = %v, want ErrInvalidTransition", err)
	}
}

func TestAbandonFromCreated(t *testing.T) {
	st := newTestState()
	if err := st.Abandon(); err != nil {
		t.Fatalf("Abandon from created: %v", err)
	}
	if st.Status != StatusAbandoned {
		t.Errorf("status = %q", st.Status)
	}
}

func TestAttachQuestion_PhaseBookkeeping(t *testing.T) {
	st := newTestState()

	st.AttachQuestion(interview.Question{
		ID: "q1", Text: "intro", Skill: "introduction",
		Context: map[string]string{"phase": "introduction"},
	})
	if st.TotalQuestions != 1 || st.PhaseQuestionCount != 1 {
		t.Errorf("counts = %d/%d", st.TotalQuestions, st.PhaseQuestionCount)
	}
	if !st.AskedTexts["intro"] {
		t.Error("asked text not recorded")
	}

	// Phase change resets the per-phase counters.
	st.AttachQuestion(interview.Question{
		ID: "q2", Text: "project q", Skill: "Python",
		Context: map[string]string{"phase": "projects"},
	})
	if st.Phase != interview.PhaseProjects {
		t.Errorf("phase = %q", st.Phase)
	}
	if st.PhaseQuestionCount != 1 {
		t.Errorf("phase count = %d, want 1 after phase change", st.PhaseQuestionCount)
	}
	if st.TotalQuestions != 2 {
		t.Errorf("total = %d", st.TotalQuestions)
	}

	st.AttachQuestion(interview.Question{
		ID: "q3", Text: "write code", Skill: "Python",
		Context: map[string]string{"phase": "projects", "source": "coding"},
	})
	if st.CodingInjected != 1 {
		t.Errorf("coding injected = %d", st.CodingInjected)
	}
}

func TestRecordAnswer(t *testing.T) {
	st := newTestState()
	if err := st.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := st.RecordAnswer(interview.Answer{Text: "hi"}, interview.Evaluation{Score: 0.5}); !errors.Is(err, ErrNoCurrentQuestion) {
		t.Fatalf("err = %v, want ErrNoCurrentQuestion", err)
	}

	q := interview.Question{ID: "q1", Text: "What is a decorator?", Skill: "Python",
		Context: map[string]string{"phase": "introduction"}}
	st.AttachQuestion(q)

	err := st.RecordAnswer(
		interview.Answer{Text: "A decorator wraps a function."},
		interview.Evaluation{Score: 0.9},
	)
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	if len(st.Exchanges) != 1 {
		t.Fatalf("exchanges = %d", len(st.Exchanges))
	}
	if st.CurrentQuestion != nil {
		t.Error("current question not cleared")
	}
	if st.LastQuestion == nil || st.LastQuestion.ID != "q1" {
		t.Errorf("last question = %+v", st.LastQuestion)
	}
	if st.LastScore != 0.9 {
		t.Errorf("last score = %f", st.LastScore)
	}
	if st.Window.Len() != 1 {
		t.Errorf("window len = %d", st.Window.Len())
	}
}

func TestDifficultyAdaptsFromScores(t *testing.T) {
	st := newTestState()
	_ = st.Start()

	// Three strong answers raise the difficulty from the starting level.
	for i := 0; i < 3; i++ {
		st.AttachQuestion(interview.Question{ID: "q", Text: "t", Skill: "Python",
			Context: map[string]string{"phase": "introduction"}})
		if err := st.RecordAnswer(interview.Answer{Text: "great answer"},
			interview.Evaluation{Score: 0.95}); err != nil {
			t.Fatalf("RecordAnswer: %v", err)
		}
	}
	if st.Difficulty <= interview.DifficultyIntermediate {
		t.Errorf("difficulty = %d, want raised above intermediate", st.Difficulty)
	}
}

func TestDifficultyTracksEachSkillSeparately(t *testing.T) {
	st := newTestState()
	_ = st.Start()

	answer := func(skill string, score float64) {
		t.Helper()
		st.AttachQuestion(interview.Question{ID: "q", Text: "t", Skill: skill,
			Context: map[string]string{"phase": "role_skills"}})
		if err := st.RecordAnswer(interview.Answer{Text: "answer"},
			interview.Evaluation{Score: score}); err != nil {
			t.Fatalf("RecordAnswer: %v", err)
		}
	}

	// A weak Docker answer in the middle of a strong Python run. The final
	// Python step reads Python's own history, so the Docker dip must not
	// drag the moving average down.
	answer("Python", 0.95)
	answer("Python", 0.95)
	answer("Docker", 0.3)
	answer("Python", 0.95)
	if st.Difficulty != interview.DifficultyExpert {
		t.Errorf("difficulty = %d, want expert from the strong skill's own history", st.Difficulty)
	}

	if got := st.AnsweredSkills["Python"]; len(got) != 3 || got[0] != 0.95 {
		t.Errorf("python history = %v", got)
	}
	if got := st.AnsweredSkills["Docker"]; len(got) != 1 || got[0] != 0.3 {
		t.Errorf("docker history = %v", got)
	}
}

func TestAttachQuestion_CodingAndProjectBookkeeping(t *testing.T) {
	st := newTestState()
	_ = st.Start()

	st.AttachQuestion(interview.Question{ID: "q1", Text: "about billing", Skill: "Go",
		Context: map[string]string{"phase": "projects", "project": "Billing API"}})
	if !st.AnsweredProjects["Billing API"] {
		t.Error("project not marked as discussed")
	}

	st.AttachQuestion(interview.Question{ID: "q2", Text: "write code", Skill: "problem-solving",
		Type:    interview.QuestionCoding,
		Context: map[string]string{"phase": "standout_skill", "source": "coding"}})
	if st.CodingAsked != 1 {
		t.Errorf("coding asked = %d, want 1", st.CodingAsked)
	}
	if err := st.RecordAnswer(interview.Answer{Code: "func f() {}"},
		interview.Evaluation{Score: 0.45}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if len(st.CodingScores) != 1 || st.CodingScores[0] != 0.45 {
		t.Errorf("coding scores = %v", st.CodingScores)
	}

	p := st.Progress()
	if p.CodingAsked != 1 || len(p.CodingScores) != 1 {
		t.Errorf("progress coding = %d/%v", p.CodingAsked, p.CodingScores)
	}
	if !p.AnsweredProjects["Billing API"] {
		t.Error("progress lost the discussed project")
	}
}

func TestSetFlowReportsChanges(t *testing.T) {
	st := newTestState()
	if !st.SetFlow(interview.FlowAISpeaking) {
		t.Error("first flow change not reported")
	}
	if st.SetFlow(interview.FlowAISpeaking) {
		t.Error("redundant flow change reported")
	}
	if st.FlowState() != interview.FlowAISpeaking {
		t.Errorf("flow = %q", st.FlowState())
	}
}

func TestSnapshotRestore(t *testing.T) {
	st := newTestState()
	st.ExperienceLevel = interview.ExperienceMid
	_ = st.Start()
	st.SetFlow(interview.FlowUserWaiting)
	st.AttachQuestion(interview.Question{ID: "q1", Text: "intro", Skill: "introduction",
		Context: map[string]string{"phase": "introduction"}})
	_ = st.RecordAnswer(interview.Answer{Text: "hello"}, interview.Evaluation{Score: 0.7})

	data, err := st.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	got, err := Restore(data)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got.ID != "iv-1" || got.Status != StatusInProgress {
		t.Errorf("restored %q/%q", got.ID, got.Status)
	}
	if len(got.Exchanges) != 1 {
		t.Errorf("exchanges = %d", len(got.Exchanges))
	}
	if got.Window.Len() != 1 {
		t.Errorf("window len = %d", got.Window.Len())
	}
	if !got.AskedTexts["intro"] {
		t.Error("asked texts lost in round trip")
	}
	if got.ExperienceLevel != interview.ExperienceMid {
		t.Errorf("experience level = %q", got.ExperienceLevel)
	}
	if got.FlowState() != interview.FlowUserWaiting {
		t.Errorf("flow = %q", got.FlowState())
	}
	if got.AnsweredSkills["introduction"] == nil {
		t.Error("per-skill history lost in round trip")
	}

	p := got.Progress()
	if p.TotalQuestions != 1 || p.LastScore != 0.7 {
		t.Errorf("progress = %+v", p)
	}
	if p.ExperienceLevel != interview.ExperienceMid {
		t.Errorf("progress experience level = %q", p.ExperienceLevel)
	}
}

func TestRemaining(t *testing.T) {
	st := newTestState()
	if got := st.Remaining(time.Now()); got != DefaultTimeLimit {
		t.Errorf("remaining before start = %v", got)
	}
	_ = st.Start()
	if got := st.Remaining(st.StartedAt.Add(50 * time.Minute)); got != 10*time.Minute {
		t.Errorf("remaining = %v, want 10m", got)
	}
}

func TestProgressIsACopy(t *testing.T) {
	st := newTestState()
	st.AttachQuestion(interview.Question{ID: "q1", Text: "intro", Skill: "introduction",
		Context: map[string]string{"phase": "introduction"}})

	p := st.Progress()
	p.AskedTexts["mutated"] = true
	p.Scores = append(p.Scores, 1.0)

	if st.AskedTexts["mutated"] {
		t.Error("progress shares asked-texts map with state")
	}
	if len(st.Scores) != 0 {
		t.Error("progress shares scores slice with state")
	}
}

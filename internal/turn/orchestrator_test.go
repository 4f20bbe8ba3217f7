package turn

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/intervoq/intervoq/internal/interview"
	"github.com/intervoq/intervoq/internal/session"
	memorymock "github.com/intervoq/intervoq/pkg/memory/mock"
)

type evalFunc func(ctx context.Context, q interview.Question, a interview.Answer) (interview.Evaluation, error)

func (f evalFunc) Evaluate(ctx context.Context, q interview.Question, a interview.Answer) (interview.Evaluation, error) {
	return f(ctx, q, a)
}

type selectFunc func(ctx context.Context, id string, p interview.Progress) (interview.Question, bool, error)

func (f selectFunc) SelectNext(ctx context.Context, id string, p interview.Progress) (interview.Question, bool, error) {
	return f(ctx, id, p)
}

type frameFunc func(ctx context.Context, eval interview.Evaluation, answer string, next interview.Question) string

func (f frameFunc) Frame(ctx context.Context, eval interview.Evaluation, answer string, next interview.Question) string {
	return f(ctx, eval, answer, next)
}

type reportFunc func(ctx context.Context, in interview.ReportInput) (interview.Report, error)

func (f reportFunc) Generate(ctx context.Context, in interview.ReportInput) (interview.Report, error) {
	return f(ctx, in)
}

// recordingStore counts Save calls.
type recordingStore struct {
	mu    sync.Mutex
	saves int
	err   error
}

func (r *recordingStore) Save(context.Context, *session.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	return r.err
}

func (r *recordingStore) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func runningState(t *testing.T) *session.State {
	t.Helper()
	st := session.New("iv-1", "user-1", interview.RoleBackendDeveloper, interview.ResumeData{
		Skills: []interview.Skill{{Name: "Python", Years: 4}},
	})
	if err := st.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	st.AttachQuestion(interview.Question{
		ID: "q1", Text: "What is a goroutine?", Skill: "go",
		Context: map[string]string{"phase": "introduction", "question_type": "high_level"},
	})
	return st
}

func scoreOf(n int) *int { return &n }

func defaultConfig(store *recordingStore, reports *memorymock.Store) Config {
	return Config{
		Evaluator: evalFunc(func(_ context.Context, _ interview.Question, _ interview.Answer) (interview.Evaluation, error) {
			return interview.Evaluation{Score: 0.8, Feedback: "good"}, nil
		}),
		Selector: selectFunc(func(_ context.Context, _ string, _ interview.Progress) (interview.Question, bool, error) {
			return interview.Question{ID: "q2", Text: "Explain channels.", Skill: "go",
				Context: map[string]string{"phase": "introduction"}}, false, nil
		}),
		Framer: frameFunc(func(_ context.Context, _ interview.Evaluation, _ string, next interview.Question) string {
			return "Nice. Next up: " + next.Skill
		}),
		Reporter: reportFunc(func(_ context.Context, in interview.ReportInput) (interview.Report, error) {
			return interview.Report{ReportID: "rep-1", InterviewID: in.InterviewID, UserID: in.UserID, OverallScore: scoreOf(80)}, nil
		}),
		Store:   store,
		Reports: reports,
	}
}

func TestSubmit_AdvancesToNextQuestion(t *testing.T) {
	store := &recordingStore{}
	o := New(defaultConfig(store, &memorymock.Store{}))
	st := runningState(t)

	res, err := o.Submit(context.Background(), st, interview.Answer{
		Text: "A goroutine is a lightweight thread managed by the runtime.",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Reprompt || res.Completed {
		t.Fatalf("unexpected result flags: %+v", res)
	}
	if res.Evaluation.Score != 0.8 {
		t.Errorf("score = %f", res.Evaluation.Score)
	}
	if res.NextQuestion == nil || res.NextQuestion.ID != "q2" {
		t.Fatalf("next = %+v", res.NextQuestion)
	}
	if !strings.Contains(res.Framing, "Next up") {
		t.Errorf("framing = %q", res.Framing)
	}
	if st.CurrentQuestion == nil || st.CurrentQuestion.ID != "q2" {
		t.Errorf("session did not attach next question")
	}
	if len(st.Exchanges) != 1 {
		t.Errorf("exchanges = %d", len(st.Exchanges))
	}
	if store.saveCount() != 1 {
		t.Errorf("saves = %d", store.saveCount())
	}
}

func TestSubmit_ShortAnswerReprompts(t *testing.T) {
	store := &recordingStore{}
	evaluated := false
	cfg := defaultConfig(store, &memorymock.Store{})
	cfg.Evaluator = evalFunc(func(context.Context, interview.Question, interview.Answer) (interview.Evaluation, error) {
		evaluated = true
		return interview.Evaluation{}, nil
	})
	o := New(cfg)
	st := runningState(t)

	res, err := o.Submit(context.Background(), st, interview.Answer{Text: "idk"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Reprompt {
		t.Fatal("expected reprompt for short answer")
	}
	if evaluated {
		t.Error("short answer should not be evaluated")
	}
	if st.CurrentQuestion == nil || st.CurrentQuestion.ID != "q1" {
		t.Error("current question should stay open on reprompt")
	}
}

func TestSubmit_CodeSubmissionGetsPlaceholderText(t *testing.T) {
	store := &recordingStore{}
	var seen interview.Answer
	cfg := defaultConfig(store, &memorymock.Store{})
	cfg.Evaluator = evalFunc(func(_ context.Context, _ interview.Question, a interview.Answer) (interview.Evaluation, error) {
		seen = a
		return interview.Evaluation{Score: 0.7}, nil
	})
	o := New(cfg)
	st := runningState(t)

	if _, err := o.Submit(context.Background(), st, interview.Answer{
		Code: "def solve(): pass", Language: "python",
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if seen.Text != "[Code submission in python]" {
		t.Errorf("answer text = %q", seen.Text)
	}
}

func TestSubmit_EvaluationFailureScoresNeutrally(t *testing.T) {
	store := &recordingStore{}
	cfg := defaultConfig(store, &memorymock.Store{})
	cfg.Evaluator = evalFunc(func(context.Context, interview.Question, interview.Answer) (interview.Evaluation, error) {
		return interview.Evaluation{}, errors.New("gateway down")
	})
	o := New(cfg)
	st := runningState(t)

	res, err := o.Submit(context.Background(), st, interview.Answer{
		Text: "A goroutine is a lightweight thread managed by the runtime.",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Evaluation.Score != 0.5 {
		t.Errorf("fallback score = %f", res.Evaluation.Score)
	}
	if res.NextQuestion == nil {
		t.Error("turn should continue after evaluation failure")
	}
}

func TestSubmit_SelectionFailureFailsTurn(t *testing.T) {
	store := &recordingStore{}
	cfg := defaultConfig(store, &memorymock.Store{})
	cfg.Selector = selectFunc(func(context.Context, string, interview.Progress) (interview.Question, bool, error) {
		return interview.Question{}, false, errors.New("no questions")
	})
	o := New(cfg)
	st := runningState(t)

	if _, err := o.Submit(context.Background(), st, interview.Answer{
		Text: "A goroutine is a lightweight thread managed by the runtime.",
	}); err == nil {
		t.Fatal("expected error when selection fails")
	}
}

func TestSubmit_CompletesWhenSelectorIsDone(t *testing.T) {
	store := &recordingStore{}
	reports := &memorymock.Store{}
	generated := make(chan struct{})
	cfg := defaultConfig(store, reports)
	cfg.Selector = selectFunc(func(context.Context, string, interview.Progress) (interview.Question, bool, error) {
		return interview.Question{}, true, nil
	})
	cfg.Reporter = reportFunc(func(_ context.Context, in interview.ReportInput) (interview.Report, error) {
		defer close(generated)
		return interview.Report{ReportID: "rep-1", InterviewID: in.InterviewID, UserID: in.UserID}, nil
	})
	o := New(cfg)
	st := runningState(t)

	res, err := o.Submit(context.Background(), st, interview.Answer{
		Text: "A goroutine is a lightweight thread managed by the runtime.",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Completed {
		t.Fatal("expected completion")
	}
	if st.Status != session.StatusCompleted {
		t.Errorf("status = %q", st.Status)
	}

	select {
	case <-generated:
	case <-time.After(2 * time.Second):
		t.Fatal("background report generation never ran")
	}
}

func TestSubmit_TimeLimitCompletes(t *testing.T) {
	store := &recordingStore{}
	reports := &memorymock.Store{}
	generated := make(chan struct{})
	cfg := defaultConfig(store, reports)
	cfg.Reporter = reportFunc(func(_ context.Context, in interview.ReportInput) (interview.Report, error) {
		defer close(generated)
		return interview.Report{ReportID: "rep-1", InterviewID: in.InterviewID}, nil
	})
	st := runningState(t)
	o := New(cfg, WithClock(func() time.Time {
		return st.StartedAt.Add(st.TimeLimit + time.Minute)
	}))

	res, err := o.Submit(context.Background(), st, interview.Answer{
		Text: "A goroutine is a lightweight thread managed by the runtime.",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Completed {
		t.Fatal("expected completion when time limit is spent")
	}
	<-generated
}

func TestSubmit_NotRunning(t *testing.T) {
	o := New(defaultConfig(&recordingStore{}, &memorymock.Store{}))
	st := session.New("iv-1", "u", interview.RoleBackendDeveloper, interview.ResumeData{})

	if _, err := o.Submit(context.Background(), st, interview.Answer{Text: "long enough answer"}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("err = %v, want ErrNotRunning", err)
	}
}

func TestGenerateReport_Idempotent(t *testing.T) {
	reports := &memorymock.Store{}
	calls := 0
	cfg := defaultConfig(&recordingStore{}, reports)
	cfg.Reporter = reportFunc(func(_ context.Context, in interview.ReportInput) (interview.Report, error) {
		calls++
		return interview.Report{ReportID: "rep-1", InterviewID: in.InterviewID, UserID: in.UserID, OverallScore: scoreOf(77)}, nil
	})
	o := New(cfg)

	input := interview.ReportInput{InterviewID: "iv-1", UserID: "user-1"}
	first, err := o.GenerateReport(context.Background(), input)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	second, err := o.GenerateReport(context.Background(), input)
	if err != nil {
		t.Fatalf("GenerateReport again: %v", err)
	}
	if calls != 1 {
		t.Errorf("reporter ran %d times, want 1", calls)
	}
	if first.ReportID != second.ReportID || second.OverallScore == nil || *second.OverallScore != 77 {
		t.Errorf("second report = %+v", second)
	}

	stored, err := reports.GetReport(context.Background(), "iv-1")
	if err != nil || stored == nil {
		t.Fatalf("stored report: %v %v", stored, err)
	}
	var rep interview.Report
	if err := json.Unmarshal(stored.Data, &rep); err != nil {
		t.Fatalf("unmarshal stored report: %v", err)
	}
	if rep.OverallScore == nil || *rep.OverallScore != 77 {
		t.Errorf("stored score = %v", rep.OverallScore)
	}
}

func TestEnd_CompletesAndReturnsReport(t *testing.T) {
	store := &recordingStore{}
	o := New(defaultConfig(store, &memorymock.Store{}))
	st := runningState(t)

	rep, err := o.End(context.Background(), st)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if st.Status != session.StatusCompleted {
		t.Errorf("status = %q", st.Status)
	}
	if rep.OverallScore == nil || *rep.OverallScore != 80 {
		t.Errorf("report = %+v", rep)
	}
}

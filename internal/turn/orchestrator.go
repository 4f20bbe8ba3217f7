// Package turn drives one question/answer cycle of an interview: evaluate
// the submitted answer, pick the next question, frame the transition, and
// persist the updated session.
package turn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/intervoq/intervoq/internal/interview"
	"github.com/intervoq/intervoq/internal/session"
	"github.com/intervoq/intervoq/pkg/memory"
)

// minAnswerLength is the shortest spoken answer worth evaluating. Anything
// shorter gets a reprompt instead of burning an evaluation call.
const minAnswerLength = 10

// reportTimeout bounds the asynchronous report generation that runs after a
// turn completes the interview.
const reportTimeout = 2 * time.Minute

// ErrNotRunning is returned when an answer arrives for an interview that is
// not in progress.
var ErrNotRunning = errors.New("turn: interview is not in progress")

// Evaluator scores one answer.
type Evaluator interface {
	Evaluate(ctx context.Context, q interview.Question, a interview.Answer) (interview.Evaluation, error)
}

// Selector chooses the next question.
type Selector interface {
	SelectNext(ctx context.Context, interviewID string, p interview.Progress) (interview.Question, bool, error)
}

// Framer produces the spoken transition into the next question.
type Framer interface {
	Frame(ctx context.Context, eval interview.Evaluation, answer string, next interview.Question) string
}

// Reporter generates the final assessment.
type Reporter interface {
	Generate(ctx context.Context, in interview.ReportInput) (interview.Report, error)
}

// Persister saves session state across turns.
type Persister interface {
	Save(ctx context.Context, st *session.State) error
}

// Result is what one processed answer produces for the client.
type Result struct {
	// Reprompt is set when the answer was too short to evaluate; the
	// current question stays open and nothing else in the Result is valid.
	Reprompt bool

	Evaluation interview.Evaluation

	// Framing is the spoken lead-in to the next question. Empty when the
	// interview completed.
	Framing string

	// NextQuestion is nil when the interview completed on this turn.
	NextQuestion *interview.Question

	// Completed reports that this turn ended the interview, either because
	// every phase budget was spent or the time limit ran out.
	Completed bool

	TotalQuestions int
}

// Orchestrator runs the answer-to-next-question cycle.
type Orchestrator struct {
	evaluator Evaluator
	selector  Selector
	framer    Framer
	reporter  Reporter
	store     Persister
	reports   memory.ReportStore
	logger    *slog.Logger
	now       func() time.Time
}

// Config wires an Orchestrator.
type Config struct {
	Evaluator Evaluator
	Selector  Selector
	Framer    Framer
	Reporter  Reporter
	Store     Persister
	Reports   memory.ReportStore
	Logger    *slog.Logger
}

// Option configures optional Orchestrator behaviour.
type Option func(*Orchestrator)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New builds an orchestrator.
func New(cfg Config, opts ...Option) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		evaluator: cfg.Evaluator,
		selector:  cfg.Selector,
		framer:    cfg.Framer,
		reporter:  cfg.Reporter,
		store:     cfg.Store,
		reports:   cfg.Reports,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit processes one answer: the evaluation and the next-question
// selection run concurrently, then the session advances and is persisted.
// When the turn ends the interview, report generation is kicked off in the
// background and the result carries Completed=true.
func (o *Orchestrator) Submit(ctx context.Context, st *session.State, ans interview.Answer) (Result, error) {
	if st.Status != session.StatusInProgress {
		return Result{}, fmt.Errorf("%w: %s", ErrNotRunning, st.Status)
	}
	cur := st.CurrentQuestion
	if cur == nil {
		return Result{}, session.ErrNoCurrentQuestion
	}

	if ans.Code != "" && strings.TrimSpace(ans.Text) == "" {
		ans.Text = fmt.Sprintf("[Code submission in %s]", ans.Language)
	}
	if ans.Code == "" && len(strings.TrimSpace(ans.Text)) < minAnswerLength {
		return Result{Reprompt: true}, nil
	}

	question := *cur
	progress := st.Progress()

	var (
		eval interview.Evaluation
		next interview.Question
		done bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		eval, err = o.evaluator.Evaluate(gctx, question, ans)
		if err != nil {
			// A failed evaluation must not stall the interview; score
			// neutrally and move on.
			o.logger.Warn("evaluation failed, using neutral score",
				"interview_id", st.ID, "question_id", question.ID, "error", err)
			eval = interview.Evaluation{Score: 0.5, Feedback: "Unable to evaluate answer automatically."}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		next, done, err = o.selector.SelectNext(gctx, st.ID, progress)
		if err != nil {
			return fmt.Errorf("turn: select next question: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if err := st.RecordAnswer(ans, eval); err != nil {
		return Result{}, err
	}

	outOfTime := st.Remaining(o.now()) <= 0
	if done || outOfTime {
		return o.complete(ctx, st, eval, outOfTime)
	}

	framing := o.framer.Frame(ctx, eval, ans.Text, next)
	st.AttachQuestion(next)
	if err := o.store.Save(ctx, st); err != nil {
		return Result{}, err
	}

	return Result{
		Evaluation:     eval,
		Framing:        framing,
		NextQuestion:   &next,
		TotalQuestions: st.TotalQuestions,
	}, nil
}

// complete ends the interview on this turn and schedules report generation.
func (o *Orchestrator) complete(ctx context.Context, st *session.State, eval interview.Evaluation, outOfTime bool) (Result, error) {
	if err := st.Complete(); err != nil {
		return Result{}, err
	}
	if err := o.store.Save(ctx, st); err != nil {
		return Result{}, err
	}
	o.logger.Info("interview completed",
		"interview_id", st.ID,
		"total_questions", st.TotalQuestions,
		"out_of_time", outOfTime)

	// The client gets the completion event immediately; the report catches
	// up in the background.
	input := st.ReportInput()
	go func() {
		rctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		if _, err := o.GenerateReport(rctx, input); err != nil {
			o.logger.Error("background report generation failed",
				"interview_id", input.InterviewID, "error", err)
		}
	}()

	return Result{
		Evaluation:     eval,
		Completed:      true,
		TotalQuestions: st.TotalQuestions,
	}, nil
}

// End finishes an interview on request (client pressed "end") and returns
// the report synchronously.
func (o *Orchestrator) End(ctx context.Context, st *session.State) (interview.Report, error) {
	if st.Status == session.StatusInProgress || st.Status == session.StatusCreated {
		if err := st.Complete(); err != nil {
			return interview.Report{}, err
		}
		if err := o.store.Save(ctx, st); err != nil {
			return interview.Report{}, err
		}
	}
	return o.GenerateReport(ctx, st.ReportInput())
}

// GenerateReport produces and stores the final report. Generation is
// idempotent: an already stored report is returned as-is.
func (o *Orchestrator) GenerateReport(ctx context.Context, input interview.ReportInput) (interview.Report, error) {
	if existing, err := o.reports.GetReport(ctx, input.InterviewID); err == nil && existing != nil {
		var rep interview.Report
		if jerr := json.Unmarshal(existing.Data, &rep); jerr == nil {
			return rep, nil
		}
	}

	rep, err := o.reporter.Generate(ctx, input)
	if err != nil {
		return interview.Report{}, fmt.Errorf("turn: generate report: %w", err)
	}

	data, err := json.Marshal(rep)
	if err != nil {
		return interview.Report{}, fmt.Errorf("turn: encode report: %w", err)
	}
	if err := o.reports.SaveReport(ctx, memory.ReportRecord{
		ReportID:    rep.ReportID,
		InterviewID: rep.InterviewID,
		UserID:      rep.UserID,
		Data:        data,
		CreatedAt:   o.now().UTC(),
	}); err != nil {
		return interview.Report{}, fmt.Errorf("turn: store report: %w", err)
	}
	return rep, nil
}

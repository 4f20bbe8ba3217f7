// Package session holds the live state of one interview and its two-tier
// persistence: a Redis hot tier for active sessions and the durable Postgres
// record everything can be rebuilt from.
//
// The [State] type is the authoritative in-memory model. The question engine
// never sees it directly; it reads an [interview.Progress] snapshot produced
// by [State.Progress], which keeps the engine free of storage and lifecycle
// concerns.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/intervoq/intervoq/internal/interview"
)

// Status is an interview lifecycle state.
type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// ErrInvalidTransition is returned for lifecycle moves the state machine
// does not allow, e.g. starting a completed interview.
var ErrInvalidTransition = errors.New("session: invalid status transition")

// ErrNoCurrentQuestion is returned when an answer arrives with no question
// outstanding.
var ErrNoCurrentQuestion = errors.New("session: no current question")

// DefaultTimeLimit bounds an interview when the creator does not set one.
const DefaultTimeLimit = 60 * time.Minute

// State is the full mutable state of one interview session.
// All methods are safe for concurrent use.
//
// Exported fields carry JSON tags because the whole struct is the snapshot
// written to the hot and durable tiers. Candidate-supplied API keys are
// deliberately not part of State; they live only in the hot tier under a
// separate key.
type State struct {
	mu sync.Mutex

	ID     string         `json:"interview_id"`
	UserID string         `json:"user_id"`
	Role   interview.Role `json:"role"`
	Status Status         `json:"status"`

	// ExperienceLevel is the candidate's declared seniority band. Empty when
	// the candidate did not declare one.
	ExperienceLevel interview.ExperienceLevel `json:"experience_level,omitempty"`

	// Flow is whose turn it is in the real-time conversation. It only moves
	// while a socket is attached; REST-only interviews leave it empty.
	Flow interview.FlowState `json:"flow_state,omitempty"`

	CreatedAt time.Time     `json:"created_at"`
	StartedAt time.Time     `json:"started_at,omitzero"`
	EndedAt   time.Time     `json:"ended_at,omitzero"`
	TimeLimit time.Duration `json:"time_limit"`

	Resume       interview.ResumeData    `json:"resume"`
	SkillWeights []interview.SkillWeight `json:"skill_weights,omitempty"`

	Phase              interview.Phase `json:"phase"`
	PhaseQuestionCount int             `json:"phase_question_count"`
	TotalQuestions     int             `json:"total_questions"`
	CodingInjected     int             `json:"coding_injected"`

	// CodingAsked counts coding questions across the whole interview, and
	// CodingScores holds their evaluation scores in order. Both feed the
	// coding-question gate.
	CodingAsked  int       `json:"coding_asked"`
	CodingScores []float64 `json:"coding_scores,omitempty"`

	Difficulty interview.Difficulty `json:"difficulty"`
	Scores     []float64            `json:"scores,omitempty"`
	LastScore  float64              `json:"last_score"`

	// AnsweredSkills maps each skill to its chronological evaluation scores.
	// Difficulty adapts per skill from this history, so a weak run on SQL
	// does not drag down the next Kubernetes question.
	AnsweredSkills map[string][]float64 `json:"answered_skills,omitempty"`

	// AnsweredProjects marks resume projects already discussed.
	AnsweredProjects map[string]bool `json:"answered_projects,omitempty"`

	AskedTexts map[string]bool `json:"asked_texts,omitempty"`

	// CurrentQuestion is the question awaiting an answer, nil between turns.
	CurrentQuestion *interview.Question `json:"current_question,omitempty"`

	// LastQuestion is the most recently answered question.
	LastQuestion *interview.Question `json:"last_question,omitempty"`

	Exchanges []interview.Exchange `json:"exchanges,omitempty"`

	Window Window `json:"window"`
}

// New creates a session in the created state. The difficulty starts at
// medium and adapts from the first scored answer onward.
func New(id, userID string, role interview.Role, resume interview.ResumeData) *State {
	return &State{
		ID:           id,
		UserID:       userID,
		Role:         role,
		Status:       StatusCreated,
		CreatedAt:    time.Now().UTC(),
		TimeLimit:    DefaultTimeLimit,
		Resume:       resume,
		SkillWeights: interview.ComputeSkillWeights(role, resume),
		Phase:        interview.PhaseIntroduction,
		Difficulty:   interview.DifficultyIntermediate,
		AskedTexts:   map[string]bool{},

		AnsweredSkills:   map[string][]float64{},
		AnsweredProjects: map[string]bool{},
	}
}

// SetFlow moves the conversation flow state. It reports whether the state
// actually changed so callers can skip redundant persistence.
func (s *State) SetFlow(f interview.FlowState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Flow == f {
		return false
	}
	s.Flow = f
	return true
}

// FlowState returns the current conversation flow state.
func (s *State) FlowState() interview.FlowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Flow
}

// Start moves the session to in_progress and stamps the start time.
func (s *State) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status != StatusCreated {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, StatusInProgress)
	}
	s.Status = StatusInProgress
	s.StartedAt = time.Now().UTC()
	return nil
}

// Complete ends the session normally.
func (s *State) Complete() error {
	return s.end(StatusCompleted)
}

// Abandon ends the session without completion, e.g. when the candidate
// disconnects and never returns.
func (s *State) Abandon() error {
	return s.end(StatusAbandoned)
}

func (s *State) end(to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Status != StatusInProgress && s.Status != StatusCreated {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	s.EndedAt = time.Now().UTC()
	return nil
}

// Remaining returns how much interview time is left. Zero or negative means
// the time limit is spent.
func (s *State) Remaining(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StartedAt.IsZero() {
		return s.TimeLimit
	}
	return s.TimeLimit - now.Sub(s.StartedAt)
}

// AttachQuestion records that q was asked and is now awaiting an answer.
// Phase bookkeeping follows the question's own selection metadata so the
// state always agrees with what the selector actually chose.
func (s *State) AttachQuestion(q interview.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if phase := interview.Phase(q.Context["phase"]); phase != "" && phase != s.Phase {
		s.Phase = phase
		s.PhaseQuestionCount = 0
		s.CodingInjected = 0
	}
	if q.Context["source"] == "coding" {
		s.CodingInjected++
		s.CodingAsked++
	}
	if project := q.Context["project"]; project != "" {
		if s.AnsweredProjects == nil {
			s.AnsweredProjects = map[string]bool{}
		}
		s.AnsweredProjects[project] = true
	}

	s.CurrentQuestion = &q
	s.TotalQuestions++
	s.PhaseQuestionCount++
	if s.AskedTexts == nil {
		s.AskedTexts = map[string]bool{}
	}
	s.AskedTexts[q.Text] = true
}

// RecordAnswer closes the current turn: the exchange is appended, the score
// history and adaptive difficulty are updated, and the conversation window
// advances.
func (s *State) RecordAnswer(ans interview.Answer, eval interview.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CurrentQuestion == nil {
		return ErrNoCurrentQuestion
	}
	q := *s.CurrentQuestion

	s.Exchanges = append(s.Exchanges, interview.Exchange{
		Question:   q,
		Answer:     ans,
		Evaluation: eval,
	})
	s.Scores = append(s.Scores, eval.Score)
	s.LastScore = eval.Score
	if q.Type == interview.QuestionCoding {
		s.CodingScores = append(s.CodingScores, eval.Score)
	}
	if s.AnsweredSkills == nil {
		s.AnsweredSkills = map[string][]float64{}
	}
	s.AnsweredSkills[q.Skill] = append(s.AnsweredSkills[q.Skill], eval.Score)

	// Difficulty adapts from the answered skill's own history, not the
	// interview-wide average.
	s.Difficulty = interview.NextDifficulty(s.Difficulty, s.AnsweredSkills[q.Skill])

	s.Window.Push(interview.QAPair{Question: q.Text, Answer: ans.Text})
	s.LastQuestion = &q
	s.CurrentQuestion = nil
	return nil
}

// Progress produces the engine-facing snapshot of this session.
func (s *State) Progress() interview.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	asked := make(map[string]bool, len(s.AskedTexts))
	for t := range s.AskedTexts {
		asked[t] = true
	}
	answeredSkills := make(map[string][]float64, len(s.AnsweredSkills))
	for skill, scores := range s.AnsweredSkills {
		answeredSkills[skill] = append([]float64(nil), scores...)
	}
	answeredProjects := make(map[string]bool, len(s.AnsweredProjects))
	for name := range s.AnsweredProjects {
		answeredProjects[name] = true
	}
	return interview.Progress{
		Role:               s.Role,
		ExperienceLevel:    s.ExperienceLevel,
		Resume:             s.Resume,
		Phase:              s.Phase,
		PhaseQuestionCount: s.PhaseQuestionCount,
		TotalQuestions:     s.TotalQuestions,
		AskedTexts:         asked,
		CodingInjected:     s.CodingInjected,
		CodingAsked:        s.CodingAsked,
		CodingScores:       append([]float64(nil), s.CodingScores...),
		Difficulty:         s.Difficulty,
		Scores:             append([]float64(nil), s.Scores...),
		AnsweredSkills:     answeredSkills,
		AnsweredProjects:   answeredProjects,
		LastQuestion:       s.LastQuestion,
		LastScore:          s.LastScore,
		SkillWeights:       s.SkillWeights,
		RecentPairs:        s.Window.Pairs(),
	}
}

// ReportInput assembles the report generator's input from this session.
func (s *State) ReportInput() interview.ReportInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return interview.ReportInput{
		InterviewID:       s.ID,
		UserID:            s.UserID,
		Role:              s.Role,
		Status:            interview.Status(s.Status),
		StartedAt:         s.StartedAt,
		EndedAt:           s.EndedAt,
		Exchanges:         append([]interview.Exchange(nil), s.Exchanges...),
		ExpectedQuestions: interview.ExpectedQuestionCount,
	}
}

// Snapshot serializes the full state for persistence.
func (s *State) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("session: snapshot: %w", err)
	}
	return data, nil
}

// Restore rebuilds a State from a snapshot produced by [State.Snapshot].
func Restore(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: restore: %w", err)
	}
	if s.AskedTexts == nil {
		s.AskedTexts = map[string]bool{}
	}
	if s.AnsweredSkills == nil {
		s.AnsweredSkills = map[string][]float64{}
	}
	if s.AnsweredProjects == nil {
		s.AnsweredProjects = map[string]bool{}
	}
	return &s, nil
}

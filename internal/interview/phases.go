package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Phase question budgets. Introduction is a single warm-up question; later
// phases have minimum counts that, summed, define the expected interview
// length.
const (
	introQuestions    = 1
	projectQuestions  = 4
	standoutQuestions = 4
	roleQuestions     = 6
)

// ExpectedQuestionCount is the planned total across all phases.
const ExpectedQuestionCount = introQuestions + projectQuestions + standoutQuestions + roleQuestions

// Coding questions are injected into the skill phases once the phase has
// produced this many spoken questions.
var codingInjectionPoints = map[int]bool{2: true, 4: true}

// codingInjectionSkill is the skill coding exercises are attributed to.
// Injected problems test general problem solving, not one named technology.
const codingInjectionSkill = "problem-solving"

// Coding gate tuning. Entry-level candidates get roughly half coding; mid
// level roughly a quarter; anyone at or above the cutoff years none at all.
// A streak of low-scoring coding answers also shuts the gate for the rest of
// the interview.
const (
	codingTargetEntry    = 0.55
	codingTargetDefault  = 0.25
	codingCutoffYears    = 4
	codingStruggleScore  = 0.4
	codingStruggleWindow = 5
	codingStruggleLimit  = 2
)

// nonCodingRoleKeywords mark roles whose interviews never include coding
// exercises. Matching is by substring on the lowercased role string, so
// unknown roles default to technical.
var nonCodingRoleKeywords = []string{
	"product-manager",
	"product manager",
	"tester",
	"qa",
	"quality-assurance",
	"test-engineer",
}

// namedTechnologies are skills probed with knowledge questions rather than
// coding exercises. A skill not on the list counts as an abstract capability
// (problem solving, system design) and may carry a coding exercise.
var namedTechnologies = map[string]bool{
	"java": true, "python": true, "javascript": true, "typescript": true,
	"go": true, "rust": true, "c": true, "c++": true, "c#": true, "ruby": true,
	"php": true, "swift": true, "kotlin": true, "scala": true,
	"react": true, "angular": true, "vue": true, "next.js": true,
	"node.js": true, "django": true, "flask": true, "spring": true,
	"html": true, "css": true, "sql": true, "postgresql": true, "mysql": true,
	"mongodb": true, "redis": true, "elasticsearch": true, "kafka": true,
	"docker": true, "kubernetes": true, "terraform": true, "ansible": true,
	"aws": true, "gcp": true, "azure": true, "linux": true, "git": true,
	"pandas": true, "numpy": true, "tensorflow": true, "pytorch": true,
	"scikit-learn": true, "spark": true, "graphql": true, "rest api": true,
}

// Standout phase thresholds: a skill qualifies with decent weight and real
// resume experience; the fallback relaxes the experience requirement but
// demands a higher weight.
const (
	standoutMinWeight      = 0.5
	standoutFallbackWeight = 0.6
)

// Role phase ranking. Skills below the relevance floor are skipped when
// anything better exists; the combined rank favours what the role needs over
// what the resume emphasises.
const (
	roleRelevanceFloor  = 0.3
	roleRelevanceFactor = 0.6
	roleWeightFactor    = 0.4
)

// Progress is a snapshot of interview state the selector reads to choose the
// next question. The session layer owns the authoritative state; this struct
// keeps the engine free of storage concerns.
type Progress struct {
	Role            Role
	ExperienceLevel ExperienceLevel
	Resume          ResumeData

	Phase              Phase
	PhaseQuestionCount int
	TotalQuestions     int

	// AskedTexts holds every question text already used, for repetition
	// avoidance inside the static pool.
	AskedTexts map[string]bool

	// CodingInjected counts coding questions already injected in the
	// current phase; CodingAsked counts them across the whole interview.
	// CodingScores holds every coding evaluation score in order.
	CodingInjected int
	CodingAsked    int
	CodingScores   []float64

	Difficulty Difficulty
	Scores     []float64

	// AnsweredSkills maps each skill to its chronological evaluation
	// scores. Selection policies and per-skill difficulty read it.
	AnsweredSkills map[string][]float64

	// AnsweredProjects marks resume projects already discussed.
	AnsweredProjects map[string]bool

	// LastQuestion is the most recently asked question, nil before the
	// first one.
	LastQuestion *Question

	// LastScore is the evaluation score for LastQuestion. Only meaningful
	// when LastQuestion is non-nil and has been answered.
	LastScore float64

	SkillWeights []SkillWeight

	// RecentPairs is the sliding window of prior exchanges given to the
	// generator for context.
	RecentPairs []QAPair
}

// Generator produces dynamic questions when the static pool cannot serve.
type Generator interface {
	// GenerateQuestion produces a spoken question for a skill or project.
	GenerateQuestion(ctx context.Context, req GenerateRequest) (Question, error)

	// GenerateCoding produces a coding exercise with a short spoken summary
	// and a full problem statement for the editor.
	GenerateCoding(ctx context.Context, skill string, difficulty Difficulty) (CodingProblem, error)
}

// GenerateRequest describes the question the selector wants generated.
type GenerateRequest struct {
	Role       Role
	Skill      string
	Project    *Project
	Difficulty Difficulty

	// FollowUpTo asks for a deep-dive on a previous exchange instead of a
	// fresh question.
	FollowUpTo *QAPair

	RecentPairs []QAPair
}

// Validator screens generated questions before they reach the candidate. A
// rejection sends the selector back to the pool or a regeneration.
type Validator interface {
	// Validate returns an error when the question is too similar to one
	// already asked, or otherwise unusable.
	Validate(ctx context.Context, interviewID string, q Question) error
}

// Selector chooses the next question according to the phased flow: a single
// introduction, project discussion grounded in the resume, the candidate's
// strongest skills, then role-required skills, with coding exercises
// injected mid-phase.
type Selector struct {
	pool      *Pool
	gen       Generator
	validator Validator
	logger    *slog.Logger
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithValidator installs a repetition guard for generated questions.
func WithValidator(v Validator) SelectorOption {
	return func(s *Selector) { s.validator = v }
}

// WithSelectorLogger overrides the default logger.
func WithSelectorLogger(l *slog.Logger) SelectorOption {
	return func(s *Selector) { s.logger = l }
}

// NewSelector builds a selector over the given pool and generator.
func NewSelector(pool *Pool, gen Generator, opts ...SelectorOption) *Selector {
	s := &Selector{pool: pool, gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextPhase reports the phase the interview should be in after the given
// progress, and whether the interview is finished.
func NextPhase(p Progress) (Phase, bool) {
	switch p.Phase {
	case "", PhaseIntroduction:
		if p.PhaseQuestionCount >= introQuestions {
			return PhaseProjects, false
		}
		return PhaseIntroduction, false
	case PhaseProjects:
		if p.PhaseQuestionCount >= projectQuestions {
			return PhaseStandoutSkill, false
		}
		return PhaseProjects, false
	case PhaseStandoutSkill:
		if p.PhaseQuestionCount >= standoutQuestions {
			return PhaseRoleSkills, false
		}
		return PhaseStandoutSkill, false
	case PhaseRoleSkills:
		if p.PhaseQuestionCount >= roleQuestions {
			return PhaseRoleSkills, true
		}
		return PhaseRoleSkills, false
	default:
		return PhaseRoleSkills, true
	}
}

// SelectNext picks the next question for the interview, or returns done=true
// when every phase budget is spent.
func (s *Selector) SelectNext(ctx context.Context, interviewID string, p Progress) (Question, bool, error) {
	phase, done := NextPhase(p)
	if done {
		return Question{}, true, nil
	}
	phaseChanged := phase != p.Phase && p.Phase != ""
	if phaseChanged {
		p.Phase = phase
		p.PhaseQuestionCount = 0
		p.CodingInjected = 0
	}

	// A strong high-level answer earns one immediate deep-dive follow-up
	// before the flow moves on.
	if q, ok, err := s.maybeDeepDive(ctx, interviewID, p); err != nil {
		return Question{}, false, err
	} else if ok {
		return q, false, nil
	}

	switch phase {
	case PhaseIntroduction:
		return s.introQuestion(p), false, nil
	case PhaseProjects:
		q, err := s.projectQuestion(ctx, interviewID, p)
		return q, false, err
	case PhaseStandoutSkill, PhaseRoleSkills:
		q, err := s.skillQuestion(ctx, interviewID, phase, p)
		return q, false, err
	default:
		return Question{}, false, fmt.Errorf("interview: unknown phase %q", phase)
	}
}

// maybeDeepDive returns a follow-up question when the previous question was a
// high-level one and the answer scored well enough to be worth probing.
func (s *Selector) maybeDeepDive(ctx context.Context, interviewID string, p Progress) (Question, bool, error) {
	last := p.LastQuestion
	if last == nil || last.Context["question_type"] != "high_level" {
		return Question{}, false, nil
	}
	if p.LastScore < 0.6 {
		return Question{}, false, nil
	}
	pair := &QAPair{Question: last.Text}
	if n := len(p.RecentPairs); n > 0 {
		pair = &p.RecentPairs[n-1]
	}
	q, err := s.generate(ctx, interviewID, GenerateRequest{
		Role:        p.Role,
		Skill:       last.Skill,
		Difficulty:  p.Difficulty,
		FollowUpTo:  pair,
		RecentPairs: p.RecentPairs,
	})
	if err != nil {
		// A failed follow-up is not fatal; the flow continues with the
		// regular phase question.
		s.logger.Warn("deep dive generation failed, continuing phase flow",
			"interview_id", interviewID, "error", err)
		return Question{}, false, nil
	}
	q.Context["question_type"] = "deep_dive"
	q.Context["phase"] = string(p.Phase)
	return q, true, nil
}

func (s *Selector) introQuestion(p Progress) Question {
	return Question{
		ID:         uuid.NewString(),
		Text:       "To get us started, could you walk me through your background and what kind of work you enjoy most?",
		Skill:      "introduction",
		Difficulty: DifficultyBasic,
		Type:       QuestionConceptual,
		Context: map[string]string{
			"phase":         string(PhaseIntroduction),
			"source":        "fixed",
			"question_type": "high_level",
		},
	}
}

func (s *Selector) projectQuestion(ctx context.Context, interviewID string, p Progress) (Question, error) {
	project := pickProject(p)
	skill := "projects"
	if project != nil && len(project.Technologies) > 0 {
		skill = project.Technologies[0]
	}
	q, err := s.generate(ctx, interviewID, GenerateRequest{
		Role:        p.Role,
		Skill:       skill,
		Project:     project,
		Difficulty:  p.Difficulty,
		RecentPairs: p.RecentPairs,
	})
	if err != nil {
		return Question{}, err
	}
	q.Context["phase"] = string(PhaseProjects)
	q.Context["source"] = "dynamic_project"
	q.Context["question_type"] = "high_level"
	if project != nil {
		q.Context["project"] = project.Name
	}
	return q, nil
}

// pickProject chooses the undiscussed resume project whose technologies
// overlap the computed skill weights the most. When every project has been
// discussed the list is cycled so follow-up questions still have material.
func pickProject(p Progress) *Project {
	projects := p.Resume.Projects
	if len(projects) == 0 {
		return nil
	}
	var best *Project
	bestOverlap := -1
	for i := range projects {
		proj := &projects[i]
		if p.AnsweredProjects[proj.Name] {
			continue
		}
		if overlap := technologyOverlap(proj, p.SkillWeights); overlap > bestOverlap {
			best, bestOverlap = proj, overlap
		}
	}
	if best == nil {
		return &projects[p.PhaseQuestionCount%len(projects)]
	}
	return best
}

// technologyOverlap counts matches between a project's technologies and the
// weighted skills. Matching is a bidirectional substring test so "Postgres"
// pairs with "PostgreSQL" and "React" with "React Native".
func technologyOverlap(proj *Project, weights []SkillWeight) int {
	overlap := 0
	for _, tech := range proj.Technologies {
		t := strings.ToLower(tech)
		for _, sw := range weights {
			sk := strings.ToLower(sw.Skill)
			if strings.Contains(t, sk) || strings.Contains(sk, t) {
				overlap++
			}
		}
	}
	return overlap
}

// standoutSkill picks the skill the standout phase should probe next: the
// strongest not-yet-answered skill backed by real resume experience. The
// second return is false when nothing standout remains and the flow should
// move on to role requirements.
func standoutSkill(p Progress) (string, bool) {
	answered := func(skill string) bool { return len(p.AnsweredSkills[skill]) > 0 }

	var candidates []SkillWeight
	for _, sw := range p.SkillWeights {
		if sw.Weight >= standoutMinWeight && sw.ResumeExperience > 0 && !answered(sw.Skill) {
			candidates = append(candidates, sw)
		}
	}
	if len(candidates) == 0 {
		for _, sw := range p.SkillWeights {
			if sw.Weight >= standoutFallbackWeight && !answered(sw.Skill) {
				candidates = append(candidates, sw)
			}
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	best := candidates[0]
	for _, sw := range candidates[1:] {
		if sw.ResumeExperience > best.ResumeExperience ||
			(sw.ResumeExperience == best.ResumeExperience && sw.Weight > best.Weight) {
			best = sw
		}
	}
	return best.Skill, true
}

// expectedSkillQuestions is how many role-phase questions a skill of the
// given weight deserves: at least one, at most two.
func expectedSkillQuestions(weight float64) int {
	n := int(weight * 4)
	if n < 1 {
		n = 1
	}
	if n > 2 {
		n = 2
	}
	return n
}

// roleSkill picks the skill the role phase should probe next: among the
// role-relevant skills still under their question quota, the one ranking
// highest on combined relevance and weight.
func roleSkill(p Progress) string {
	if len(p.SkillWeights) == 0 {
		return "general software engineering"
	}

	var pool []SkillWeight
	for _, sw := range p.SkillWeights {
		if sw.RoleRelevance > roleRelevanceFloor {
			pool = append(pool, sw)
		}
	}
	if len(pool) == 0 {
		pool = p.SkillWeights
	}

	var needing []SkillWeight
	for _, sw := range pool {
		if len(p.AnsweredSkills[sw.Skill]) < expectedSkillQuestions(sw.Weight) {
			needing = append(needing, sw)
		}
	}
	if len(needing) == 0 {
		needing = pool
	}

	rank := func(sw SkillWeight) float64 {
		return roleRelevanceFactor*sw.RoleRelevance + roleWeightFactor*sw.Weight
	}
	best := needing[0]
	for _, sw := range needing[1:] {
		if rank(sw) > rank(best) {
			best = sw
		}
	}
	return best.Skill
}

// skillDifficulty adjusts the session difficulty for one skill from that
// skill's most recent score: a strong answer steps up, a weak one steps down.
func skillDifficulty(p Progress, skill string) Difficulty {
	d := p.Difficulty
	hist := p.AnsweredSkills[skill]
	if len(hist) == 0 {
		return d.Clamp()
	}
	last := hist[len(hist)-1]
	switch {
	case last >= 0.8:
		d++
	case last < 0.6:
		d--
	}
	return d.Clamp()
}

// shouldAskCoding decides whether a coding exercise may be injected now.
func shouldAskCoding(p Progress, skill string) bool {
	if p.TotalQuestions == 0 {
		return false
	}
	if namedTechnologies[strings.ToLower(skill)] {
		return false
	}
	role := strings.ToLower(string(p.Role))
	for _, kw := range nonCodingRoleKeywords {
		if strings.Contains(role, kw) {
			return false
		}
	}
	if recentCodingStruggles(p.CodingScores) >= codingStruggleLimit {
		return false
	}
	if p.ExperienceLevel.Years() >= codingCutoffYears {
		return false
	}
	target := codingTargetDefault
	if p.ExperienceLevel == ExperienceEntry {
		target = codingTargetEntry
	}
	return float64(p.CodingAsked)/float64(p.TotalQuestions) < target
}

// recentCodingStruggles counts low scores in the last few coding answers.
func recentCodingStruggles(scores []float64) int {
	if len(scores) > codingStruggleWindow {
		scores = scores[len(scores)-codingStruggleWindow:]
	}
	n := 0
	for _, s := range scores {
		if s < codingStruggleScore {
			n++
		}
	}
	return n
}

func (s *Selector) skillQuestion(ctx context.Context, interviewID string, phase Phase, p Progress) (Question, error) {
	if codingInjectionPoints[p.PhaseQuestionCount] &&
		p.CodingInjected < len(codingInjectionPoints) &&
		shouldAskCoding(p, codingInjectionSkill) {
		return s.codingQuestion(ctx, phase, p)
	}

	var skill string
	difficulty := p.Difficulty
	if phase == PhaseStandoutSkill {
		sk, ok := standoutSkill(p)
		if !ok {
			// Nothing standout remains; role requirements take over early.
			phase = PhaseRoleSkills
			skill = roleSkill(p)
			difficulty = skillDifficulty(p, skill)
		} else {
			skill = sk
		}
	} else {
		skill = roleSkill(p)
		difficulty = skillDifficulty(p, skill)
	}

	if q, ok := s.pool.Pick(skill, difficulty, p.AskedTexts); ok {
		q.Context["phase"] = string(phase)
		q.Context["question_type"] = "high_level"
		return q, nil
	}

	q, err := s.generate(ctx, interviewID, GenerateRequest{
		Role:        p.Role,
		Skill:       skill,
		Difficulty:  difficulty,
		RecentPairs: p.RecentPairs,
	})
	if err != nil {
		return Question{}, err
	}
	q.Context["phase"] = string(phase)
	q.Context["source"] = "dynamic"
	q.Context["question_type"] = "high_level"
	return q, nil
}

func (s *Selector) codingQuestion(ctx context.Context, phase Phase, p Progress) (Question, error) {
	problem, err := s.gen.GenerateCoding(ctx, codingInjectionSkill, p.Difficulty)
	if err != nil {
		s.logger.Warn("coding generation failed, using classic problem",
			"skill", codingInjectionSkill, "error", err)
		fallback, ok := s.pool.PickCoding(p.Difficulty, p.AskedTexts)
		if !ok {
			return Question{}, fmt.Errorf("interview: no coding question available: %w", err)
		}
		problem = fallback
	}

	return Question{
		ID:         uuid.NewString(),
		Text:       problem.FullText,
		Skill:      codingInjectionSkill,
		Difficulty: problem.Difficulty.Clamp(),
		Type:       QuestionCoding,
		Context: map[string]string{
			"phase":         string(phase),
			"source":        "coding",
			"question_type": "coding",
			"tts_text":      problem.TTSSummary,
		},
	}, nil
}

// generate runs the dynamic generator and, when configured, the repetition
// guard. One regeneration is attempted on rejection before giving up.
func (s *Selector) generate(ctx context.Context, interviewID string, req GenerateRequest) (Question, error) {
	const attempts = 2
	var lastErr error
	for i := 0; i < attempts; i++ {
		q, err := s.gen.GenerateQuestion(ctx, req)
		if err != nil {
			return Question{}, err
		}
		if q.Context == nil {
			q.Context = map[string]string{}
		}
		if s.validator == nil {
			return q, nil
		}
		if err := s.validator.Validate(ctx, interviewID, q); err != nil {
			lastErr = err
			s.logger.Debug("generated question rejected", "interview_id", interviewID, "error", err)
			continue
		}
		return q, nil
	}
	return Question{}, fmt.Errorf("interview: question generation exhausted retries: %w", lastErr)
}

// Package interview holds the core domain model and the adaptive question
// engine: skill weighting, difficulty smoothing, phased question selection,
// answer evaluation, conversational framing, and report generation.
package interview

import "time"

// Role is the position the candidate is interviewing for.
type Role string

// Known interview roles. Roles outside this list are accepted but receive
// generic skill relevance.
const (
	RoleBackendDeveloper   Role = "backend-developer"
	RoleFrontendDeveloper  Role = "frontend-developer"
	RoleFullstackDeveloper Role = "fullstack-developer"
	RoleDataScientist      Role = "data-scientist"
	RoleSoftwareEngineer   Role = "software-engineer"
	RoleDevOpsEngineer     Role = "devops-engineer"
	RoleProductManager     Role = "product-manager"
)

// QuestionType classifies what a question assesses.
type QuestionType string

const (
	QuestionConceptual   QuestionType = "conceptual"
	QuestionPractical    QuestionType = "practical"
	QuestionCoding       QuestionType = "coding"
	QuestionSystemDesign QuestionType = "system_design"
)

// Difficulty is the question difficulty on a 1..4 scale.
type Difficulty int

const (
	DifficultyBasic        Difficulty = 1
	DifficultyIntermediate Difficulty = 2
	DifficultyAdvanced     Difficulty = 3
	DifficultyExpert       Difficulty = 4
)

// String returns the human-readable difficulty name.
func (d Difficulty) String() string {
	switch d {
	case DifficultyBasic:
		return "Basic"
	case DifficultyIntermediate:
		return "Intermediate"
	case DifficultyAdvanced:
		return "Advanced"
	case DifficultyExpert:
		return "Expert"
	default:
		return "Unknown"
	}
}

// Clamp bounds d to the valid [1,4] range.
func (d Difficulty) Clamp() Difficulty {
	if d < DifficultyBasic {
		return DifficultyBasic
	}
	if d > DifficultyExpert {
		return DifficultyExpert
	}
	return d
}

// Status is the lifecycle state of an interview.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Phase is the current stage of the phased interview flow.
type Phase string

const (
	PhaseIntroduction  Phase = "introduction"
	PhaseProjects      Phase = "projects"
	PhaseStandoutSkill Phase = "standout_skills"
	PhaseRoleSkills    Phase = "role_skills"
)

// ExperienceLevel is the candidate's self-declared seniority band. It gates
// how much of the interview is spent on coding exercises.
type ExperienceLevel string

const (
	ExperienceEntry     ExperienceLevel = "entry"
	ExperienceMid       ExperienceLevel = "mid"
	ExperienceSenior    ExperienceLevel = "senior"
	ExperienceExecutive ExperienceLevel = "executive"
)

// IsValid reports whether e is a recognised level. The empty string is valid
// and means "not declared".
func (e ExperienceLevel) IsValid() bool {
	switch e {
	case "", ExperienceEntry, ExperienceMid, ExperienceSenior, ExperienceExecutive:
		return true
	}
	return false
}

// Years maps the band onto representative years of experience.
// An undeclared level maps to zero.
func (e ExperienceLevel) Years() float64 {
	switch e {
	case ExperienceEntry:
		return 1
	case ExperienceMid:
		return 3.5
	case ExperienceSenior:
		return 8
	case ExperienceExecutive:
		return 12
	default:
		return 0
	}
}

// FlowState tracks whose turn it is in the real-time conversation.
type FlowState string

const (
	FlowAISpeaking   FlowState = "ai_speaking"
	FlowUserSpeaking FlowState = "user_speaking"
	FlowAIThinking   FlowState = "ai_thinking"
	FlowUserWaiting  FlowState = "user_waiting"
	FlowComplete     FlowState = "interview_complete"
)

// Skill is a single resume skill with experience signals.
type Skill struct {
	Name     string  `json:"name"`
	Years    float64 `json:"years"`
	Projects int     `json:"projects"`
}

// Project is a resume project entry.
type Project struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	Duration     string   `json:"duration,omitempty"`
}

// Experience is a resume work-history entry.
type Experience struct {
	Role       string   `json:"role"`
	Company    string   `json:"company,omitempty"`
	Duration   string   `json:"duration,omitempty"`
	SkillsUsed []string `json:"skills_used,omitempty"`
}

// ResumeData is the structured form of a candidate resume.
type ResumeData struct {
	Skills     []Skill      `json:"skills,omitempty"`
	Projects   []Project    `json:"projects,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
	Summary    string       `json:"summary,omitempty"`
}

// SkillWeight is the computed priority of a skill for this interview.
type SkillWeight struct {
	Skill string `json:"skill"`

	// Weight is the combined priority in [0,1].
	Weight float64 `json:"weight"`

	// RoleRelevance is how important the skill is for the target role, in [0,1].
	RoleRelevance float64 `json:"role_relevance"`

	// ResumeExperience is the normalised years-of-experience signal, in [0,1].
	ResumeExperience float64 `json:"resume_experience"`

	// ProjectCount is the normalised project-usage signal, in [0,1].
	ProjectCount float64 `json:"project_count"`
}

// Question is a single interview question.
type Question struct {
	ID         string       `json:"question_id"`
	Text       string       `json:"question"`
	Skill      string       `json:"skill"`
	Difficulty Difficulty   `json:"difficulty"`
	Type       QuestionType `json:"type"`

	// Context carries selection metadata: phase, source (pool, dynamic,
	// dynamic_project, coding), question_type (high_level, deep_dive),
	// project, tts_text, language.
	Context map[string]string `json:"context,omitempty"`
}

// Answer is a candidate's response to a question.
type Answer struct {
	Text     string `json:"answer"`
	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`
}

// Evaluation is the scored assessment of one answer.
type Evaluation struct {
	// Score is the overall answer quality in [0,1].
	Score float64 `json:"score"`

	Feedback    string   `json:"feedback"`
	Strengths   []string `json:"strengths,omitempty"`
	Weaknesses  []string `json:"weaknesses,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`

	// NextDifficulty is computed by the difficulty manager from the score
	// history, never taken from model output.
	NextDifficulty Difficulty `json:"next_difficulty,omitempty"`

	// SkillAssessment maps skill name to a per-skill score in [0,1].
	SkillAssessment map[string]float64 `json:"skill_assessment,omitempty"`
}

// QAPair is one question/answer exchange in the sliding conversation window.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Report is the final assessment document produced when an interview ends.
type Report struct {
	ReportID    string `json:"report_id"`
	InterviewID string `json:"interview_id"`
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`

	// OverallScore is on a 0..100 scale. Nil when the interview produced no
	// answered questions and therefore no assessment.
	OverallScore *int `json:"overall_score"`

	SectionScores map[string]int `json:"section_scores,omitempty"`

	Strengths              []string `json:"strengths,omitempty"`
	Weaknesses             []string `json:"weaknesses,omitempty"`
	DetailedFeedback       string   `json:"detailed_feedback,omitempty"`
	Recommendation         string   `json:"recommendation,omitempty"`
	ImprovementSuggestions []string `json:"improvement_suggestions,omitempty"`

	SkillScores       map[string]float64 `json:"skill_scores,omitempty"`
	CodingPerformance CodingPerformance  `json:"coding_performance"`

	Questions []string `json:"questions,omitempty"`
	Answers   []string `json:"answers,omitempty"`

	TotalQuestions       int     `json:"total_questions"`
	QuestionsAnswered    int     `json:"questions_answered"`
	IsComplete           bool    `json:"is_complete"`
	CompletionPercentage int     `json:"completion_percentage"`
	CompletionWarning    string  `json:"completion_warning,omitempty"`
	DurationMinutes      float64 `json:"interview_duration"`

	CreatedAt time.Time `json:"created_at"`
}

// CodingPerformance summarises how the candidate did on coding questions.
type CodingPerformance struct {
	TotalCodingQuestions int `json:"total_coding_questions"`
	Solved               int `json:"coding_questions_solved"`

	// SuccessRate is a percentage rounded to one decimal.
	SuccessRate float64 `json:"success_rate"`

	ByDifficulty map[string]DifficultyBucket `json:"by_difficulty,omitempty"`
}

// DifficultyBucket counts coding attempts and solves in one difficulty band.
type DifficultyBucket struct {
	Attempted int `json:"attempted"`
	Solved    int `json:"solved"`
}

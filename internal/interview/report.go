package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intervoq/intervoq/pkg/provider/llm"
	"github.com/intervoq/intervoq/pkg/types"
)

const reportSystemPrompt = `You are an expert technical hiring assessor writing the final interview report.

Respond with ONLY a JSON object in this exact shape:
{
  "strengths": ["..."],
  "weaknesses": ["..."],
  "detailed_feedback": "two or three paragraphs",
  "recommendation": "strong_hire | hire | maybe | no_hire",
  "improvement_suggestions": ["..."]
}

Base everything strictly on the transcript provided. DO NOT include any text outside the JSON object.`

// codingSolvedThreshold is the evaluation score at which a coding question
// counts as solved.
const codingSolvedThreshold = 0.6

// Completion caps. A short interview cannot produce a top score no matter
// how strong the answers were.
const (
	lowCompletionRatio  = 0.5
	lowCompletionCap    = 60
	midCompletionRatio  = 0.75
	midCompletionCap    = 75
	completeAnswerRatio = 0.8
)

// Exchange is one fully evaluated question/answer pair feeding the report.
type Exchange struct {
	Question   Question
	Answer     Answer
	Evaluation Evaluation
}

// ReportInput is everything the reporter needs about a finished interview.
type ReportInput struct {
	InterviewID string
	UserID      string
	Role        Role
	Status      Status
	StartedAt   time.Time
	EndedAt     time.Time
	Exchanges   []Exchange

	// ExpectedQuestions is the planned question count; zero means use the
	// standard phase budgets.
	ExpectedQuestions int
}

// Reporter assembles the final assessment. The numeric sections are computed
// locally from evaluations; the narrative sections come from the model, with
// a deterministic fallback when the model is unavailable.
type Reporter struct {
	completer Completer
	logger    *slog.Logger
}

// NewReporter builds a reporter over the gateway.
func NewReporter(c Completer, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{completer: c, logger: logger}
}

// RecommendationNoAssessment marks a report for an interview that ended
// before a single question was answered.
const RecommendationNoAssessment = "no_assessment"

// Generate produces the full report for a finished interview. An interview
// with zero answered questions yields a fixed no-assessment report rather
// than an error, so the session still gets a durable record.
func (r *Reporter) Generate(ctx context.Context, in ReportInput) (Report, error) {
	if len(in.Exchanges) == 0 {
		return noAssessmentReport(in), nil
	}

	expected := in.ExpectedQuestions
	if expected <= 0 {
		expected = ExpectedQuestionCount
	}

	rep := Report{
		ReportID:    uuid.NewString(),
		InterviewID: in.InterviewID,
		UserID:      in.UserID,
		Role:        in.Role,
		CreatedAt:   time.Now().UTC(),

		TotalQuestions:    expected,
		QuestionsAnswered: len(in.Exchanges),
	}

	rep.CompletionPercentage = int(math.Round(float64(len(in.Exchanges)) / float64(expected) * 100))
	rep.IsComplete = in.Status == StatusCompleted &&
		float64(len(in.Exchanges)) >= completeAnswerRatio*float64(expected)
	if !in.EndedAt.IsZero() && !in.StartedAt.IsZero() {
		rep.DurationMinutes = math.Round(in.EndedAt.Sub(in.StartedAt).Minutes()*10) / 10
	}

	rep.SkillScores = skillScores(in.Exchanges)
	rep.CodingPerformance = codingPerformance(in.Exchanges)
	score, sections := overallScore(in.Exchanges, rep.CompletionPercentage)
	rep.OverallScore, rep.SectionScores = &score, sections
	if !rep.IsComplete {
		rep.CompletionWarning = fmt.Sprintf(
			"Interview covered %d of %d planned questions; scores reflect partial coverage.",
			len(in.Exchanges), expected)
	}

	for _, ex := range in.Exchanges {
		rep.Questions = append(rep.Questions, ex.Question.Text)
		rep.Answers = append(rep.Answers, ex.Answer.Text)
	}

	if err := r.narrate(ctx, in, &rep); err != nil {
		r.logger.Warn("report narrative generation failed, using deterministic fallback",
			"interview_id", in.InterviewID, "error", err)
		fallbackNarrative(&rep)
	}
	return rep, nil
}

// noAssessmentReport is the deterministic report for an interview the
// candidate never answered into. OverallScore stays nil so the document
// serializes with overall_score null.
func noAssessmentReport(in ReportInput) Report {
	expected := in.ExpectedQuestions
	if expected <= 0 {
		expected = ExpectedQuestionCount
	}
	rep := Report{
		ReportID:    uuid.NewString(),
		InterviewID: in.InterviewID,
		UserID:      in.UserID,
		Role:        in.Role,
		CreatedAt:   time.Now().UTC(),

		TotalQuestions:    expected,
		QuestionsAnswered: 0,

		Recommendation:   RecommendationNoAssessment,
		DetailedFeedback: "The interview ended before any question was answered, so no assessment could be made.",
	}
	if !in.EndedAt.IsZero() && !in.StartedAt.IsZero() {
		rep.DurationMinutes = math.Round(in.EndedAt.Sub(in.StartedAt).Minutes()*10) / 10
	}
	return rep
}

// skillScores averages the per-skill assessments across all evaluations.
func skillScores(exchanges []Exchange) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, ex := range exchanges {
		for skill, score := range ex.Evaluation.SkillAssessment {
			sums[skill] += score
			counts[skill]++
		}
		// The headline score also feeds the question's primary skill so
		// skills are covered even when the model omits the assessment map.
		if ex.Question.Skill != "" {
			sums[ex.Question.Skill] += ex.Evaluation.Score
			counts[ex.Question.Skill]++
		}
	}
	if len(sums) == 0 {
		return nil
	}
	out := make(map[string]float64, len(sums))
	for skill, sum := range sums {
		out[skill] = math.Round(sum/float64(counts[skill])*100) / 100
	}
	return out
}

// codingDifficultyLabel maps the 1..4 scale onto coding report buckets.
func codingDifficultyLabel(d Difficulty) string {
	switch {
	case d <= DifficultyIntermediate:
		return "easy"
	case d == DifficultyAdvanced:
		return "medium"
	default:
		return "hard"
	}
}

func codingPerformance(exchanges []Exchange) CodingPerformance {
	perf := CodingPerformance{ByDifficulty: map[string]DifficultyBucket{}}
	for _, ex := range exchanges {
		if ex.Question.Type != QuestionCoding {
			continue
		}
		perf.TotalCodingQuestions++
		label := codingDifficultyLabel(ex.Question.Difficulty)
		bucket := perf.ByDifficulty[label]
		bucket.Attempted++
		if ex.Evaluation.Score >= codingSolvedThreshold {
			perf.Solved++
			bucket.Solved++
		}
		perf.ByDifficulty[label] = bucket
	}
	if perf.TotalCodingQuestions == 0 {
		perf.ByDifficulty = nil
		return perf
	}
	perf.SuccessRate = math.Round(float64(perf.Solved)/float64(perf.TotalCodingQuestions)*1000) / 10
	return perf
}

// overallScore averages evaluation scores onto a 0..100 scale, applies the
// completion caps, and breaks the average down per question type.
func overallScore(exchanges []Exchange, completionPct int) (int, map[string]int) {
	var sum float64
	typeSums := map[string]float64{}
	typeCounts := map[string]int{}
	for _, ex := range exchanges {
		sum += ex.Evaluation.Score
		key := string(ex.Question.Type)
		typeSums[key] += ex.Evaluation.Score
		typeCounts[key]++
	}

	score := int(math.Round(sum / float64(len(exchanges)) * 100))
	switch {
	case completionPct < int(lowCompletionRatio*100) && score > lowCompletionCap:
		score = lowCompletionCap
	case completionPct < int(midCompletionRatio*100) && score > midCompletionCap:
		score = midCompletionCap
	}

	sections := make(map[string]int, len(typeSums))
	for key, s := range typeSums {
		sections[key] = int(math.Round(s / float64(typeCounts[key]) * 100))
	}
	return score, sections
}

// narrate fills the model-authored sections of the report.
func (r *Reporter) narrate(ctx context.Context, in ReportInput, rep *Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Role: %s\nOverall score: %d/100\nCompletion: %d%%\n\nTranscript:\n", in.Role, *rep.OverallScore, rep.CompletionPercentage)
	for i, ex := range in.Exchanges {
		fmt.Fprintf(&b, "Q%d (%s, score %.2f): %s\nA%d: %s\n\n",
			i+1, ex.Question.Skill, ex.Evaluation.Score, ex.Question.Text, i+1, ex.Answer.Text)
	}

	resp, err := r.completer.Complete(ctx, TaskReportGeneration, llm.CompletionRequest{
		SystemPrompt: reportSystemPrompt,
		Messages:     []types.Message{{Role: "user", Content: b.String()}},
		Temperature:  0.4,
		MaxTokens:    1500,
	})
	if err != nil {
		return err
	}

	start := strings.Index(resp.Content, "{")
	end := strings.LastIndex(resp.Content, "}")
	if start == -1 || end <= start {
		return fmt.Errorf("interview: no JSON object in report response")
	}
	var out struct {
		Strengths              []string `json:"strengths"`
		Weaknesses             []string `json:"weaknesses"`
		DetailedFeedback       string   `json:"detailed_feedback"`
		Recommendation         string   `json:"recommendation"`
		ImprovementSuggestions []string `json:"improvement_suggestions"`
	}
	if err := json.Unmarshal([]byte(resp.Content[start:end+1]), &out); err != nil {
		return fmt.Errorf("interview: decode report response: %w", err)
	}
	rep.Strengths = out.Strengths
	rep.Weaknesses = out.Weaknesses
	rep.DetailedFeedback = out.DetailedFeedback
	rep.Recommendation = out.Recommendation
	rep.ImprovementSuggestions = out.ImprovementSuggestions
	return nil
}

// fallbackNarrative fills the narrative sections deterministically when the
// model is unavailable.
func fallbackNarrative(rep *Report) {
	score := 0
	if rep.OverallScore != nil {
		score = *rep.OverallScore
	}
	switch {
	case score >= 75:
		rep.Recommendation = "hire"
	case score >= 50:
		rep.Recommendation = "maybe"
	default:
		rep.Recommendation = "no_hire"
	}
	rep.DetailedFeedback = fmt.Sprintf(
		"The candidate answered %d questions with an overall score of %d/100. A detailed narrative could not be generated for this session.",
		rep.QuestionsAnswered, score)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intervoq/intervoq/internal/gateway"
	"github.com/intervoq/intervoq/internal/interview"
	"github.com/intervoq/intervoq/internal/session"
	"github.com/intervoq/intervoq/internal/turn"
	"github.com/intervoq/intervoq/pkg/memory"
)

// minResumeLength guards against empty or junk resume submissions.
const minResumeLength = 50

var knownRoles = map[interview.Role]bool{
	interview.RoleBackendDeveloper:   true,
	interview.RoleFrontendDeveloper:  true,
	interview.RoleFullstackDeveloper: true,
	interview.RoleDataScientist:      true,
	interview.RoleSoftwareEngineer:   true,
	interview.RoleDevOpsEngineer:     true,
	interview.RoleProductManager:     true,
}

func isServiceConfiguration(err error) bool {
	return errors.Is(err, gateway.ErrServiceConfiguration)
}

type startRequest struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	ResumeText string `json:"resume_text"`

	// ExperienceLevel is the candidate's declared seniority band
	// (entry, mid, senior, executive). Optional.
	ExperienceLevel string `json:"experience_level,omitempty"`

	// ProviderAPIKey is an optional candidate-supplied LLM key. It lives in
	// the hot session tier only and never appears in responses or logs.
	ProviderAPIKey string `json:"provider_api_key,omitempty"`
}

type startResponse struct {
	InterviewID       string                  `json:"interview_id"`
	FirstQuestion     questionPayload         `json:"first_question"`
	EstimatedDuration int                     `json:"estimated_duration"`
	SkillWeights      []interview.SkillWeight `json:"skill_weights"`
}

type questionPayload struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Skill      string `json:"skill,omitempty"`
	Type       string `json:"type,omitempty"`
	Difficulty int    `json:"difficulty"`
	Phase      string `json:"phase,omitempty"`
}

func toQuestionPayload(q interview.Question) questionPayload {
	return questionPayload{
		ID:         q.ID,
		Text:       q.Text,
		Skill:      q.Skill,
		Type:       string(q.Type),
		Difficulty: int(q.Difficulty),
		Phase:      q.Context["phase"],
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role := interview.Role(strings.TrimSpace(req.Role))
	if !knownRoles[role] {
		s.writeError(w, http.StatusBadRequest, "unknown role")
		return
	}
	if len(strings.TrimSpace(req.ResumeText)) < minResumeLength {
		s.writeError(w, http.StatusBadRequest, "resume text is too short")
		return
	}
	level := interview.ExperienceLevel(strings.ToLower(strings.TrimSpace(req.ExperienceLevel)))
	if !level.IsValid() {
		s.writeError(w, http.StatusBadRequest, "unknown experience level")
		return
	}

	ctx := r.Context()
	resume, err := s.analyzer.Analyze(ctx, req.ResumeText)
	if err != nil {
		status, msg := httpStatusFor(err)
		s.logger.Error("resume analysis failed", "error", err)
		s.writeError(w, status, msg)
		return
	}

	st := session.New(uuid.NewString(), req.UserID, role, resume)
	st.ExperienceLevel = level
	if s.timeLimit > 0 {
		st.TimeLimit = s.timeLimit
	}
	if err := st.Start(); err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if req.ProviderAPIKey != "" {
		if err := s.sessions.SetCandidateKey(ctx, st, req.ProviderAPIKey); err != nil {
			s.logger.Error("candidate key registration failed", "interview_id", st.ID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to register provider key")
			return
		}
	}

	ctx = gateway.WithInterview(ctx, st.ID)
	first, _, err := s.selector.SelectNext(ctx, st.ID, st.Progress())
	if err != nil {
		status, msg := httpStatusFor(err)
		s.logger.Error("first question selection failed", "interview_id", st.ID, "error", err)
		s.writeError(w, status, msg)
		return
	}
	st.AttachQuestion(first)

	if err := s.sessions.Save(ctx, st); err != nil {
		s.logger.Error("session save failed", "interview_id", st.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to persist interview")
		return
	}

	s.metrics.ActiveInterviews.Add(ctx, 1)
	s.metrics.RecordQuestion(ctx, first.Context["phase"], first.Context["source"])
	s.logger.Info("interview started",
		"interview_id", st.ID, "role", role, "skills", len(st.SkillWeights))

	s.writeJSON(w, http.StatusCreated, startResponse{
		InterviewID:       st.ID,
		FirstQuestion:     toQuestionPayload(first),
		EstimatedDuration: int(st.TimeLimit.Minutes()),
		SkillWeights:      st.SkillWeights,
	})
}

type answerRequest struct {
	Text     string `json:"text"`
	Code     string `json:"code,omitempty"`
	Language string `json:"language,omitempty"`
}

type answerResponse struct {
	Reprompt       bool                  `json:"reprompt,omitempty"`
	Evaluation     *interview.Evaluation `json:"evaluation,omitempty"`
	Framing        string                `json:"framing,omitempty"`
	NextQuestion   *questionPayload      `json:"next_question,omitempty"`
	Completed      bool                  `json:"completed,omitempty"`
	TotalQuestions int                   `json:"total_questions"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := gateway.WithInterview(r.Context(), st.ID)
	start := time.Now()
	res, err := s.turns.Submit(ctx, st, interview.Answer{
		Text:     req.Text,
		Code:     req.Code,
		Language: req.Language,
	})
	if err != nil {
		status, msg := httpStatusFor(err)
		s.logger.Error("turn failed", "interview_id", st.ID, "error", err)
		s.writeError(w, status, msg)
		return
	}
	s.recordTurn(ctx, st.Phase, res, time.Since(start))

	s.writeJSON(w, http.StatusOK, toAnswerResponse(res))
}

func toAnswerResponse(res turn.Result) answerResponse {
	out := answerResponse{
		Reprompt:       res.Reprompt,
		Framing:        res.Framing,
		Completed:      res.Completed,
		TotalQuestions: res.TotalQuestions,
	}
	if !res.Reprompt {
		eval := res.Evaluation
		out.Evaluation = &eval
	}
	if res.NextQuestion != nil {
		q := toQuestionPayload(*res.NextQuestion)
		out.NextQuestion = &q
	}
	return out
}

func (s *Server) recordTurn(ctx context.Context, phase interview.Phase, res turn.Result, d time.Duration) {
	outcome := "advanced"
	switch {
	case res.Reprompt:
		outcome = "reprompt"
	case res.Completed:
		outcome = "completed"
	}
	s.metrics.RecordTurn(ctx, string(phase), outcome, d)
	if res.Completed {
		s.metrics.ActiveInterviews.Add(ctx, -1)
	}
	if res.NextQuestion != nil {
		s.metrics.RecordQuestion(ctx, res.NextQuestion.Context["phase"], res.NextQuestion.Context["source"])
	}
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	ctx := gateway.WithInterview(r.Context(), st.ID)
	wasRunning := st.Status == session.StatusInProgress

	rep, err := s.turns.End(ctx, st)
	if err != nil {
		status, msg := httpStatusFor(err)
		s.logger.Error("interview end failed", "interview_id", st.ID, "error", err)
		s.writeError(w, status, msg)
		return
	}
	if wasRunning {
		s.metrics.ActiveInterviews.Add(ctx, -1)
	}
	if err := s.sessions.ClearCandidateKey(ctx, st.ID); err != nil {
		s.logger.Warn("candidate key cleanup failed", "interview_id", st.ID, "error", err)
	}
	s.writeJSON(w, http.StatusOK, rep)
}

// defaultListLimit caps /api/interviews responses when the client does not
// pass its own limit.
const defaultListLimit = 20

type interviewListItem struct {
	InterviewID string     `json:"interview_id"`
	Status      string     `json:"status"`
	Role        string     `json:"role"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

type interviewListResponse struct {
	Interviews []interviewListItem `json:"interviews"`
}

// handleList returns summaries of one candidate's interviews, newest first.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	filter := memory.InterviewFilter{
		UserID: userID,
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Limit:  defaultListLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	recs, err := s.interviews.ListInterviews(r.Context(), filter)
	if err != nil {
		s.logger.Error("interview list failed", "user_id", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list interviews")
		return
	}

	out := interviewListResponse{Interviews: make([]interviewListItem, 0, len(recs))}
	for _, rec := range recs {
		item := interviewListItem{
			InterviewID: rec.ID,
			Status:      rec.Status,
			Role:        rec.Role,
		}
		if !rec.StartedAt.IsZero() {
			ts := rec.StartedAt
			item.StartedAt = &ts
		}
		if !rec.EndedAt.IsZero() {
			ts := rec.EndedAt
			item.EndedAt = &ts
		}
		out.Interviews = append(out.Interviews, item)
	}
	s.writeJSON(w, http.StatusOK, out)
}

type interviewSummary struct {
	InterviewID      string           `json:"interview_id"`
	Status           string           `json:"status"`
	Role             string           `json:"role"`
	Phase            string           `json:"phase"`
	TotalQuestions   int              `json:"total_questions"`
	CurrentQuestion  *questionPayload `json:"current_question,omitempty"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	RemainingSeconds int              `json:"remaining_seconds"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	out := interviewSummary{
		InterviewID:    st.ID,
		Status:         string(st.Status),
		Role:           string(st.Role),
		Phase:          string(st.Phase),
		TotalQuestions: st.TotalQuestions,
	}
	if st.CurrentQuestion != nil {
		q := toQuestionPayload(*st.CurrentQuestion)
		out.CurrentQuestion = &q
	}
	if !st.StartedAt.IsZero() {
		ts := st.StartedAt
		out.StartedAt = &ts
	}
	if st.Status == session.StatusInProgress {
		out.RemainingSeconds = int(st.Remaining(time.Now()).Seconds())
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	rec, err := s.reports.GetReport(r.Context(), st.ID)
	if err != nil {
		s.logger.Error("report load failed", "interview_id", st.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "report not ready")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Data)
}

type sttTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (s *Server) handleSTTToken(w http.ResponseWriter, r *http.Request) {
	st, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if st.Status != session.StatusInProgress {
		s.writeError(w, http.StatusConflict, "interview is not in progress")
		return
	}
	if s.tokens == nil {
		s.writeError(w, http.StatusNotImplemented, "speech tokens are not configured")
		return
	}
	token, expiresIn, err := s.tokens.GrantToken(r.Context(), sttTokenTTL)
	if err != nil {
		s.logger.Error("stt token grant failed", "interview_id", st.ID, "error", err)
		s.writeError(w, http.StatusBadGateway, "service configuration error")
		return
	}
	s.writeJSON(w, http.StatusOK, sttTokenResponse{
		AccessToken: token,
		ExpiresIn:   int(expiresIn.Seconds()),
	})
}

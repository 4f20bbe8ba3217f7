// Package server exposes the interview engine over HTTP and WebSocket. The
// REST surface handles interview lifecycle (start, answer, end, report); the
// WebSocket surface carries the real-time voice loop (audio in, transcripts
// and synthesized questions out).
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intervoq/intervoq/internal/health"
	"github.com/intervoq/intervoq/internal/interview"
	"github.com/intervoq/intervoq/internal/observe"
	"github.com/intervoq/intervoq/internal/session"
	"github.com/intervoq/intervoq/internal/transcript"
	"github.com/intervoq/intervoq/internal/turn"
	"github.com/intervoq/intervoq/pkg/memory"
	"github.com/intervoq/intervoq/pkg/provider/stt"
	"github.com/intervoq/intervoq/pkg/provider/tts"
	"github.com/intervoq/intervoq/pkg/types"
)

// sttTokenTTL is the lifetime of short-lived browser STT tokens.
const sttTokenTTL = 30 * time.Second

// Sessions is the session persistence surface the server needs.
type Sessions interface {
	Save(ctx context.Context, st *session.State) error
	Load(ctx context.Context, interviewID string) (*session.State, error)
	SetCandidateKey(ctx context.Context, st *session.State, apiKey string) error
	ClearCandidateKey(ctx context.Context, interviewID string) error
}

// Turns drives one answer cycle and interview completion.
type Turns interface {
	Submit(ctx context.Context, st *session.State, ans interview.Answer) (turn.Result, error)
	End(ctx context.Context, st *session.State) (interview.Report, error)
}

// Selector picks the next question for an interview.
type Selector interface {
	SelectNext(ctx context.Context, interviewID string, p interview.Progress) (interview.Question, bool, error)
}

// ResumeAnalyzer extracts structured data from raw resume text.
type ResumeAnalyzer interface {
	Analyze(ctx context.Context, text string) (interview.ResumeData, error)
}

// InterviewLister serves the durable interview records behind the listing
// endpoint. Satisfied by [memory.InterviewStore].
type InterviewLister interface {
	ListInterviews(ctx context.Context, filter memory.InterviewFilter) ([]memory.InterviewRecord, error)
}

// TokenGranter mints short-lived STT access tokens for browser clients.
type TokenGranter interface {
	GrantToken(ctx context.Context, ttl time.Duration) (token string, expiresIn time.Duration, err error)
}

// Config wires a Server.
type Config struct {
	Sessions   Sessions
	Turns      Turns
	Selector   Selector
	Analyzer   ResumeAnalyzer
	Reports    memory.ReportStore
	Interviews InterviewLister
	Tokens     TokenGranter

	STT       stt.Provider
	TTS       tts.Provider
	Voice     types.VoiceProfile
	Corrector *transcript.Corrector

	// TimeLimit overrides the default interview duration for new sessions.
	// Zero keeps the session default.
	TimeLimit time.Duration

	Health  *health.Handler
	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Server is the HTTP/WebSocket front of the interview engine.
type Server struct {
	sessions   Sessions
	turns      Turns
	selector   Selector
	analyzer   ResumeAnalyzer
	reports    memory.ReportStore
	interviews InterviewLister
	tokens     TokenGranter

	stt       stt.Provider
	tts       tts.Provider
	voice     types.VoiceProfile
	corrector *transcript.Corrector
	timeLimit time.Duration

	health  *health.Handler
	metrics *observe.Metrics
	logger  *slog.Logger

	conns *registry
}

// New builds a Server from cfg. Health and Metrics default to working
// instances; Logger defaults to slog.Default.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	hh := cfg.Health
	if hh == nil {
		hh = health.New()
	}
	corrector := cfg.Corrector
	if corrector == nil {
		corrector = transcript.NewCorrector(transcript.DefaultVocabulary)
	}
	return &Server{
		sessions:   cfg.Sessions,
		turns:      cfg.Turns,
		selector:   cfg.Selector,
		analyzer:   cfg.Analyzer,
		reports:    cfg.Reports,
		interviews: cfg.Interviews,
		tokens:     cfg.Tokens,
		stt:        cfg.STT,
		tts:        cfg.TTS,
		voice:      cfg.Voice,
		corrector:  corrector,
		timeLimit:  cfg.TimeLimit,
		health:     hh,
		metrics:    metrics,
		logger:     logger,
		conns:      newRegistry(),
	}
}

// Router returns the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(observe.Middleware(s.metrics))

	r.Route("/api/interviews", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/start", s.handleStart)
		r.Route("/{interviewID}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Post("/answer", s.handleAnswer)
			r.Post("/end", s.handleEnd)
			r.Get("/report", s.handleReport)
			r.Get("/stt-token", s.handleSTTToken)
		})
	})
	r.Get("/ws/interview/{interviewID}", s.handleSocket)

	r.Get("/healthz", s.health.Healthz)
	r.Get("/readyz", s.health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// writeJSON encodes v with the given status. Encoding failures are logged,
// not surfaced; the status line is already on the wire.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

// writeError sends the uniform {"error": msg} body.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// loadSession fetches the session for a handler, writing the error response
// itself when the interview is missing or the store fails. The bool reports
// whether the caller may proceed.
func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (*session.State, bool) {
	id := chi.URLParam(r, "interviewID")
	st, err := s.sessions.Load(r.Context(), id)
	if err != nil {
		s.logger.Error("session load failed", "interview_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load interview")
		return nil, false
	}
	if st == nil {
		s.writeError(w, http.StatusNotFound, "interview not found")
		return nil, false
	}
	return st, true
}

// httpStatusFor maps domain errors onto HTTP status codes. Provider
// credential problems are deliberately opaque to the client.
func httpStatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, turn.ErrNotRunning):
		return http.StatusConflict, "interview is not in progress"
	case errors.Is(err, session.ErrNoCurrentQuestion):
		return http.StatusConflict, "no question is awaiting an answer"
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict, "interview is already finished"
	case isServiceConfiguration(err):
		return http.StatusBadGateway, "service configuration error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

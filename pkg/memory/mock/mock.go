// Package mock provides an in-memory test double for the memory layer
// interfaces.
//
// The [Store] actually stores what it is given, so round-trip assertions work
// without a database, and it records every method call for assertion in
// tests. Exported *Err fields force failures. Safe for concurrent use via an
// internal [sync.Mutex].
//
// Typical usage:
//
//	store := &mock.Store{}
//	_ = store.SaveInterview(ctx, rec)
//
//	if got := store.CallCount("SaveInterview"); got != 1 {
//	    t.Errorf("expected 1 SaveInterview call, got %d", got)
//	}
package mock

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/intervoq/intervoq/pkg/memory"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Store is an in-memory implementation of [memory.Store].
type Store struct {
	mu sync.Mutex

	calls []Call

	interviews map[string]memory.InterviewRecord
	reports    map[string]memory.ReportRecord // keyed by interview ID
	resumes    map[string]memory.ResumeRecord
	questions  map[string][]memory.QuestionVector // keyed by interview ID

	// SaveInterviewErr is returned by SaveInterview when non-nil.
	SaveInterviewErr error

	// GetInterviewErr is returned by GetInterview when non-nil.
	GetInterviewErr error

	// SaveReportErr is returned by SaveReport when non-nil.
	SaveReportErr error

	// SaveResumeErr is returned by SaveResume when non-nil.
	SaveResumeErr error

	// AddQuestionErr is returned by AddQuestion when non-nil.
	AddQuestionErr error

	// NearestErr is returned by NearestQuestions when non-nil.
	NearestErr error
}

var _ memory.Store = (*Store)(nil)

// Calls returns a copy of all recorded method invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *Store) record(method string, args ...any) {
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

// SaveInterview implements [memory.InterviewStore]. A nil State keeps the
// previously stored snapshot, matching the durable implementation.
func (m *Store) SaveInterview(_ context.Context, rec memory.InterviewRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SaveInterview", rec)
	if m.SaveInterviewErr != nil {
		return m.SaveInterviewErr
	}
	if m.interviews == nil {
		m.interviews = map[string]memory.InterviewRecord{}
	}
	if prev, ok := m.interviews[rec.ID]; ok {
		if rec.State == nil {
			rec.State = prev.State
		}
		if rec.EndedAt.IsZero() {
			rec.EndedAt = prev.EndedAt
		}
	}
	m.interviews[rec.ID] = rec
	return nil
}

// GetInterview implements [memory.InterviewStore].
func (m *Store) GetInterview(_ context.Context, id string) (*memory.InterviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetInterview", id)
	if m.GetInterviewErr != nil {
		return nil, m.GetInterviewErr
	}
	rec, ok := m.interviews[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListInterviews implements [memory.InterviewStore].
func (m *Store) ListInterviews(_ context.Context, filter memory.InterviewFilter) ([]memory.InterviewRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListInterviews", filter)
	out := []memory.InterviewRecord{}
	for _, rec := range m.interviews {
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// DeleteInterview implements [memory.InterviewStore].
func (m *Store) DeleteInterview(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteInterview", id)
	delete(m.interviews, id)
	delete(m.reports, id)
	delete(m.questions, id)
	return nil
}

// SaveReport implements [memory.ReportStore].
func (m *Store) SaveReport(_ context.Context, rec memory.ReportRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SaveReport", rec)
	if m.SaveReportErr != nil {
		return m.SaveReportErr
	}
	if m.reports == nil {
		m.reports = map[string]memory.ReportRecord{}
	}
	m.reports[rec.InterviewID] = rec
	return nil
}

// GetReport implements [memory.ReportStore].
func (m *Store) GetReport(_ context.Context, interviewID string) (*memory.ReportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetReport", interviewID)
	rec, ok := m.reports[interviewID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListReports implements [memory.ReportStore].
func (m *Store) ListReports(_ context.Context, userID string) ([]memory.ReportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListReports", userID)
	out := []memory.ReportRecord{}
	for _, rec := range m.reports {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SaveResume implements [memory.ResumeStore].
func (m *Store) SaveResume(_ context.Context, rec memory.ResumeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SaveResume", rec)
	if m.SaveResumeErr != nil {
		return m.SaveResumeErr
	}
	if m.resumes == nil {
		m.resumes = map[string]memory.ResumeRecord{}
	}
	m.resumes[rec.ID] = rec
	return nil
}

// GetResume implements [memory.ResumeStore].
func (m *Store) GetResume(_ context.Context, id string) (*memory.ResumeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetResume", id)
	rec, ok := m.resumes[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// LatestResume implements [memory.ResumeStore].
func (m *Store) LatestResume(_ context.Context, userID string) (*memory.ResumeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("LatestResume", userID)
	var latest *memory.ResumeRecord
	for id := range m.resumes {
		rec := m.resumes[id]
		if rec.UserID != userID {
			continue
		}
		if latest == nil || rec.UploadedAt.After(latest.UploadedAt) {
			latest = &rec
		}
	}
	return latest, nil
}

// AddQuestion implements [memory.QuestionIndex].
func (m *Store) AddQuestion(_ context.Context, interviewID string, qv memory.QuestionVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("AddQuestion", interviewID, qv)
	if m.AddQuestionErr != nil {
		return m.AddQuestionErr
	}
	if m.questions == nil {
		m.questions = map[string][]memory.QuestionVector{}
	}
	for i, existing := range m.questions[interviewID] {
		if existing.QuestionID == qv.QuestionID {
			m.questions[interviewID][i] = qv
			return nil
		}
	}
	m.questions[interviewID] = append(m.questions[interviewID], qv)
	return nil
}

// NearestQuestions implements [memory.QuestionIndex] using exact cosine
// similarity over the stored vectors.
func (m *Store) NearestQuestions(_ context.Context, interviewID string, embedding []float32, limit int) ([]memory.QuestionMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("NearestQuestions", interviewID, embedding, limit)
	if m.NearestErr != nil {
		return nil, m.NearestErr
	}
	matches := []memory.QuestionMatch{}
	for _, qv := range m.questions[interviewID] {
		matches = append(matches, memory.QuestionMatch{
			QuestionID: qv.QuestionID,
			Text:       qv.Text,
			Similarity: cosine(embedding, qv.Embedding),
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

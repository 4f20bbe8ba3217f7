package memory

import (
	"encoding/json"
	"time"
)

// InterviewRecord is the durable snapshot of one interview. The State blob is
// the full serialized session state (progress, exchanges, conversation
// window) so a crashed or expired hot session can be rebuilt from it.
// Candidate-supplied API keys are never part of State.
type InterviewRecord struct {
	// ID is the interview's unique identifier (a UUID).
	ID string

	// UserID is the candidate this interview belongs to.
	UserID string

	// Role is the target role slug (e.g., "backend", "frontend", "devops").
	Role string

	// Status is the interview lifecycle state:
	// created, in_progress, completed, abandoned.
	Status string

	// State is the JSON session snapshot. May be nil for a freshly created
	// interview that has not produced state yet.
	State json.RawMessage

	StartedAt time.Time

	// EndedAt is zero while the interview is still running.
	EndedAt time.Time

	// UpdatedAt is when this record was last written.
	UpdatedAt time.Time
}

// InterviewFilter narrows ListInterviews results.
// All non-zero fields are applied as AND conditions.
type InterviewFilter struct {
	// UserID restricts results to a single candidate.
	UserID string

	// Status restricts results to one lifecycle state.
	Status string

	// Limit caps the number of results returned.
	// A value of 0 means the implementation may apply its own default.
	Limit int
}

// ReportRecord is a stored final assessment for a completed interview.
// Data is the full report document as produced by the report generator.
type ReportRecord struct {
	ReportID    string
	InterviewID string
	UserID      string
	Data        json.RawMessage
	CreatedAt   time.Time
}

// ResumeRecord is a stored candidate resume: the extracted raw text plus the
// structured analysis derived from it.
type ResumeRecord struct {
	ID       string
	UserID   string
	Filename string

	// Text is the extracted plain text of the uploaded document.
	Text string

	// Analysis is the structured resume data (skills, projects, experience)
	// produced by the resume analyzer.
	Analysis json.RawMessage

	UploadedAt time.Time
}

// QuestionVector is one asked question with its embedding, ready to index.
type QuestionVector struct {
	QuestionID string
	Text       string
	Skill      string
	Embedding  []float32
	AskedAt    time.Time
}

// QuestionMatch pairs an indexed question with its cosine similarity to a
// probe vector. Higher Similarity means closer.
type QuestionMatch struct {
	QuestionID string
	Text       string
	Similarity float64
}

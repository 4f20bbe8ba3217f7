// Package memory defines the durable storage layer for intervoq interviews.
//
// Three stores make up the layer:
//
//   - [InterviewStore]: lifecycle records plus the full JSON session snapshot,
//     used to rebuild a session after the hot tier expires or the service
//     restarts.
//   - [ReportStore]: final assessment documents for completed interviews.
//   - [ResumeStore]: uploaded resume text and its structured analysis.
//
// A fourth interface, [QuestionIndex], is the vector side: embeddings of
// every asked question, scoped per interview, serving nearest-neighbour
// lookups for the duplicate-question guard.
//
// All interfaces are public so external packages can supply alternative
// backends (Postgres/pgvector, in-memory, …) without depending on intervoq
// internals. Every implementation must be safe for concurrent use.
package memory

import "context"

// InterviewStore persists interview lifecycle records and session snapshots.
//
// Get methods return (nil, nil) when no record exists; an error indicates a
// storage failure, never a miss.
type InterviewStore interface {
	// SaveInterview upserts the record. A nil State leaves any previously
	// stored snapshot untouched so lifecycle-only updates cannot erase state.
	SaveInterview(ctx context.Context, rec InterviewRecord) error

	// GetInterview retrieves a record by interview ID.
	GetInterview(ctx context.Context, id string) (*InterviewRecord, error)

	// ListInterviews returns records matching filter, most recently started
	// first. Returns an empty (non-nil) slice when nothing matches.
	ListInterviews(ctx context.Context, filter InterviewFilter) ([]InterviewRecord, error)

	// DeleteInterview removes the record and its dependent rows (indexed
	// questions, reports). Deleting a non-existent interview is not an error.
	DeleteInterview(ctx context.Context, id string) error
}

// ReportStore persists final assessment documents.
type ReportStore interface {
	// SaveReport upserts a report. One report per interview; a second save
	// for the same interview replaces the first.
	SaveReport(ctx context.Context, rec ReportRecord) error

	// GetReport retrieves the report for an interview.
	// Returns (nil, nil) when none exists.
	GetReport(ctx context.Context, interviewID string) (*ReportRecord, error)

	// ListReports returns all reports for a candidate, newest first.
	// Returns an empty (non-nil) slice when the candidate has none.
	ListReports(ctx context.Context, userID string) ([]ReportRecord, error)
}

// ResumeStore persists uploaded resumes and their analyses.
type ResumeStore interface {
	// SaveResume upserts a resume by ID.
	SaveResume(ctx context.Context, rec ResumeRecord) error

	// GetResume retrieves a resume by its ID.
	// Returns (nil, nil) when none exists.
	GetResume(ctx context.Context, id string) (*ResumeRecord, error)

	// LatestResume returns the candidate's most recently uploaded resume.
	// Returns (nil, nil) when the candidate has never uploaded one.
	LatestResume(ctx context.Context, userID string) (*ResumeRecord, error)
}

// QuestionIndex stores embeddings of asked questions and serves similarity
// lookups scoped to a single interview.
type QuestionIndex interface {
	// AddQuestion indexes one asked question. Re-indexing the same
	// (interviewID, QuestionID) pair replaces the earlier row.
	AddQuestion(ctx context.Context, interviewID string, qv QuestionVector) error

	// NearestQuestions returns up to limit indexed questions from the given
	// interview ordered by descending cosine similarity to the probe vector.
	// Returns an empty (non-nil) slice when the interview has no indexed
	// questions.
	NearestQuestions(ctx context.Context, interviewID string, embedding []float32, limit int) ([]QuestionMatch, error)
}

// Store bundles the full durable layer behind one value.
type Store interface {
	InterviewStore
	ReportStore
	ResumeStore
	QuestionIndex
}

// Package postgres provides the PostgreSQL-backed implementation of the
// intervoq durable memory layer (interviews, reports, resumes, and the
// pgvector question index).
//
// All stores share a single [pgxpool.Pool]. The pgvector extension must be
// available in the target database; [Migrate] installs it automatically via
// CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//
//	_ = store.SaveInterview(ctx, rec)
//	_ = store.AddQuestion(ctx, interviewID, qv)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlInterviews = `
CREATE TABLE IF NOT EXISTS interviews (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    role        TEXT         NOT NULL,
    status      TEXT         NOT NULL,
    state       JSONB,
    started_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    ended_at    TIMESTAMPTZ,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_interviews_user_id
    ON interviews (user_id);

CREATE INDEX IF NOT EXISTS idx_interviews_status
    ON interviews (status);

CREATE INDEX IF NOT EXISTS idx_interviews_user_started
    ON interviews (user_id, started_at DESC);
`

const ddlReports = `
CREATE TABLE IF NOT EXISTS reports (
    report_id     TEXT         PRIMARY KEY,
    interview_id  TEXT         NOT NULL UNIQUE
                               REFERENCES interviews (id) ON DELETE CASCADE,
    user_id       TEXT         NOT NULL,
    data          JSONB        NOT NULL,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reports_user_id
    ON reports (user_id, created_at DESC);
`

const ddlResumes = `
CREATE TABLE IF NOT EXISTS resumes (
    id           TEXT         PRIMARY KEY,
    user_id      TEXT         NOT NULL,
    filename     TEXT         NOT NULL DEFAULT '',
    text         TEXT         NOT NULL,
    analysis     JSONB,
    uploaded_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_resumes_user_uploaded
    ON resumes (user_id, uploaded_at DESC);
`

// ddlQuestionIndex returns the question index DDL with the embedding
// dimension substituted. The vector dimension is baked into the column type
// at schema creation time.
func ddlQuestionIndex(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS asked_questions (
    interview_id  TEXT         NOT NULL
                               REFERENCES interviews (id) ON DELETE CASCADE,
    question_id   TEXT         NOT NULL,
    text          TEXT         NOT NULL,
    skill         TEXT         NOT NULL DEFAULT '',
    embedding     vector(%d),
    asked_at      TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (interview_id, question_id)
);

CREATE INDEX IF NOT EXISTS idx_asked_questions_interview
    ON asked_questions (interview_id);

CREATE INDEX IF NOT EXISTS idx_asked_questions_embedding
    ON asked_questions USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
//
// embeddingDimensions must match the embedding model configured for the
// deployment (e.g., 1536 for OpenAI text-embedding-3-small). Changing this
// value after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlInterviews,
		ddlReports,
		ddlResumes,
		ddlQuestionIndex(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

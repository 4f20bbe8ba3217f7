package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/intervoq/intervoq/pkg/memory"
)

// AddQuestion implements [memory.QuestionIndex]. It upserts one asked
// question keyed by (interview_id, question_id).
func (s *Store) AddQuestion(ctx context.Context, interviewID string, qv memory.QuestionVector) error {
	const q = `
		INSERT INTO asked_questions
		    (interview_id, question_id, text, skill, embedding, asked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (interview_id, question_id) DO UPDATE SET
		    text      = EXCLUDED.text,
		    skill     = EXCLUDED.skill,
		    embedding = EXCLUDED.embedding,
		    asked_at  = EXCLUDED.asked_at`

	_, err := s.pool.Exec(ctx, q,
		interviewID,
		qv.QuestionID,
		qv.Text,
		qv.Skill,
		pgvector.NewVector(qv.Embedding),
		qv.AskedAt,
	)
	if err != nil {
		return fmt.Errorf("question index: add: %w", err)
	}
	return nil
}

// NearestQuestions implements [memory.QuestionIndex]. Cosine similarity is
// derived from the pgvector cosine distance operator: similarity = 1 - (a <=> b).
// Results are ordered most similar first.
func (s *Store) NearestQuestions(ctx context.Context, interviewID string, embedding []float32, limit int) ([]memory.QuestionMatch, error) {
	const q = `
		SELECT question_id, text, 1 - (embedding <=> $2) AS similarity
		FROM   asked_questions
		WHERE  interview_id = $1
		ORDER  BY embedding <=> $2
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, interviewID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("question index: nearest: %w", err)
	}
	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.QuestionMatch, error) {
		var m memory.QuestionMatch
		if err := row.Scan(&m.QuestionID, &m.Text, &m.Similarity); err != nil {
			return memory.QuestionMatch{}, err
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("question index: scan rows: %w", err)
	}
	if matches == nil {
		matches = []memory.QuestionMatch{}
	}
	return matches, nil
}

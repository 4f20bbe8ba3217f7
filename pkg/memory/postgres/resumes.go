package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/intervoq/intervoq/pkg/memory"
)

// SaveResume implements [memory.ResumeStore].
func (s *Store) SaveResume(ctx context.Context, rec memory.ResumeRecord) error {
	const q = `
		INSERT INTO resumes (id, user_id, filename, text, analysis, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
		    user_id     = EXCLUDED.user_id,
		    filename    = EXCLUDED.filename,
		    text        = EXCLUDED.text,
		    analysis    = EXCLUDED.analysis,
		    uploaded_at = EXCLUDED.uploaded_at`

	var analysis []byte
	if rec.Analysis != nil {
		analysis = rec.Analysis
	}
	_, err := s.pool.Exec(ctx, q,
		rec.ID,
		rec.UserID,
		rec.Filename,
		rec.Text,
		analysis,
		rec.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("resume store: save: %w", err)
	}
	return nil
}

// GetResume implements [memory.ResumeStore].
// Returns (nil, nil) when the resume does not exist.
func (s *Store) GetResume(ctx context.Context, id string) (*memory.ResumeRecord, error) {
	const q = `
		SELECT id, user_id, filename, text, analysis, uploaded_at
		FROM   resumes
		WHERE  id = $1`
	return s.queryOneResume(ctx, q, id)
}

// LatestResume implements [memory.ResumeStore].
// Returns (nil, nil) when the candidate has never uploaded a resume.
func (s *Store) LatestResume(ctx context.Context, userID string) (*memory.ResumeRecord, error) {
	const q = `
		SELECT id, user_id, filename, text, analysis, uploaded_at
		FROM   resumes
		WHERE  user_id = $1
		ORDER  BY uploaded_at DESC
		LIMIT  1`
	return s.queryOneResume(ctx, q, userID)
}

func (s *Store) queryOneResume(ctx context.Context, q string, arg any) (*memory.ResumeRecord, error) {
	rows, err := s.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, fmt.Errorf("resume store: query: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, scanResume)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("resume store: scan: %w", err)
	}
	return &rec, nil
}

func scanResume(row pgx.CollectableRow) (memory.ResumeRecord, error) {
	var (
		rec      memory.ResumeRecord
		analysis []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Filename,
		&rec.Text,
		&analysis,
		&rec.UploadedAt,
	); err != nil {
		return memory.ResumeRecord{}, err
	}
	rec.Analysis = analysis
	return rec, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/intervoq/intervoq/pkg/memory"
)

// SaveReport implements [memory.ReportStore]. The interview_id UNIQUE
// constraint makes the second save for the same interview replace the first.
func (s *Store) SaveReport(ctx context.Context, rec memory.ReportRecord) error {
	const q = `
		INSERT INTO reports (report_id, interview_id, user_id, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (interview_id) DO UPDATE SET
		    report_id  = EXCLUDED.report_id,
		    user_id    = EXCLUDED.user_id,
		    data       = EXCLUDED.data,
		    created_at = EXCLUDED.created_at`

	_, err := s.pool.Exec(ctx, q,
		rec.ReportID,
		rec.InterviewID,
		rec.UserID,
		[]byte(rec.Data),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("report store: save: %w", err)
	}
	return nil
}

// GetReport implements [memory.ReportStore].
// Returns (nil, nil) when the interview has no report.
func (s *Store) GetReport(ctx context.Context, interviewID string) (*memory.ReportRecord, error) {
	const q = `
		SELECT report_id, interview_id, user_id, data, created_at
		FROM   reports
		WHERE  interview_id = $1`

	rows, err := s.pool.Query(ctx, q, interviewID)
	if err != nil {
		return nil, fmt.Errorf("report store: get: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, scanReport)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("report store: scan: %w", err)
	}
	return &rec, nil
}

// ListReports implements [memory.ReportStore]. Newest first.
func (s *Store) ListReports(ctx context.Context, userID string) ([]memory.ReportRecord, error) {
	const q = `
		SELECT report_id, interview_id, user_id, data, created_at
		FROM   reports
		WHERE  user_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("report store: list: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanReport)
	if err != nil {
		return nil, fmt.Errorf("report store: scan rows: %w", err)
	}
	if recs == nil {
		recs = []memory.ReportRecord{}
	}
	return recs, nil
}

func scanReport(row pgx.CollectableRow) (memory.ReportRecord, error) {
	var (
		rec  memory.ReportRecord
		data []byte
	)
	if err := row.Scan(
		&rec.ReportID,
		&rec.InterviewID,
		&rec.UserID,
		&data,
		&rec.CreatedAt,
	); err != nil {
		return memory.ReportRecord{}, err
	}
	rec.Data = data
	return rec, nil
}

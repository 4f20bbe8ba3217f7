package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/intervoq/intervoq/pkg/memory"
)

// SaveInterview implements [memory.InterviewStore]. It upserts the record
// keyed by interview ID. COALESCE on the state column keeps a previously
// stored snapshot when the incoming record carries none, so a lifecycle-only
// update (e.g., status flip to completed) cannot erase session state.
func (s *Store) SaveInterview(ctx context.Context, rec memory.InterviewRecord) error {
	const q = `
		INSERT INTO interviews
		    (id, user_id, role, status, state, started_at, ended_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
		    user_id    = EXCLUDED.user_id,
		    role       = EXCLUDED.role,
		    status     = EXCLUDED.status,
		    state      = COALESCE(EXCLUDED.state, interviews.state),
		    started_at = EXCLUDED.started_at,
		    ended_at   = COALESCE(EXCLUDED.ended_at, interviews.ended_at),
		    updated_at = now()`

	var endedAt *time.Time
	if !rec.EndedAt.IsZero() {
		endedAt = &rec.EndedAt
	}
	var state []byte
	if rec.State != nil {
		state = rec.State
	}

	_, err := s.pool.Exec(ctx, q,
		rec.ID,
		rec.UserID,
		rec.Role,
		rec.Status,
		state,
		rec.StartedAt,
		endedAt,
	)
	if err != nil {
		return fmt.Errorf("interview store: save: %w", err)
	}
	return nil
}

// GetInterview implements [memory.InterviewStore].
// Returns (nil, nil) when the interview does not exist.
func (s *Store) GetInterview(ctx context.Context, id string) (*memory.InterviewRecord, error) {
	const q = `
		SELECT id, user_id, role, status, state, started_at, ended_at, updated_at
		FROM   interviews
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("interview store: get: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, scanInterview)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("interview store: scan: %w", err)
	}
	return &rec, nil
}

// ListInterviews implements [memory.InterviewStore]. Results are ordered by
// started_at descending.
func (s *Store) ListInterviews(ctx context.Context, filter memory.InterviewFilter) ([]memory.InterviewRecord, error) {
	args := []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if filter.UserID != "" {
		conditions = append(conditions, "user_id = "+next(filter.UserID))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+next(filter.Status))
	}

	q := "SELECT id, user_id, role, status, state, started_at, ended_at, updated_at\nFROM   interviews"
	if len(conditions) > 0 {
		q += "\nWHERE  " + strings.Join(conditions, "\n  AND  ")
	}
	q += "\nORDER  BY started_at DESC"
	if filter.Limit > 0 {
		q += "\nLIMIT " + next(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("interview store: list: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanInterview)
	if err != nil {
		return nil, fmt.Errorf("interview store: scan rows: %w", err)
	}
	if recs == nil {
		recs = []memory.InterviewRecord{}
	}
	return recs, nil
}

// DeleteInterview implements [memory.InterviewStore]. Dependent reports and
// indexed questions go with it via ON DELETE CASCADE.
func (s *Store) DeleteInterview(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM interviews WHERE id = $1`, id); err != nil {
		return fmt.Errorf("interview store: delete: %w", err)
	}
	return nil
}

func scanInterview(row pgx.CollectableRow) (memory.InterviewRecord, error) {
	var (
		rec     memory.InterviewRecord
		state   []byte
		endedAt *time.Time
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Role,
		&rec.Status,
		&state,
		&rec.StartedAt,
		&endedAt,
		&rec.UpdatedAt,
	); err != nil {
		return memory.InterviewRecord{}, err
	}
	rec.State = state
	if endedAt != nil {
		rec.EndedAt = *endedAt
	}
	return rec, nil
}

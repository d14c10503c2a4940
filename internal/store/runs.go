package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Run is the persisted record of one pipeline run. Reports holds the run
// summary as raw JSON.
type Run struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	StartedBy  string          `json:"started_by,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Error      string          `json:"error,omitempty"`
	Reports    json.RawMessage `json:"reports,omitempty"`
}

func (s *Store) CreateRun(ctx context.Context, id, startedBy string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_by, started_at) VALUES (?, ?, ?, ?)`,
		id, RunRunning, nullString(startedBy), at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun records the outcome. A nil runErr marks the run succeeded.
func (s *Store) FinishRun(ctx context.Context, id string, at time.Time, reports any, runErr error) error {
	status := RunSucceeded
	var errText sql.NullString
	if runErr != nil {
		status = RunFailed
		errText = nullString(runErr.Error())
	}

	var payload sql.NullString
	if reports != nil {
		b, err := json.Marshal(reports)
		if err != nil {
			return fmt.Errorf("marshal run reports: %w", err)
		}
		payload = nullString(string(b))
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error = ?, reports = ? WHERE id = ?`,
		status, at.UTC(), errText, payload, id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// GetRun returns nil when the run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		r         Run
		startedBy sql.NullString
		finished  sql.NullTime
		errText   sql.NullString
		reports   sql.NullString
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, status, started_by, started_at, finished_at, error, reports FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Status, &startedBy, &r.StartedAt, &finished, &errText, &reports)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getRun: %w", err)
	}

	r.StartedBy = startedBy.String
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	r.Error = errText.String
	if reports.Valid {
		r.Reports = json.RawMessage(reports.String)
	}
	return &r, nil
}

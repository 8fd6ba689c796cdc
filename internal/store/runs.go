package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paiml/probar/internal/machine"
	"github.com/paiml/probar/internal/runner"
)

// ErrRunNotFound is returned by GetRun for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one persisted run, as read back from the store.
type RunRecord struct {
	ID                  string                      `json:"id"`
	Playbook            string                      `json:"playbook"`
	Passed              bool                        `json:"passed"`
	StatePath           []machine.StateID           `json:"state_path"`
	Variables           map[string]string           `json:"variables,omitempty"`
	FailureCause        string                      `json:"failure_cause,omitempty"`
	AssertionFailures   []runner.AssertionFailure   `json:"assertion_failures,omitempty"`
	ForbiddenViolations []runner.ForbiddenViolation `json:"forbidden_violations,omitempty"`
	CreatedAt           string                      `json:"created_at"`
}

// WriteRun persists one execution result. Duplicate run IDs are silently
// ignored so retried writes stay idempotent.
func (s *Store) WriteRun(ctx context.Context, result *runner.Result) error {
	pathJSON, err := json.Marshal(result.StatePath)
	if err != nil {
		return fmt.Errorf("write run: marshal state path: %w", err)
	}
	varsJSON, err := json.Marshal(result.Variables)
	if err != nil {
		return fmt.Errorf("write run: marshal variables: %w", err)
	}
	failuresJSON, err := json.Marshal(result.AssertionFailures)
	if err != nil {
		return fmt.Errorf("write run: marshal assertion failures: %w", err)
	}
	violationsJSON, err := json.Marshal(result.ForbiddenViolations)
	if err != nil {
		return fmt.Errorf("write run: marshal forbidden violations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, playbook, passed, state_path, variables, failure_cause, assertion_failures, forbidden_violations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		result.RunID,
		result.Playbook,
		result.Passed,
		string(pathJSON),
		string(varsJSON),
		result.FailureCause,
		string(failuresJSON),
		string(violationsJSON),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// GetRun fetches a run by ID. Returns ErrRunNotFound for unknown IDs.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, playbook, passed, state_path, variables, failure_cause,
		       assertion_failures, forbidden_violations, created_at
		FROM runs WHERE id = ?
	`, id)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return rec, err
}

// ListRuns returns the most recent runs, newest first. A non-empty
// playbook filters by playbook name; limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, playbook string, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, playbook, passed, state_path, variables, failure_cause,
		       assertion_failures, forbidden_violations, created_at
		FROM runs
	`
	var args []any
	if playbook != "" {
		query += " WHERE playbook = ?"
		args = append(args, playbook)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return records, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var rec RunRecord
	var pathJSON, varsJSON, failuresJSON, violationsJSON string

	err := row.Scan(
		&rec.ID,
		&rec.Playbook,
		&rec.Passed,
		&pathJSON,
		&varsJSON,
		&rec.FailureCause,
		&failuresJSON,
		&violationsJSON,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(pathJSON), &rec.StatePath); err != nil {
		return nil, fmt.Errorf("scan run %s: state path: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(varsJSON), &rec.Variables); err != nil {
		return nil, fmt.Errorf("scan run %s: variables: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(failuresJSON), &rec.AssertionFailures); err != nil {
		return nil, fmt.Errorf("scan run %s: assertion failures: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(violationsJSON), &rec.ForbiddenViolations); err != nil {
		return nil, fmt.Errorf("scan run %s: forbidden violations: %w", rec.ID, err)
	}
	return &rec, nil
}

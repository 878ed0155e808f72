package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const runColumns = `r.id, r.label, r.started_at, r.start_step, r.start_counter, r.resumed_from, r.log_path, r.params`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ReadRun retrieves a single run by ID.
// Returns ErrNotFound if no such run exists.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r
		WHERE r.id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ReadCheckpoints returns the checkpoints of a run ordered by step.
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadCheckpoints(ctx context.Context, runID string) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, step, counter, limbs, bytes, compressed, path, saved_at
		FROM checkpoints
		WHERE run_id = ?
		ORDER BY step ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	checkpoints := []Checkpoint{}
	for rows.Next() {
		var cp Checkpoint
		var step, savedAt int64
		if err := rows.Scan(&cp.RunID, &step, &cp.Counter, &cp.Limbs, &cp.Bytes,
			&cp.Compressed, &cp.Path, &savedAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp.Step = uint64(step)
		cp.SavedAt = fromUnix(savedAt)
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return checkpoints, nil
}

// ReadOutcome returns the outcome of a run, or nil if it has not finished.
func (s *Store) ReadOutcome(ctx context.Context, runID string) (*Outcome, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, kind, step, counter, error, finished_at
		FROM outcomes
		WHERE run_id = ?
	`, runID)

	var out Outcome
	var kind string
	var step, finishedAt int64
	err := row.Scan(&out.RunID, &kind, &step, &out.Counter, &out.Error, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read outcome: %w", err)
	}
	out.Kind = OutcomeKind(kind)
	out.Step = uint64(step)
	out.FinishedAt = fromUnix(finishedAt)
	return &out, nil
}

// ReadHistory returns up to limit runs, most recent first.
// A non-positive limit returns every run.
func (s *Store) ReadHistory(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`,
			(SELECT COUNT(*) FROM checkpoints c WHERE c.run_id = r.id),
			(SELECT MAX(step) FROM checkpoints c WHERE c.run_id = r.id),
			o.kind, o.step, o.counter, o.error, o.finished_at
		FROM runs r
		LEFT JOIN outcomes o ON o.run_id = r.id
		ORDER BY r.started_at DESC, r.id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	history := []RunSummary{}
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

func scanRun(row rowScanner, extra ...any) (Run, error) {
	var run Run
	var startedAt, startStep int64
	var params string

	dest := append([]any{
		&run.ID, &run.Label, &startedAt, &startStep, &run.StartCounter,
		&run.ResumedFrom, &run.LogPath, &params,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	p, err := unmarshalParams(params)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = fromUnix(startedAt)
	run.StartStep = uint64(startStep)
	run.Params = p
	return run, nil
}

func scanSummary(rows *sql.Rows) (RunSummary, error) {
	var (
		count                        int
		lastStep                     sql.NullInt64
		kind, errText                sql.NullString
		outStep, outCounter, outTime sql.NullInt64
	)
	run, err := scanRun(rows, &count, &lastStep, &kind, &outStep, &outCounter, &errText, &outTime)
	if err != nil {
		return RunSummary{}, err
	}

	sum := RunSummary{Run: run, Checkpoints: count}
	if lastStep.Valid {
		v := uint64(lastStep.Int64)
		sum.LastCheckpoint = &v
	}
	if kind.Valid {
		sum.Outcome = &Outcome{
			RunID:      run.ID,
			Kind:       OutcomeKind(kind.String),
			Step:       uint64(outStep.Int64),
			Counter:    outCounter.Int64,
			Error:      errText.String,
			FinishedAt: fromUnix(outTime.Int64),
		}
	}
	return sum, nil
}

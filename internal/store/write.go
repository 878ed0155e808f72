package store

import (
	"context"
	"fmt"
)

// BeginRun assigns a run ID from gen and inserts the run.
// The returned Run carries the assigned ID and normalized label.
func (s *Store) BeginRun(ctx context.Context, gen IDGenerator, run Run) (Run, error) {
	run.ID = gen.Generate()
	run.Label = normalizeLabel(run.Label)

	params, err := marshalParams(run.Params)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, label, started_at, start_step, start_counter, resumed_from, log_path, params)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Label,
		toUnix(run.StartedAt),
		int64(run.StartStep),
		run.StartCounter,
		run.ResumedFrom,
		run.LogPath,
		params,
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// RecordCheckpoint appends a checkpoint row.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) RecordCheckpoint(ctx context.Context, cp Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints
		(run_id, step, counter, limbs, bytes, compressed, path, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		cp.RunID,
		int64(cp.Step),
		cp.Counter,
		cp.Limbs,
		cp.Bytes,
		cp.Compressed,
		cp.Path,
		toUnix(cp.SavedAt),
	)
	if err != nil {
		return fmt.Errorf("record checkpoint: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run.
// Uses ON CONFLICT DO NOTHING: the first outcome recorded for a run wins.
func (s *Store) FinishRun(ctx context.Context, out Outcome) error {
	switch out.Kind {
	case OutcomeHalted, OutcomeInterrupted, OutcomeFailed:
	default:
		return fmt.Errorf("finish run: unknown outcome %q", out.Kind)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(run_id, kind, step, counter, error, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		out.RunID,
		string(out.Kind),
		int64(out.Step),
		out.Counter,
		out.Error,
		toUnix(out.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Advisory lock prevents concurrent migrations when the CLI, workers and
	// the results service start against the same database.
	const lockID = 740031205

	var acquired bool
	err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		// Another service is running migrations; wait briefly and skip
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id UUID PRIMARY KEY,
			model TEXT,
			dataset_path TEXT,
			sample_size INT,
			seed BIGINT,
			task_count INT DEFAULT 0,
			status TEXT,
			accuracy DOUBLE PRECISION,
			reasoning_score DOUBLE PRECISION,
			started_at TIMESTAMPTZ DEFAULT now(),
			finished_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			run_id UUID REFERENCES runs(id) ON DELETE CASCADE,
			record_id TEXT,
			question TEXT,
			expected TEXT,
			predicted TEXT,
			reasoning TEXT,
			diff DOUBLE PRECISION,
			result TEXT,
			reasoning_score INT,
			step_list TEXT[],
			PRIMARY KEY (run_id, record_id, question)
		);`,
		`ALTER TABLE runs ADD COLUMN IF NOT EXISTS task_count INT DEFAULT 0;`,
		`CREATE INDEX IF NOT EXISTS outcomes_run_idx ON outcomes (run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run Run) error {
	if run.ID == uuid.Nil {
		return errors.New("run id required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, model, dataset_path, sample_size, seed, task_count, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Model, run.DatasetPath, run.SampleSize, run.Seed, run.TaskCount, string(run.Status), run.StartedAt,
	)
	return err
}

func (s *PostgresStore) FinishRun(ctx context.Context, id uuid.UUID, accuracy float64, reasoningScore *float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = $2, accuracy = $3, reasoning_score = $4, finished_at = now()
		WHERE id = $1`,
		id, string(StatusComplete), accuracy, reasoningScore,
	)
	if err != nil {
		return err
	}
	return checkRunUpdated(res)
}

func (s *PostgresStore) FailRun(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = $2, finished_at = now() WHERE id = $1`,
		id, string(StatusFailed),
	)
	if err != nil {
		return err
	}
	return checkRunUpdated(res)
}

func (s *PostgresStore) SaveOutcomes(ctx context.Context, outcomes []Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, o := range outcomes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outcomes (run_id, record_id, question, expected, predicted, reasoning, diff, result, reasoning_score, step_list)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (run_id, record_id, question) DO UPDATE
			SET predicted = EXCLUDED.predicted,
			    reasoning = EXCLUDED.reasoning,
			    diff = EXCLUDED.diff,
			    result = EXCLUDED.result,
			    reasoning_score = EXCLUDED.reasoning_score`,
			o.RunID, o.RecordID, o.Question, o.Expected, o.Predicted, o.Reasoning,
			o.Diff, o.Result, o.ReasoningScore, pq.Array(o.StepList),
		)
		if err != nil {
			return fmt.Errorf("failed to save outcome for record %s: %w", o.RecordID, err)
		}
	}
	return tx.Commit()
}

// RefreshRunMetrics recomputes a run's aggregates from its stored outcomes.
// A distributed run completes here: when outcomes reach the run's task count
// the status flips to complete and finished_at is stamped.
func (s *PostgresStore) RefreshRunMetrics(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			accuracy = sub.accuracy,
			reasoning_score = sub.reasoning_score,
			status = CASE
				WHEN runs.task_count > 0 AND sub.total >= runs.task_count THEN $2
				ELSE runs.status END,
			finished_at = CASE
				WHEN runs.task_count > 0 AND sub.total >= runs.task_count THEN COALESCE(runs.finished_at, now())
				ELSE runs.finished_at END
		FROM (
			SELECT
				100.0 * count(*) FILTER (WHERE result = 'correct') / NULLIF(count(*), 0) AS accuracy,
				avg(reasoning_score) AS reasoning_score,
				count(*) AS total
			FROM outcomes WHERE run_id = $1
		) AS sub
		WHERE id = $1`,
		id, string(StatusComplete),
	)
	if err != nil {
		return err
	}
	return checkRunUpdated(res)
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, model, dataset_path, sample_size, seed, task_count, status, accuracy, reasoning_score, started_at, finished_at
		FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model, dataset_path, sample_size, seed, task_count, status, accuracy, reasoning_score, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, runID uuid.UUID) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, record_id, question, expected, predicted, reasoning, diff, result, reasoning_score, step_list
		FROM outcomes WHERE run_id = $1 ORDER BY record_id, question`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.RunID, &o.RecordID, &o.Question, &o.Expected, &o.Predicted,
			&o.Reasoning, &o.Diff, &o.Result, &o.ReasoningScore, pq.Array(&o.StepList)); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var status string
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.Model, &run.DatasetPath, &run.SampleSize, &run.Seed,
		&run.TaskCount, &status, &run.Accuracy, &run.ReasoningScore, &run.StartedAt, &finished)
	if err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return run, nil
}

func checkRunUpdated(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intentscout/scoutctl/internal/jobs"
)

const schema = `
CREATE TABLE IF NOT EXISTS sandbox_jobs (
	id            TEXT PRIMARY KEY,
	resource      TEXT NOT NULL,
	signal_id     TEXT NOT NULL,
	status        TEXT NOT NULL,
	attempt       INTEGER NOT NULL DEFAULT 1,
	reads         INTEGER NOT NULL DEFAULT 0,
	total         INTEGER NOT NULL DEFAULT 0,
	params        JSONB,
	results       JSONB,
	error_message TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS sandbox_jobs_signal_idx ON sandbox_jobs (resource, signal_id, created_at DESC);
`

const jobColumns = `id, resource, signal_id, status, attempt, reads, total, params, results,
	error_message, created_at, updated_at, completed_at`

// Executor is an interface for executing queries (satisfied by both pgx.Tx and pgxpool.Pool)
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps jobs in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
	db   Executor
}

// NewPostgresStore connects, pings and creates the jobs table when missing.
func NewPostgresStore(ctx context.Context, connectionURI string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connectionURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnIdleTime = 30 * time.Minute
	config.MaxConnLifetime = 2 * time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create sandbox schema: %w", err)
	}

	return &PostgresStore{pool: pool, db: pool}, nil
}

func (s *PostgresStore) Put(ctx context.Context, job *Job) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sandbox_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			attempt = EXCLUDED.attempt,
			reads = EXCLUDED.reads,
			total = EXCLUDED.total,
			params = EXCLUDED.params,
			results = EXCLUDED.results,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at`,
		job.ID, string(job.Resource), job.SignalID, string(job.Status), job.Attempt, job.Reads, job.Total,
		nullJSON(job.Params), nullJSON(job.Results), job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, nullTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM sandbox_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *PostgresStore) LatestForSignal(ctx context.Context, resource Resource, signalID string) (*Job, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+jobColumns+` FROM sandbox_jobs
		WHERE resource = $1 AND signal_id = $2
		ORDER BY created_at DESC
		LIMIT 1`, string(resource), signalID)
	return scanJob(row)
}

func (s *PostgresStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM sandbox_jobs
		WHERE status IN ($1, $2) AND updated_at < $3`,
		string(jobs.JobStatusCompleted), string(jobs.JobStatusFailed), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		job              Job
		resource, status string
		params, results  []byte
		completedAt      *time.Time
	)
	err := row.Scan(&job.ID, &resource, &job.SignalID, &status, &job.Attempt, &job.Reads, &job.Total,
		&params, &results, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	job.Resource = Resource(resource)
	job.Status = jobs.JobStatus(status)
	job.Params = params
	job.Results = results
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	if completedAt != nil {
		job.CompletedAt = completedAt.UTC()
	}
	return &job, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

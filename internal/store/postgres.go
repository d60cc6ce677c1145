package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"clipforge/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const jobColumns = `id, owner_fid, prompt, input_ref, status, temp_asset_url,
	permanent_asset_url, share_ref, last_error, created_at, ready_at, shared_at`

// PostgresStore is the pgx-backed alternative to the Redis store, for
// deployments that already run Postgres. Claim uses a conditional UPDATE
// instead of a Lua script; the contract is identical.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a pooled connection and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Put upserts the full job record.
func (s *PostgresStore) Put(ctx context.Context, job models.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			owner_fid = EXCLUDED.owner_fid,
			prompt = EXCLUDED.prompt,
			input_ref = EXCLUDED.input_ref,
			status = EXCLUDED.status,
			temp_asset_url = EXCLUDED.temp_asset_url,
			permanent_asset_url = EXCLUDED.permanent_asset_url,
			share_ref = EXCLUDED.share_ref,
			last_error = EXCLUDED.last_error,
			created_at = EXCLUDED.created_at,
			ready_at = EXCLUDED.ready_at,
			shared_at = EXCLUDED.shared_at
	`, job.ID, job.OwnerFID, job.Prompt, emptyToNil(job.InputRef), job.Status,
		job.TempAssetURL, job.PermanentAssetURL, job.ShareRef, job.LastError,
		job.CreatedAt, job.ReadyAt, job.SharedAt)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

// Get fetches a job by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (models.Job, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, err
	}
	return job, true, nil
}

// ListAll returns every job, oldest first.
func (s *PostgresStore) ListAll(ctx context.Context) ([]models.Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Claim atomically moves the job from fromStatus to toStatus.
func (s *PostgresStore) Claim(ctx context.Context, id, fromStatus, toStatus string) (models.Job, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE jobs SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING `+jobColumns, id, fromStatus, toStatus)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, false, nil
	}
	if err != nil {
		return models.Job{}, false, err
	}
	return job, true, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (models.Job, error) {
	var job models.Job
	var inputRef, tempURL, permURL, shareRef, lastErr pgtype.Text
	var readyAt, sharedAt pgtype.Timestamptz

	if err := row.Scan(&job.ID, &job.OwnerFID, &job.Prompt, &inputRef, &job.Status,
		&tempURL, &permURL, &shareRef, &lastErr, &job.CreatedAt, &readyAt, &sharedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Job{}, err
		}
		return models.Job{}, fmt.Errorf("scan job: %w", err)
	}

	if inputRef.Valid {
		job.InputRef = inputRef.String
	}
	job.TempAssetURL = textPtr(tempURL)
	job.PermanentAssetURL = textPtr(permURL)
	job.ShareRef = textPtr(shareRef)
	job.LastError = textPtr(lastErr)
	job.ReadyAt = timePtr(readyAt)
	job.SharedAt = timePtr(sharedAt)
	return job, nil
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if t.Valid {
		v := t.Time
		return &v
	}
	return nil
}

func emptyToNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

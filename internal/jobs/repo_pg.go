package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation           = "23505"
	referenceUniqueConstraint = "processing_jobs_processing_reference_key"
)

const jobColumns = `id, batch_id, position, source_file_name, content_type, size_bytes, processing_reference, status, prerequisite_uri, raw_blob_location, result_blob_location, query_count, last_error, created_at, updated_at, heartbeat_at`

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO processing_jobs (
    id,
    batch_id,
    position,
    source_file_name,
    content_type,
    size_bytes,
    processing_reference,
    status,
    prerequisite_uri,
    raw_blob_location,
    result_blob_location,
    query_count,
    last_error,
    created_at,
    updated_at,
    heartbeat_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	heartbeat := job.HeartbeatAt
	if heartbeat.IsZero() {
		heartbeat = job.CreatedAt
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		job.ID,
		job.BatchID,
		job.Position,
		job.SourceFileName,
		job.ContentType,
		job.SizeBytes,
		job.ProcessingReference,
		string(job.Status),
		nullString(job.PrerequisiteURI),
		nullString(job.RawBlobLocation),
		nullString(job.ResultBlobLocation),
		job.QueryCount,
		nullString(job.LastError),
		job.CreatedAt,
		job.UpdatedAt,
		heartbeat,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == referenceUniqueConstraint {
				return ErrDuplicateReference
			}
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

// GetByID fetches a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	query := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id = $1`
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// ListByBatch lists the jobs of a batch in submission order.
func (r *PGRepo) ListByBatch(ctx context.Context, batchID string) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE batch_id = $1 ORDER BY created_at ASC, position ASC, id ASC`
	return r.list(ctx, query, batchID)
}

// ListUnfinished lists jobs still uploading or processing with no transition or heartbeat
// since staleBefore.
func (r *PGRepo) ListUnfinished(ctx context.Context, staleBefore time.Time) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM processing_jobs
WHERE status IN ('uploading', 'processing') AND GREATEST(updated_at, heartbeat_at) < $1
ORDER BY created_at ASC, position ASC, id ASC`
	return r.list(ctx, query, staleBefore)
}

// Heartbeat refreshes heartbeat_at on the unfinished jobs among jobIDs.
func (r *PGRepo) Heartbeat(ctx context.Context, jobIDs []string, at time.Time) (int, error) {
	if len(jobIDs) == 0 {
		return 0, nil
	}
	const query = `
UPDATE processing_jobs
SET heartbeat_at = $1
WHERE id = ANY($2::text[]) AND status IN ('uploading', 'processing')`
	res, err := r.DB.ExecContext(ctx, query, at.UTC(), textArray(jobIDs))
	if err != nil {
		return 0, fmt.Errorf("heartbeat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Transition locks the row, validates the move and writes the new state in one transaction.
func (r *PGRepo) Transition(ctx context.Context, jobID string, to Status, upd Update) (Job, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Job{}, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id = $1 FOR UPDATE`
	current, err := scanJob(tx.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}

	next, err := Apply(current, to, upd, r.now())
	if err != nil {
		return current, err
	}

	const update = `
UPDATE processing_jobs
SET status = $1, raw_blob_location = $2, result_blob_location = $3, query_count = $4, last_error = $5, updated_at = $6
WHERE id = $7 AND status = $8`
	res, err := tx.ExecContext(
		ctx,
		update,
		string(next.Status),
		nullString(next.RawBlobLocation),
		nullString(next.ResultBlobLocation),
		next.QueryCount,
		nullString(next.LastError),
		next.UpdatedAt,
		jobID,
		string(current.Status),
	)
	if err != nil {
		return current, err
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return current, fmt.Errorf("%w: %s changed concurrently", ErrInvalidTransition, jobID)
	}
	if err := tx.Commit(); err != nil {
		return current, fmt.Errorf("commit transition: %w", err)
	}
	return next, nil
}

func (r *PGRepo) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *PGRepo) list(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var status string
	var prerequisite sql.NullString
	var rawLocation sql.NullString
	var resultLocation sql.NullString
	var lastError sql.NullString
	if err := row.Scan(
		&job.ID,
		&job.BatchID,
		&job.Position,
		&job.SourceFileName,
		&job.ContentType,
		&job.SizeBytes,
		&job.ProcessingReference,
		&status,
		&prerequisite,
		&rawLocation,
		&resultLocation,
		&job.QueryCount,
		&lastError,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.HeartbeatAt,
	); err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	if prerequisite.Valid {
		job.PrerequisiteURI = prerequisite.String
	}
	if rawLocation.Valid {
		job.RawBlobLocation = rawLocation.String
	}
	if resultLocation.Valid {
		job.ResultBlobLocation = resultLocation.String
	}
	if lastError.Valid {
		job.LastError = lastError.String
	}
	return job, nil
}

// textArray renders ids as a Postgres text[] literal.
func textArray(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		id = strings.ReplaceAll(id, `\`, `\\`)
		quoted[i] = `"` + strings.ReplaceAll(id, `"`, `\"`) + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

var _ Repo = (*PGRepo)(nil)

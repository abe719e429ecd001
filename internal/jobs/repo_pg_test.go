package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var pgJobColumns = []string{
	"id", "batch_id", "position", "source_file_name", "content_type", "size_bytes",
	"processing_reference", "status", "prerequisite_uri", "raw_blob_location",
	"result_blob_location", "query_count", "last_error", "created_at", "updated_at", "heartbeat_at",
}

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	job := newJob("job-1", "batch-1", "PRF-2026-ABCDEFGH", 0)
	job.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	job.SizeBytes = 2048

	mock.ExpectExec("INSERT INTO processing_jobs").
		WithArgs(
			job.ID,
			job.BatchID,
			job.Position,
			job.SourceFileName,
			job.ContentType,
			job.SizeBytes,
			job.ProcessingReference,
			"uploading",
			nil, // prerequisite_uri
			nil, // raw_blob_location
			nil, // result_blob_location
			0,
			nil, // last_error
			job.CreatedAt,
			job.UpdatedAt,
			job.CreatedAt, // heartbeat_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateDuplicateReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec("INSERT INTO processing_jobs").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: referenceUniqueConstraint})

	err = repo.Create(context.Background(), newJob("job-1", "batch-1", "PRF-2026-DUP", 0))
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}
}

func TestPGRepoTransitionToComplete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	created := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	now := created.Add(time.Minute)
	repo := &PGRepo{DB: db, Now: func() time.Time { return now }}

	mock.ExpectBegin()
	mock.ExpectQuery("FROM processing_jobs WHERE id = \\$1 FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(pgJobColumns).AddRow(
			"job-1", "batch-1", 0, "a.xlsx", "xlsx", int64(10), "PRF-2026-A",
			"processing", nil, "s3://bucket/raw/a.xlsx", nil, 0, nil, created, created, created,
		))
	mock.ExpectExec("UPDATE processing_jobs").
		WithArgs("complete", "s3://bucket/raw/a.xlsx", "https://results/a.json", 7, nil, now, "job-1", "processing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job, err := repo.Transition(context.Background(), "job-1", StatusComplete, Update{ResultBlobLocation: "https://results/a.json", QueryCount: 7})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if job.Status != StatusComplete || job.QueryCount != 7 {
		t.Fatalf("unexpected job: %+v", job)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoTransitionRejectsTerminal(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	created := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	repo := &PGRepo{DB: db}

	mock.ExpectBegin()
	mock.ExpectQuery("FROM processing_jobs WHERE id = \\$1 FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(pgJobColumns).AddRow(
			"job-1", "batch-1", 0, "a.xlsx", "xlsx", int64(10), "PRF-2026-A",
			"error", nil, nil, nil, 0, "upload: transfer: refused", created, created, created,
		))
	mock.ExpectRollback()

	_, err = repo.Transition(context.Background(), "job-1", StatusProcessing, Update{RawBlobLocation: "s3://x"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListUnfinishedFiltersByActivity(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	created := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	staleBefore := created.Add(10 * time.Minute)
	mock.ExpectQuery("GREATEST\\(updated_at, heartbeat_at\\) < \\$1").
		WithArgs(staleBefore).
		WillReturnRows(sqlmock.NewRows(pgJobColumns).AddRow(
			"job-1", "batch-1", 0, "a.xlsx", "xlsx", int64(10), "PRF-2026-A",
			"processing", nil, "s3://bucket/raw/a.xlsx", nil, 0, nil, created, created, created.Add(time.Minute),
		))

	list, err := (&PGRepo{DB: db}).ListUnfinished(context.Background(), staleBefore)
	if err != nil {
		t.Fatalf("ListUnfinished: %v", err)
	}
	if len(list) != 1 || !list[0].LastActivity().Equal(created.Add(time.Minute)) {
		t.Fatalf("unexpected jobs %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoHeartbeat(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	at := time.Date(2026, time.March, 2, 10, 5, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE processing_jobs\\s+SET heartbeat_at").
		WithArgs(at, `{"job-1","job-2"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := &PGRepo{DB: db}
	n, err := repo.Heartbeat(context.Background(), []string{"job-1", "job-2"}, at)
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 refreshed row, got %d", n)
	}
	if n, err := repo.Heartbeat(context.Background(), nil, at); err != nil || n != 0 {
		t.Fatalf("empty heartbeat should be a no-op, got %d %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PGAnnotationRepo stores annotations in Postgres.
type PGAnnotationRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

// Upsert merges the non-nil fields of a into the stored row.
func (r *PGAnnotationRepo) Upsert(ctx context.Context, a Annotation) (Annotation, error) {
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now().UTC()
	}

	var status any
	if a.StatusMarker != nil {
		status = string(*a.StatusMarker)
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO query_annotations (job_id, query_id, answer_text, intervention_flag, status_marker, internal_note, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id, query_id) DO UPDATE SET
			answer_text = COALESCE(EXCLUDED.answer_text, query_annotations.answer_text),
			intervention_flag = COALESCE(EXCLUDED.intervention_flag, query_annotations.intervention_flag),
			status_marker = COALESCE(EXCLUDED.status_marker, query_annotations.status_marker),
			internal_note = COALESCE(EXCLUDED.internal_note, query_annotations.internal_note),
			updated_at = EXCLUDED.updated_at
		RETURNING job_id, query_id, answer_text, intervention_flag, status_marker, internal_note, updated_at`,
		a.JobID, a.QueryID, nullableString(a.AnswerText), nullableBool(a.InterventionFlag), status, nullableString(a.InternalNote), now,
	)
	out, err := scanAnnotation(row)
	if err != nil {
		return Annotation{}, fmt.Errorf("upsert annotation: %w", err)
	}
	return out, nil
}

// ListByJob returns the annotations of a job keyed by query ID.
func (r *PGAnnotationRepo) ListByJob(ctx context.Context, jobID string) (map[string]Annotation, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT job_id, query_id, answer_text, intervention_flag, status_marker, internal_note, updated_at
		FROM query_annotations
		WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Annotation)
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		out[a.QueryID] = a
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnnotation(s rowScanner) (Annotation, error) {
	var (
		a            Annotation
		answer       sql.NullString
		intervention sql.NullBool
		status       sql.NullString
		note         sql.NullString
	)
	if err := s.Scan(&a.JobID, &a.QueryID, &answer, &intervention, &status, &note, &a.UpdatedAt); err != nil {
		return Annotation{}, err
	}
	if answer.Valid {
		a.AnswerText = &answer.String
	}
	if intervention.Valid {
		a.InterventionFlag = &intervention.Bool
	}
	if status.Valid {
		st := StatusMarker(status.String)
		a.StatusMarker = &st
	}
	if note.Valid {
		a.InternalNote = &note.String
	}
	return a, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

var _ AnnotationRepo = (*PGAnnotationRepo)(nil)
var _ AnnotationRepo = (*MemoryAnnotationRepo)(nil)

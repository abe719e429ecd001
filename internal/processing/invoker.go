package processing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vendorquery-backend/internal/jobs"
	"vendorquery-backend/internal/shared/telemetry"
	"vendorquery-backend/internal/shared/util"
)

// Extractor submits raw artifacts for normalization.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (ExtractionResponse, error)
}

// Generator turns normalized output into a result artifact.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error)
}

// Invoker drives a Processing job through extraction then generation and resolves it
// to Complete or Error. Calls are never retried.
type Invoker struct {
	Jobs              jobs.Repo
	Extractor         Extractor
	Generator         Generator
	ExtractionTimeout time.Duration
	GenerationTimeout time.Duration
}

// NewInvoker constructs an Invoker. Zero timeouts leave calls unbounded.
func NewInvoker(repo jobs.Repo, extractor Extractor, generator Generator, extractionTimeout, generationTimeout time.Duration) *Invoker {
	return &Invoker{
		Jobs:              repo,
		Extractor:         extractor,
		Generator:         generator,
		ExtractionTimeout: extractionTimeout,
		GenerationTimeout: generationTimeout,
	}
}

// Process runs both calls for jobID. It returns ErrNotProcessing without touching the job
// if the job is not Processing with a raw location. Otherwise the returned job is terminal;
// the error is the *StageError that put it into Error, if any.
func (inv *Invoker) Process(ctx context.Context, jobID string) (jobs.Job, error) {
	job, err := inv.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return jobs.Job{}, err
	}
	if job.Status != jobs.StatusProcessing || job.RawBlobLocation == "" {
		return job, fmt.Errorf("%w: job %s is %s", ErrNotProcessing, job.ID, job.Status)
	}

	var extracted ExtractionResponse
	err = call(ctx, inv.ExtractionTimeout, func(ctx context.Context) error {
		var err error
		extracted, err = inv.Extractor.Extract(ctx, ExtractionRequest{
			JobID:               job.ID,
			ProcessingReference: job.ProcessingReference,
			RawURIs:             []string{job.RawBlobLocation},
			PrerequisiteURI:     job.PrerequisiteURI,
		})
		return err
	})
	if err == nil && strings.TrimSpace(extracted.NormalizedLocation) == "" {
		err = fmt.Errorf("%w: missing normalized output location", ErrMalformedResponse)
	}
	if err != nil {
		return inv.fail(ctx, job, &StageError{Stage: StageExtraction, Err: err})
	}
	telemetry.Info("job.extraction.done", map[string]any{
		"job_id":              job.ID,
		"batch_id":            job.BatchID,
		"normalized_location": extracted.NormalizedLocation,
	})

	var generated GenerationResponse
	err = call(ctx, inv.GenerationTimeout, func(ctx context.Context) error {
		var err error
		generated, err = inv.Generator.Generate(ctx, GenerationRequest{
			JobID:               job.ID,
			ProcessingReference: job.ProcessingReference,
			NormalizedLocation:  strings.TrimSpace(extracted.NormalizedLocation),
			PrerequisiteURI:     job.PrerequisiteURI,
		})
		return err
	})
	if err == nil {
		err = checkGeneration(generated)
	}
	if err != nil {
		return inv.fail(ctx, job, &StageError{Stage: StageGeneration, Err: err})
	}

	next, err := inv.Jobs.Transition(context.WithoutCancel(ctx), job.ID, jobs.StatusComplete, jobs.Update{
		ResultBlobLocation: strings.TrimSpace(generated.ResultLocation),
		QueryCount:         *generated.QueryCount,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidTransition) || errors.Is(err, jobs.ErrNotFound) {
			return job, err
		}
		return inv.fail(ctx, job, fmt.Errorf("record result: %w", err))
	}
	jobs.LogTransition(job.Status, next)
	return next, nil
}

func checkGeneration(resp GenerationResponse) error {
	if strings.TrimSpace(resp.ResultLocation) == "" {
		return fmt.Errorf("%w: missing result location", ErrMalformedResponse)
	}
	if resp.QueryCount == nil {
		return fmt.Errorf("%w: missing query count", ErrMalformedResponse)
	}
	if *resp.QueryCount < 0 {
		return fmt.Errorf("%w: negative query count %d", ErrMalformedResponse, *resp.QueryCount)
	}
	return nil
}

func call(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

func (inv *Invoker) fail(ctx context.Context, job jobs.Job, cause error) (jobs.Job, error) {
	next, err := inv.Jobs.Transition(context.WithoutCancel(ctx), job.ID, jobs.StatusError, jobs.Update{
		LastError: util.SanitizeError(cause),
	})
	if err != nil {
		telemetry.Error("job.fail.update_failed", map[string]any{
			"job_id": job.ID,
			"err":    err.Error(),
			"cause":  util.SanitizeError(cause),
		})
		return job, fmt.Errorf("record processing failure: %w", err)
	}
	jobs.LogTransition(job.Status, next)
	return next, cause
}

package batches

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vendorquery-backend/internal/jobs"
	"vendorquery-backend/internal/queue"
	"vendorquery-backend/internal/shared/metrics"
	"vendorquery-backend/internal/shared/telemetry"
	"vendorquery-backend/internal/uploads"
)

var ErrBatchNotFound = errors.New("batch not found")

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultRetention         = 2 * time.Minute
	defaultNotifyTimeout     = 10 * time.Second
)

// Uploader creates jobs and drives them through upload.
type Uploader interface {
	CreateJobs(ctx context.Context, batchID string, files []uploads.File) ([]jobs.Job, error)
	Upload(ctx context.Context, job jobs.Job, f uploads.File) (jobs.Job, error)
}

// Processor drives a Processing job to a terminal state.
type Processor interface {
	Process(ctx context.Context, jobID string) (jobs.Job, error)
}

// Submission is the synchronous result of accepting a batch.
type Submission struct {
	BatchID  string              `json:"batchId"`
	Jobs     []jobs.Job          `json:"jobs"`
	Rejected []uploads.Rejection `json:"rejected"`
}

// Supervisor runs one pipeline per job, tracks every job of a batch and fires a
// single completion signal once all of them are terminal.
type Supervisor struct {
	Jobs        jobs.Repo
	Uploads     Uploader
	Invoker     Processor
	Queue       queue.Client
	MaxFiles    int
	Concurrency int
	Now         func() time.Time
	NewID       func() string

	// MaxFileBytes rejects larger files at validation. Zero means unlimited.
	MaxFileBytes int64

	// HeartbeatInterval is how often unfinished jobs are marked as owned by this process.
	HeartbeatInterval time.Duration
	// Retention is how long a finished batch stays in the registry. Afterwards its
	// summary is rebuilt from the job store.
	Retention time.Duration
	// NotifyTimeout bounds the batch-complete queue send.
	NotifyTimeout time.Duration

	mu      sync.Mutex
	batches map[string]*batchState
	wg      sync.WaitGroup
}

type batchState struct {
	id          string
	submittedAt time.Time
	completedAt time.Time
	order       []string
	statuses    map[string]jobs.Status
	pending     int
	fired       bool
	done        chan struct{}
	callbacks   []func(Summary)
}

// NewSupervisor constructs a Supervisor. Zero maxFiles or concurrency means unlimited.
func NewSupervisor(repo jobs.Repo, up Uploader, inv Processor, q queue.Client, maxFiles, concurrency int) *Supervisor {
	return &Supervisor{
		Jobs:        repo,
		Uploads:     up,
		Invoker:     inv,
		Queue:       q,
		MaxFiles:    maxFiles,
		Concurrency: concurrency,
		Now:         time.Now,
		NewID:       uuid.NewString,

		HeartbeatInterval: defaultHeartbeatInterval,
		Retention:         defaultRetention,
		NotifyTimeout:     defaultNotifyTimeout,
	}
}

// Submit validates files, creates one job per accepted file and starts their pipelines.
// Pipelines outlive ctx; they are bounded by the per-call timeouts of their stages.
func (s *Supervisor) Submit(ctx context.Context, files []uploads.File) (Submission, error) {
	accepted, rejected, err := uploads.Validate(files, s.MaxFiles, s.MaxFileBytes)
	metrics.AddFilesRejected(len(rejected))
	if err != nil {
		return Submission{Rejected: rejected}, err
	}

	batchID := s.newID()
	acceptedFiles := make([]uploads.File, 0, len(accepted))
	for _, idx := range accepted {
		acceptedFiles = append(acceptedFiles, files[idx])
	}

	created, err := s.Uploads.CreateJobs(ctx, batchID, acceptedFiles)
	if err != nil {
		s.abandon(ctx, created, err)
		return Submission{}, fmt.Errorf("create jobs: %w", err)
	}

	state := &batchState{
		id:          batchID,
		submittedAt: s.now(),
		statuses:    make(map[string]jobs.Status, len(created)),
		pending:     len(created),
		done:        make(chan struct{}),
	}
	for _, job := range created {
		state.order = append(state.order, job.ID)
		state.statuses[job.ID] = job.Status
	}
	s.mu.Lock()
	if s.batches == nil {
		s.batches = make(map[string]*batchState)
	}
	s.batches[batchID] = state
	s.mu.Unlock()

	metrics.IncBatchAccepted()
	telemetry.Info("batch.accepted", map[string]any{
		"batch_id": batchID,
		"accepted": len(created),
		"rejected": len(rejected),
	})

	s.wg.Add(1)
	go s.run(context.WithoutCancel(ctx), batchID, created, acceptedFiles)

	if rejected == nil {
		rejected = []uploads.Rejection{}
	}
	return Submission{BatchID: batchID, Jobs: created, Rejected: rejected}, nil
}

func (s *Supervisor) run(ctx context.Context, batchID string, created []jobs.Job, files []uploads.File) {
	defer s.wg.Done()

	stop := make(chan struct{})
	beating := make(chan struct{})
	go func() {
		defer close(beating)
		s.heartbeat(ctx, batchID, stop)
	}()
	defer func() {
		close(stop)
		<-beating
	}()

	var g errgroup.Group
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i := range created {
		job, f := created[i], files[i]
		g.Go(func() error {
			s.runJob(ctx, job, f)
			return nil
		})
	}
	_ = g.Wait()
}

// heartbeat refreshes the batch's unfinished jobs every HeartbeatInterval until stop is
// closed, so startup reconciliation in another process leaves them alone.
func (s *Supervisor) heartbeat(ctx context.Context, batchID string, stop <-chan struct{}) {
	if s.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ids := s.unfinished(batchID)
		if len(ids) == 0 {
			return
		}
		if _, err := s.Jobs.Heartbeat(ctx, ids, s.now()); err != nil {
			telemetry.Warn("batch.heartbeat.failed", map[string]any{
				"batch_id": batchID,
				"jobs":     len(ids),
				"err":      err.Error(),
			})
		}
	}
}

func (s *Supervisor) unfinished(batchID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.batches[batchID]
	if !ok {
		return nil
	}
	var ids []string
	for _, id := range state.order {
		if !state.statuses[id].Terminal() {
			ids = append(ids, id)
		}
	}
	return ids
}

// runJob owns one job from Uploading until it is terminal.
func (s *Supervisor) runJob(ctx context.Context, job jobs.Job, f uploads.File) {
	defer s.settle(ctx, job)
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("job.panic", map[string]any{
				"job_id":   job.ID,
				"batch_id": job.BatchID,
				"panic":    fmt.Sprint(r),
			})
			s.forceError(ctx, job.ID, fmt.Sprintf("internal: panic: %v", r))
		}
	}()

	uploaded, _ := s.Uploads.Upload(ctx, job, f)
	s.observe(uploaded)
	if uploaded.Status != jobs.StatusProcessing {
		return
	}

	final, err := s.Invoker.Process(ctx, uploaded.ID)
	if err != nil && !final.Status.Terminal() {
		telemetry.Error("job.process.failed", map[string]any{
			"job_id":   job.ID,
			"batch_id": job.BatchID,
			"err":      err.Error(),
		})
	}
	s.observe(final)
}

// settle makes sure the job is recorded as terminal so the batch can finish.
func (s *Supervisor) settle(ctx context.Context, job jobs.Job) {
	current, err := s.Jobs.GetByID(ctx, job.ID)
	if err == nil && !current.Status.Terminal() {
		current = s.forceError(ctx, job.ID, "internal: pipeline stopped before reaching a terminal state")
	}
	if err != nil || !current.Status.Terminal() {
		telemetry.Error("job.settle.failed", map[string]any{
			"job_id":   job.ID,
			"batch_id": job.BatchID,
		})
		current = job
		current.Status = jobs.StatusError
	}
	s.observe(current)
}

func (s *Supervisor) forceError(ctx context.Context, jobID, reason string) jobs.Job {
	before, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil || before.Status.Terminal() {
		return before
	}
	next, err := s.Jobs.Transition(ctx, jobID, jobs.StatusError, jobs.Update{LastError: reason})
	if err != nil {
		telemetry.Error("job.fail.update_failed", map[string]any{"job_id": jobID, "err": err.Error()})
		return before
	}
	jobs.LogTransition(before.Status, next)
	return next
}

// abandon marks jobs of a batch that could not be fully created as failed.
func (s *Supervisor) abandon(ctx context.Context, created []jobs.Job, cause error) {
	for _, job := range created {
		s.forceError(context.WithoutCancel(ctx), job.ID, "batch rejected: "+cause.Error())
	}
}

// observe records a job's latest status and fires the batch signal after the last
// terminal transition. Later observations of a terminal job are ignored.
func (s *Supervisor) observe(job jobs.Job) {
	s.mu.Lock()
	state, ok := s.batches[job.BatchID]
	if !ok {
		s.mu.Unlock()
		return
	}
	prev, tracked := state.statuses[job.ID]
	if !tracked || prev.Terminal() || prev == job.Status {
		s.mu.Unlock()
		return
	}
	state.statuses[job.ID] = job.Status
	if !job.Status.Terminal() {
		s.mu.Unlock()
		return
	}

	state.pending--
	if job.Status == jobs.StatusComplete {
		metrics.IncJobCompleted()
	} else {
		metrics.IncJobFailed()
	}
	metrics.ObserveJobDurationMs(jobs.DurationMs(job))

	if state.pending > 0 || state.fired {
		s.mu.Unlock()
		return
	}
	state.fired = true
	state.completedAt = s.now()
	summary := state.summary()
	callbacks := state.callbacks
	state.callbacks = nil
	close(state.done)
	s.mu.Unlock()

	s.fire(summary, callbacks)
	s.evictAfter(summary.BatchID, s.Retention)
}

// evictAfter drops a finished batch from the registry once retention has passed.
func (s *Supervisor) evictAfter(batchID string, retention time.Duration) {
	evict := func() {
		s.mu.Lock()
		if state, ok := s.batches[batchID]; ok && state.fired {
			delete(s.batches, batchID)
		}
		s.mu.Unlock()
	}
	if retention <= 0 {
		evict()
		return
	}
	time.AfterFunc(retention, evict)
}

func (s *Supervisor) fire(summary Summary, callbacks []func(Summary)) {
	completedAt := summary.SubmittedAt
	if summary.CompletedAt != nil {
		completedAt = *summary.CompletedAt
	}
	metrics.IncBatchFinished()
	metrics.ObserveBatchDurationMs(float64(completedAt.Sub(summary.SubmittedAt).Microseconds()) / 1000.0)
	telemetry.Info("batch.complete", map[string]any{
		"batch_id": summary.BatchID,
		"total":    summary.Total,
		"complete": summary.Complete,
		"error":    summary.Error,
	})

	if s.Queue != nil {
		msg := queue.BatchCompleted{
			BatchID:     summary.BatchID,
			Total:       summary.Total,
			Complete:    summary.Complete,
			Error:       summary.Error,
			CompletedAt: completedAt.UTC().Format(time.RFC3339),
			Version:     queue.MessageVersion,
		}
		timeout := s.NotifyTimeout
		if timeout <= 0 {
			timeout = defaultNotifyTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := s.Queue.Send(ctx, msg)
		cancel()
		if err != nil {
			telemetry.Error("batch.notify.failed", map[string]any{
				"batch_id": summary.BatchID,
				"err":      err.Error(),
			})
		}
	}
	for _, cb := range callbacks {
		runCallback(summary, cb)
	}
}

func runCallback(summary Summary, cb func(Summary)) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("batch.callback.panic", map[string]any{
				"batch_id": summary.BatchID,
				"panic":    fmt.Sprint(r),
			})
		}
	}()
	cb(summary)
}

// OnBatchComplete registers fn to run once when the batch finishes. If the batch has
// already finished, fn runs immediately.
func (s *Supervisor) OnBatchComplete(ctx context.Context, batchID string, fn func(Summary)) error {
	s.mu.Lock()
	state, ok := s.batches[batchID]
	if ok && !state.fired {
		state.callbacks = append(state.callbacks, fn)
		s.mu.Unlock()
		return nil
	}
	var summary Summary
	if ok {
		summary = state.summary()
	}
	s.mu.Unlock()

	if !ok {
		var err error
		summary, err = s.summaryFromRepo(ctx, batchID)
		if err != nil {
			return err
		}
		if !summary.Done {
			return fmt.Errorf("%w: %s is not tracked by this process", ErrBatchNotFound, batchID)
		}
	}
	runCallback(summary, fn)
	return nil
}

// Summary returns the current aggregate for a batch.
func (s *Supervisor) Summary(ctx context.Context, batchID string) (Summary, error) {
	s.mu.Lock()
	state, ok := s.batches[batchID]
	if ok {
		summary := state.summary()
		s.mu.Unlock()
		return summary, nil
	}
	s.mu.Unlock()
	return s.summaryFromRepo(ctx, batchID)
}

// Wait blocks until the batch finishes or ctx is done, and returns the latest summary.
func (s *Supervisor) Wait(ctx context.Context, batchID string) (Summary, error) {
	s.mu.Lock()
	state, ok := s.batches[batchID]
	s.mu.Unlock()
	if !ok {
		return s.summaryFromRepo(ctx, batchID)
	}

	select {
	case <-state.done:
	case <-ctx.Done():
		summary, _ := s.Summary(context.WithoutCancel(ctx), batchID)
		return summary, ctx.Err()
	}
	return s.Summary(ctx, batchID)
}

// JobsOf returns every job of a batch in submission order.
func (s *Supervisor) JobsOf(ctx context.Context, batchID string) ([]jobs.Job, error) {
	list, err := s.Jobs.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	return list, nil
}

// Shutdown waits for running pipelines to finish or ctx to end.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) summaryFromRepo(ctx context.Context, batchID string) (Summary, error) {
	list, err := s.JobsOf(ctx, batchID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(batchID, list), nil
}

func (s *Supervisor) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Supervisor) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

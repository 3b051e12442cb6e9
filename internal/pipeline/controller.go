// Package pipeline owns the single active extraction job and mediates
// between a front end and the background pipeline stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/slidex/slidex-extraction-service/internal/domain/entity"
	"github.com/slidex/slidex-extraction-service/internal/domain/port"
	"github.com/slidex/slidex-extraction-service/internal/infra/metrics"
	"github.com/slidex/slidex-extraction-service/internal/usecase"
	"go.uber.org/zap"
)

// JobHandle identifies the extraction run a front end is driving.
type JobHandle = uuid.UUID

// JobStatus is a point-in-time snapshot safe to read while the background
// worker is running.
type JobStatus struct {
	ID           uuid.UUID
	State        entity.JobState
	Progress     float64
	FrameCount   int
	ErrorMessage string
}

// Controller runs at most one job at a time. Starting a new extraction
// while one is running is rejected with ErrJobInProgress; starting one
// after a run finished discards the previous job's frame store and
// selection.
type Controller struct {
	uc        *usecase.ExtractSlidesUseCase
	exporters map[port.ExportMode]port.Exporter
	logger    *zap.Logger

	mu     sync.Mutex
	job    *entity.PipelineJob
	store  *entity.FrameStore
	sel    *entity.SelectionState
	cancel context.CancelFunc
	done   chan struct{}
}

func NewController(uc *usecase.ExtractSlidesUseCase, pdf, images port.Exporter, logger *zap.Logger) *Controller {
	return &Controller{
		uc: uc,
		exporters: map[port.ExportMode]port.Exporter{
			port.ExportModeDocument:    pdf,
			port.ExportModeImageFolder: images,
		},
		logger: logger,
	}
}

// StartExtraction validates the config, spawns the background worker and
// returns immediately with a handle.
func (c *Controller) StartExtraction(ctx context.Context, sourcePath string, sceneSensitivity, dupStrictness float64) (JobHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.job != nil && c.job.State.Running() {
		return uuid.Nil, entity.ErrJobInProgress
	}

	job, err := entity.NewPipelineJob(sourcePath, sceneSensitivity, dupStrictness)
	if err != nil {
		return uuid.Nil, err
	}

	// A new job owns fresh review state; the prior run's is destroyed.
	c.job = job
	c.store = nil
	c.sel = nil

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done

	metrics.ActiveJobs.Inc()
	c.logger.Info("extraction started",
		zap.String("job_id", job.ID.String()),
		zap.String("video", sourcePath),
		zap.Float64("scene_sensitivity", sceneSensitivity),
		zap.Float64("dup_strictness", dupStrictness),
	)

	go c.run(runCtx, job, done)
	return job.ID, nil
}

func (c *Controller) run(ctx context.Context, job *entity.PipelineJob, done chan struct{}) {
	defer close(done)
	defer metrics.ActiveJobs.Dec()

	log := c.logger.With(zap.String("job_id", job.ID.String()))

	req := usecase.ExtractionRequest{
		SourcePath:       job.SourcePath,
		SceneSensitivity: job.SceneSensitivity,
		DupStrictness:    job.DupStrictness,
	}
	hooks := usecase.Hooks{
		OnStage: func(s entity.JobState) {
			c.mu.Lock()
			defer c.mu.Unlock()
			switch s {
			case entity.JobStateExtracting:
				job.MarkExtracting()
			case entity.JobStateCollapsing:
				job.MarkCollapsing()
			}
		},
		OnProgress: func(p float64) {
			c.mu.Lock()
			defer c.mu.Unlock()
			job.SetProgress(p)
		},
	}

	store, err := c.uc.Execute(ctx, req, hooks)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			job.MarkCancelled()
			metrics.JobsProcessedTotal.WithLabelValues("cancelled").Inc()
			log.Info("job cancelled by user")
		} else {
			job.MarkFailed(err.Error())
			metrics.JobsProcessedTotal.WithLabelValues("failed").Inc()
			log.Error("job failed", zap.Error(err))
		}
		return
	}

	c.store = store
	c.sel = entity.NewSelectionState(store.Len())
	job.MarkReviewReady()
	log.Info("job ready for review", zap.Int("frames", store.Len()))
}

// Cancel requests cooperative cancellation of the running job. Cancelling
// a job that already finished is a no-op.
func (c *Controller) Cancel(h JobHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.current(h); err != nil {
		return err
	}
	if c.job.State.Running() && c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Wait blocks until the background worker finishes or ctx expires.
func (c *Controller) Wait(ctx context.Context, h JobHandle) error {
	c.mu.Lock()
	if _, err := c.current(h); err != nil {
		c.mu.Unlock()
		return err
	}
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) Status(h JobHandle) (JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, err := c.current(h)
	if err != nil {
		return JobStatus{}, err
	}
	st := JobStatus{
		ID:           job.ID,
		State:        job.State,
		Progress:     job.Progress,
		ErrorMessage: job.ErrorMessage,
	}
	if c.store != nil {
		st.FrameCount = c.store.Len()
	}
	return st, nil
}

// Store exposes the frame store once the job reached review. A failed or
// still-running job never leaks a partial store.
func (c *Controller) Store(h JobHandle) (*entity.FrameStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.current(h); err != nil {
		return nil, err
	}
	if c.store == nil {
		return nil, fmt.Errorf("job %s has no frames ready for review (state %s)", h, c.job.State)
	}
	return c.store, nil
}

func (c *Controller) Toggle(h JobHandle, index int) error {
	sel, err := c.selection(h)
	if err != nil {
		return err
	}
	return sel.Toggle(index)
}

func (c *Controller) SelectAll(h JobHandle) error {
	sel, err := c.selection(h)
	if err != nil {
		return err
	}
	sel.SelectAll()
	return nil
}

func (c *Controller) DeselectAll(h JobHandle) error {
	sel, err := c.selection(h)
	if err != nil {
		return err
	}
	sel.DeselectAll()
	return nil
}

func (c *Controller) IncludedCount(h JobHandle) (int, error) {
	sel, err := c.selection(h)
	if err != nil {
		return 0, err
	}
	return sel.IncludedCount(), nil
}

// Export renders the included frames into dest and drives the job to its
// terminal state. An empty selection is reported without leaving review;
// an I/O failure is terminal and leaves partial output in place.
func (c *Controller) Export(ctx context.Context, h JobHandle, mode port.ExportMode, dest string) (string, error) {
	c.mu.Lock()
	job, err := c.current(h)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	exp, ok := c.exporters[mode]
	if !ok {
		c.mu.Unlock()
		return "", fmt.Errorf("unknown export mode %q", mode)
	}
	if job.State != entity.JobStateReviewReady && job.State != entity.JobStateCompleted {
		c.mu.Unlock()
		return "", fmt.Errorf("job %s not ready for export (state %s)", h, job.State)
	}
	if c.sel.IncludedCount() == 0 {
		c.mu.Unlock()
		return "", entity.ErrNothingToExport
	}
	store, sel := c.store, c.sel
	included := sel.IncludedCount()
	job.MarkExporting()
	c.mu.Unlock()

	artifact, expErr := exp.Export(ctx, store, sel, dest)

	c.mu.Lock()
	defer c.mu.Unlock()
	if expErr != nil {
		job.MarkFailed(expErr.Error())
		metrics.JobsProcessedTotal.WithLabelValues("failed").Inc()
		c.logger.Error("export failed", zap.String("job_id", job.ID.String()), zap.Error(expErr))
		return "", expErr
	}
	job.MarkCompleted()
	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.ExportedFramesTotal.WithLabelValues(string(mode)).Add(float64(included))
	c.logger.Info("export complete",
		zap.String("job_id", job.ID.String()),
		zap.String("mode", string(mode)),
		zap.String("artifact", artifact),
	)
	return artifact, nil
}

// current validates the handle against the job the controller owns.
// Callers hold c.mu.
func (c *Controller) current(h JobHandle) (*entity.PipelineJob, error) {
	if c.job == nil || c.job.ID != h {
		return nil, entity.ErrUnknownJob
	}
	return c.job, nil
}

func (c *Controller) selection(h JobHandle) (*entity.SelectionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.current(h); err != nil {
		return nil, err
	}
	if c.sel == nil {
		return nil, fmt.Errorf("job %s has no selection state (state %s)", h, c.job.State)
	}
	return c.sel, nil
}

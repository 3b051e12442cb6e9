package usecase

import (
	"context"
	"time"

	"github.com/slidex/slidex-extraction-service/internal/dedup"
	"github.com/slidex/slidex-extraction-service/internal/domain/entity"
	"github.com/slidex/slidex-extraction-service/internal/domain/port"
	"github.com/slidex/slidex-extraction-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ExtractSlidesUseCase runs the two pipeline stages of one job: scene
// detection over the source video, then duplicate collapsing into the
// final frame store.
type ExtractSlidesUseCase struct {
	sampler port.SceneSampler
	logger  *zap.Logger
}

type ExtractionRequest struct {
	SourcePath       string
	SceneSensitivity float64
	DupStrictness    float64
}

// Hooks lets the caller observe stage transitions and decode progress.
// Either callback may be nil. Both are invoked from the goroutine running
// Execute.
type Hooks struct {
	OnStage    func(entity.JobState)
	OnProgress func(float64)
}

func NewExtractSlidesUseCase(sampler port.SceneSampler, logger *zap.Logger) *ExtractSlidesUseCase {
	return &ExtractSlidesUseCase{sampler: sampler, logger: logger}
}

// Execute returns the collapsed frame store, or an error with no partial
// store: a failed decode or collapse never exposes frames to review.
func (uc *ExtractSlidesUseCase) Execute(ctx context.Context, req ExtractionRequest, hooks Hooks) (*entity.FrameStore, error) {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ExtractSlidesUseCase.Execute")
	defer span.End()

	span.SetAttributes(
		attribute.String("video.path", req.SourcePath),
		attribute.Float64("scene.sensitivity", req.SceneSensitivity),
		attribute.Float64("dup.strictness", req.DupStrictness),
	)

	log := uc.logger.With(zap.String("video", req.SourcePath))

	hooks.stage(entity.JobStateExtracting)
	decodeStart := time.Now()
	ctxDec, spanDec := tracer.Start(ctx, "scene_detection")
	stream, err := uc.sampler.Open(ctxDec, req.SourcePath, req.SceneSensitivity, hooks.OnProgress)
	spanDec.End()
	if err != nil {
		log.Error("scene detection failed", zap.Error(err))
		return nil, err
	}
	defer stream.Close()
	metrics.StageDuration.WithLabelValues("decode").Observe(time.Since(decodeStart).Seconds())

	hooks.stage(entity.JobStateCollapsing)
	collapseStart := time.Now()
	ctxCol, spanCol := tracer.Start(ctx, "collapse_duplicates")
	collapser, err := dedup.New(req.DupStrictness, log)
	if err != nil {
		spanCol.End()
		return nil, err
	}
	counted := &countingStream{inner: stream}
	frames, err := collapser.Collapse(ctxCol, counted)
	spanCol.End()
	if err != nil {
		log.Error("duplicate collapsing failed", zap.Error(err))
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("collapse").Observe(time.Since(collapseStart).Seconds())
	metrics.CandidatesTotal.Add(float64(counted.seen))
	metrics.FramesCollapsedTotal.Add(float64(counted.seen - len(frames)))

	store, err := entity.NewFrameStore(frames)
	if err != nil {
		return nil, err
	}

	log.Info("extraction finished",
		zap.Int("candidates", counted.seen),
		zap.Int("frames", store.Len()),
	)
	return store, nil
}

func (h Hooks) stage(s entity.JobState) {
	if h.OnStage != nil {
		h.OnStage(s)
	}
}

// countingStream counts candidates as the collapser drains them.
type countingStream struct {
	inner port.CandidateStream
	seen  int
}

func (c *countingStream) Next(ctx context.Context) (port.Candidate, error) {
	cand, err := c.inner.Next(ctx)
	if err == nil {
		c.seen++
	}
	return cand, err
}

func (c *countingStream) Close() error { return c.inner.Close() }

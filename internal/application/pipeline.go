package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// PipelineConfig tunes the image pipeline.
type PipelineConfig struct {
	ProcessingTimeout     time.Duration
	MaxConcurrent         int64 // 0 leaves fan-out unbounded
	ConfidenceThreshold   float64
	MaxDetectionsPerImage int
	InputSize             int
}

// PipelineDeps are the collaborators of a Pipeline. Orbit and Notifier may be
// nil.
type PipelineDeps struct {
	Images       output.ImageSource
	Preprocessor output.Preprocessor
	Models       *ModelRegistry
	Engine       *GeospatialEngine
	Queue        *PersistenceQueue
	Orbit        output.AcquisitionLocator
	Notifier     output.CallbackNotifier
}

// Pipeline orchestrates single-image and batch processing.
type Pipeline struct {
	deps    PipelineDeps
	cfg     PipelineConfig
	sem     *semaphore.Weighted
	metrics output.MetricsCollector
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	callbacks sync.WaitGroup
}

// NewPipeline creates a new pipeline.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig, metrics output.MetricsCollector, logger *slog.Logger) *Pipeline {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 512
	}
	p := &Pipeline{
		deps:    deps,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer("github.com/dogwifhat6/supplychain-lens/pipeline"),
		now:     time.Now,
	}
	if cfg.MaxConcurrent > 0 {
		p.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return p
}

// run tracks the state of one image through the pipeline.
type run struct {
	p       *Pipeline
	imageID string
	state   domain.PipelineState
	span    trace.Span
}

func (r *run) advance(next domain.PipelineState) error {
	state, err := r.state.Transition(next)
	if err != nil {
		return err
	}
	r.p.logger.Debug("pipeline transition", "image_id", r.imageID, "from", r.state, "to", state)
	r.state = state
	r.p.metrics.IncPipelineStage(string(state), "entered")
	r.span.AddEvent(string(state))
	return nil
}

func (r *run) fail(err error) error {
	stage := r.state
	if _, terr := r.state.Transition(domain.StateFailed); terr == nil {
		r.state = domain.StateFailed
	}
	r.p.metrics.IncPipelineStage(string(stage), "failed")
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, err.Error())
	r.p.logger.Error("image processing failed", "image_id", r.imageID, "stage", stage, "error", err)
	return &domain.PipelineError{ImageID: r.imageID, Stage: stage, Err: err}
}

// ProcessImage runs one image through acquisition, detection and enrichment.
// On failure no partial result is returned.
func (p *Pipeline) ProcessImage(ctx context.Context, req domain.ProcessImageRequest) (*domain.ProcessingResult, error) {
	start := p.now()

	ctx, span := p.tracer.Start(ctx, "pipeline.process_image",
		trace.WithAttributes(attribute.String("image.id", req.ImageID)))
	defer span.End()

	r := &run{p: p, imageID: req.ImageID, state: domain.StateReceived, span: span}
	p.logger.Info("processing satellite image", "image_id", req.ImageID)

	result, err := p.process(ctx, r, req)
	status := domain.StatusCompleted
	if err != nil {
		status = "failed"
	}
	p.metrics.ObservePipelineDuration(status, p.now().Sub(start))
	if err != nil {
		return nil, err
	}

	result.ProcessingTime = p.now().Sub(start)
	result.ProcessingTimeMs = result.ProcessingTime.Milliseconds()
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, r *run, req domain.ProcessImageRequest) (*domain.ProcessingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, r.fail(err)
	}

	if p.cfg.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ProcessingTimeout)
		defer cancel()
	}

	// Waiting for a slot counts against the processing timeout.
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, r.fail(p.timeoutOr(ctx, err))
		}
		defer p.sem.Release(1)
	}

	if err := r.advance(domain.StateAcquiring); err != nil {
		return nil, r.fail(err)
	}
	raw, source, err := p.deps.Images.Fetch(ctx, req.ImageURL)
	if err != nil {
		return nil, r.fail(p.timeoutOr(ctx, err))
	}
	img, err := p.deps.Preprocessor.Preprocess(ctx, raw, p.cfg.InputSize, p.cfg.InputSize)
	if err != nil {
		return nil, r.fail(p.timeoutOr(ctx, err))
	}

	if err := r.advance(domain.StateDetecting); err != nil {
		return nil, r.fail(err)
	}
	detections, versions, err := p.detect(ctx, req, img)
	if err != nil {
		return nil, r.fail(p.timeoutOr(ctx, err))
	}

	if err := r.advance(domain.StateEnriching); err != nil {
		return nil, r.fail(err)
	}
	analysis := p.deps.Engine.AnalyzeLocation(ctx, req.Coordinates, req.Bounds)
	var acquisition *domain.AcquisitionGeometry
	if p.deps.Orbit != nil {
		acquisition = p.deps.Orbit.Locate(req.Metadata, req.Coordinates)
	}
	if err := ctx.Err(); err != nil {
		return nil, r.fail(p.timeoutOr(ctx, err))
	}

	if err := r.advance(domain.StateCompleted); err != nil {
		return nil, r.fail(err)
	}

	for _, d := range detections {
		p.metrics.AddDetections(string(d.Type), 1)
	}

	result := &domain.ProcessingResult{
		ImageID:            req.ImageID,
		Status:             domain.StatusCompleted,
		Source:             source,
		Detections:         detections,
		GeospatialAnalysis: analysis,
		Acquisition:        acquisition,
		ModelVersions:      versions,
		CompletedAt:        p.now().UTC(),
	}
	result.PersistenceTaskID = p.persist(ctx, req, detections, analysis)

	p.logger.Info("image processed",
		"image_id", req.ImageID,
		"detections", len(detections),
		"source", source,
	)
	return result, nil
}

// timeoutOr replaces err with a timeout error when the pipeline deadline has
// passed.
func (p *Pipeline) timeoutOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("processing timed out after %s: %w", p.cfg.ProcessingTimeout, context.DeadlineExceeded)
	}
	return err
}

// detect runs every enabled detector concurrently. Output keeps detector
// order: deforestation first, then mining.
func (p *Pipeline) detect(ctx context.Context, req domain.ProcessImageRequest, img domain.PreprocessedImage) ([]domain.Detection, map[string]string, error) {
	var names []string
	if req.WantsDeforestation() {
		names = append(names, ModelDeforestation)
	}
	if req.WantsMining() {
		names = append(names, ModelMining)
	}

	models := make([]output.DetectionModel, len(names))
	versions := make(map[string]string, len(names))
	for i, name := range names {
		model, err := p.deps.Models.Detector(name)
		if err != nil {
			return nil, nil, err
		}
		models[i] = model
		versions[name] = model.Info().Version
	}

	slots := make([][]domain.Detection, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		model := models[i]
		g.Go(func() (err error) {
			_, span := p.tracer.Start(gctx, "pipeline.detect", trace.WithAttributes(attribute.String("model", name)))
			defer span.End()
			defer func() {
				if rec := recover(); rec != nil {
					err = &domain.ModelError{Model: name, Op: "predict", Err: fmt.Errorf("panic: %v", rec)}
					span.RecordError(err)
				}
			}()

			dets, err := model.Predict(gctx, img)
			if err != nil {
				span.RecordError(err)
				return err
			}
			for j := range dets {
				if err := dets[j].Normalize(); err != nil {
					return &domain.ModelError{Model: name, Op: "predict", Err: err}
				}
				if dets[j].ImageURL == "" {
					dets[j].ImageURL = req.ImageURL
				}
				if dets[j].Metadata.ModelVersion == "" {
					dets[j].Metadata.ModelVersion = versions[name]
				}
			}
			slots[i] = dets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var all []domain.Detection
	for _, s := range slots {
		all = append(all, s...)
	}
	return p.filter(all), versions, nil
}

// filter drops low-confidence detections and keeps at most
// MaxDetectionsPerImage, preferring higher confidence.
func (p *Pipeline) filter(dets []domain.Detection) []domain.Detection {
	out := make([]domain.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= p.cfg.ConfidenceThreshold {
			out = append(out, d)
		}
	}
	if p.cfg.MaxDetectionsPerImage > 0 && len(out) > p.cfg.MaxDetectionsPerImage {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
		out = out[:p.cfg.MaxDetectionsPerImage]
	}
	return out
}

func (p *Pipeline) persist(ctx context.Context, req domain.ProcessImageRequest, dets []domain.Detection, analysis domain.GeospatialAnalysis) string {
	if p.deps.Queue == nil {
		return ""
	}
	id, err := p.deps.Queue.Submit(ctx, PersistenceTask{
		ImageID:    req.ImageID,
		ImageURL:   req.ImageURL,
		Detections: dets,
		Analysis:   analysis,
	})
	if err != nil {
		p.logger.Warn("persistence task rejected", "image_id", req.ImageID, "task_id", id, "error", err)
	}
	return id
}

// ProcessBatch runs every image concurrently. One image failing never
// cancels its siblings; outcomes are attributed by position.
func (p *Pipeline) ProcessBatch(ctx context.Context, req domain.BatchRequest) (*domain.BatchResult, error) {
	if len(req.Images) == 0 {
		return nil, &domain.ValidationError{Field: "images", Constraint: "min=1", Message: "batch must contain at least one image"}
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.process_batch",
		trace.WithAttributes(attribute.String("batch.id", req.BatchID), attribute.Int("batch.size", len(req.Images))))
	defer span.End()

	p.logger.Info("processing batch", "batch_id", req.BatchID, "images", len(req.Images), "priority", req.Priority)
	p.metrics.ObserveBatchSize(len(req.Images))

	n := len(req.Images)
	results := make([]*domain.ProcessingResult, n)
	errs := make([]error, n)

	var g errgroup.Group
	for i, img := range req.Images {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					errs[i] = fmt.Errorf("panic: %v", rec)
				}
			}()
			results[i], errs[i] = p.ProcessImage(ctx, img)
			return nil
		})
	}
	_ = g.Wait()

	out := &domain.BatchResult{
		BatchID:     req.BatchID,
		TotalImages: n,
		Results:     []domain.ProcessingResult{},
		Errors:      []domain.BatchError{},
	}
	for i := range req.Images {
		if errs[i] != nil || results[i] == nil {
			msg := "no result"
			if errs[i] != nil {
				msg = errs[i].Error()
			}
			out.Errors = append(out.Errors, domain.BatchError{ImageID: req.Images[i].ImageID, Error: msg})
			continue
		}
		out.Results = append(out.Results, *results[i])
	}
	out.Successful = len(out.Results)
	out.Failed = len(out.Errors)
	out.CompletedAt = p.now().UTC()

	p.logger.Info("batch processed",
		"batch_id", req.BatchID,
		"successful", out.Successful,
		"failed", out.Failed,
	)

	if req.CallbackURL != "" && p.deps.Notifier != nil {
		p.notify(ctx, req.CallbackURL, out.Summary())
	}
	return out, nil
}

func (p *Pipeline) notify(ctx context.Context, url string, summary domain.BatchSummary) {
	ctx = context.WithoutCancel(ctx)
	p.callbacks.Add(1)
	go func() {
		defer p.callbacks.Done()
		if err := p.deps.Notifier.Notify(ctx, url, summary); err != nil {
			p.logger.Warn("batch callback failed", "batch_id", summary.BatchID, "url", url, "error", err)
			return
		}
		p.logger.Debug("batch callback delivered", "batch_id", summary.BatchID)
	}()
}

// WaitCallbacks blocks until in-flight batch callbacks finish or ctx expires.
func (p *Pipeline) WaitCallbacks(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.callbacks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

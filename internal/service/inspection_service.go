package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-endoqa/internal/analyzer"
	apperrors "go-endoqa/internal/errors"
	"go-endoqa/internal/logger"
	"go-endoqa/internal/observer"
	"go-endoqa/internal/repository"
	"go-endoqa/internal/storage"
	"go-endoqa/internal/strategy"
	"go-endoqa/pkg/models"
	"go-endoqa/pkg/validation"
)

// Upload is one frame received as raw encoded bytes
type Upload struct {
	Name string
	Data []byte
}

// InspectionService runs inspections and serves the report history
type InspectionService interface {
	// Inspect loads the referenced frames in order and builds their report
	Inspect(ctx context.Context, req models.InspectRequest) (*models.Report, error)

	// InspectFrames builds the report of already decoded frames
	InspectFrames(ctx context.Context, frames []*image.Gray, overrides *models.ThresholdOverrides) (*models.Report, error)

	// InspectUploads decodes uploaded frames and builds their report
	InspectUploads(ctx context.Context, uploads []Upload, overrides *models.ThresholdOverrides) (*models.Report, error)

	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, filter repository.ListFilter) ([]*models.Report, error)

	// Thresholds returns the base thresholds requests are evaluated against
	Thresholds() models.Thresholds
}

// Options configure an inspection service
type Options struct {
	Thresholds           models.Thresholds
	MaxConcurrentFetches int           // <= 0 loads one frame at a time
	AnalysisTimeout      time.Duration // <= 0 disables the limit
}

// DefaultServiceOptions returns the default thresholds with four concurrent fetches
func DefaultServiceOptions() Options {
	return Options{
		Thresholds:           validation.DefaultThresholds(),
		MaxConcurrentFetches: 4,
	}
}

// Dependencies are the collaborators of an inspection service.
// Reports and Events may be nil.
type Dependencies struct {
	Source     storage.FrameSource
	Calculator analyzer.MetricsCalculator
	Temporal   analyzer.TemporalAnalyzer
	Reports    repository.ReportRepository
	Events     observer.Subject
}

type inspectionService struct {
	deps         Dependencies
	opts         Options
	refValidator *validation.RefValidator
	now          func() time.Time
	newID        func() string
}

// NewInspectionService creates a new inspection service
func NewInspectionService(deps Dependencies, opts Options) (InspectionService, error) {
	if deps.Calculator == nil || deps.Temporal == nil {
		return nil, apperrors.NewInternalError("inspection service needs a calculator and a temporal analyzer", nil)
	}
	if err := validation.ValidateThresholds(opts.Thresholds); err != nil {
		return nil, apperrors.NewValidationError("invalid thresholds", err)
	}
	return &inspectionService{
		deps:         deps,
		opts:         opts,
		refValidator: validation.NewRefValidator(),
		now:          time.Now,
		newID:        uuid.NewString,
	}, nil
}

// inspection tracks one run for logging and events
type inspection struct {
	id         string
	started    time.Time
	frameCount int
	log        *logrus.Entry
}

func (s *inspectionService) begin(ctx context.Context, frameCount int, source string) *inspection {
	run := &inspection{
		id:         s.newID(),
		started:    s.now(),
		frameCount: frameCount,
	}
	run.log = logger.ForInspection(run.id).WithFields(logrus.Fields{
		"frame_count": frameCount,
		"source":      source,
	})
	s.publish(ctx, observer.InspectionEvent{
		EventType:    observer.AnalysisStarted,
		InspectionID: run.id,
		FrameCount:   frameCount,
		Metadata:     map[string]interface{}{"source": source},
	})
	return run
}

// Inspect loads the referenced frames in order and builds their report
func (s *inspectionService) Inspect(ctx context.Context, req models.InspectRequest) (*models.Report, error) {
	if err := s.refValidator.ValidateRefs(req.Refs); err != nil {
		return nil, err
	}

	run := s.begin(ctx, len(req.Refs), "refs")

	frames, err := storage.LoadFrames(ctx, s.deps.sourceOrDefault(), req.Refs, s.opts.MaxConcurrentFetches)
	if err != nil {
		s.publish(ctx, observer.InspectionEvent{
			EventType:    observer.FrameLoadFailed,
			InspectionID: run.id,
			FrameCount:   run.frameCount,
			ErrorMessage: err.Error(),
		})
		return nil, s.fail(ctx, run, err)
	}
	s.publish(ctx, observer.InspectionEvent{
		EventType:      observer.FramesLoaded,
		InspectionID:   run.id,
		FrameCount:     len(frames),
		ProcessingTime: s.now().Sub(run.started),
	})

	return s.analyze(ctx, run, frames, req.Thresholds)
}

// InspectFrames builds the report of already decoded frames
func (s *inspectionService) InspectFrames(ctx context.Context, frames []*image.Gray, overrides *models.ThresholdOverrides) (*models.Report, error) {
	if len(frames) == 0 {
		return nil, apperrors.NewValidationError("at least one frame is required", nil)
	}
	run := s.begin(ctx, len(frames), "frames")
	return s.analyze(ctx, run, frames, overrides)
}

// InspectUploads decodes uploaded frames on a worker pool and builds their report
func (s *inspectionService) InspectUploads(ctx context.Context, uploads []Upload, overrides *models.ThresholdOverrides) (*models.Report, error) {
	if len(uploads) == 0 {
		return nil, apperrors.NewValidationError("at least one frame is required", nil)
	}

	run := s.begin(ctx, len(uploads), "upload")

	frames, err := decodeUploads(uploads, s.opts.MaxConcurrentFetches)
	if err != nil {
		s.publish(ctx, observer.InspectionEvent{
			EventType:    observer.FrameLoadFailed,
			InspectionID: run.id,
			FrameCount:   run.frameCount,
			ErrorMessage: err.Error(),
		})
		return nil, s.fail(ctx, run, err)
	}

	return s.analyze(ctx, run, frames, overrides)
}

// decodeUploads decodes every upload and returns the first error in upload order
func decodeUploads(uploads []Upload, workers int) ([]*image.Gray, error) {
	if workers <= 0 || workers > len(uploads) {
		workers = len(uploads)
	}

	pool := analyzer.NewWorkerPool(workers)
	pool.Start()
	defer pool.Close()

	frames := make([]*image.Gray, len(uploads))
	errs := make([]error, len(uploads))
	for i, u := range uploads {
		pool.Submit(func() {
			frames[i], errs[i] = storage.DecodeFrameBytes(u.Data, u.Name)
		})
	}
	pool.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return frames, nil
}

type analysisOutcome struct {
	metrics  models.Metrics
	temporal models.TemporalResult
	strategy string
	err      error
}

// analyze runs the strategy for the frame count, builds the report and stamps it
func (s *inspectionService) analyze(ctx context.Context, run *inspection, frames []*image.Gray, overrides *models.ThresholdOverrides) (*models.Report, error) {
	thresholds := overrides.Apply(s.opts.Thresholds)
	if err := validation.ValidateThresholds(thresholds); err != nil {
		return nil, s.fail(ctx, run, apperrors.NewValidationError("invalid thresholds", err))
	}

	if s.opts.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.AnalysisTimeout)
		defer cancel()
	}

	done := make(chan analysisOutcome, 1)
	go func() {
		strat := strategy.ForFrameCount(len(frames), s.deps.Calculator, s.deps.Temporal)
		m, tr, err := strat.Analyze(frames)
		done <- analysisOutcome{metrics: m, temporal: tr, strategy: strat.GetStrategyName(), err: err}
	}()

	var out analysisOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return nil, s.fail(ctx, run, apperrors.NewTimeoutError("analysis did not finish in time", ctx.Err()))
	}
	if out.err != nil {
		return nil, s.fail(ctx, run, out.err)
	}

	report := validation.BuildReport(out.metrics, out.temporal.DeadPixelCount, out.temporal.BrightnessSeries, out.temporal.BrightnessSlope, thresholds)
	report.ID = run.id
	report.CreatedAt = s.now().UTC()
	report.FrameCount = len(frames)
	report.TemporalStatus = out.temporal.Status

	s.saveReport(ctx, run, &report)

	elapsed := s.now().Sub(run.started)
	run.log.WithFields(logrus.Fields{
		"strategy":           out.strategy,
		"overall":            report.Overall(),
		"temporal_status":    report.TemporalStatus,
		"dead_pixels":        report.DeadPixels,
		"processing_time_ms": elapsed.Milliseconds(),
	}).Info("Inspection finished")

	s.publish(ctx, observer.InspectionEvent{
		EventType:      observer.AnalysisCompleted,
		InspectionID:   run.id,
		FrameCount:     report.FrameCount,
		ProcessingTime: elapsed,
		Pass:           report.Pass,
		Metadata:       map[string]interface{}{"strategy": out.strategy},
	})

	return &report, nil
}

// saveReport records the report in the history. A history failure does not
// fail the inspection.
func (s *inspectionService) saveReport(ctx context.Context, run *inspection, report *models.Report) {
	if s.deps.Reports == nil {
		return
	}
	if err := s.deps.Reports.Save(ctx, report); err != nil {
		run.log.WithError(err).Warn("Failed to save report to history")
	}
}

func (s *inspectionService) fail(ctx context.Context, run *inspection, err error) error {
	run.log.WithError(err).Error("Inspection failed")
	s.publish(ctx, observer.InspectionEvent{
		EventType:      observer.AnalysisFailed,
		InspectionID:   run.id,
		FrameCount:     run.frameCount,
		ProcessingTime: s.now().Sub(run.started),
		ErrorMessage:   err.Error(),
	})
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("inspection timed out", err)
	}
	return apperrors.NewProcessingError("inspection failed", err)
}

func (s *inspectionService) publish(ctx context.Context, event observer.InspectionEvent) {
	if s.deps.Events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	s.deps.Events.NotifyObservers(ctx, event)
}

// GetReport returns a report from the history
func (s *inspectionService) GetReport(ctx context.Context, id string) (*models.Report, error) {
	if s.deps.Reports == nil {
		return nil, apperrors.NewNotFoundError("report history is disabled", repository.ErrRepositoryUnavailable)
	}
	report, err := s.deps.Reports.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("report %s not found", id), err)
		}
		return nil, apperrors.NewInternalError("failed to read report history", err)
	}
	return report, nil
}

// ListReports returns history reports newest first
func (s *inspectionService) ListReports(ctx context.Context, filter repository.ListFilter) ([]*models.Report, error) {
	if s.deps.Reports == nil {
		return []*models.Report{}, nil
	}
	if filter.Overall != "" && filter.Overall != models.OverallPass && filter.Overall != models.OverallFail {
		return nil, apperrors.NewValidationError("overall must be PASS or FAIL", nil).WithDetails(filter.Overall)
	}
	reports, err := s.deps.Reports.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read report history", err)
	}
	return reports, nil
}

// Thresholds returns the base thresholds
func (s *inspectionService) Thresholds() models.Thresholds {
	return s.opts.Thresholds
}

func (d Dependencies) sourceOrDefault() storage.FrameSource {
	if d.Source != nil {
		return d.Source
	}
	return storage.NewFileSource()
}

package container

import (
	"fmt"
	"net/http"

	"go-endoqa/internal/analyzer"
	"go-endoqa/internal/config"
	"go-endoqa/internal/factory"
	"go-endoqa/internal/logger"
	"go-endoqa/internal/observer"
	"go-endoqa/internal/repository"
	"go-endoqa/internal/service"
	"go-endoqa/internal/storage"
	"go-endoqa/internal/transport"
	"go-endoqa/pkg/models"
)

// Container holds all application dependencies
type Container struct {
	config            *config.Config
	thresholds        models.Thresholds
	engine            *factory.Engine
	frameSource       *storage.Router
	reportRepository  repository.ReportRepository
	metrics           *observer.MetricsObserver
	inspectionService service.InspectionService
	handler           http.Handler
}

// NewContainer builds the dependency graph for cfg
func NewContainer(cfg *config.Config) (*Container, error) {
	thresholds, err := config.LoadThresholds(cfg.ThresholdsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load thresholds: %w", err)
	}

	backend, err := analyzer.ParseBackend(cfg.AnalyzerBackend)
	if err != nil {
		return nil, err
	}

	components := factory.NewComponentFactory(cfg)
	engine, err := components.AnalyzerFactory.CreateEngine(analyzer.DefaultOptions().WithBackend(backend))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	frameSource, err := components.FrameSourceFactory.CreateRouter()
	if err != nil {
		return nil, fmt.Errorf("failed to create frame sources: %w", err)
	}

	reportRepository, err := newReportRepository(cfg)
	if err != nil {
		return nil, err
	}

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(nil))
	events.Subscribe(metrics)

	inspectionService, err := service.NewInspectionService(service.Dependencies{
		Source:     frameSource,
		Calculator: engine.Calculator,
		Temporal:   engine.Temporal,
		Reports:    reportRepository,
		Events:     events,
	}, service.Options{
		Thresholds:           thresholds,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		AnalysisTimeout:      cfg.AnalysisTimeout,
	})
	if err != nil {
		reportRepository.Close()
		return nil, err
	}

	handler := transport.NewHandler(inspectionService, metrics, cfg)

	logger.WithField("backend", backend).
		WithField("history_db", cfg.HistoryDB).
		WithField("azure", cfg.AzureEnabled()).
		Info("Container initialized")

	return &Container{
		config:            cfg,
		thresholds:        thresholds,
		engine:            engine,
		frameSource:       frameSource,
		reportRepository:  reportRepository,
		metrics:           metrics,
		inspectionService: inspectionService,
		handler:           handler,
	}, nil
}

// newReportRepository opens the sqlite history when HISTORY_DB is set and
// keeps reports in memory otherwise
func newReportRepository(cfg *config.Config) (repository.ReportRepository, error) {
	if cfg.HistoryDB == "" {
		return repository.NewMemoryReportRepository(), nil
	}
	repo, err := repository.OpenSQLiteReportRepository(cfg.HistoryDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open report history: %w", err)
	}
	return repo, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the inspection service
func (c *Container) Service() service.InspectionService {
	return c.inspectionService
}

// Close releases the report history
func (c *Container) Close() error {
	return c.reportRepository.Close()
}

package factory

import (
	"fmt"

	"go-endoqa/internal/analyzer"
	"go-endoqa/internal/config"
	"go-endoqa/internal/storage"
	"go-endoqa/pkg/validation"
)

// Engine bundles the calculator and temporal analyzer built from one set of options
type Engine struct {
	Calculator analyzer.MetricsCalculator
	Temporal   analyzer.TemporalAnalyzer
	Options    analyzer.Options
}

// AnalyzerFactory creates metrics engines
type AnalyzerFactory interface {
	CreateEngine(opts analyzer.Options) (*Engine, error)
}

// FrameSourceFactory creates frame sources
type FrameSourceFactory interface {
	CreateSource(scheme string) (storage.FrameSource, error)
	CreateRouter() (*storage.Router, error)
}

// analyzerFactory implements AnalyzerFactory
type analyzerFactory struct{}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory() AnalyzerFactory {
	return &analyzerFactory{}
}

// CreateEngine creates the calculator for opts.Backend and a temporal
// analyzer reading brightness through it
func (f *analyzerFactory) CreateEngine(opts analyzer.Options) (*Engine, error) {
	calc, err := analyzer.NewCalculator(opts)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Calculator: calc,
		Temporal:   analyzer.NewTemporalAnalyzer(calc, opts),
		Options:    opts,
	}, nil
}

// frameSourceFactory implements FrameSourceFactory
type frameSourceFactory struct {
	cfg *config.Config
}

// NewFrameSourceFactory creates a frame source factory. A nil config gives
// file and HTTP sources with default settings and no Azure source.
func NewFrameSourceFactory(cfg *config.Config) FrameSourceFactory {
	return &frameSourceFactory{cfg: cfg}
}

// CreateSource creates the frame source serving references with the given scheme
func (f *frameSourceFactory) CreateSource(scheme string) (storage.FrameSource, error) {
	switch scheme {
	case validation.SchemeFile:
		return storage.NewFileSource(), nil
	case validation.SchemeHTTP, validation.SchemeHTTPS:
		opts := storage.DefaultHTTPOptions()
		if f.cfg != nil && f.cfg.ImageFetchTimeout > 0 {
			opts.Timeout = f.cfg.ImageFetchTimeout
		}
		return storage.NewHTTPFrameSource(opts), nil
	case validation.SchemeAzBlob:
		if f.cfg == nil || !f.cfg.AzureEnabled() {
			return nil, fmt.Errorf("azure storage is not configured")
		}
		src, err := storage.NewAzureFrameSource(f.cfg.AzureStorageAccount, f.cfg.AzureStorageKey)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported frame source scheme: %s", scheme)
	}
}

// CreateRouter registers a source for every scheme the configuration allows
func (f *frameSourceFactory) CreateRouter() (*storage.Router, error) {
	router := storage.NewRouter()

	fileSource, err := f.CreateSource(validation.SchemeFile)
	if err != nil {
		return nil, err
	}
	httpSource, err := f.CreateSource(validation.SchemeHTTP)
	if err != nil {
		return nil, err
	}
	router.Register(validation.SchemeFile, fileSource).
		Register(validation.SchemeHTTP, httpSource).
		Register(validation.SchemeHTTPS, httpSource)

	if f.cfg != nil && f.cfg.AzureEnabled() {
		azureSource, err := f.CreateSource(validation.SchemeAzBlob)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure frame source: %w", err)
		}
		router.Register(validation.SchemeAzBlob, azureSource)
	}

	return router, nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory    AnalyzerFactory
	FrameSourceFactory FrameSourceFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory:    NewAnalyzerFactory(),
		FrameSourceFactory: NewFrameSourceFactory(cfg),
	}
}

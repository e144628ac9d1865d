// Command endoqa inspects endoscope frames and prints a quality report.
//
//	endoqa [flags] frame.png [frame.png ...]
//
// The exit status is 0 when the report passes, 2 when it fails and 1 when
// the frames could not be inspected.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"go-endoqa/internal/analyzer"
	"go-endoqa/internal/config"
	apperrors "go-endoqa/internal/errors"
	"go-endoqa/internal/factory"
	"go-endoqa/internal/logger"
	"go-endoqa/internal/observer"
	"go-endoqa/internal/service"
	"go-endoqa/pkg/models"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cliOptions struct {
	reportPath       string
	format           string
	thresholdsFile   string
	varEpsilon       float64
	extremeThreshold int
	workers          int
	debug            bool
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := analyzer.DefaultStuckPixelOptions()

	var opts cliOptions
	fs := pflag.NewFlagSet("endoqa", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.reportPath, "report", "r", "", "also write the report to this file")
	fs.StringVarP(&opts.format, "format", "f", "json", "report format: json or yaml")
	fs.StringVarP(&opts.thresholdsFile, "thresholds", "t", "", "threshold file (yaml, toml or json)")
	fs.Float64Var(&opts.varEpsilon, "var-epsilon", defaults.VarEpsilon, "temporal std-dev below which a pixel counts as constant")
	fs.IntVar(&opts.extremeThreshold, "extreme-threshold", defaults.ExtremeThreshold, "distance from 0 or 255 within which a constant pixel is stuck")
	fs.IntVar(&opts.workers, "workers", 0, "goroutines per frame (0 uses every CPU)")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: endoqa [flags] frame [frame ...]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return apperrors.ExitPass
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		fs.Usage()
		return apperrors.ExitError
	}

	logger.SetOutput(stderr)
	logger.UseTextFormat()
	if opts.debug {
		logger.SetLevel("debug")
	} else {
		logger.SetLevel("warn")
	}

	refs := fs.Args()
	if len(refs) == 0 {
		fmt.Fprintln(stderr, "error: at least one frame is required")
		fs.Usage()
		return apperrors.ExitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := inspect(ctx, opts, refs)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return apperrors.ExitCode(err)
	}

	format, _ := models.ParseFormat(opts.format)
	if err := models.EncodeReport(stdout, *report, format); err != nil {
		fmt.Fprintf(stderr, "error: failed to print report: %v\n", err)
		return apperrors.ExitError
	}
	if opts.reportPath != "" {
		if err := writeReport(opts.reportPath, report, format); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return apperrors.ExitError
		}
	}

	if !report.Pass {
		return apperrors.ExitFail
	}
	return apperrors.ExitPass
}

func inspect(ctx context.Context, opts cliOptions, refs []string) (*models.Report, error) {
	if _, err := models.ParseFormat(opts.format); err != nil {
		return nil, apperrors.NewValidationError("invalid --format", err)
	}

	thresholds, err := config.LoadThresholds(opts.thresholdsFile)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid --thresholds", err)
	}

	analyzerOpts := analyzer.DefaultOptions().
		WithStuckPixels(opts.varEpsilon, opts.extremeThreshold).
		WithMaxWorkers(opts.workers)
	engine, err := factory.NewAnalyzerFactory().CreateEngine(analyzerOpts)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid analyzer options", err)
	}

	source, err := factory.NewFrameSourceFactory(nil).CreateRouter()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create frame sources", err)
	}

	events := observer.NewSyncEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(nil))

	svc, err := service.NewInspectionService(service.Dependencies{
		Source:     source,
		Calculator: engine.Calculator,
		Temporal:   engine.Temporal,
		Events:     events,
	}, service.Options{
		Thresholds:           thresholds,
		MaxConcurrentFetches: 4,
	})
	if err != nil {
		return nil, err
	}

	return svc.Inspect(ctx, models.InspectRequest{Refs: refs})
}

func writeReport(path string, report *models.Report, format models.Format) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := models.EncodeReport(f, *report, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return f.Close()
}

package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-endoqa/internal/logger"
)

// InspectionEvent represents an inspection lifecycle event
type InspectionEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	InspectionID   string                 `json:"inspection_id"`
	FrameCount     int                    `json:"frame_count"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Pass           bool                   `json:"pass"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of inspection event
type EventType string

const (
	// AnalysisStarted when an inspection begins
	AnalysisStarted EventType = "analysis_started"
	// AnalysisCompleted when a report was built, whatever its verdict
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when no report could be built
	AnalysisFailed EventType = "analysis_failed"
	// FramesLoaded when every frame of an inspection was fetched and decoded
	FramesLoaded EventType = "frames_loaded"
	// FrameLoadFailed when a frame could not be fetched or decoded
	FrameLoadFailed EventType = "frame_load_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event InspectionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event InspectionEvent)
}

// LoggingObserver logs inspection events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a logging observer; a nil logger uses the
// package logger
func NewLoggingObserver(l *logrus.Logger) *LoggingObserver {
	if l == nil {
		l = logger.Logger
	}
	return &LoggingObserver{logger: l}
}

// OnEvent handles inspection events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event InspectionEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"inspection_id":   event.InspectionID,
		"frame_count":     event.FrameCount,
		"processing_time": event.ProcessingTime,
	}

	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}

	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Info("Inspection started")
	case AnalysisCompleted:
		entry.WithField("pass", event.Pass).Info("Inspection completed")
	case AnalysisFailed:
		entry.Error("Inspection failed")
	case FramesLoaded:
		entry.Debug("Frames loaded")
	case FrameLoadFailed:
		entry.Error("Frame load failed")
	default:
		entry.Info("Inspection event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Stats is a snapshot of the metrics observer counters
type Stats struct {
	TotalInspections    int64         `json:"total_inspections"`
	PassedInspections   int64         `json:"passed_inspections"`
	FailedVerdicts      int64         `json:"failed_verdicts"`
	FailedInspections   int64         `json:"failed_inspections"`
	FramesAnalyzed      int64         `json:"frames_analyzed"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
	AvgProcessingTime   time.Duration `json:"avg_processing_time"`
	LastCompletedAt     *time.Time    `json:"last_completed_at,omitempty"`
}

// MetricsObserver collects counters from inspection events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalInspections    int64
	passed              int64
	failedVerdicts      int64
	failedInspections   int64
	framesAnalyzed      int64
	totalProcessingTime time.Duration
	lastCompleted       time.Time
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles inspection events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event InspectionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case AnalysisStarted:
		o.totalInspections++
	case AnalysisCompleted:
		if event.Pass {
			o.passed++
		} else {
			o.failedVerdicts++
		}
		o.framesAnalyzed += int64(event.FrameCount)
		o.totalProcessingTime += event.ProcessingTime
		o.lastCompleted = event.Timestamp
	case AnalysisFailed:
		o.failedInspections++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetStats returns the current counters
func (o *MetricsObserver) GetStats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	stats := Stats{
		TotalInspections:    o.totalInspections,
		PassedInspections:   o.passed,
		FailedVerdicts:      o.failedVerdicts,
		FailedInspections:   o.failedInspections,
		FramesAnalyzed:      o.framesAnalyzed,
		TotalProcessingTime: o.totalProcessingTime,
	}
	if completed := o.passed + o.failedVerdicts; completed > 0 {
		stats.AvgProcessingTime = o.totalProcessingTime / time.Duration(completed)
	}
	if !o.lastCompleted.IsZero() {
		last := o.lastCompleted
		stats.LastCompletedAt = &last
	}
	return stats
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	async     bool
}

// NewEventPublisher creates a publisher that notifies each observer on its
// own goroutine
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
		async:     true,
	}
}

// NewSyncEventPublisher creates a publisher that notifies observers in
// subscription order before NotifyObservers returns
func NewSyncEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes the first observer with the same name
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event InspectionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		if p.async {
			go notify(ctx, obs, event)
		} else {
			notify(ctx, obs, event)
		}
	}
}

func notify(ctx context.Context, obs Observer, event InspectionEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"observer": obs.GetObserverName(),
				"panic":    r,
			}).Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}

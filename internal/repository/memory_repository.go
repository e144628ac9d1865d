package repository

import (
	"context"
	"sort"
	"sync"

	"go-endoqa/pkg/models"
)

// MemoryReportRepository keeps reports in process memory
type MemoryReportRepository struct {
	mu      sync.RWMutex
	reports map[string]models.Report
	closed  bool
}

// NewMemoryReportRepository creates an empty in-memory repository
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{reports: make(map[string]models.Report)}
}

func (m *MemoryReportRepository) Save(ctx context.Context, report *models.Report) error {
	if report == nil || report.ID == "" {
		return ErrMissingReportID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrRepositoryUnavailable
	}
	m.reports[report.ID] = cloneReport(*report)
	return nil
}

func (m *MemoryReportRepository) Get(ctx context.Context, id string) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrRepositoryUnavailable
	}

	report, ok := m.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	cp := cloneReport(report)
	return &cp, nil
}

func (m *MemoryReportRepository) List(ctx context.Context, filter ListFilter) ([]*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrRepositoryUnavailable
	}

	out := make([]*models.Report, 0, len(m.reports))
	for _, r := range m.reports {
		if filter.Overall != "" && r.Overall() != filter.Overall {
			continue
		}
		cp := cloneReport(r)
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if len(out) > filter.limit() {
		out = out[:filter.limit()]
	}
	return out, nil
}

func (m *MemoryReportRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// cloneReport copies the slices so stored reports never alias caller memory
func cloneReport(r models.Report) models.Report {
	if r.BrightnessSeries != nil {
		r.BrightnessSeries = append([]float64(nil), r.BrightnessSeries...)
	}
	if r.Issues != nil {
		r.Issues = append([]models.QualityIssue(nil), r.Issues...)
	}
	return r
}

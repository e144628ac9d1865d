package repository

import (
	"context"

	"go-endoqa/pkg/models"
)

// ReportRepository stores inspection reports for later retrieval
type ReportRepository interface {
	// Save stores a report; the report must carry an ID
	Save(ctx context.Context, report *models.Report) error

	// Get retrieves a stored report, or ErrReportNotFound
	Get(ctx context.Context, id string) (*models.Report, error)

	// List returns reports newest first
	List(ctx context.Context, filter ListFilter) ([]*models.Report, error)

	Close() error
}

// ListFilter narrows a List call
type ListFilter struct {
	Limit   int    // <= 0 uses DefaultListLimit
	Overall string // "PASS", "FAIL" or empty for both
}

// DefaultListLimit bounds List calls that ask for no limit
const DefaultListLimit = 50

func (f ListFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

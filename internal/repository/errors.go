package repository

import "errors"

var (
	// ErrReportNotFound indicates no report exists for the requested ID
	ErrReportNotFound = errors.New("report not found")

	// ErrMissingReportID indicates a report was saved before being stamped with an ID
	ErrMissingReportID = errors.New("report has no id")

	// ErrRepositoryUnavailable indicates the repository is closed
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)

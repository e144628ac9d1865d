package models

// InspectRequest asks the service to inspect an ordered list of frame references.
// A reference is a local path, a file://, http(s):// or azblob:// URL.
type InspectRequest struct {
	Refs       []string            `json:"refs" binding:"required,min=1"`
	Thresholds *ThresholdOverrides `json:"thresholds,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ReportListResponse is returned by the report history endpoint
type ReportListResponse struct {
	Reports []Report `json:"reports"`
	Count   int      `json:"count"`
}

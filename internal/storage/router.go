package storage

import (
	"context"
	"image"
	"sync"

	apperrors "go-endoqa/internal/errors"
	"go-endoqa/pkg/validation"
)

// Router dispatches each reference to the source registered for its scheme
type Router struct {
	mu      sync.RWMutex
	sources map[string]FrameSource
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{sources: make(map[string]FrameSource)}
}

// Register binds a source to a scheme, replacing any previous binding
func (r *Router) Register(scheme string, src FrameSource) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[scheme] = src
	return r
}

// Supports reports whether a source is registered for scheme
func (r *Router) Supports(scheme string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources[scheme]
	return ok
}

// FetchFrame implements FrameSource
func (r *Router) FetchFrame(ctx context.Context, ref string) (*image.Gray, error) {
	scheme := validation.Scheme(ref)

	r.mu.RLock()
	src, ok := r.sources[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewValidationError("no frame source for scheme "+scheme, nil).WithDetails(ref)
	}
	return src.FetchFrame(ctx, ref)
}

package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"image"
	"net/http"
	"time"

	apperrors "go-endoqa/internal/errors"
	"go-endoqa/internal/logger"
)

// HTTPOptions configure the HTTP frame source
type HTTPOptions struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
	MaxAttempts        int           // total tries for transient failures
	Backoff            time.Duration // multiplied by the attempt number between tries
}

// DefaultHTTPOptions returns 3 attempts with a one second backoff step
func DefaultHTTPOptions() HTTPOptions {
	return HTTPOptions{
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		Backoff:     time.Second,
	}
}

// HTTPFrameSource downloads frames over http and https
type HTTPFrameSource struct {
	client      *http.Client
	maxAttempts int
	backoff     time.Duration
}

// NewHTTPFrameSource creates an HTTP frame source
func NewHTTPFrameSource(opts HTTPOptions) *HTTPFrameSource {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	transport := &http.Transport{
		// Connection pooling sized for a handful of frames per request
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 4096,

		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
	}

	return &HTTPFrameSource{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
	}
}

// FetchFrame downloads and decodes ref. 5xx responses and transport errors
// are retried; 4xx responses fail immediately.
func (h *HTTPFrameSource) FetchFrame(ctx context.Context, ref string) (*image.Gray, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid frame URL", err).WithDetails(ref)
	}

	req.Header.Set("Accept", "image/png, image/jpeg, image/tiff, image/bmp, image/webp, image/gif, */*")
	req.Header.Set("User-Agent", "endoqa/1.0")

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < h.maxAttempts; attempt++ {
		if attempt > 0 {
			logger.WithFields(map[string]interface{}{
				"ref":     ref,
				"attempt": attempt + 1,
				"error":   lastErr.Error(),
			}).Debug("Retrying frame download")

			select {
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("frame download cancelled", ctx.Err()).WithDetails(ref)
			case <-time.After(time.Duration(attempt) * h.backoff):
			}
		}

		attempts++
		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, apperrors.NewTimeoutError("frame download cancelled", err).WithDetails(ref)
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			frame, decodeErr := DecodeFrame(resp.Body, ref)
			resp.Body.Close()
			return frame, decodeErr
		}
		resp.Body.Close()

		// 4xx client errors are non-retryable
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			lastErr = fmt.Errorf("client error: status code %d", resp.StatusCode)
			break
		}
		lastErr = fmt.Errorf("server error: status code %d", resp.StatusCode)
	}

	return nil, apperrors.NewNetworkError(
		fmt.Sprintf("failed to fetch frame after %d attempts", attempts), lastErr,
	).WithDetails(ref)
}

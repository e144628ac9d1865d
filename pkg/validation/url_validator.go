package validation

import (
	"net/url"
	"path/filepath"
	"strings"

	apperrors "go-endoqa/internal/errors"
)

// Reference schemes understood by the frame sources
const (
	SchemeFile   = "file"
	SchemeHTTP   = "http"
	SchemeHTTPS  = "https"
	SchemeAzBlob = "azblob"
)

// RefValidator checks frame references before any frame is fetched
type RefValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewRefValidator accepts local paths and every scheme a frame source exists for
func NewRefValidator() *RefValidator {
	return &RefValidator{
		allowedSchemes: []string{SchemeFile, SchemeHTTP, SchemeHTTPS, SchemeAzBlob},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewRefValidatorWithOptions creates a validator with custom scheme and host lists
func NewRefValidatorWithOptions(schemes []string, hosts []string) *RefValidator {
	return &RefValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// Scheme returns the reference scheme; bare paths report "file"
func Scheme(ref string) string {
	ref = strings.TrimSpace(ref)
	if filepath.VolumeName(ref) != "" {
		return SchemeFile
	}
	if i := strings.Index(ref, "://"); i > 0 {
		return strings.ToLower(ref[:i])
	}
	return SchemeFile
}

// ValidateRef validates a single frame reference
func (v *RefValidator) ValidateRef(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return apperrors.NewValidationError("frame reference cannot be empty", nil)
	}

	scheme := Scheme(ref)
	if !v.isSchemeAllowed(scheme) {
		return apperrors.NewValidationError("frame reference scheme not allowed: "+scheme, nil)
	}
	if scheme == SchemeFile {
		return nil
	}

	parsedURL, err := url.Parse(ref)
	if err != nil {
		return apperrors.NewValidationError("invalid frame URL format", err)
	}

	if parsedURL.Host == "" {
		return apperrors.NewValidationError("frame URL must have a valid host", nil)
	}

	if scheme == SchemeAzBlob && strings.Trim(parsedURL.Path, "/") == "" {
		return apperrors.NewValidationError("azblob reference must name a blob", nil)
	}

	if len(v.allowedHosts) > 0 && !v.isHostAllowed(parsedURL.Host) {
		return apperrors.NewValidationError("frame URL host not allowed", nil)
	}

	return nil
}

// ValidateRefs validates every reference of a frame set; the set must be non-empty
func (v *RefValidator) ValidateRefs(refs []string) error {
	if len(refs) == 0 {
		return apperrors.NewValidationError("at least one frame is required", nil)
	}
	for _, ref := range refs {
		if err := v.ValidateRef(ref); err != nil {
			return err
		}
	}
	return nil
}

func (v *RefValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed returns true if no host restrictions are set
func (v *RefValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
	}
	return false
}

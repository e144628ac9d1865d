package storage

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"os"
	"strings"

	apperrors "go-endoqa/internal/errors"
)

// FileSource reads frames from the local filesystem. References are plain
// paths or file:// URLs.
type FileSource struct{}

// NewFileSource creates a local file frame source
func NewFileSource() *FileSource {
	return &FileSource{}
}

// FetchFrame opens and decodes the file named by ref
func (s *FileSource) FetchFrame(ctx context.Context, ref string) (*image.Gray, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := strings.TrimPrefix(strings.TrimSpace(ref), "file://")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError("frame file not found", err).WithDetails(path)
		}
		return nil, apperrors.NewValidationError("failed to open frame file", err).WithDetails(path)
	}
	defer f.Close()

	return DecodeFrame(f, ref)
}

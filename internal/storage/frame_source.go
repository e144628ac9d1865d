package storage

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go-endoqa/internal/analyzer"
	apperrors "go-endoqa/internal/errors"
)

// FrameSource loads one frame reference as an intensity frame
type FrameSource interface {
	FetchFrame(ctx context.Context, ref string) (*image.Gray, error)
}

// DecodeFrame decodes png, jpeg, gif, bmp, tiff or webp data and reduces it
// to one intensity channel. Failures are decode AppErrors naming ref.
func DecodeFrame(r io.Reader, ref string) (*image.Gray, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, apperrors.NewDecodeError("failed to decode frame", err).WithDetails(ref)
	}

	frame := analyzer.ToGray(img)
	if frame.Bounds().Empty() {
		return nil, apperrors.NewDecodeError("decoded "+format+" frame has no samples", nil).WithDetails(ref)
	}
	return frame, nil
}

// DecodeFrameBytes is DecodeFrame over an in-memory buffer
func DecodeFrameBytes(data []byte, ref string) (*image.Gray, error) {
	return DecodeFrame(bytes.NewReader(data), ref)
}

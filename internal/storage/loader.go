package storage

import (
	"context"
	"image"

	"golang.org/x/sync/errgroup"

	"go-endoqa/internal/logger"
)

// LoadFrames fetches refs concurrently, at most concurrency at a time, and
// returns the frames in reference order. The first failure cancels the
// remaining fetches and is returned.
func LoadFrames(ctx context.Context, src FrameSource, refs []string, concurrency int) ([]*image.Gray, error) {
	frames := make([]*image.Gray, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for i, ref := range refs {
		g.Go(func() error {
			frame, err := src.FetchFrame(gctx, ref)
			if err != nil {
				logger.WithError(err).WithField("ref", ref).Debug("Frame load failed")
				return err
			}
			frames[i] = frame
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}

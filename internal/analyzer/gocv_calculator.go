//go:build gocv
// +build gocv

package analyzer

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	apperrors "go-endoqa/internal/errors"
	"go-endoqa/pkg/models"
)

// GoCVAvailable reports whether this build links OpenCV
const GoCVAvailable = true

// gocvCalculator computes the single-frame measures with OpenCV
type gocvCalculator struct{}

func newGoCVCalculator(opts Options) (MetricsCalculator, error) {
	_ = opts
	return &gocvCalculator{}, nil
}

// newMatFromBytes is swapped in tests to exercise conversion failures
var newMatFromBytes = gocv.NewMatFromBytes

// toMat copies the frame into an 8-bit single channel Mat
func toMat(frame *image.Gray) (gocv.Mat, error) {
	w, h := frame.Bounds().Dx(), frame.Bounds().Dy()
	buf := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		buf = append(buf, row(frame, y)...)
	}
	return newMatFromBytes(h, w, gocv.MatTypeCV8U, buf)
}

// ComputeMetrics converts the frame once and fails when OpenCV cannot take it
func (gc *gocvCalculator) ComputeMetrics(frame *image.Gray) (models.Metrics, error) {
	if isEmpty(frame) {
		return models.Metrics{}, ErrEmptyFrame
	}
	mat, err := toMat(frame)
	if err != nil {
		return models.Metrics{}, apperrors.NewProcessingError("failed to convert frame for OpenCV", err)
	}
	defer mat.Close()

	return models.Metrics{
		Sharpness:          matSharpness(mat),
		Noise:              matNoise(mat),
		ExposureUniformity: matUniformity(mat),
		BrightnessMean:     mat.Mean().Val1,
	}, nil
}

// withMat runs fn on the converted frame; empty or unconvertible frames give 0
func withMat(frame *image.Gray, fn func(gocv.Mat) float64) float64 {
	if isEmpty(frame) {
		return 0
	}
	mat, err := toMat(frame)
	if err != nil {
		return 0
	}
	defer mat.Close()
	return fn(mat)
}

func (gc *gocvCalculator) CalculateSharpness(frame *image.Gray) float64 {
	return withMat(frame, matSharpness)
}

func (gc *gocvCalculator) CalculateNoise(frame *image.Gray) float64 {
	return withMat(frame, matNoise)
}

func (gc *gocvCalculator) CalculateExposureUniformity(frame *image.Gray) float64 {
	return withMat(frame, matUniformity)
}

func (gc *gocvCalculator) CalculateBrightness(frame *image.Gray) float64 {
	return withMat(frame, func(m gocv.Mat) float64 { return m.Mean().Val1 })
}

func matSharpness(mat gocv.Mat) float64 {
	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(mat, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	sd := stdDev(lap)
	return sd * sd
}

func matNoise(mat gocv.Mat) float64 {
	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(mat, &blur, image.Pt(BlurKernelSize, BlurKernelSize), 0, 0, gocv.BorderDefault)

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(mat, blur, &diff)

	return stdDev(diff)
}

func matUniformity(mat gocv.Mat) float64 {
	w, h := mat.Cols(), mat.Rows()
	means := make([]float64, 0, TileGridX*TileGridY)
	for ty := 0; ty < TileGridY; ty++ {
		for tx := 0; tx < TileGridX; tx++ {
			roi := image.Rect(tx*w/TileGridX, ty*h/TileGridY, (tx+1)*w/TileGridX, (ty+1)*h/TileGridY)
			if roi.Empty() {
				means = append(means, 0)
				continue
			}
			tile := mat.Region(roi)
			means = append(means, tile.Mean().Val1)
			tile.Close()
		}
	}

	var mu float64
	for _, m := range means {
		mu += m
	}
	mu /= float64(len(means))
	var variance float64
	for _, m := range means {
		variance += (m - mu) * (m - mu)
	}
	variance /= float64(len(means))

	cv := math.Sqrt(variance) / (mu + UniformityEpsilon)
	return clamp01(1.0 / (1.0 + cv))
}

// stdDev returns the population std-dev of a single channel Mat
func stdDev(m gocv.Mat) float64 {
	mean := gocv.NewMat()
	defer mean.Close()
	sd := gocv.NewMat()
	defer sd.Close()
	gocv.MeanStdDev(m, &mean, &sd)
	return sd.GetDoubleAt(0, 0)
}

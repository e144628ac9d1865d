package analyzer

import (
	"image"
	"sync"

	"gonum.org/v1/gonum/stat"

	apperrors "go-endoqa/internal/errors"
	"go-endoqa/pkg/models"
)

// Engine constants. Changing any of them changes every report, so they are
// fixed rather than configurable.
const (
	TileGridX         = 4    // exposure tiles per row
	TileGridY         = 4    // exposure tiles per column
	BlurKernelSize    = 5    // Gaussian kernel side used by the noise estimate
	UniformityEpsilon = 1e-9 // keeps the coefficient of variation finite on black frames

	maxSample = 255
)

// LaplacianKernel is the 4-neighbour second derivative used for sharpness
var LaplacianKernel = [3][3]int{
	{0, 1, 0},
	{1, -4, 1},
	{0, 1, 0},
}

// blurKernel is the 1-D binomial kernel OpenCV derives for a 5 tap Gaussian
// with automatic sigma. Applied in both directions it sums to 256.
var blurKernel = [BlurKernelSize]int{1, 4, 6, 4, 1}

const blurShift = 8

// ErrEmptyFrame is returned for frames with zero width or height
var ErrEmptyFrame = apperrors.NewValidationError("frame has no samples", nil)

// metricsCalculator is the pure Go MetricsCalculator.
// Frames of at least parallelThreshold pixels are split into horizontal
// strips processed concurrently; partial results are combined in strip order.
type metricsCalculator struct {
	workers           int
	parallelThreshold int
	slicePool         sync.Pool
}

// NewMetricsCalculator creates a native calculator with default options
func NewMetricsCalculator() MetricsCalculator {
	return newNativeCalculator(DefaultOptions())
}

func newNativeCalculator(opts Options) *metricsCalculator {
	return &metricsCalculator{
		workers:           opts.workers(),
		parallelThreshold: opts.parallelThreshold(),
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// ComputeMetrics computes all four single-frame measures
func (mc *metricsCalculator) ComputeMetrics(frame *image.Gray) (models.Metrics, error) {
	if isEmpty(frame) {
		return models.Metrics{}, ErrEmptyFrame
	}
	return models.Metrics{
		Sharpness:          mc.CalculateSharpness(frame),
		Noise:              mc.CalculateNoise(frame),
		ExposureUniformity: mc.CalculateExposureUniformity(frame),
		BrightnessMean:     mc.CalculateBrightness(frame),
	}, nil
}

// CalculateSharpness returns the population variance of the Laplacian response
func (mc *metricsCalculator) CalculateSharpness(frame *image.Gray) float64 {
	if isEmpty(frame) {
		return 0
	}
	w, h := frame.Bounds().Dx(), frame.Bounds().Dy()

	data := mc.getSlice(w * h)
	defer mc.putSlice(data)

	mc.forEachStrip(h, w*h, func(_, y0, y1 int) {
		var window [3][]uint8
		for y := y0; y < y1; y++ {
			for ky := range window {
				window[ky] = row(frame, reflect101(y+ky-1, h))
			}
			out := data[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				acc := 0
				for ky, kernelRow := range LaplacianKernel {
					for kx, k := range kernelRow {
						if k != 0 {
							acc += k * int(window[ky][reflect101(x+kx-1, w)])
						}
					}
				}
				out[x] = float64(acc)
			}
		}
	})

	return stat.PopVariance(data, nil)
}

// CalculateNoise returns the population std-dev of |frame - Blur(frame)|
func (mc *metricsCalculator) CalculateNoise(frame *image.Gray) float64 {
	if isEmpty(frame) {
		return 0
	}
	w, h := frame.Bounds().Dx(), frame.Bounds().Dy()

	blurred := mc.blur(frame)

	diff := mc.getSlice(w * h)
	defer mc.putSlice(diff)

	mc.forEachStrip(h, w*h, func(_, y0, y1 int) {
		for y := y0; y < y1; y++ {
			orig := row(frame, y)
			smooth := blurred.Pix[y*blurred.Stride : y*blurred.Stride+w]
			out := diff[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				d := int(orig[x]) - int(smooth[x])
				if d < 0 {
					d = -d
				}
				out[x] = float64(d)
			}
		}
	})

	return stat.PopStdDev(diff, nil)
}

// Blur applies the 5x5 Gaussian used by the noise estimate, with
// reflect-101 borders and results rounded to the nearest sample value.
func Blur(frame *image.Gray) *image.Gray {
	return newNativeCalculator(DefaultOptions()).blur(frame)
}

func (mc *metricsCalculator) blur(frame *image.Gray) *image.Gray {
	w, h := frame.Bounds().Dx(), frame.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	const radius = BlurKernelSize / 2

	// Horizontal pass, kept in integers scaled by 16
	tmp := make([]int32, w*h)
	mc.forEachStrip(h, w*h, func(_, y0, y1 int) {
		for y := y0; y < y1; y++ {
			src := row(frame, y)
			dst := tmp[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				var acc int32
				for k := 0; k < BlurKernelSize; k++ {
					acc += int32(blurKernel[k]) * int32(src[reflect101(x+k-radius, w)])
				}
				dst[x] = acc
			}
		}
	})

	// Vertical pass needs neighbouring rows, so it starts after the first one finished
	mc.forEachStrip(h, w*h, func(_, y0, y1 int) {
		for y := y0; y < y1; y++ {
			dst := out.Pix[y*out.Stride : y*out.Stride+w]
			for x := 0; x < w; x++ {
				var acc int32
				for k := 0; k < BlurKernelSize; k++ {
					acc += int32(blurKernel[k]) * tmp[reflect101(y+k-radius, h)*w+x]
				}
				v := (acc + 1<<(blurShift-1)) >> blurShift
				if v > maxSample {
					v = maxSample
				}
				dst[x] = uint8(v)
			}
		}
	})

	return out
}

// CalculateExposureUniformity maps the coefficient of variation of the
// TileGridX x TileGridY tile means to (0, 1]
func (mc *metricsCalculator) CalculateExposureUniformity(frame *image.Gray) float64 {
	if isEmpty(frame) {
		return 0
	}
	w, h := frame.Bounds().Dx(), frame.Bounds().Dy()

	means := make([]float64, TileGridX*TileGridY)
	mc.forEachStrip(TileGridY, w*h, func(_, ty0, ty1 int) {
		for ty := ty0; ty < ty1; ty++ {
			y0, y1 := ty*h/TileGridY, (ty+1)*h/TileGridY
			for tx := 0; tx < TileGridX; tx++ {
				x0, x1 := tx*w/TileGridX, (tx+1)*w/TileGridX
				means[ty*TileGridX+tx] = tileMean(frame, x0, x1, y0, y1)
			}
		}
	})

	mu := stat.Mean(means, nil)
	sd := stat.PopStdDev(means, nil)
	cv := sd / (mu + UniformityEpsilon)

	return clamp01(1.0 / (1.0 + cv))
}

// tileMean averages the samples of [x0,x1) x [y0,y1); an empty tile averages to 0
func tileMean(frame *image.Gray, x0, x1, y0, y1 int) float64 {
	count := (x1 - x0) * (y1 - y0)
	if count <= 0 {
		return 0
	}
	var sum uint64
	for y := y0; y < y1; y++ {
		for _, v := range row(frame, y)[x0:x1] {
			sum += uint64(v)
		}
	}
	return float64(sum) / float64(count)
}

// CalculateBrightness returns the arithmetic mean of all samples
func (mc *metricsCalculator) CalculateBrightness(frame *image.Gray) float64 {
	if isEmpty(frame) {
		return 0
	}
	w, h := frame.Bounds().Dx(), frame.Bounds().Dy()

	partial := make([]uint64, mc.stripCount(h, w*h))
	mc.forEachStrip(h, w*h, func(strip, y0, y1 int) {
		var sum uint64
		for y := y0; y < y1; y++ {
			for _, v := range row(frame, y) {
				sum += uint64(v)
			}
		}
		partial[strip] = sum
	})

	var total uint64
	for _, s := range partial {
		total += s
	}
	return float64(total) / float64(w*h)
}

// stripCount returns how many strips a frame of the given size is split into
func (mc *metricsCalculator) stripCount(rows, pixels int) int {
	if pixels < mc.parallelThreshold || mc.workers <= 1 {
		return 1
	}
	n := mc.workers
	if rows < n {
		n = rows
	}
	if n <= 0 {
		n = 1
	}
	return n
}

// forEachStrip calls fn for consecutive row ranges covering [0, rows) and
// returns once every call finished
func (mc *metricsCalculator) forEachStrip(rows, pixels int, fn func(strip, y0, y1 int)) {
	runStrips(rows, mc.stripCount(rows, pixels), fn)
}

func runStrips(rows, strips int, fn func(strip, y0, y1 int)) {
	if strips <= 1 {
		fn(0, 0, rows)
		return
	}

	rowsPerStrip := (rows + strips - 1) / strips // ceil division
	var wg sync.WaitGroup
	for i := 0; i < strips; i++ {
		startY := i * rowsPerStrip
		if startY >= rows {
			break
		}
		endY := startY + rowsPerStrip
		if endY > rows {
			endY = rows
		}
		wg.Add(1)
		go func(strip, startY, endY int) {
			defer wg.Done()
			fn(strip, startY, endY)
		}(i, startY, endY)
	}
	wg.Wait()
}

func (mc *metricsCalculator) getSlice(n int) []float64 {
	data := mc.slicePool.Get().([]float64)
	if cap(data) < n {
		data = make([]float64, n)
	}
	return data[:n]
}

func (mc *metricsCalculator) putSlice(data []float64) {
	mc.slicePool.Put(data[:0])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package analyzer

import (
	"image"
	"image/draw"
)

// ToGray reduces img to a single 8-bit intensity channel. Gray images are
// returned unchanged; everything else goes through color.GrayModel.
func ToGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}

	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(gray, gray.Bounds(), img, bounds.Min, draw.Src)
	return gray
}

// SameSize reports whether every frame has the dimensions of the first one
func SameSize(frames []*image.Gray) bool {
	if len(frames) == 0 {
		return true
	}
	w, h := frames[0].Bounds().Dx(), frames[0].Bounds().Dy()
	for _, f := range frames[1:] {
		if f.Bounds().Dx() != w || f.Bounds().Dy() != h {
			return false
		}
	}
	return true
}

func isEmpty(frame *image.Gray) bool {
	return frame == nil || frame.Bounds().Dx() == 0 || frame.Bounds().Dy() == 0
}

// row returns the samples of row y, counted from the top of the frame
func row(frame *image.Gray, y int) []uint8 {
	b := frame.Bounds()
	off := frame.PixOffset(b.Min.X, b.Min.Y+y)
	return frame.Pix[off : off+b.Dx()]
}

// reflect101 maps an out-of-range index back into [0, n) by mirroring
// around the edge samples without repeating them (OpenCV BORDER_DEFAULT).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

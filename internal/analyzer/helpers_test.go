package analyzer

import (
	"image"
	"math/rand"
)

func uniformFrame(w, h int, v uint8) *image.Gray {
	frame := image.NewGray(image.Rect(0, 0, w, h))
	for i := range frame.Pix {
		frame.Pix[i] = v
	}
	return frame
}

func checkerboard(w, h, square int, lo, hi uint8) *image.Gray {
	frame := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := lo
			if (x/square+y/square)%2 == 1 {
				v = hi
			}
			frame.Pix[y*frame.Stride+x] = v
		}
	}
	return frame
}

func randomFrame(w, h int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	frame := image.NewGray(image.Rect(0, 0, w, h))
	for i := range frame.Pix {
		frame.Pix[i] = uint8(rng.Intn(256))
	}
	return frame
}

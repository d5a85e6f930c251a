// Package mask shapes grayscale coverage masks into hand-painted looking
// regions: blurred, perturbed by Perlin noise and re-thresholded.
package mask

import (
	"image"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/disintegration/gift"
)

// Blur applies a Gaussian blur. A non-positive sigma returns a copy.
func Blur(m *image.Gray, sigma float32) *image.Gray {
	if sigma <= 0 {
		dst := image.NewGray(m.Bounds())
		copy(dst.Pix, m.Pix)
		return dst
	}
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewGray(g.Bounds(m.Bounds()))
	g.Draw(dst, m)
	return dst
}

// Noise samples Perlin noise over bounds. offsetX/offsetY place bounds in a
// global pixel grid, so neighbouring tiles sharing a seed join without seams.
// scale is the feature size in pixels.
func Noise(bounds image.Rectangle, scale float64, seed int64, offsetX, offsetY int) *image.Gray {
	p := perlin.NewPerlin(2.0, 2.0, 3, seed)
	dst := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		ny := float64(y+offsetY) / scale
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := (p.Noise2D(float64(x+offsetX)/scale, ny) + 1) / 2
			dst.Pix[dst.PixOffset(x, y)] = uint8(math.Max(0, math.Min(255, v*255)))
		}
	}
	return dst
}

// Perturb shifts m by the noise around its midpoint. strength 0 leaves m
// unchanged, 1 applies the full noise range.
func Perturb(m, noise *image.Gray, strength float64) *image.Gray {
	b := m.Bounds()
	dst := image.NewGray(b)
	nb := noise.Bounds()

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			nx := nb.Min.X + (x-b.Min.X)%nb.Dx()
			ny := nb.Min.Y + (y-b.Min.Y)%nb.Dy()
			delta := (float64(noise.GrayAt(nx, ny).Y) - 128) * strength
			v := float64(m.GrayAt(x, y).Y) + delta
			dst.Pix[dst.PixOffset(x, y)] = uint8(math.Max(0, math.Min(255, v)))
		}
	}
	return dst
}

// Threshold maps values at or above t to 255 and the rest to 0.
func Threshold(m *image.Gray, t uint8) *image.Gray {
	dst := image.NewGray(m.Bounds())
	for i, v := range m.Pix {
		if v >= t {
			dst.Pix[i] = 255
		}
	}
	return dst
}

// Edge highlights the inner rim of the shape in m: 0 deep inside and outside,
// up to 255 right at the boundary. sigma sets the rim width.
func Edge(m *image.Gray, sigma float32) *image.Gray {
	blurred := Blur(m, sigma)
	dst := image.NewGray(m.Bounds())
	for i, v := range m.Pix {
		d := 2 * (int(v) - int(blurred.Pix[i]))
		dst.Pix[i] = uint8(max(0, min(255, d)))
	}
	return dst
}

// Max returns the per-pixel maximum of a and b, which must share bounds.
func Max(a, b *image.Gray) *image.Gray {
	dst := image.NewGray(a.Bounds())
	for i := range a.Pix {
		dst.Pix[i] = max(a.Pix[i], b.Pix[i])
	}
	return dst
}

// Package composite stacks painted layers into a finished tile.
package composite

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/gift"
)

// Stack draws layers bottom to top over a copy of base. Nil layers are
// skipped; every other layer must match the bounds of base.
func Stack(base *image.NRGBA, layers ...*image.NRGBA) (*image.NRGBA, error) {
	if base == nil {
		return nil, fmt.Errorf("base image is nil")
	}
	dst := image.NewNRGBA(base.Bounds())
	copy(dst.Pix, base.Pix)

	for i, layer := range layers {
		if layer == nil {
			continue
		}
		if layer.Bounds() != dst.Bounds() {
			return nil, fmt.Errorf("layer %d bounds %v do not match base %v", i, layer.Bounds(), dst.Bounds())
		}
		Over(dst, layer)
	}
	return dst, nil
}

// Over alpha-blends src onto dst in place.
func Over(dst, src *image.NRGBA) {
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			s := src.NRGBAAt(x, y)
			if s.A == 0 {
				continue
			}
			if s.A == 255 {
				dst.SetNRGBA(x, y, s)
				continue
			}
			dst.SetNRGBA(x, y, blend(s, dst.NRGBAAt(x, y)))
		}
	}
}

func blend(s, d color.NRGBA) color.NRGBA {
	sa := float64(s.A) / 255.0
	da := float64(d.A) / 255.0

	outA := sa + da*(1.0-sa)
	if outA == 0 {
		return color.NRGBA{}
	}

	ch := func(sv, dv uint8) uint8 {
		out := float64(sv)*sa + float64(dv)*da*(1.0-sa)
		return uint8(math.Round(out / outA))
	}
	return color.NRGBA{
		R: ch(s.R, d.R),
		G: ch(s.G, d.G),
		B: ch(s.B, d.B),
		A: uint8(math.Round(outA * 255.0)),
	}
}

// Fill paints c wherever m has coverage, with m as alpha.
func Fill(m *image.Gray, c color.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(m.Bounds())
	b := m.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := m.GrayAt(x, y).Y
			if v == 0 {
				continue
			}
			a := uint16(c.A) * uint16(v) / 255
			dst.SetNRGBA(x, y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(a)})
		}
	}
	return dst
}

// Crop cuts r out of img. The result has its origin at (0,0).
func Crop(img *image.NRGBA, r image.Rectangle) *image.NRGBA {
	g := gift.New(gift.Crop(r))
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

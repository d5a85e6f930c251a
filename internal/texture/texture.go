// Package texture paints procedural watercolor textures. Textures are sampled
// in the global pixel grid of a zoom level, so adjacent tiles line up.
package texture

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/aquilax/go-perlin"
)

// Params defines a texture.
type Params struct {
	Color color.NRGBA
	// Variation is the 0..1 strength of the low-frequency wash.
	Variation float64
	// Grain is the 0..1 strength of the fine paper grain.
	Grain float64
	// Scale is the wash feature size in pixels.
	Scale float64
	Seed  int64
}

// Paper is the default paper look: an off-white wash with visible grain.
func Paper(seed int64) Params {
	return Params{
		Color:     color.NRGBA{R: 244, G: 240, B: 232, A: 255},
		Variation: 0.3,
		Grain:     0.6,
		Scale:     96,
		Seed:      seed,
	}
}

// Sea is the default water wash.
func Sea(seed int64) Params {
	return Params{
		Color:     color.NRGBA{R: 105, G: 160, B: 210, A: 255},
		Variation: 0.8,
		Grain:     0.3,
		Scale:     160,
		Seed:      seed,
	}
}

// Generator renders one texture.
type Generator struct {
	p     Params
	wash  *perlin.Perlin
	grain *perlin.Perlin
}

// New validates p and prepares a generator.
func New(p Params) (*Generator, error) {
	if p.Scale <= 0 {
		return nil, fmt.Errorf("texture scale must be positive, got %v", p.Scale)
	}
	if p.Variation < 0 || p.Variation > 1 {
		return nil, fmt.Errorf("variation must be within [0,1], got %v", p.Variation)
	}
	if p.Grain < 0 || p.Grain > 1 {
		return nil, fmt.Errorf("grain must be within [0,1], got %v", p.Grain)
	}
	return &Generator{
		p:     p,
		wash:  perlin.NewPerlin(2.0, 2.0, 4, p.Seed),
		grain: perlin.NewPerlin(1.5, 2.5, 2, p.Seed+4242),
	}, nil
}

// Render paints bounds, whose origin sits at offsetX/offsetY in the global grid.
func (g *Generator) Render(bounds image.Rectangle, offsetX, offsetY int) *image.NRGBA {
	dst := image.NewNRGBA(bounds)
	base := [3]float64{float64(g.p.Color.R), float64(g.p.Color.G), float64(g.p.Color.B)}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		gy := float64(y + offsetY)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gx := float64(x + offsetX)

			// Wash brightens and darkens broad patches; grain adds speckle.
			w := g.wash.Noise2D(gx/g.p.Scale, gy/g.p.Scale) * 0.18 * g.p.Variation
			gr := g.grain.Noise2D(gx/2.5, gy/2.5) * 0.06 * g.p.Grain
			f := 1 + w + gr

			i := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				dst.Pix[i+c] = uint8(math.Max(0, math.Min(255, math.Round(base[c]*f))))
			}
			dst.Pix[i+3] = g.p.Color.A
		}
	}
	return dst
}

// Tint blends every pixel of tex toward tint by strength (0..1). Alpha is kept.
func Tint(tex *image.NRGBA, tint color.NRGBA, strength float64) *image.NRGBA {
	strength = math.Max(0, math.Min(1, strength))
	dst := image.NewNRGBA(tex.Bounds())
	target := [3]float64{float64(tint.R), float64(tint.G), float64(tint.B)}

	for i := 0; i < len(tex.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := (1-strength)*float64(tex.Pix[i+c]) + strength*target[c]
			dst.Pix[i+c] = uint8(math.Round(v))
		}
		dst.Pix[i+3] = tex.Pix[i+3]
	}
	return dst
}

// Mask uses m as the alpha channel of tex. Both must share bounds.
func Mask(tex *image.NRGBA, m *image.Gray) *image.NRGBA {
	dst := image.NewNRGBA(tex.Bounds())
	copy(dst.Pix, tex.Pix)
	b := tex.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := uint16(tex.Pix[tex.PixOffset(x, y)+3])
			dst.Pix[dst.PixOffset(x, y)+3] = uint8(a * uint16(m.GrayAt(x, y).Y) / 255)
		}
	}
	return dst
}

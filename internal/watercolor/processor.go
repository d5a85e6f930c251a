// Package watercolor turns hard region masks into painted, slightly wobbly
// washes with darkened rims.
package watercolor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/nusantaramap/internal/mask"
	"github.com/MeKo-Tech/nusantaramap/internal/palette"
	"github.com/MeKo-Tech/nusantaramap/internal/texture"
)

// Params define the watercolor processing knobs shared by every region.
type Params struct {
	BlurSigma      float32
	NoiseScale     float64
	NoiseStrength  float64
	Threshold      uint8
	AntialiasSigma float32

	// TintStrength blends the paper toward the region color.
	TintStrength float64
	// EdgeSigma sets the width of the darkened rim, EdgeStrength its depth.
	EdgeSigma    float32
	EdgeStrength float64
	// EdgeShade is the lightness factor of the rim color.
	EdgeShade float64

	Seed int64
}

// DefaultParams returns the defaults used for province washes.
func DefaultParams(seed int64) Params {
	return Params{
		BlurSigma:      2.0,
		NoiseScale:     30.0,
		NoiseStrength:  0.3,
		Threshold:      128,
		AntialiasSigma: 0.5,
		TintStrength:   0.75,
		EdgeSigma:      3.0,
		EdgeStrength:   0.45,
		EdgeShade:      0.7,
		Seed:           seed,
	}
}

// Validate checks ranges.
func (p Params) Validate() error {
	if p.NoiseScale <= 0 {
		return errors.New("noise scale must be positive")
	}
	if p.NoiseStrength < 0 || p.NoiseStrength > 1 {
		return fmt.Errorf("noise strength must be within [0,1], got %v", p.NoiseStrength)
	}
	if p.TintStrength < 0 || p.TintStrength > 1 {
		return fmt.Errorf("tint strength must be within [0,1], got %v", p.TintStrength)
	}
	if p.EdgeStrength < 0 || p.EdgeStrength > 1 {
		return fmt.Errorf("edge strength must be within [0,1], got %v", p.EdgeStrength)
	}
	if p.BlurSigma < 0 || p.AntialiasSigma < 0 || p.EdgeSigma < 0 {
		return errors.New("sigmas must not be negative")
	}
	return nil
}

// Shape runs blur, noise, threshold and antialiasing over a coverage mask.
// offsetX/offsetY place the mask in the global pixel grid for the noise.
func Shape(m *image.Gray, p Params, offsetX, offsetY int) *image.Gray {
	shaped := mask.Blur(m, p.BlurSigma)
	if p.NoiseStrength > 0 {
		noise := mask.Noise(m.Bounds(), p.NoiseScale, p.Seed, offsetX, offsetY)
		shaped = mask.Perturb(shaped, noise, p.NoiseStrength)
	}
	shaped = mask.Threshold(shaped, p.Threshold)
	if p.AntialiasSigma > 0 {
		shaped = mask.Blur(shaped, p.AntialiasSigma)
	}
	return shaped
}

// Paint fills shape with paper tinted toward fill and darkens the rim.
// paper and shape must share bounds.
func Paint(shape *image.Gray, paper *image.NRGBA, fill color.NRGBA, p Params) *image.NRGBA {
	tinted := texture.Tint(paper, fill, p.TintStrength)

	if p.EdgeStrength > 0 && p.EdgeSigma > 0 {
		rim := palette.Shade(fill, p.EdgeShade)
		edge := mask.Edge(shape, p.EdgeSigma)
		darkenRim(tinted, edge, rim, p.EdgeStrength)
	}
	return texture.Mask(tinted, shape)
}

func darkenRim(img *image.NRGBA, edge *image.Gray, rim color.NRGBA, strength float64) {
	target := [3]float64{float64(rim.R), float64(rim.G), float64(rim.B)}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			e := float64(edge.GrayAt(x, y).Y) / 255 * strength
			if e == 0 {
				continue
			}
			i := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := (1-e)*float64(img.Pix[i+c]) + e*target[c]
				img.Pix[i+c] = uint8(math.Round(v))
			}
		}
	}
}

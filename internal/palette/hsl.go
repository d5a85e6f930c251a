package palette

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Hue is expressed in [0..1535] (6 * 256 steps), saturation and lightness in
// [0..255], so the whole conversion stays in integer math.
const hueSteps = 1536

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// clampU8 clamps an int value to the uint8 range [0, 255].
func clampU8(x int) uint8 {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}

// hslToRGB converts HSL to RGB using integer math only.
func hslToRGB(h uint16, s, l uint8) (r, g, b uint8) {
	if s == 0 {
		return l, l, l
	}

	L := int(l)
	S := int(s)

	// C = (1 - |2L-1|) * S, scaled to 0..255
	t := 255 - abs(2*L-255)
	C := (t*S + 127) / 255
	m := L - (C / 2)

	h %= hueSteps
	sector := int(h >> 8) // 0..5
	f := int(h & 0xFF)    // position inside the sector

	var X int
	if (sector & 1) == 0 {
		X = (C*f + 127) / 256
	} else {
		X = (C*(256-f) + 127) / 256
	}

	var rp, gp, bp int
	switch sector {
	case 0:
		rp, gp, bp = C, X, 0
	case 1:
		rp, gp, bp = X, C, 0
	case 2:
		rp, gp, bp = 0, C, X
	case 3:
		rp, gp, bp = 0, X, C
	case 4:
		rp, gp, bp = X, 0, C
	case 5:
		rp, gp, bp = C, 0, X
	}

	return clampU8(rp + m), clampU8(gp + m), clampU8(bp + m)
}

// Hex formats an HSL triple as "#rrggbb".
func Hex(h uint16, s, l uint8) string {
	r, g, b := hslToRGB(h, s, l)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// percent converts a 0..100 percentage to the 0..255 scale.
func percent(p float64) uint8 {
	return clampU8(int(p*255/100 + 0.5))
}

// rgbToHSL is the inverse of hslToRGB on the same integer scales.
func rgbToHSL(r, g, b uint8) (h uint16, s, l uint8) {
	R, G, B := int(r), int(g), int(b)
	maxC := max(R, G, B)
	minC := min(R, G, B)
	l = uint8((maxC + minC) / 2)

	d := maxC - minC
	if d == 0 {
		return 0, 0, l
	}
	t := max(255-abs(maxC+minC-255), 1)
	s = clampU8((d*255 + t/2) / t)

	var hh int
	switch maxC {
	case R:
		hh = (G - B) * 256 / d
		if hh < 0 {
			hh += hueSteps
		}
	case G:
		hh = (B-R)*256/d + 512
	default:
		hh = (R-G)*256/d + 1024
	}
	return uint16(hh % hueSteps), s, l
}

// ParseHex parses "#rrggbb" or "#rgb" into an opaque color.
func ParseHex(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// Shade scales the lightness of c by factor. Hue and saturation are kept.
func Shade(c color.NRGBA, factor float64) color.NRGBA {
	h, s, l := rgbToHSL(c.R, c.G, c.B)
	r, g, b := hslToRGB(h, s, clampU8(int(math.Round(float64(l)*factor))))
	return color.NRGBA{R: r, G: g, B: b, A: c.A}
}

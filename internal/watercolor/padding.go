package watercolor

import "math"

// MinPaddingPx is the margin kept even without blurs, so strokes along a
// tile edge are drawn on both sides.
const MinPaddingPx = 4

// RequiredPaddingPx returns the margin a tile needs around it so the blurs
// see real neighbours instead of the canvas edge. Rendering tileSize+2*pad
// and cropping back to the center removes seams.
func RequiredPaddingPx(p Params) int {
	sigma := max(p.BlurSigma, p.AntialiasSigma, p.EdgeSigma)
	if sigma <= 0 {
		return MinPaddingPx
	}
	// 3*sigma captures the vast majority of the kernel energy.
	return max(MinPaddingPx, int(math.Ceil(float64(sigma)*3.0))+2)
}

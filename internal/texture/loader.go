package texture

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
)

// Load reads a texture image from disk.
func Load(path string) (*image.NRGBA, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open texture %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode texture %s: %w", path, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("texture %s is empty", path)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst, nil
}

// Repeat tiles src over bounds, aligned to the global grid so repeats do
// not shift between neighbouring tiles.
func Repeat(src *image.NRGBA, bounds image.Rectangle, offsetX, offsetY int) *image.NRGBA {
	dst := image.NewNRGBA(bounds)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		sy := mod(y+offsetY, h)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sx := mod(x+offsetX, w)
			copy(dst.Pix[dst.PixOffset(x, y):dst.PixOffset(x, y)+4], src.Pix[src.PixOffset(sx, sy):src.PixOffset(sx, sy)+4])
		}
	}
	return dst
}

func mod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

package pipeline

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/nusantaramap/internal/raster"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var labelFace = basicfont.Face7x13

var haloOffsets = [8]image.Point{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// labelPoint is where a region's name is centered.
func labelPoint(g orb.Geometry) orb.Point {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		if c, area := planar.CentroidArea(g); area != 0 {
			return c
		}
	}
	return g.Bound().Center()
}

// drawLabels writes every region name whose box touches the canvas. Labels
// are placed in global pixels, so a name crossing a tile edge is drawn in
// part by each neighbour.
func (g *Generator) drawLabels(img *image.NRGBA, canvas *raster.Canvas) {
	halo := color.NRGBA{R: 255, G: 255, B: 255, A: 200}
	size := canvas.Bounds().Dx()

	for _, r := range g.regions {
		x, y := canvas.Project(labelPoint(r.Geometry))
		w := font.MeasureString(labelFace, r.Name).Ceil()
		left := int(x) - w/2
		baseline := int(y) + labelFace.Ascent/2

		if left+w < 0 || left > size || baseline < 0 || baseline-labelFace.Height > size {
			continue
		}
		for _, off := range haloOffsets {
			drawText(img, r.Name, left+off.X, baseline+off.Y, halo)
		}
		drawText(img, r.Name, left, baseline, g.style.LabelColor)
	}
}

func drawText(img *image.NRGBA, text string, x, y int, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: labelFace,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// Package raster rasterizes WGS84 geometry onto tile-aligned grayscale masks.
package raster

import (
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/nusantaramap/internal/tile"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"golang.org/x/image/vector"
)

const (
	maxLat       = 85.05112878
	earthRadius  = 6378137.0
	mercatorSpan = 2 * math.Pi * earthRadius
)

// Canvas is a pixel grid covering one tile plus a margin on every side.
type Canvas struct {
	zoom     uint32
	tileSize int
	pad      int
	offsetX  int // global pixel space
	offsetY  int // global pixel space
	size     int
}

// ForTile returns the canvas for c with pad extra pixels around the tile.
func ForTile(c tile.Coords, tileSize, pad int) *Canvas {
	return &Canvas{
		zoom:     c.Z,
		tileSize: tileSize,
		pad:      pad,
		offsetX:  int(c.X)*tileSize - pad,
		offsetY:  int(c.Y)*tileSize - pad,
		size:     tileSize + 2*pad,
	}
}

// Bounds is the canvas rectangle, origin at the top-left of the margin.
func (c *Canvas) Bounds() image.Rectangle { return image.Rect(0, 0, c.size, c.size) }

// TileRect is the part of the canvas belonging to the tile itself.
func (c *Canvas) TileRect() image.Rectangle {
	return image.Rect(c.pad, c.pad, c.pad+c.tileSize, c.pad+c.tileSize)
}

// Offset returns the global pixel position of the canvas origin.
func (c *Canvas) Offset() (x, y int) { return c.offsetX, c.offsetY }

// Geo returns the canvas extent in WGS84.
func (c *Canvas) Geo() orb.Bound {
	nw := c.unproject(float64(c.offsetX), float64(c.offsetY))
	se := c.unproject(float64(c.offsetX+c.size), float64(c.offsetY+c.size))
	return orb.Bound{Min: orb.Point{nw[0], se[1]}, Max: orb.Point{se[0], nw[1]}}
}

// Project maps a WGS84 point to canvas pixels.
func (c *Canvas) Project(p orb.Point) (x, y float64) {
	gx, gy := WorldPixel(p, c.zoom, c.tileSize)
	return gx - float64(c.offsetX), gy - float64(c.offsetY)
}

// WorldPixel maps a WGS84 point to global pixel space at zoom z.
func WorldPixel(p orb.Point, z uint32, tileSize int) (x, y float64) {
	lat := math.Max(-maxLat, math.Min(maxLat, p.Lat()))
	m := project.WGS84.ToMercator(orb.Point{p.Lon(), lat})
	world := float64(uint64(1)<<z) * float64(tileSize)
	x = (m[0]/mercatorSpan + 0.5) * world
	y = (0.5 - m[1]/mercatorSpan) * world
	return x, y
}

func (c *Canvas) unproject(x, y float64) orb.Point {
	world := float64(uint64(1)<<c.zoom) * float64(c.tileSize)
	m := orb.Point{(x/world - 0.5) * mercatorSpan, (0.5 - y/world) * mercatorSpan}
	return project.Mercator.ToWGS84(m)
}

// Fill rasterizes the areal parts of g with antialiased coverage (0..255).
// Lines and points leave the mask empty.
func (c *Canvas) Fill(g orb.Geometry) *image.Gray {
	ras := vector.NewRasterizer(c.size, c.size)
	if !c.addPaths(ras, g) {
		return image.NewGray(c.Bounds())
	}

	dst := image.NewAlpha(c.Bounds())
	ras.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})

	// Alpha and Gray share the one-byte-per-pixel layout.
	return &image.Gray{Pix: dst.Pix, Stride: dst.Stride, Rect: dst.Rect}
}

func (c *Canvas) addPaths(ras *vector.Rasterizer, g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.Polygon:
		drawn := false
		for _, ring := range g {
			drawn = c.addRing(ras, ring) || drawn
		}
		return drawn
	case orb.MultiPolygon:
		drawn := false
		for _, p := range g {
			drawn = c.addPaths(ras, p) || drawn
		}
		return drawn
	case orb.Ring:
		return c.addRing(ras, g)
	case orb.Collection:
		drawn := false
		for _, sub := range g {
			drawn = c.addPaths(ras, sub) || drawn
		}
		return drawn
	}
	return false
}

func (c *Canvas) addRing(ras *vector.Rasterizer, ring orb.Ring) bool {
	if len(ring) < 3 {
		return false
	}
	for i, pt := range ring {
		x, y := c.Project(pt)
		if i == 0 {
			ras.MoveTo(float32(x), float32(y))
		} else {
			ras.LineTo(float32(x), float32(y))
		}
	}
	ras.ClosePath()
	return true
}

// Stroke draws the outlines of the areal parts of g, width pixels wide.
func (c *Canvas) Stroke(g orb.Geometry, width float64) *image.Gray {
	dst := image.NewGray(c.Bounds())
	if width <= 0 {
		return dst
	}
	c.strokeGeometry(dst, g, width/2)
	return dst
}

func (c *Canvas) strokeGeometry(dst *image.Gray, g orb.Geometry, radius float64) {
	switch g := g.(type) {
	case orb.Polygon:
		for _, ring := range g {
			c.strokeLine(dst, orb.LineString(ring), radius)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			c.strokeGeometry(dst, p, radius)
		}
	case orb.Ring:
		c.strokeLine(dst, orb.LineString(g), radius)
	case orb.Collection:
		for _, sub := range g {
			c.strokeGeometry(dst, sub, radius)
		}
	}
}

// strokeLine stamps discs along each segment.
func (c *Canvas) strokeLine(dst *image.Gray, ls orb.LineString, radius float64) {
	if len(ls) < 2 {
		return
	}
	step := math.Max(0.5, radius*0.75)

	for i := 0; i < len(ls)-1; i++ {
		x0, y0 := c.Project(ls[i])
		x1, y1 := c.Project(ls[i+1])
		if !c.near(x0, y0, x1, y1, radius) {
			continue
		}

		dx, dy := x1-x0, y1-y0
		steps := int(math.Ceil(math.Hypot(dx, dy) / step))
		if steps == 0 {
			c.disc(dst, x0, y0, radius)
			continue
		}
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(steps)
			c.disc(dst, x0+dx*t, y0+dy*t, radius)
		}
	}
}

// near reports whether a segment's box touches the canvas.
func (c *Canvas) near(x0, y0, x1, y1, radius float64) bool {
	size := float64(c.size)
	return math.Max(x0, x1)+radius >= 0 && math.Min(x0, x1)-radius <= size &&
		math.Max(y0, y1)+radius >= 0 && math.Min(y0, y1)-radius <= size
}

func (c *Canvas) disc(dst *image.Gray, cx, cy, radius float64) {
	minX := max(int(math.Floor(cx-radius)), 0)
	maxX := min(int(math.Ceil(cx+radius)), c.size-1)
	minY := max(int(math.Floor(cy-radius)), 0)
	maxY := min(int(math.Ceil(cy+radius)), c.size-1)

	r2 := radius * radius
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			dx := (float64(x) + 0.5) - cx
			dy := (float64(y) + 0.5) - cy
			if dx*dx+dy*dy <= r2 {
				dst.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
}

// Empty reports whether m has no coverage at all.
func Empty(m *image.Gray) bool {
	for _, v := range m.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}

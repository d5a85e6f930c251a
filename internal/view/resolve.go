package view

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	// MaxZoom caps resolved zoom levels.
	MaxZoom = 18

	tileSize     = 256.0
	earthRadius  = 6378137.0
	mercatorSpan = 2 * math.Pi * earthRadius
)

// Resolve computes the center and zoom a width x height pixel viewport lands
// on after executing cmd. Zoom snaps down to an integer level.
func Resolve(cmd Command, width, height int) (LatLng, float64) {
	if cmd.Kind != KindFitBounds {
		return cmd.Center, cmd.Zoom
	}

	w, h := float64(width), float64(height)
	tlx, tly := cmd.Padding.TopLeft[0]*w, cmd.Padding.TopLeft[1]*h
	brx, bry := cmd.Padding.BottomRight[0]*w, cmd.Padding.BottomRight[1]*h

	availW := math.Max(1, w-tlx-brx)
	availH := math.Max(1, h-tly-bry)

	sw := project.WGS84.ToMercator(orb.Point{cmd.Bounds.MinLon, cmd.Bounds.MinLat})
	ne := project.WGS84.ToMercator(orb.Point{cmd.Bounds.MaxLon, cmd.Bounds.MaxLat})
	dx := ne.X() - sw.X()
	dy := ne.Y() - sw.Y()

	zoom := float64(MaxZoom)
	if dx > 0 || dy > 0 {
		scale := math.Inf(1)
		if dx > 0 {
			scale = math.Min(scale, mercatorSpan*availW/(tileSize*dx))
		}
		if dy > 0 {
			scale = math.Min(scale, mercatorSpan*availH/(tileSize*dy))
		}
		zoom = math.Max(0, math.Min(MaxZoom, math.Floor(math.Log2(scale))))
	}

	// Shift the center by half the padding imbalance so the bounds sit in
	// the unpadded area.
	mpp := metersPerPixel(zoom)
	offX := (brx - tlx) / 2 * mpp
	offY := (bry - tly) / 2 * mpp

	mid := orb.Point{(sw.X()+ne.X())/2 + offX, (sw.Y()+ne.Y())/2 - offY}
	c := project.Mercator.ToWGS84(mid)
	return LatLng{Lat: c.Lat(), Lon: c.Lon()}, zoom
}

func metersPerPixel(zoom float64) float64 {
	return mercatorSpan / (tileSize * math.Pow(2, zoom))
}

package types

import (
	"fmt"

	"github.com/paulmach/orb"
)

// BoundingBox represents a geographic bounding box in WGS84 (EPSG:4326)
type BoundingBox struct {
	MinLon float64 `json:"min_lon"` // Western edge (degrees)
	MinLat float64 `json:"min_lat"` // Southern edge (degrees)
	MaxLon float64 `json:"max_lon"` // Eastern edge (degrees)
	MaxLat float64 `json:"max_lat"` // Northern edge (degrees)
}

// BoundsOf returns the bounding box of g, or the zero box for a nil geometry.
func BoundsOf(g orb.Geometry) BoundingBox {
	if g == nil {
		return BoundingBox{}
	}
	return FromBound(g.Bound())
}

// FromBound converts an orb.Bound.
func FromBound(b orb.Bound) BoundingBox {
	return BoundingBox{
		MinLon: b.Min.Lon(),
		MinLat: b.Min.Lat(),
		MaxLon: b.Max.Lon(),
		MaxLat: b.Max.Lat(),
	}
}

// Bound converts back to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// IsZero reports whether the box is unset.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// String returns a human-readable representation of the bounding box
func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(%.6f,%.6f,%.6f,%.6f)", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// Center returns the center point of the bounding box
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// Width returns the width of the bounding box in degrees
func (b BoundingBox) Width() float64 {
	return b.MaxLon - b.MinLon
}

// Height returns the height of the bounding box in degrees
func (b BoundingBox) Height() float64 {
	return b.MaxLat - b.MinLat
}

// ExpandByFraction grows the box on every side by frac of its width/height.
func (b BoundingBox) ExpandByFraction(frac float64) BoundingBox {
	if frac <= 0 {
		return b
	}
	dx := b.Width() * frac
	dy := b.Height() * frac
	return BoundingBox{
		MinLon: b.MinLon - dx,
		MinLat: b.MinLat - dy,
		MaxLon: b.MaxLon + dx,
		MaxLat: b.MaxLat + dy,
	}
}

// Package tile addresses basemap tiles in the XYZ (slippy map) scheme.
package tile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest zoom level a basemap tile may address.
const MaxZoom = 22

// Coords represents a tile coordinate in the Web Mercator tile system (z/x/y)
type Coords struct {
	Z uint32 // Zoom level
	X uint32 // Column
	Y uint32 // Row, counted from the north
}

// NewCoords creates a new Coords from zoom, x, y values
func NewCoords(z, x, y uint32) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// String returns the tile coordinate in URL form "z/x/y".
func (c Coords) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Valid reports whether the column and row exist at the zoom level.
func (c Coords) Valid() bool {
	if c.Z > MaxZoom {
		return false
	}
	n := uint32(1) << c.Z
	return c.X < n && c.Y < n
}

// TMSRow returns the row in the TMS scheme used by MBTiles, counted from the south.
func (c Coords) TMSRow() uint32 {
	return (uint32(1) << c.Z) - 1 - c.Y
}

// FromTMS converts a TMS row back into XYZ coordinates.
func FromTMS(z, x, tmsRow uint32) Coords {
	return Coords{Z: z, X: x, Y: (uint32(1) << z) - 1 - tmsRow}
}

// Tile returns the maptile.Tile for this coordinate
func (c Coords) Tile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// Bounds returns the geographic bounding box for this tile in WGS84.
func (c Coords) Bounds() types.BoundingBox {
	return types.FromBound(c.Tile().Bound())
}

// ParsePath parses the three segments of a "/{z}/{x}/{y}.png" style path.
// A file extension on the row is ignored.
func ParsePath(z, x, y string) (Coords, error) {
	if i := strings.IndexByte(y, '.'); i >= 0 {
		y = y[:i]
	}
	zz, err := strconv.ParseUint(z, 10, 32)
	if err != nil {
		return Coords{}, fmt.Errorf("invalid zoom %q", z)
	}
	xx, err := strconv.ParseUint(x, 10, 32)
	if err != nil {
		return Coords{}, fmt.Errorf("invalid column %q", x)
	}
	yy, err := strconv.ParseUint(y, 10, 32)
	if err != nil {
		return Coords{}, fmt.Errorf("invalid row %q", y)
	}
	c := NewCoords(uint32(zz), uint32(xx), uint32(yy))
	if !c.Valid() {
		return Coords{}, fmt.Errorf("tile %s out of range", c)
	}
	return c, nil
}

// Covering returns all tile coordinates within a bounding box across a zoom range.
// X/Y ranges are computed at each zoom level independently.
func Covering(b types.BoundingBox, zoomMin, zoomMax uint32) []Coords {
	tiles := make([]Coords, 0, Count(b, zoomMin, zoomMax))
	forEachRange(b, zoomMin, zoomMax, func(z, minX, maxX, minY, maxY uint32) {
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				tiles = append(tiles, NewCoords(z, x, y))
			}
		}
	})
	return tiles
}

// Count returns the number of tiles Covering would return, without allocating them.
func Count(b types.BoundingBox, zoomMin, zoomMax uint32) int {
	count := 0
	forEachRange(b, zoomMin, zoomMax, func(_, minX, maxX, minY, maxY uint32) {
		count += int(maxX-minX+1) * int(maxY-minY+1)
	})
	return count
}

func forEachRange(b types.BoundingBox, zoomMin, zoomMax uint32, fn func(z, minX, maxX, minY, maxY uint32)) {
	minPoint := orb.Point{b.MinLon, b.MinLat}
	maxPoint := orb.Point{b.MaxLon, b.MaxLat}

	for z := zoomMin; z <= zoomMax && z <= MaxZoom; z++ {
		zoom := maptile.Zoom(z)
		minTile := maptile.At(minPoint, zoom)
		maxTile := maptile.At(maxPoint, zoom)

		// Tile rows grow southward, so the southern edge has the larger Y.
		minX, maxX := minTile.X, maxTile.X
		if minX > maxX {
			minX, maxX = maxX, minX
		}
		minY, maxY := minTile.Y, maxTile.Y
		if minY > maxY {
			minY, maxY = maxY, minY
		}
		fn(z, minX, maxX, minY, maxY)
	}
}

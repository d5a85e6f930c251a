// Package locate finds the region under a coordinate, and the coordinate
// behind a client address via a MaxMind GeoIP2/GeoLite2 City database.
package locate

import (
	"errors"
	"fmt"
	"net"

	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/oschwald/geoip2-golang"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrNoLocation is returned when the database has no coordinates for an address.
var ErrNoLocation = errors.New("no location for address")

// Locator resolves IP addresses to coordinates.
type Locator struct {
	db   *geoip2.Reader
	path string
}

// Open opens a City database.
func Open(path string) (*Locator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database %s: %w", path, err)
	}
	return &Locator{db: db, path: path}, nil
}

// Lookup returns the approximate position of ip.
func (l *Locator) Lookup(ip net.IP) (orb.Point, error) {
	if ip == nil {
		return orb.Point{}, fmt.Errorf("%w: invalid address", ErrNoLocation)
	}
	rec, err := l.db.City(ip)
	if err != nil {
		return orb.Point{}, fmt.Errorf("failed to look up %s: %w", ip, err)
	}
	// Unknown addresses decode to the zero location.
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return orb.Point{}, fmt.Errorf("%w: %s", ErrNoLocation, ip)
	}
	return orb.Point{rec.Location.Longitude, rec.Location.Latitude}, nil
}

// Close closes the database.
func (l *Locator) Close() error {
	return l.db.Close()
}

// ProvinceAt returns the first province whose geometry contains pt.
func ProvinceAt(provinces []types.Province, pt orb.Point) (types.Province, bool) {
	for _, p := range provinces {
		if Contains(p.Geometry, pt) {
			return p, true
		}
	}
	return types.Province{}, false
}

// RegencyAt returns the first regency whose geometry contains pt.
func RegencyAt(regencies []types.Regency, pt orb.Point) (types.Regency, bool) {
	for _, r := range regencies {
		if Contains(r.Geometry, pt) {
			return r, true
		}
	}
	return types.Regency{}, false
}

// Contains reports whether an areal geometry contains pt. Other geometry
// types never contain anything.
func Contains(g orb.Geometry, pt orb.Point) bool {
	if g == nil || !g.Bound().Contains(pt) {
		return false
	}
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	case orb.Ring:
		return planar.RingContains(g, pt)
	case orb.Collection:
		for _, sub := range g {
			if Contains(sub, pt) {
				return true
			}
		}
	}
	return false
}

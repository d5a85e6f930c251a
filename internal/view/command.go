// Package view describes the abstract "move the map" commands the selection
// state machine emits and resolves them against a concrete viewport size.
package view

import (
	"encoding/json"
	"time"

	"github.com/MeKo-Tech/nusantaramap/internal/types"
)

// Kind discriminates view commands.
type Kind string

const (
	KindFitBounds Kind = "fit_bounds"
	KindFlyTo     Kind = "fly_to"
)

// LatLng is a WGS84 position.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Padding reserves parts of the viewport when fitting bounds. Values are
// fractions of the viewport size ([0] horizontal, [1] vertical), not pixels.
type Padding struct {
	TopLeft     [2]float64 `json:"top_left"`
	BottomRight [2]float64 `json:"bottom_right"`
}

// Command asks the renderer to move its view.
type Command struct {
	Kind     Kind              `json:"kind"`
	Bounds   types.BoundingBox `json:"bounds,omitzero"`
	Padding  Padding           `json:"padding,omitzero"`
	Center   LatLng            `json:"center,omitzero"`
	Zoom     float64           `json:"zoom,omitempty"`
	Duration time.Duration     `json:"-"`
}

// MarshalJSON encodes Duration as seconds, the unit map widgets animate in.
func (c Command) MarshalJSON() ([]byte, error) {
	type alias Command
	return json.Marshal(struct {
		alias
		DurationSeconds float64 `json:"duration"`
	}{alias(c), c.Duration.Seconds()})
}

// LeftReserved fits bounds while keeping the left frac of the viewport free
// for a side panel.
func LeftReserved(bounds types.BoundingBox, frac float64, d time.Duration) Command {
	return Command{
		Kind:     KindFitBounds,
		Bounds:   bounds,
		Padding:  Padding{TopLeft: [2]float64{frac, 0}},
		Duration: d,
	}
}

// Symmetric fits bounds with the same padding fraction on every side.
func Symmetric(bounds types.BoundingBox, frac float64, d time.Duration) Command {
	return Command{
		Kind:     KindFitBounds,
		Bounds:   bounds,
		Padding:  Padding{TopLeft: [2]float64{frac, frac}, BottomRight: [2]float64{frac, frac}},
		Duration: d,
	}
}

// FlyTo moves to a fixed center and zoom.
func FlyTo(center LatLng, zoom float64, d time.Duration) Command {
	return Command{Kind: KindFlyTo, Center: center, Zoom: zoom, Duration: d}
}

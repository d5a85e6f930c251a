package selection

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/nusantaramap/internal/view"
)

// Options collects the cosmetic knobs that differ between viewer variants.
type Options struct {
	HighlightColor string
	BaseFillColor  string
	BorderColor    string

	// UseRandomPerFeatureColor paints unselected features with their
	// assigned palette color instead of BaseFillColor.
	UseRandomPerFeatureColor bool
	ShowSearch               bool
	ShowDetailPanel          bool

	// ProvinceZoomPadding is the fraction of viewport width kept free on the
	// left when zooming to a province.
	ProvinceZoomPadding float64
	// RegencyZoomPadding is the symmetric padding fraction used when a search
	// result is selected.
	RegencyZoomPadding float64

	DefaultCenter view.LatLng
	DefaultZoom   float64
	FlyDuration   time.Duration
}

// DefaultOptions returns the settings of the main viewer.
func DefaultOptions() Options {
	return Options{
		HighlightColor:           "#3388ff",
		BaseFillColor:            "#9ecae1",
		BorderColor:              "#ffffff",
		UseRandomPerFeatureColor: true,
		ShowSearch:               true,
		ShowDetailPanel:          true,
		ProvinceZoomPadding:      0.25,
		RegencyZoomPadding:       0.1,
		DefaultCenter:            view.LatLng{Lat: -2.5489, Lon: 118.0149},
		DefaultZoom:              5,
		FlyDuration:              time.Second,
	}
}

// Validate checks ranges.
func (o Options) Validate() error {
	if o.HighlightColor == "" {
		return fmt.Errorf("highlight color is required")
	}
	if o.ProvinceZoomPadding < 0 || o.ProvinceZoomPadding >= 1 {
		return fmt.Errorf("province zoom padding must be within [0,1), got %v", o.ProvinceZoomPadding)
	}
	// Symmetric padding applies twice per axis.
	if o.RegencyZoomPadding < 0 || o.RegencyZoomPadding >= 0.5 {
		return fmt.Errorf("regency zoom padding must be within [0,0.5), got %v", o.RegencyZoomPadding)
	}
	if o.DefaultZoom < 0 || o.DefaultZoom > view.MaxZoom {
		return fmt.Errorf("default zoom must be within [0,%d], got %v", view.MaxZoom, o.DefaultZoom)
	}
	if o.FlyDuration < 0 {
		return fmt.Errorf("fly duration must not be negative")
	}
	return nil
}

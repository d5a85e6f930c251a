package selection

import (
	"github.com/MeKo-Tech/nusantaramap/internal/palette"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
)

// Style is the per-feature paint description handed to the renderer. Field
// names follow Leaflet's path options.
type Style struct {
	FillColor   string  `json:"fillColor"`
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
	FillOpacity float64 `json:"fillOpacity"`
}

const (
	weightSelected    = 3
	weightDefault     = 1
	fillOpacity       = 0.8
	fillOpacityDimmed = 0.3
	fillOpacityHover  = 0.9
)

// ProvinceStyle styles a province for the given selection.
func ProvinceStyle(p types.Province, sel Selection, colors palette.Map, opts Options) Style {
	selected := sel.Province != nil && sel.Province.Name == p.Name
	sibling := sel.Province != nil && !selected
	hovered := sel.Hover != "" && sel.Hover == types.FeatureID(types.KindProvince, p.Name)
	return paint(p.Name, selected, sibling, hovered, colors, opts)
}

// RegencyStyle styles a regency for the given selection.
func RegencyStyle(r types.Regency, sel Selection, colors palette.Map, opts Options) Style {
	selected := sel.Regency != nil && sel.Regency.Name == r.Name
	sibling := sel.Regency != nil && !selected
	hovered := sel.Hover != "" && sel.Hover == types.FeatureID(types.KindRegency, r.Name)
	return paint(r.Name, selected, sibling, hovered, colors, opts)
}

func paint(name string, selected, sibling, hovered bool, colors palette.Map, opts Options) Style {
	s := Style{
		FillColor:   opts.BaseFillColor,
		Color:       opts.BorderColor,
		Weight:      weightDefault,
		Opacity:     1,
		FillOpacity: fillOpacity,
	}
	if opts.UseRandomPerFeatureColor {
		s.FillColor = colors.Color(name)
	}

	switch {
	case selected:
		s.FillColor = opts.HighlightColor
		s.Weight = weightSelected
	case hovered:
		s.Weight = weightSelected
		s.FillOpacity = fillOpacityHover
	case sibling:
		s.FillOpacity = fillOpacityDimmed
	}
	return s
}

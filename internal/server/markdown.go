package server

import (
	"bytes"

	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// PointOfInterestDetail is a point of interest with its description rendered
// for the detail panel.
type PointOfInterestDetail struct {
	types.PointOfInterest
	DescriptionHTML string `json:"description_html,omitempty"`
}

// Raw HTML in descriptions is escaped.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
)

func (s *Session) poiDetails(pois []types.PointOfInterest) []PointOfInterestDetail {
	if len(pois) == 0 {
		return nil
	}
	out := make([]PointOfInterestDetail, 0, len(pois))
	for _, poi := range pois {
		d := PointOfInterestDetail{PointOfInterest: poi}
		if poi.Description != "" {
			var buf bytes.Buffer
			if err := markdown.Convert([]byte(poi.Description), &buf); err != nil {
				s.log().Warn("failed to render POI description", "poi", poi.Name, "error", err)
			} else {
				d.DescriptionHTML = buf.String()
			}
		}
		out = append(out, d)
	}
	return out
}

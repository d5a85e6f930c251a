// Package geojson converts between GeoJSON feature collections and the typed
// province/regency records used by the rest of the module.
package geojson

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cast"
)

// Property keys of the province document.
const (
	PropProvinceCode = "KODE_PROV"
	PropProvinceName = "PROVINSI"
)

// Property keys of the regency document.
const (
	PropRegencyName   = "WADMKK"
	PropParentName    = "WADMPR"
	PropObjectName    = "NAMOBJ"
	PropObjectID      = "OBJECTID"
	PropFeatureCode   = "FCODE"
	PropPointsOfInter = "POI"
)

// regencyKnown lists every regency property mapped onto RegencyAttributes.
// Anything else lands in Regency.Extra.
var regencyKnown = map[string]bool{
	PropObjectID: true, PropObjectName: true, PropFeatureCode: true, "REMARK": true,
	"METADATA": true, "SRS_ID": true, "KDBBPS": true, "KDCBPS": true, "KDCPUM": true,
	"KDEBPS": true, "KDEPUM": true, "KDPBPS": true, "KDPKAB": true, "KDPPUM": true,
	"LUASWH": true, "TIPADM": true, "WADMKC": true, "WADMKD": true, PropRegencyName: true,
	PropParentName: true, "WIADKC": true, "WIADKK": true, "WIADPR": true, "WIADKD": true,
	"UUPP": true, "LUAS": true, PropPointsOfInter: true,
}

// DecodeProvinces parses a province FeatureCollection.
// Features without a PROVINSI name are skipped.
func DecodeProvinces(data []byte) ([]types.Province, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse province collection: %w", err)
	}

	out := make([]types.Province, 0, len(fc.Features))
	for _, f := range fc.Features {
		name := stringProp(f.Properties, PropProvinceName)
		if name == "" {
			continue
		}
		out = append(out, types.Province{
			Code:     stringProp(f.Properties, PropProvinceCode),
			Name:     name,
			Geometry: f.Geometry,
		})
	}
	return out, nil
}

// DecodeRegencies parses a regency FeatureCollection.
// The display name is WADMKK, falling back to NAMOBJ; unnamed features are skipped.
func DecodeRegencies(data []byte) ([]types.Regency, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regency collection: %w", err)
	}

	out := make([]types.Regency, 0, len(fc.Features))
	for _, f := range fc.Features {
		p := f.Properties
		name := stringProp(p, PropRegencyName)
		if name == "" {
			name = stringProp(p, PropObjectName)
		}
		if name == "" {
			continue
		}

		r := types.Regency{
			Name:             name,
			Province:         stringProp(p, PropParentName),
			Geometry:         f.Geometry,
			Attributes:       regencyAttributes(p),
			PointsOfInterest: pointsOfInterest(p[PropPointsOfInter]),
		}
		for k, v := range p {
			if regencyKnown[k] {
				continue
			}
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[k] = v
		}
		out = append(out, r)
	}
	return out, nil
}

func regencyAttributes(p geojson.Properties) types.RegencyAttributes {
	return types.RegencyAttributes{
		ObjectID:    int64(numberProp(p, PropObjectID)),
		ObjectName:  stringProp(p, PropObjectName),
		FeatureCode: stringProp(p, PropFeatureCode),
		Remark:      stringProp(p, "REMARK"),
		Metadata:    stringProp(p, "METADATA"),
		SRSID:       stringProp(p, "SRS_ID"),
		KDBBPS:      stringProp(p, "KDBBPS"),
		KDCBPS:      stringProp(p, "KDCBPS"),
		KDCPUM:      stringProp(p, "KDCPUM"),
		KDEBPS:      stringProp(p, "KDEBPS"),
		KDEPUM:      stringProp(p, "KDEPUM"),
		KDPBPS:      stringProp(p, "KDPBPS"),
		KDPKAB:      stringProp(p, "KDPKAB"),
		KDPPUM:      stringProp(p, "KDPPUM"),
		District:    stringProp(p, "WADMKC"),
		Village:     stringProp(p, "WADMKD"),
		WIADKC:      stringProp(p, "WIADKC"),
		WIADKK:      stringProp(p, "WIADKK"),
		WIADPR:      stringProp(p, "WIADPR"),
		WIADKD:      stringProp(p, "WIADKD"),
		LegalBasis:  stringProp(p, "UUPP"),
		AreaWH:      numberProp(p, "LUASWH"),
		Area:        numberProp(p, "LUAS"),
		AdminType:   int(numberProp(p, "TIPADM")),
	}
}

// pointsOfInterest reads the optional POI array. Entries that are not objects
// or have no name are dropped.
func pointsOfInterest(v any) []types.PointOfInterest {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]types.PointOfInterest, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		p := geojson.Properties(m)
		poi := types.PointOfInterest{
			Name:        stringProp(p, "name"),
			Description: stringProp(p, "description"),
			Address:     stringProp(p, "address"),
		}
		if poi.Name == "" {
			continue
		}
		switch imgs := m["images"].(type) {
		case []any:
			for _, img := range imgs {
				if s, ok := img.(string); ok && s != "" {
					poi.Images = append(poi.Images, s)
				}
			}
		case string:
			if imgs != "" {
				poi.Images = []string{imgs}
			}
		}
		out = append(out, poi)
	}
	return out
}

// stringProp reads a property as a trimmed string. Numeric codes are
// formatted without a trailing fraction.
func stringProp(p geojson.Properties, key string) string {
	s, err := cast.ToStringE(p[key])
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// numberProp accepts numbers and numeric strings; anything else reads as 0.
func numberProp(p geojson.Properties, key string) float64 {
	v := p[key]
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0
	}
	return f
}

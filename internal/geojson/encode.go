package geojson

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/paulmach/orb/geojson"
)

// PropsFunc returns extra properties to attach to an encoded feature.
type PropsFunc[T any] func(T) map[string]any

// EncodeProvinces converts provinces to a FeatureCollection. Features without
// geometry are skipped.
func EncodeProvinces(provinces []types.Province, extra PropsFunc[types.Province]) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range provinces {
		if p.Geometry == nil {
			continue
		}
		f := geojson.NewFeature(p.Geometry)
		f.ID = types.FeatureID(types.KindProvince, p.Name)
		f.Properties[PropProvinceName] = p.Name
		f.Properties[PropProvinceCode] = p.Code
		merge(f.Properties, extra, p)
		fc.Append(f)
	}
	return fc
}

// EncodeRegencies converts regencies to a FeatureCollection carrying the name
// keys only; detail attributes are served separately.
func EncodeRegencies(regencies []types.Regency, extra PropsFunc[types.Regency]) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range regencies {
		if r.Geometry == nil {
			continue
		}
		f := geojson.NewFeature(r.Geometry)
		f.ID = types.FeatureID(types.KindRegency, r.Name)
		f.Properties[PropRegencyName] = r.Name
		f.Properties[PropParentName] = r.Province
		merge(f.Properties, extra, r)
		fc.Append(f)
	}
	return fc
}

// MarshalCollection renders a collection as JSON bytes.
func MarshalCollection(fc *geojson.FeatureCollection) ([]byte, error) {
	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}

func merge[T any](props geojson.Properties, extra PropsFunc[T], v T) {
	if extra == nil {
		return
	}
	for k, val := range extra(v) {
		props[k] = val
	}
}

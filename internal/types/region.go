package types

import (
	"github.com/paulmach/orb"
)

// Kind identifies one of the two administrative layers.
type Kind string

const (
	KindProvince Kind = "province"
	KindRegency  Kind = "regency"
)

// Valid reports whether k names a known layer.
func (k Kind) Valid() bool {
	return k == KindProvince || k == KindRegency
}

// Province is a top-level administrative region, keyed by Name.
type Province struct {
	Geometry orb.Geometry // Polygon or MultiPolygon
	Code     string       // KODE_PROV
	Name     string       // PROVINSI
}

// Bounds returns the bounding box of the province geometry.
func (p Province) Bounds() BoundingBox {
	return BoundsOf(p.Geometry)
}

// PointOfInterest is a place attached to a regency for the detail panel.
type PointOfInterest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Address     string   `json:"address,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// RegencyAttributes holds the descriptive fields of a regency record.
type RegencyAttributes struct {
	ObjectID    int64   `json:"object_id"`
	ObjectName  string  `json:"object_name,omitempty"`  // NAMOBJ
	FeatureCode string  `json:"feature_code,omitempty"` // FCODE
	Remark      string  `json:"remark,omitempty"`
	Metadata    string  `json:"metadata,omitempty"`
	SRSID       string  `json:"srs_id,omitempty"`
	KDBBPS      string  `json:"kdbbps,omitempty"`
	KDCBPS      string  `json:"kdcbps,omitempty"`
	KDCPUM      string  `json:"kdcpum,omitempty"`
	KDEBPS      string  `json:"kdebps,omitempty"`
	KDEPUM      string  `json:"kdepum,omitempty"`
	KDPBPS      string  `json:"kdpbps,omitempty"`
	KDPKAB      string  `json:"kdpkab,omitempty"`
	KDPPUM      string  `json:"kdppum,omitempty"`
	District    string  `json:"district,omitempty"` // WADMKC
	Village     string  `json:"village,omitempty"`  // WADMKD
	WIADKC      string  `json:"wiadkc,omitempty"`
	WIADKK      string  `json:"wiadkk,omitempty"`
	WIADPR      string  `json:"wiadpr,omitempty"`
	WIADKD      string  `json:"wiadkd,omitempty"`
	LegalBasis  string  `json:"legal_basis,omitempty"` // UUPP
	AreaWH      float64 `json:"area_wh"`               // LUASWH
	Area        float64 `json:"area,omitempty"`        // LUAS
	AdminType   int     `json:"admin_type"`            // TIPADM
}

// Regency is a second-level region nested in exactly one province.
type Regency struct {
	Geometry         orb.Geometry
	Extra            map[string]any // properties outside the known schema; never read by the core
	Name             string         // WADMKK (falls back to NAMOBJ)
	Province         string         // WADMPR
	PointsOfInterest []PointOfInterest
	Attributes       RegencyAttributes
}

// Bounds returns the bounding box of the regency geometry.
func (r Regency) Bounds() BoundingBox {
	return BoundsOf(r.Geometry)
}

// FeatureID returns the identifier used for hover tracking on the renderer side.
func FeatureID(kind Kind, name string) string {
	return string(kind) + "/" + name
}

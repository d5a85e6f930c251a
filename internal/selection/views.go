package selection

import (
	"slices"

	"github.com/MeKo-Tech/nusantaramap/internal/types"
)

// View is the derived data recomputed after every state change.
type View struct {
	State     State
	Provinces []types.Province
	Regencies []types.Regency
}

// VisibleProvinces returns every province while idle, otherwise only the
// selected one. The input slice is never modified or aliased.
func VisibleProvinces(all []types.Province, sel Selection) []types.Province {
	if sel.State() == Idle {
		return slices.Clone(all)
	}
	if sel.Province == nil {
		return []types.Province{}
	}
	for _, p := range all {
		if p.Name == sel.Province.Name {
			return []types.Province{p}
		}
	}
	return []types.Province{}
}

// FilteredRegencies returns the regencies of the selected province in
// collection order, or nil when no province is selected.
func FilteredRegencies(all []types.Regency, sel Selection) []types.Regency {
	if sel.Province == nil {
		return nil
	}
	out := make([]types.Regency, 0)
	for _, r := range all {
		if r.Province == sel.Province.Name {
			out = append(out, r)
		}
	}
	return out
}

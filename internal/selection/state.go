package selection

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/nusantaramap/internal/types"
)

var (
	// ErrLookupMiss is returned when a name is not present in the loaded collection.
	ErrLookupMiss = errors.New("lookup miss")
	// ErrNotLoaded is returned when a transition needs a collection that has not arrived.
	ErrNotLoaded = errors.New("collection not loaded")
)

// State is the selection state tag.
type State int

const (
	Idle State = iota
	ProvinceSelected
	ProvinceAndRegencySelected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ProvinceSelected:
		return "province_selected"
	case ProvinceAndRegencySelected:
		return "province_and_regency_selected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Idle, ProvinceSelected, ProvinceAndRegencySelected} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown selection state %q", text)
}

// Selection is a read-only snapshot of what is selected and hovered.
// Province may be nil while Regency is set when the regency's parent was not
// found in the province collection.
type Selection struct {
	Province *types.Province
	Regency  *types.Regency
	Hover    string
}

// State derives the state tag.
func (s Selection) State() State {
	switch {
	case s.Regency != nil:
		return ProvinceAndRegencySelected
	case s.Province != nil:
		return ProvinceSelected
	default:
		return Idle
	}
}

// ProvinceName returns the selected province name or "".
func (s Selection) ProvinceName() string {
	if s.Province == nil {
		return ""
	}
	return s.Province.Name
}

// RegencyName returns the selected regency name or "".
func (s Selection) RegencyName() string {
	if s.Regency == nil {
		return ""
	}
	return s.Regency.Name
}

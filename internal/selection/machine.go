// Package selection holds the viewer's selection state machine: which
// province and regency are selected, the feature subsets derived from that,
// and the view commands each transition emits.
package selection

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/MeKo-Tech/nusantaramap/internal/palette"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/MeKo-Tech/nusantaramap/internal/view"
)

// Viewport executes view commands. It is the map renderer's side of the
// boundary.
type Viewport interface {
	Apply(view.Command)
}

// ViewportFunc adapts a function to Viewport.
type ViewportFunc func(view.Command)

// Apply calls f(cmd).
func (f ViewportFunc) Apply(cmd view.Command) { f(cmd) }

// Machine is the selection state machine. It is single-owner and not safe for
// concurrent use; callers serialize access.
type Machine struct {
	opts     Options
	viewport Viewport
	logger   *slog.Logger

	provinces      []types.Province
	regencies      []types.Regency
	provinceIdx    map[string]int
	regencyIdx     map[string]int
	provinceColors palette.Map
	regencyColors  palette.Map

	// Indexes into provinces/regencies, -1 when unset.
	province int
	regency  int
	hover    string

	view    View
	lastCmd *view.Command
}

// New creates an idle machine. A nil viewport drops commands.
func New(opts Options, viewport Viewport, logger *slog.Logger) (*Machine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selection options: %w", err)
	}
	m := &Machine{
		opts:     opts,
		viewport: viewport,
		logger:   logger,
		province: -1,
		regency:  -1,
	}
	m.recompute()
	return m, nil
}

// Options returns the machine's options.
func (m *Machine) Options() Options { return m.opts }

// SetProvinces installs the province collection and its colors. Collections
// are write-once; later calls return false and change nothing.
func (m *Machine) SetProvinces(provinces []types.Province, colors palette.Map) bool {
	if m.provinces != nil {
		return false
	}
	m.provinces = provinces
	if m.provinces == nil {
		m.provinces = []types.Province{}
	}
	m.provinceColors = colors
	m.provinceIdx = make(map[string]int, len(provinces))
	for i, p := range provinces {
		if _, dup := m.provinceIdx[p.Name]; !dup {
			m.provinceIdx[p.Name] = i
		}
	}
	m.recompute()
	return true
}

// SetRegencies installs the regency collection and its colors. Write-once.
func (m *Machine) SetRegencies(regencies []types.Regency, colors palette.Map) bool {
	if m.regencies != nil {
		return false
	}
	m.regencies = regencies
	if m.regencies == nil {
		m.regencies = []types.Regency{}
	}
	m.regencyColors = colors
	m.regencyIdx = make(map[string]int, len(regencies))
	for i, r := range regencies {
		if _, dup := m.regencyIdx[r.Name]; !dup {
			m.regencyIdx[r.Name] = i
		}
	}
	m.recompute()
	return true
}

// Loaded reports whether the collection of kind has been installed.
func (m *Machine) Loaded(kind types.Kind) bool {
	switch kind {
	case types.KindProvince:
		return m.provinces != nil
	case types.KindRegency:
		return m.regencies != nil
	default:
		return false
	}
}

// State returns the current state tag.
func (m *Machine) State() State {
	return m.Selection().State()
}

// Selection returns a snapshot; the pointed-to records are copies.
func (m *Machine) Selection() Selection {
	var sel Selection
	if m.province >= 0 {
		p := m.provinces[m.province]
		sel.Province = &p
	}
	if m.regency >= 0 {
		r := m.regencies[m.regency]
		sel.Regency = &r
	}
	sel.Hover = m.hover
	return sel
}

// View returns the derived view computed after the last change.
func (m *Machine) View() View {
	return View{
		State:     m.view.State,
		Provinces: slices.Clone(m.view.Provinces),
		Regencies: slices.Clone(m.view.Regencies),
	}
}

// LastCommand returns the most recent view command, if any.
func (m *Machine) LastCommand() (view.Command, bool) {
	if m.lastCmd == nil {
		return view.Command{}, false
	}
	return *m.lastCmd, true
}

// SelectProvince focuses a province. It only acts from Idle; otherwise the
// call is ignored and returns false.
func (m *Machine) SelectProvince(name string) (bool, error) {
	if m.provinces == nil {
		return false, fmt.Errorf("select province %q: %w", name, ErrNotLoaded)
	}
	if m.State() != Idle {
		return false, nil
	}
	idx, ok := m.provinceIdx[name]
	if !ok {
		return false, fmt.Errorf("province %q: %w", name, ErrLookupMiss)
	}

	m.province = idx
	m.emit(view.LeftReserved(m.provinces[idx].Bounds(), m.opts.ProvinceZoomPadding, m.opts.FlyDuration))
	m.recompute()
	return true, nil
}

// SelectRegency selects a regency from a map click, auto-selecting its parent
// province when needed. Ignored while a regency is already selected.
func (m *Machine) SelectRegency(name string) (bool, error) {
	return m.selectRegency(name, false)
}

// SelectSearchResult selects a regency picked from search results. It zooms
// tighter onto the regency itself with symmetric padding.
func (m *Machine) SelectSearchResult(name string) (bool, error) {
	return m.selectRegency(name, true)
}

func (m *Machine) selectRegency(name string, fromSearch bool) (bool, error) {
	if m.regencies == nil {
		return false, fmt.Errorf("select regency %q: %w", name, ErrNotLoaded)
	}
	if m.regency >= 0 {
		return false, nil
	}
	idx, ok := m.regencyIdx[name]
	if !ok {
		return false, fmt.Errorf("regency %q: %w", name, ErrLookupMiss)
	}
	r := m.regencies[idx]

	if m.province < 0 || m.provinces[m.province].Name != r.Province {
		parent, found := m.provinceIdx[r.Province]
		switch {
		case found:
			m.province = parent
			if !fromSearch {
				m.emit(view.LeftReserved(m.provinces[parent].Bounds(), m.opts.ProvinceZoomPadding, m.opts.FlyDuration))
			}
		default:
			m.province = -1
			m.log().Warn("parent province not found; selecting regency without province",
				"regency", r.Name, "province", r.Province)
		}
	}

	m.regency = idx
	if fromSearch {
		m.emit(view.Symmetric(r.Bounds(), m.opts.RegencyZoomPadding, m.opts.FlyDuration))
	}
	m.recompute()
	return true, nil
}

// ClearRegency drops the regency selection and keeps the province.
func (m *Machine) ClearRegency() bool {
	if m.regency < 0 {
		return false
	}
	m.regency = -1
	m.recompute()
	return true
}

// Reset returns to Idle and flies back to the default view.
func (m *Machine) Reset() {
	m.province = -1
	m.regency = -1
	m.hover = ""
	m.emit(view.FlyTo(m.opts.DefaultCenter, m.opts.DefaultZoom, m.opts.FlyDuration))
	m.recompute()
}

// Hover records the feature id under the pointer; "" clears it.
// It reports whether the hover target changed.
func (m *Machine) Hover(featureID string) bool {
	if m.hover == featureID {
		return false
	}
	m.hover = featureID
	return true
}

// ProvinceStyle styles p against the current selection.
func (m *Machine) ProvinceStyle(p types.Province) Style {
	return ProvinceStyle(p, m.Selection(), m.provinceColors, m.opts)
}

// RegencyStyle styles r against the current selection.
func (m *Machine) RegencyStyle(r types.Regency) Style {
	return RegencyStyle(r, m.Selection(), m.regencyColors, m.opts)
}

// Regency looks up a loaded regency by name.
func (m *Machine) Regency(name string) (types.Regency, bool) {
	idx, ok := m.regencyIdx[name]
	if !ok {
		return types.Regency{}, false
	}
	return m.regencies[idx], true
}

// Province looks up a loaded province by name.
func (m *Machine) Province(name string) (types.Province, bool) {
	idx, ok := m.provinceIdx[name]
	if !ok {
		return types.Province{}, false
	}
	return m.provinces[idx], true
}

// Provinces returns a copy of the full loaded province collection.
func (m *Machine) Provinces() []types.Province {
	return slices.Clone(m.provinces)
}

// Regencies returns a copy of the full loaded regency collection.
func (m *Machine) Regencies() []types.Regency {
	return slices.Clone(m.regencies)
}

func (m *Machine) recompute() {
	sel := m.Selection()
	m.view = View{
		State:     sel.State(),
		Provinces: VisibleProvinces(m.provinces, sel),
		Regencies: FilteredRegencies(m.regencies, sel),
	}
}

func (m *Machine) emit(cmd view.Command) {
	m.lastCmd = &cmd
	if m.viewport != nil {
		m.viewport.Apply(cmd)
	}
}

func (m *Machine) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/MeKo-Tech/nusantaramap/internal/datasource"
	"github.com/MeKo-Tech/nusantaramap/internal/geojson"
	"github.com/MeKo-Tech/nusantaramap/internal/locate"
	"github.com/MeKo-Tech/nusantaramap/internal/search"
	"github.com/MeKo-Tech/nusantaramap/internal/selection"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/MeKo-Tech/nusantaramap/internal/view"
	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
)

// ErrSearchDisabled is returned by Session.Search when search is switched off.
var ErrSearchDisabled = errors.New("search disabled")

// Default renderer size used to resolve view commands.
const (
	DefaultViewportWidth  = 1024
	DefaultViewportHeight = 768
)

// ViewState is a view command plus the center and zoom it resolves to for the
// session's viewport size.
type ViewState struct {
	Command view.Command `json:"command"`
	Center  view.LatLng  `json:"center"`
	Zoom    float64      `json:"zoom"`
}

// Snapshot describes the session's selection at one instant.
type Snapshot struct {
	State    selection.State     `json:"state"`
	Province string              `json:"province,omitempty"`
	Regency  string              `json:"regency,omitempty"`
	Hover    string              `json:"hover,omitempty"`
	Loaded   map[types.Kind]bool `json:"loaded"`
	View     *ViewState          `json:"view,omitempty"`
}

// RegencyDetail is the detail panel payload for one regency.
type RegencyDetail struct {
	Name             string                   `json:"name"`
	Province         string                   `json:"province"`
	Bounds           types.BoundingBox        `json:"bounds"`
	Style            selection.Style          `json:"style"`
	Attributes       *types.RegencyAttributes `json:"attributes,omitempty"`
	PointsOfInterest []PointOfInterestDetail  `json:"points_of_interest,omitempty"`
}

// Location is the region under a coordinate.
type Location struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Province string  `json:"province"`
	Regency  string  `json:"regency,omitempty"`
}

// Session owns the single selection machine behind the server. Every method
// takes the session mutex, so the machine only ever sees one caller at a time.
type Session struct {
	machine *selection.Machine
	index   *search.Index
	hub     *Hub
	pois    PointsOfInterestSource
	logger  *slog.Logger
	width   int
	height  int
	mu      sync.Mutex
}

// NewSession creates an idle session. Events are pushed to hub when it is non-nil.
func NewSession(opts selection.Options, hub *Hub, width, height int, logger *slog.Logger) (*Session, error) {
	if width <= 0 {
		width = DefaultViewportWidth
	}
	if height <= 0 {
		height = DefaultViewportHeight
	}
	s := &Session{hub: hub, logger: logger, width: width, height: height}

	m, err := selection.New(opts, selection.ViewportFunc(s.applyView), logger)
	if err != nil {
		return nil, err
	}
	s.machine = m
	return s, nil
}

// ProvincesLoaded implements datasource.Subscriber.
func (s *Session) ProvincesLoaded(c datasource.Provinces) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.machine.SetProvinces(c.Items, c.Colors) {
		return
	}
	s.log().Info("provinces ready", "count", len(c.Items), "source", c.Source)
	s.broadcastStateLocked()
}

// RegenciesLoaded implements datasource.Subscriber.
func (s *Session) RegenciesLoaded(c datasource.Regencies) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.machine.SetRegencies(c.Items, c.Colors) {
		return
	}
	s.index = search.NewIndex(c.Items)
	s.log().Info("regencies ready", "count", len(c.Items), "source", c.Source)
	s.broadcastStateLocked()
}

// Snapshot returns the current selection.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Options returns the selection options the session runs with.
func (s *Session) Options() selection.Options {
	return s.machine.Options()
}

// SelectProvince forwards a province click.
func (s *Session) SelectProvince(name string) (bool, Snapshot, error) {
	return s.transition(func(m *selection.Machine) (bool, error) { return m.SelectProvince(name) })
}

// SelectRegency forwards a regency click.
func (s *Session) SelectRegency(name string) (bool, Snapshot, error) {
	return s.transition(func(m *selection.Machine) (bool, error) { return m.SelectRegency(name) })
}

// SelectSearchResult forwards a pick from the search results.
func (s *Session) SelectSearchResult(name string) (bool, Snapshot, error) {
	return s.transition(func(m *selection.Machine) (bool, error) { return m.SelectSearchResult(name) })
}

// ClearRegency drops the regency and keeps the province.
func (s *Session) ClearRegency() (bool, Snapshot, error) {
	return s.transition(func(m *selection.Machine) (bool, error) { return m.ClearRegency(), nil })
}

// Reset returns to the national view.
func (s *Session) Reset() (bool, Snapshot, error) {
	return s.transition(func(m *selection.Machine) (bool, error) {
		m.Reset()
		return true, nil
	})
}

// Hover records the feature id under the pointer. An empty id clears it.
func (s *Session) Hover(featureID string) (bool, Snapshot, error) {
	return s.transition(func(m *selection.Machine) (bool, error) { return m.Hover(featureID), nil })
}

func (s *Session) transition(fn func(*selection.Machine) (bool, error)) (bool, Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := fn(s.machine)
	if err != nil {
		s.log().Debug("transition rejected", "error", err)
		return false, s.snapshotLocked(), err
	}
	if changed {
		s.broadcastStateLocked()
	}
	return changed, s.snapshotLocked(), nil
}

// Provinces returns the visible provinces as GeoJSON with a style per feature.
func (s *Session) Provinces() *orbjson.FeatureCollection {
	s.mu.Lock()
	defer s.mu.Unlock()

	return geojson.EncodeProvinces(s.machine.View().Provinces, func(p types.Province) map[string]any {
		return map[string]any{"style": s.machine.ProvinceStyle(p)}
	})
}

// Regencies returns the filtered regencies as GeoJSON with a style per
// feature. The collection is empty until a province is selected.
func (s *Session) Regencies() *orbjson.FeatureCollection {
	s.mu.Lock()
	defer s.mu.Unlock()

	return geojson.EncodeRegencies(s.machine.View().Regencies, func(r types.Regency) map[string]any {
		return map[string]any{"style": s.machine.RegencyStyle(r)}
	})
}

// Names returns the names of the visible provinces and the filtered regencies,
// in collection order.
func (s *Session) Names() (provinces, regencies []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.machine.View()
	provinces = make([]string, len(v.Provinces))
	for i, p := range v.Provinces {
		provinces[i] = p.Name
	}
	regencies = make([]string, len(v.Regencies))
	for i, r := range v.Regencies {
		regencies[i] = r.Name
	}
	return provinces, regencies
}

// PointsOfInterestSource supplies places for regencies whose record has none.
type PointsOfInterestSource interface {
	Find(ctx context.Context, r types.Regency) ([]types.PointOfInterest, error)
}

// SetPointsOfInterestSource installs src for the detail panel.
func (s *Session) SetPointsOfInterestSource(src PointsOfInterestSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pois = src
}

// RegencyDetail returns the detail panel payload for name. Attributes and
// points of interest are only included when the detail panel is enabled.
// A regency without points of interest of its own asks the configured
// source; its failures are logged and leave the list empty.
func (s *Session) RegencyDetail(ctx context.Context, name string) (RegencyDetail, error) {
	s.mu.Lock()
	if !s.machine.Loaded(types.KindRegency) {
		s.mu.Unlock()
		return RegencyDetail{}, fmt.Errorf("regency %q: %w", name, selection.ErrNotLoaded)
	}
	r, ok := s.machine.Regency(name)
	if !ok {
		s.mu.Unlock()
		return RegencyDetail{}, fmt.Errorf("regency %q: %w", name, selection.ErrLookupMiss)
	}

	d := RegencyDetail{
		Name:     r.Name,
		Province: r.Province,
		Bounds:   r.Bounds(),
		Style:    s.machine.RegencyStyle(r),
	}
	showDetail := s.machine.Options().ShowDetailPanel
	src := s.pois
	s.mu.Unlock()

	if !showDetail {
		return d, nil
	}
	attrs := r.Attributes
	d.Attributes = &attrs

	pois := r.PointsOfInterest
	if len(pois) == 0 && src != nil {
		found, err := src.Find(ctx, r)
		if err != nil {
			s.log().Warn("points of interest lookup failed", "regency", r.Name, "error", err)
		}
		pois = found
	}
	d.PointsOfInterest = s.poiDetails(pois)
	return d, nil
}

// Search matches query against regency names immediately.
func (s *Session) Search(query string) ([]search.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.machine.Options().ShowSearch {
		return nil, ErrSearchDisabled
	}
	if strings.TrimSpace(query) == "" {
		return []search.Result{}, nil
	}
	if s.index == nil {
		return nil, fmt.Errorf("search: %w", selection.ErrNotLoaded)
	}
	return s.index.Match(query), nil
}

// RegionAt finds the province, and the regency when loaded, containing pt.
func (s *Session) RegionAt(pt orb.Point) (Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.machine.Loaded(types.KindProvince) {
		return Location{}, fmt.Errorf("locate: %w", selection.ErrNotLoaded)
	}
	loc := Location{Lat: pt.Lat(), Lon: pt.Lon()}
	p, ok := locate.ProvinceAt(s.machine.Provinces(), pt)
	if !ok {
		return loc, fmt.Errorf("no province at %.4f,%.4f: %w", pt.Lat(), pt.Lon(), selection.ErrLookupMiss)
	}
	loc.Province = p.Name
	if r, ok := locate.RegencyAt(s.machine.Regencies(), pt); ok {
		loc.Regency = r.Name
	}
	return loc, nil
}

// applyView runs inside a transition, with the session mutex held.
func (s *Session) applyView(cmd view.Command) {
	vs := s.resolve(cmd)
	s.log().Debug("view command", "kind", cmd.Kind, "center", vs.Center, "zoom", vs.Zoom)
	if s.hub != nil {
		s.hub.Broadcast(Event{Type: EventView, View: &vs})
	}
}

func (s *Session) resolve(cmd view.Command) ViewState {
	center, zoom := view.Resolve(cmd, s.width, s.height)
	return ViewState{Command: cmd, Center: center, Zoom: zoom}
}

func (s *Session) snapshotLocked() Snapshot {
	sel := s.machine.Selection()
	snap := Snapshot{
		State:    sel.State(),
		Province: sel.ProvinceName(),
		Regency:  sel.RegencyName(),
		Hover:    sel.Hover,
		Loaded: map[types.Kind]bool{
			types.KindProvince: s.machine.Loaded(types.KindProvince),
			types.KindRegency:  s.machine.Loaded(types.KindRegency),
		},
	}
	if cmd, ok := s.machine.LastCommand(); ok {
		vs := s.resolve(cmd)
		snap.View = &vs
	}
	return snap
}

func (s *Session) broadcastStateLocked() {
	if s.hub == nil {
		return
	}
	snap := s.snapshotLocked()
	s.hub.Broadcast(Event{Type: EventState, State: &snap})
}

func (s *Session) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

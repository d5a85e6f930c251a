package selection

import (
	"testing"

	"github.com/MeKo-Tech/nusantaramap/internal/palette"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/MeKo-Tech/nusantaramap/internal/view"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(lon, lat, size float64) orb.Polygon {
	return orb.Polygon{{{lon, lat}, {lon + size, lat}, {lon + size, lat + size}, {lon, lat + size}, {lon, lat}}}
}

func testProvinces() []types.Province {
	return []types.Province{
		{Code: "51", Name: "Bali", Geometry: square(114.4, -8.9, 1.3)},
		{Code: "32", Name: "Jawa Barat", Geometry: square(106.0, -7.8, 2.8)},
		{Code: "31", Name: "DKI Jakarta", Geometry: square(106.7, -6.4, 0.3)},
	}
}

func testRegencies() []types.Regency {
	return []types.Regency{
		{Name: "Denpasar", Province: "Bali", Geometry: square(115.17, -8.74, 0.1)},
		{Name: "Bandung", Province: "Jawa Barat", Geometry: square(107.5, -7.1, 0.3)},
		{Name: "Badung", Province: "Bali", Geometry: square(115.05, -8.85, 0.2)},
		{Name: "Kota Jakarta Selatan", Province: "DKI Jakarta", Geometry: square(106.75, -6.35, 0.1)},
		{Name: "Atlantis Raya", Province: "Atlantis", Geometry: square(0, 0, 1)},
	}
}

type recorder struct {
	cmds []view.Command
}

func (r *recorder) Apply(cmd view.Command) { r.cmds = append(r.cmds, cmd) }

func newLoadedMachine(t *testing.T) (*Machine, *recorder) {
	t.Helper()
	rec := &recorder{}
	m, err := New(DefaultOptions(), rec, nil)
	require.NoError(t, err)

	provinces := testProvinces()
	regencies := testRegencies()
	require.True(t, m.SetProvinces(provinces, palette.NewAssigner(1).Assign(names(provinces))))
	require.True(t, m.SetRegencies(regencies, palette.NewAssigner(2).Assign(regencyNames(regencies))))
	return m, rec
}

func names(ps []types.Province) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func regencyNames(rs []types.Regency) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func TestMachine_IdleShowsAllProvincesInOrder(t *testing.T) {
	m, _ := newLoadedMachine(t)

	v := m.View()
	assert.Equal(t, Idle, v.State)
	assert.Equal(t, []string{"Bali", "Jawa Barat", "DKI Jakarta"}, names(v.Provinces))
	assert.Nil(t, v.Regencies)
}

func TestMachine_SelectProvince(t *testing.T) {
	for _, p := range testProvinces() {
		t.Run(p.Name, func(t *testing.T) {
			m, rec := newLoadedMachine(t)

			changed, err := m.SelectProvince(p.Name)
			require.NoError(t, err)
			assert.True(t, changed)

			v := m.View()
			assert.Equal(t, ProvinceSelected, v.State)
			assert.Equal(t, []string{p.Name}, names(v.Provinces))
			for _, r := range v.Regencies {
				assert.Equal(t, p.Name, r.Province)
			}
			for _, r := range testRegencies() {
				if r.Province == p.Name {
					assert.Contains(t, regencyNames(v.Regencies), r.Name)
				}
			}

			require.Len(t, rec.cmds, 1)
			cmd := rec.cmds[0]
			assert.Equal(t, view.KindFitBounds, cmd.Kind)
			assert.Equal(t, p.Bounds(), cmd.Bounds)
			assert.Equal(t, [2]float64{0.25, 0}, cmd.Padding.TopLeft)
			assert.Equal(t, [2]float64{0, 0}, cmd.Padding.BottomRight)
		})
	}
}

func TestMachine_SelectProvinceTwiceIsIgnored(t *testing.T) {
	m, rec := newLoadedMachine(t)

	_, err := m.SelectProvince("Bali")
	require.NoError(t, err)
	before := m.View()

	changed, err := m.SelectProvince("Bali")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = m.SelectProvince("Jawa Barat")
	require.NoError(t, err)
	assert.False(t, changed, "a focused province blocks selecting another")

	assert.Equal(t, before, m.View())
	assert.Len(t, rec.cmds, 1, "no second zoom")
}

func TestMachine_SelectProvinceUnknown(t *testing.T) {
	m, rec := newLoadedMachine(t)

	changed, err := m.SelectProvince("Atlantis")
	require.ErrorIs(t, err, ErrLookupMiss)
	assert.False(t, changed)
	assert.Equal(t, Idle, m.State())
	assert.Empty(t, rec.cmds)
}

func TestMachine_SelectRegencyAutoSelectsParent(t *testing.T) {
	m, rec := newLoadedMachine(t)

	changed, err := m.SelectRegency("Bandung")
	require.NoError(t, err)
	assert.True(t, changed)

	sel := m.Selection()
	assert.Equal(t, ProvinceAndRegencySelected, sel.State())
	assert.Equal(t, "Jawa Barat", sel.ProvinceName())
	assert.Equal(t, "Bandung", sel.RegencyName())
	assert.Equal(t, []string{"Bandung"}, regencyNames(m.View().Regencies))

	require.Len(t, rec.cmds, 1)
	assert.Equal(t, [2]float64{0.25, 0}, rec.cmds[0].Padding.TopLeft, "parent auto-selection zooms like a province click")
}

func TestMachine_SelectRegencySwitchesMismatchedParent(t *testing.T) {
	m, _ := newLoadedMachine(t)

	_, err := m.SelectProvince("Bali")
	require.NoError(t, err)

	changed, err := m.SelectRegency("Bandung")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Jawa Barat", m.Selection().ProvinceName())
}

func TestMachine_SelectRegencyLookupMissOnParent(t *testing.T) {
	m, _ := newLoadedMachine(t)

	_, err := m.SelectProvince("Bali")
	require.NoError(t, err)

	changed, err := m.SelectRegency("Atlantis Raya")
	require.NoError(t, err)
	assert.True(t, changed)

	sel := m.Selection()
	assert.Equal(t, ProvinceAndRegencySelected, sel.State())
	assert.Nil(t, sel.Province, "province left unset on lookup miss")
	assert.Equal(t, "Atlantis Raya", sel.RegencyName())
	assert.Empty(t, m.View().Provinces)
	assert.Nil(t, m.View().Regencies)

	assert.True(t, m.ClearRegency())
	assert.Equal(t, Idle, m.State())
}

func TestMachine_SelectRegencyIdempotent(t *testing.T) {
	m, rec := newLoadedMachine(t)

	_, err := m.SelectRegency("Denpasar")
	require.NoError(t, err)

	changed, err := m.SelectRegency("Denpasar")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = m.SelectRegency("Badung")
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, "Denpasar", m.Selection().RegencyName())
	assert.Len(t, rec.cmds, 1)
}

func TestMachine_SelectRegencyUnknown(t *testing.T) {
	m, _ := newLoadedMachine(t)

	_, err := m.SelectRegency("Gotham")
	require.ErrorIs(t, err, ErrLookupMiss)
	assert.Equal(t, Idle, m.State())
}

func TestMachine_SelectSearchResult(t *testing.T) {
	m, rec := newLoadedMachine(t)

	changed, err := m.SelectSearchResult("Kota Jakarta Selatan")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "DKI Jakarta", m.Selection().ProvinceName())

	require.Len(t, rec.cmds, 1, "search zooms onto the regency only")
	cmd := rec.cmds[0]
	assert.Equal(t, testRegencies()[3].Bounds(), cmd.Bounds)
	assert.Equal(t, [2]float64{0.1, 0.1}, cmd.Padding.TopLeft)
	assert.Equal(t, [2]float64{0.1, 0.1}, cmd.Padding.BottomRight)

	changed, err = m.SelectSearchResult("Denpasar")
	require.NoError(t, err)
	assert.False(t, changed, "ignored while a regency is selected")
}

func TestMachine_ClearRegency(t *testing.T) {
	m, _ := newLoadedMachine(t)

	assert.False(t, m.ClearRegency(), "no-op from Idle")

	_, err := m.SelectRegency("Denpasar")
	require.NoError(t, err)

	assert.True(t, m.ClearRegency())
	assert.Equal(t, ProvinceSelected, m.State())
	assert.Equal(t, "Bali", m.Selection().ProvinceName())
	assert.ElementsMatch(t, []string{"Denpasar", "Badung"}, regencyNames(m.View().Regencies))
}

func TestMachine_ResetFromAnyState(t *testing.T) {
	setups := map[string]func(m *Machine){
		"idle":     func(m *Machine) {},
		"province": func(m *Machine) { _, _ = m.SelectProvince("Bali") },
		"regency":  func(m *Machine) { _, _ = m.SelectRegency("Denpasar") },
		"orphan":   func(m *Machine) { _, _ = m.SelectRegency("Atlantis Raya") },
	}
	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			m, rec := newLoadedMachine(t)
			setup(m)
			m.Hover("province/Bali")

			m.Reset()

			sel := m.Selection()
			assert.Equal(t, Idle, sel.State())
			assert.Nil(t, sel.Province)
			assert.Nil(t, sel.Regency)
			assert.Empty(t, sel.Hover)
			assert.Len(t, m.View().Provinces, 3)

			last := rec.cmds[len(rec.cmds)-1]
			assert.Equal(t, view.KindFlyTo, last.Kind)
			assert.Equal(t, DefaultOptions().DefaultCenter, last.Center)
			assert.Equal(t, DefaultOptions().DefaultZoom, last.Zoom)

			cmd, ok := m.LastCommand()
			require.True(t, ok)
			assert.Equal(t, last, cmd)
		})
	}
}

func TestMachine_Scenario(t *testing.T) {
	m, err := New(DefaultOptions(), nil, nil)
	require.NoError(t, err)

	m.SetProvinces([]types.Province{
		{Name: "Bali", Geometry: square(114.4, -8.9, 1.3)},
		{Name: "Jawa Barat", Geometry: square(106.0, -7.8, 2.8)},
	}, nil)
	m.SetRegencies([]types.Regency{
		{Name: "Denpasar", Province: "Bali", Geometry: square(115.17, -8.74, 0.1)},
	}, nil)

	_, err = m.SelectProvince("Bali")
	require.NoError(t, err)
	assert.Equal(t, ProvinceSelected, m.State())
	assert.Equal(t, []string{"Denpasar"}, regencyNames(m.View().Regencies))
	assert.Equal(t, []string{"Bali"}, names(m.View().Provinces))

	_, err = m.SelectRegency("Denpasar")
	require.NoError(t, err)
	assert.Equal(t, ProvinceAndRegencySelected, m.State())

	m.Reset()
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, []string{"Bali", "Jawa Barat"}, names(m.View().Provinces))
}

func TestMachine_CollectionsArriveInAnyOrder(t *testing.T) {
	m, err := New(DefaultOptions(), nil, nil)
	require.NoError(t, err)

	_, err = m.SelectRegency("Denpasar")
	require.ErrorIs(t, err, ErrNotLoaded)

	require.True(t, m.SetRegencies(testRegencies(), nil))
	assert.Nil(t, m.View().Regencies, "no province yet")

	_, err = m.SelectProvince("Bali")
	require.ErrorIs(t, err, ErrNotLoaded)

	require.True(t, m.SetProvinces(testProvinces(), nil))
	assert.False(t, m.SetProvinces(nil, nil), "write-once")
	assert.Len(t, m.View().Provinces, 3)

	_, err = m.SelectProvince("Bali")
	require.NoError(t, err)
	assert.Len(t, m.View().Regencies, 2)
}

func TestMachine_ProvinceWithoutRegencies(t *testing.T) {
	m, err := New(DefaultOptions(), nil, nil)
	require.NoError(t, err)
	m.SetProvinces(testProvinces(), nil)

	_, err = m.SelectProvince("Bali")
	require.NoError(t, err)
	assert.Empty(t, m.View().Regencies, "regency layer stays empty until it loads")
}

func TestMachine_ViewDoesNotAliasStore(t *testing.T) {
	m, _ := newLoadedMachine(t)

	v := m.View()
	v.Provinces[0].Name = "Mutated"

	assert.Equal(t, "Bali", m.View().Provinces[0].Name)
	p, ok := m.Province("Bali")
	require.True(t, ok)
	assert.Equal(t, "51", p.Code)
}

func TestNew_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.ProvinceZoomPadding = 1.5
	_, err := New(opts, nil, nil)
	require.Error(t, err)
}

func TestStateTextRoundTrip(t *testing.T) {
	for _, st := range []State{Idle, ProvinceSelected, ProvinceAndRegencySelected} {
		text, err := st.MarshalText()
		require.NoError(t, err)

		var got State
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, st, got)
	}

	var s State
	assert.Error(t, s.UnmarshalText([]byte("panicking")))
}

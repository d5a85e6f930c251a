package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/nusantaramap/internal/datasource"
	"github.com/MeKo-Tech/nusantaramap/internal/mbtiles"
	"github.com/MeKo-Tech/nusantaramap/internal/selection"
	"github.com/MeKo-Tech/nusantaramap/internal/tile"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/MeKo-Tech/nusantaramap/internal/view"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server  *Server
	session *Session
	http    *httptest.Server
}

func newTestEnv(t *testing.T, load bool, tweak func(*selection.Options, *Config)) *testEnv {
	t.Helper()

	opts := selection.DefaultOptions()
	cfg := Config{SearchDelay: 50 * time.Millisecond}
	if tweak != nil {
		tweak(&opts, &cfg)
	}

	hub := NewHub(nil)
	session, err := NewSession(opts, hub, 0, 0, nil)
	require.NoError(t, err)

	if load {
		store := datasource.NewStore(datasource.Config{
			ProvinceSource: filepath.Join("..", "datasource", "testdata", "province.json"),
			RegencySource:  filepath.Join("..", "datasource", "testdata", "regency.json"),
			Seed:           7,
		})
		store.Subscribe(session)
		require.NoError(t, store.LoadAll(context.Background()))
	}

	srv, err := New(cfg, session, hub, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: srv, session: session, http: ts}
}

func (e *testEnv) get(t *testing.T, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(e.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func (e *testEnv) post(t *testing.T, path, body string) (int, transitionResponse) {
	t.Helper()
	resp, err := http.Post(e.http.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out transitionResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

type featureCollection struct {
	Features []struct {
		ID         string         `json:"id"`
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func (e *testEnv) collection(t *testing.T, path string) featureCollection {
	t.Helper()
	status, body := e.get(t, path)
	require.Equal(t, http.StatusOK, status)
	var fc featureCollection
	require.NoError(t, json.Unmarshal(body, &fc))
	return fc
}

func names(fc featureCollection, key string) []string {
	out := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		out = append(out, f.Properties[key].(string))
	}
	return out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, false, nil)

	status, body := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestBeforeLoad(t *testing.T) {
	env := newTestEnv(t, false, nil)

	status, body := env.get(t, "/api/state")
	require.Equal(t, http.StatusOK, status)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, selection.Idle, snap.State)
	assert.False(t, snap.Loaded["province"])

	assert.Empty(t, env.collection(t, "/api/provinces").Features)

	status, _ = env.post(t, "/api/select/province", `{"name":"Bali"}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = env.get(t, "/api/search?q=den")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestBaliScenario(t *testing.T) {
	env := newTestEnv(t, true, nil)

	assert.ElementsMatch(t, []string{"Bali", "Jawa Barat"}, names(env.collection(t, "/api/provinces"), "PROVINSI"))
	assert.Empty(t, env.collection(t, "/api/regencies").Features)

	status, resp := env.post(t, "/api/select/province", `{"name":"Bali"}`)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Changed)
	assert.Equal(t, selection.ProvinceSelected, resp.State)
	assert.Equal(t, "Bali", resp.Province)
	require.NotNil(t, resp.View)
	assert.Equal(t, view.KindFitBounds, resp.View.Command.Kind)
	assert.Greater(t, resp.View.Zoom, 5.0)

	assert.Equal(t, []string{"Bali"}, names(env.collection(t, "/api/provinces"), "PROVINSI"))
	regencies := env.collection(t, "/api/regencies")
	assert.Equal(t, []string{"Denpasar"}, names(regencies, "WADMKK"))
	style := regencies.Features[0].Properties["style"].(map[string]any)
	assert.Contains(t, style, "fillColor")

	// A second province click is ignored while one is selected.
	status, resp = env.post(t, "/api/select/province", `{"name":"Jawa Barat"}`)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, resp.Changed)
	assert.Equal(t, "Bali", resp.Province)

	status, resp = env.post(t, "/api/select/regency", `{"name":"Denpasar"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, selection.ProvinceAndRegencySelected, resp.State)
	assert.Equal(t, "Denpasar", resp.Regency)

	regencies = env.collection(t, "/api/regencies")
	style = regencies.Features[0].Properties["style"].(map[string]any)
	assert.Equal(t, selection.DefaultOptions().HighlightColor, style["fillColor"])

	status, resp = env.post(t, "/api/clear-regency", ``)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, selection.ProvinceSelected, resp.State)
	assert.Empty(t, resp.Regency)

	status, resp = env.post(t, "/api/reset", ``)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, selection.Idle, resp.State)
	require.NotNil(t, resp.View)
	assert.Equal(t, view.KindFlyTo, resp.View.Command.Kind)
	assert.Equal(t, 5.0, resp.View.Zoom)
	assert.Len(t, env.collection(t, "/api/provinces").Features, 2)
}

func TestSelectRegencyFromIdleSelectsParent(t *testing.T) {
	env := newTestEnv(t, true, nil)

	status, resp := env.post(t, "/api/select/regency", `{"name":"Bandung"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Jawa Barat", resp.Province)
	assert.Equal(t, "Bandung", resp.Regency)
	assert.Equal(t, []string{"Jawa Barat"}, names(env.collection(t, "/api/provinces"), "PROVINSI"))
}

func TestSessionNames(t *testing.T) {
	env := newTestEnv(t, true, nil)

	provinces, regencies := env.session.Names()
	assert.ElementsMatch(t, []string{"Bali", "Jawa Barat"}, provinces)
	assert.Empty(t, regencies)

	_, _, err := env.session.SelectProvince("Jawa Barat")
	require.NoError(t, err)
	provinces, regencies = env.session.Names()
	assert.Equal(t, []string{"Jawa Barat"}, provinces)
	assert.Equal(t, []string{"Bandung"}, regencies)
}

func TestSelectSearchResult(t *testing.T) {
	env := newTestEnv(t, true, nil)

	status, resp := env.post(t, "/api/select/search", `{"name":"Denpasar"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, selection.ProvinceAndRegencySelected, resp.State)
	require.NotNil(t, resp.View)
	assert.Equal(t, view.KindFitBounds, resp.View.Command.Kind)
	assert.Equal(t, [2]float64{0.1, 0.1}, resp.View.Command.Padding.TopLeft)
}

func TestTransitionErrors(t *testing.T) {
	env := newTestEnv(t, true, nil)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown province", "/api/select/province", `{"name":"Atlantis"}`, http.StatusNotFound},
		{"unknown regency", "/api/select/regency", `{"name":"Gotham"}`, http.StatusNotFound},
		{"bad json", "/api/select/province", `{"name":`, http.StatusBadRequest},
		{"missing name", "/api/select/regency", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := env.post(t, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
		})
	}

	// Failed transitions leave the state untouched.
	assert.Equal(t, selection.Idle, env.session.Snapshot().State)
}

func TestHover(t *testing.T) {
	env := newTestEnv(t, true, nil)

	status, resp := env.post(t, "/api/hover", `{"name":"province/Bali"}`)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Changed)
	assert.Equal(t, "province/Bali", resp.Hover)

	fc := env.collection(t, "/api/provinces")
	for _, f := range fc.Features {
		style := f.Properties["style"].(map[string]any)
		if f.ID == "province/Bali" {
			assert.Equal(t, 3.0, style["weight"])
		} else {
			assert.Equal(t, 1.0, style["weight"])
		}
	}

	status, resp = env.post(t, "/api/hover", `{"name":""}`)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Changed)
	assert.Empty(t, resp.Hover)
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t, true, nil)

	status, body := env.get(t, "/api/search?q=DEN")
	require.Equal(t, http.StatusOK, status)
	var results []map[string]any
	require.NoError(t, json.Unmarshal(body, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "Denpasar", results[0]["name"])
	assert.Equal(t, "Bali", results[0]["province"])

	status, body = env.get(t, "/api/search?q=%20%20")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))
}

func TestSearchDisabled(t *testing.T) {
	env := newTestEnv(t, true, func(o *selection.Options, _ *Config) { o.ShowSearch = false })

	status, _ := env.get(t, "/api/search?q=den")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSearchBeforeLoad(t *testing.T) {
	env := newTestEnv(t, false, nil)

	for _, q := range []string{"", "%20%20%20"} {
		status, body := env.get(t, "/api/search?q="+q)
		require.Equal(t, http.StatusOK, status, "query %q", q)
		assert.JSONEq(t, `[]`, string(body))
	}

	status, _ := env.get(t, "/api/search?q=den")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestRegencyDetail(t *testing.T) {
	env := newTestEnv(t, true, nil)

	status, body := env.get(t, "/api/regencies/Denpasar")
	require.Equal(t, http.StatusOK, status)
	var detail RegencyDetail
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.Equal(t, "Bali", detail.Province)
	require.NotNil(t, detail.Attributes)
	require.Len(t, detail.PointsOfInterest, 1)
	poi := detail.PointsOfInterest[0]
	assert.Equal(t, "Pantai Sanur", poi.Name)
	assert.Contains(t, poi.DescriptionHTML, "<strong>putih</strong>")

	status, _ = env.get(t, "/api/regencies/Gotham")
	assert.Equal(t, http.StatusNotFound, status)
}

type fakePOISource struct {
	calls []string
	err   error
}

func (f *fakePOISource) Find(_ context.Context, r types.Regency) ([]types.PointOfInterest, error) {
	f.calls = append(f.calls, r.Name)
	if f.err != nil {
		return nil, f.err
	}
	return []types.PointOfInterest{{Name: "Gedung Sate", Description: "Kantor ~~gubernur~~"}}, nil
}

func TestRegencyDetailPointsOfInterestSource(t *testing.T) {
	env := newTestEnv(t, true, nil)
	src := &fakePOISource{}
	env.session.SetPointsOfInterestSource(src)

	d, err := env.session.RegencyDetail(context.Background(), "Bandung")
	require.NoError(t, err)
	require.Len(t, d.PointsOfInterest, 1)
	assert.Equal(t, "Gedung Sate", d.PointsOfInterest[0].Name)
	assert.Contains(t, d.PointsOfInterest[0].DescriptionHTML, "<del>gubernur</del>")

	// Denpasar carries its own points of interest.
	d, err = env.session.RegencyDetail(context.Background(), "Denpasar")
	require.NoError(t, err)
	assert.Equal(t, "Pantai Sanur", d.PointsOfInterest[0].Name)
	assert.Equal(t, []string{"Bandung"}, src.calls)

	src.err = errors.New("overpass down")
	d, err = env.session.RegencyDetail(context.Background(), "Bandung")
	require.NoError(t, err)
	assert.Empty(t, d.PointsOfInterest)
}

func TestRegencyDetailPanelDisabled(t *testing.T) {
	env := newTestEnv(t, true, func(o *selection.Options, _ *Config) { o.ShowDetailPanel = false })

	status, body := env.get(t, "/api/regencies/Denpasar")
	require.Equal(t, http.StatusOK, status)
	var detail RegencyDetail
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.Equal(t, "Denpasar", detail.Name)
	assert.Nil(t, detail.Attributes)
	assert.Empty(t, detail.PointsOfInterest)
}

func TestLocate(t *testing.T) {
	env := newTestEnv(t, true, nil)

	status, body := env.get(t, "/api/locate?lat=-8.65&lon=115.2")
	require.Equal(t, http.StatusOK, status)
	var loc Location
	require.NoError(t, json.Unmarshal(body, &loc))
	assert.Equal(t, "Bali", loc.Province)
	assert.Equal(t, "Denpasar", loc.Regency)

	status, body = env.get(t, "/api/locate?lat=-8.2&lon=115.6")
	require.Equal(t, http.StatusOK, status)
	var inland Location
	require.NoError(t, json.Unmarshal(body, &inland))
	assert.Equal(t, "Bali", inland.Province)
	assert.Empty(t, inland.Regency)

	status, _ = env.get(t, "/api/locate?lat=-2&lon=110")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.get(t, "/api/locate?lat=south&lon=110")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.get(t, "/api/locate")
	assert.Equal(t, http.StatusNotImplemented, status)
}

func TestLocateBeforeLoad(t *testing.T) {
	env := newTestEnv(t, false, nil)

	status, _ := env.get(t, "/api/locate?lat=-8.65&lon=115.2")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestMissingGeoIPDatabase(t *testing.T) {
	hub := NewHub(nil)
	session, err := NewSession(selection.DefaultOptions(), hub, 0, 0, nil)
	require.NoError(t, err)

	_, err = New(Config{GeoIPPath: filepath.Join(t.TempDir(), "missing.mmdb")}, session, hub, nil)
	assert.Error(t, err)
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocketSelection(t *testing.T) {
	env := newTestEnv(t, true, nil)
	conn := dialWS(t, env)

	hello := readEvent(t, conn)
	assert.Equal(t, EventHello, hello.Type)
	assert.NotEmpty(t, hello.ClientID)
	require.NotNil(t, hello.State)
	assert.Equal(t, selection.Idle, hello.State.State)

	require.NoError(t, conn.WriteJSON(inbound{Type: "select_province", Name: "Bali"}))

	ev := readEvent(t, conn)
	assert.Equal(t, EventView, ev.Type)
	require.NotNil(t, ev.View)
	assert.Equal(t, view.KindFitBounds, ev.View.Command.Kind)

	ev = readEvent(t, conn)
	assert.Equal(t, EventState, ev.Type)
	require.NotNil(t, ev.State)
	assert.Equal(t, "Bali", ev.State.Province)

	// A second province click is ignored without an event, so the next event
	// the client sees comes from the reset.
	require.NoError(t, conn.WriteJSON(inbound{Type: "select_province", Name: "Atlantis"}))
	require.NoError(t, conn.WriteJSON(inbound{Type: "reset"}))

	ev = readEvent(t, conn)
	assert.Equal(t, EventView, ev.Type)
	require.NotNil(t, ev.View)
	assert.Equal(t, view.KindFlyTo, ev.View.Command.Kind)

	ev = readEvent(t, conn)
	assert.Equal(t, EventState, ev.Type)
	require.NotNil(t, ev.State)
	assert.Equal(t, selection.Idle, ev.State.State)

	require.NoError(t, conn.WriteJSON(inbound{Type: "select_province", Name: "Atlantis"}))
	ev = readEvent(t, conn)
	assert.Equal(t, EventError, ev.Type)
	assert.Contains(t, ev.Error, "Atlantis")
}

func TestWebSocketOriginPolicy(t *testing.T) {
	dial := func(env *testEnv, origin string) (int, error) {
		wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/ws"
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": []string{origin}})
		if conn != nil {
			conn.Close()
		}
		if resp == nil {
			return 0, err
		}
		return resp.StatusCode, err
	}

	env := newTestEnv(t, false, nil)
	status, err := dial(env, "http://localhost:5173")
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, status)

	status, err = dial(env, "https://peta.example.com")
	assert.Error(t, err)
	assert.Equal(t, http.StatusForbidden, status)

	open := newTestEnv(t, false, func(_ *selection.Options, c *Config) { c.AllowAllOrigins = true })
	status, err = dial(open, "https://peta.example.com")
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, status)
}

func TestWebSocketDebouncedSearch(t *testing.T) {
	env := newTestEnv(t, true, nil)
	conn := dialWS(t, env)
	readEvent(t, conn) // hello

	for _, q := range []string{"b", "ba", "ban", "band"} {
		require.NoError(t, conn.WriteJSON(inbound{Type: "search", Query: q}))
	}

	ev := readEvent(t, conn)
	assert.Equal(t, EventSearchResults, ev.Type)
	assert.Equal(t, "band", ev.Query)
	require.Len(t, ev.Results, 1)
	assert.Equal(t, "Bandung", ev.Results[0].Name)
}

func TestWebSocketBroadcastsToOtherClients(t *testing.T) {
	env := newTestEnv(t, true, nil)
	a := dialWS(t, env)
	b := dialWS(t, env)
	readEvent(t, a)
	readEvent(t, b)

	require.Eventually(t, func() bool { return env.server.hub.Len() == 2 }, time.Second, 10*time.Millisecond)

	_, _, err := env.session.Hover("province/Bali")
	require.NoError(t, err)

	ev := readEvent(t, b)
	assert.Equal(t, EventState, ev.Type)
	assert.Equal(t, "province/Bali", ev.State.Hover)
}

func TestBasemap(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "basemap.mbtiles")
	w, err := mbtiles.New(archive, mbtiles.Metadata{Name: "Test", Format: "png", MinZoom: 4, MaxZoom: 6})
	require.NoError(t, err)
	require.NoError(t, w.WriteTile(tile.NewCoords(5, 26, 16), []byte("bali tile")))
	require.NoError(t, w.Close())

	env := newTestEnv(t, false, func(_ *selection.Options, c *Config) { c.BasemapPath = archive })

	resp, err := http.Get(env.http.URL + "/basemap/5/26/16.png")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "bali tile", string(body))

	status, _ := env.get(t, "/basemap/5/27/16.png")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.get(t, "/basemap/5/99/16.png")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.get(t, "/basemap/metadata.json")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"maxzoom":6`)
}

func TestBasemapMissingArchive(t *testing.T) {
	session, err := NewSession(selection.DefaultOptions(), nil, 0, 0, nil)
	require.NoError(t, err)

	_, err = New(Config{BasemapPath: filepath.Join(t.TempDir(), "missing.mbtiles")}, session, NewHub(nil), nil)
	assert.Error(t, err)
}

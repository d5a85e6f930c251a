package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/MeKo-Tech/nusantaramap/internal/geojson"
	"github.com/MeKo-Tech/nusantaramap/internal/locate"
	"github.com/MeKo-Tech/nusantaramap/internal/selection"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
)

// nameRequest is the body of every transition endpoint.
type nameRequest struct {
	Name string `json:"name"`
}

// transitionResponse reports whether a transition changed anything, plus the
// resulting state.
type transitionResponse struct {
	Changed bool `json:"changed"`
	Snapshot
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleProvinces(w http.ResponseWriter, r *http.Request) {
	s.writeCollection(w, s.session.Provinces())
}

func (s *Server) handleRegencies(w http.ResponseWriter, r *http.Request) {
	s.writeCollection(w, s.session.Regencies())
}

func (s *Server) handleRegencyDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.session.RegencyDetail(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := s.session.Search(r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

// handleLocate reports the region under ?lat=&lon=, or under the client's
// address when no coordinates are given and a GeoIP database is configured.
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var pt orb.Point
	switch {
	case q.Has("lat") || q.Has("lon"):
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
		if errLat != nil || errLon != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "lat and lon must be numbers"})
			return
		}
		pt = orb.Point{lon, lat}
	case s.locator == nil:
		s.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "address lookup not configured"})
		return
	default:
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		pt, err = s.locator.Lookup(net.ParseIP(host))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, locate.ErrNoLocation) {
				status = http.StatusNotFound
			}
			s.writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}
	}

	loc, err := s.session.RegionAt(pt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, loc)
}

// named wraps a transition that takes a feature name from the JSON body.
// Hover accepts an empty name to clear; every other transition requires one.
func (s *Server) named(allowEmpty bool, fn func(string) (bool, Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
		if req.Name == "" && !allowEmpty {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
			return
		}
		s.respond(w)(fn(req.Name))
	}
}

// plain wraps a transition without arguments.
func (s *Server) plain(fn func() (bool, Snapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w)(fn())
	}
}

func (s *Server) respond(w http.ResponseWriter) func(bool, Snapshot, error) {
	return func(changed bool, snap Snapshot, err error) {
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, transitionResponse{Changed: changed, Snapshot: snap})
	}
}

func (s *Server) writeCollection(w http.ResponseWriter, fc *orbjson.FeatureCollection) {
	data, err := geojson.MarshalCollection(fc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	if _, err := w.Write(data); err != nil {
		s.log().Error("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log().Error("Failed to write response", "error", err)
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, selection.ErrLookupMiss), errors.Is(err, ErrSearchDisabled):
		return http.StatusNotFound
	case errors.Is(err, selection.ErrNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

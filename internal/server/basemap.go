package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MeKo-Tech/nusantaramap/internal/mbtiles"
	"github.com/MeKo-Tech/nusantaramap/internal/tile"
	"github.com/go-chi/chi/v5"
)

// BasemapHandler serves raster tiles from an MBTiles archive under the region layers.
type BasemapHandler struct {
	reader       *mbtiles.Reader
	logger       *slog.Logger
	cacheControl string
}

// NewBasemapHandler opens the archive at path.
func NewBasemapHandler(path, cacheControl string, logger *slog.Logger) (*BasemapHandler, error) {
	reader, err := mbtiles.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MBTiles: %w", err)
	}
	if cacheControl == "" {
		cacheControl = "public, max-age=86400"
	}

	return &BasemapHandler{
		reader:       reader,
		logger:       logger,
		cacheControl: cacheControl,
	}, nil
}

// Routes mounts the tile and metadata endpoints.
func (h *BasemapHandler) Routes(r chi.Router) {
	r.Get("/metadata.json", h.serveMetadata)
	r.Get("/{z}/{x}/{y}", h.serveTile)
}

func (h *BasemapHandler) serveTile(w http.ResponseWriter, r *http.Request) {
	coords, err := tile.ParsePath(chi.URLParam(r, "z"), chi.URLParam(r, "x"), chi.URLParam(r, "y"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	data, err := h.reader.ReadTile(coords)
	if errors.Is(err, mbtiles.ErrTileNotFound) {
		http.Error(w, "Tile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log().Error("Failed to read tile", "coords", coords.String(), "error", err)
		http.Error(w, "Failed to read tile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", h.cacheControl)
	w.Header().Set("Content-Type", h.reader.Metadata().ContentType())
	if _, err := w.Write(data); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

func (h *BasemapHandler) serveMetadata(w http.ResponseWriter, r *http.Request) {
	meta := h.reader.Metadata()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"name":        meta.Name,
		"format":      meta.Format,
		"attribution": meta.Attribution,
		"description": meta.Description,
		"minzoom":     meta.MinZoom,
		"maxzoom":     meta.MaxZoom,
		"bounds":      meta.Bounds,
		"center":      meta.Center,
	}); err != nil {
		h.log().Error("Failed to write response", "error", err)
	}
}

// Close closes the MBTiles reader.
func (h *BasemapHandler) Close() error {
	return h.reader.Close()
}

func (h *BasemapHandler) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

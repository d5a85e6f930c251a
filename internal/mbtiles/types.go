// Package mbtiles reads and writes the MBTiles archives that back the basemap layer.
package mbtiles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/nusantaramap/internal/types"
)

// ErrTileNotFound is returned by Reader.ReadTile when the archive has no such tile.
var ErrTileNotFound = errors.New("tile not found")

// Metadata contains MBTiles metadata fields.
type Metadata struct {
	Name        string // Human-readable tileset identifier
	Format      string // Tile data type (png, jpg, webp, pbf)
	Attribution string
	Description string
	Type        string // "baselayer" or "overlay"
	Version     string
	Bounds      types.BoundingBox
	Center      [3]float64 // lon, lat, zoom
	MinZoom     int
	MaxZoom     int
}

// ContentType returns the HTTP media type for tiles of this archive.
func (m Metadata) ContentType() string {
	switch strings.ToLower(m.Format) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	case "pbf", "mvt":
		return "application/x-protobuf"
	default:
		return "image/png"
	}
}

// compressed reports whether tile blobs of this format are stored gzipped.
func (m Metadata) compressed() bool {
	f := strings.ToLower(m.Format)
	return f == "pbf" || f == "mvt"
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Format != "" {
		result["format"] = m.Format
	}
	if m.MinZoom > 0 {
		result["minzoom"] = strconv.Itoa(m.MinZoom)
	}
	if m.MaxZoom > 0 {
		result["maxzoom"] = strconv.Itoa(m.MaxZoom)
	}
	if !m.Bounds.IsZero() {
		result["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds.MinLon, m.Bounds.MinLat, m.Bounds.MaxLon, m.Bounds.MaxLat)
	}
	if m.Center != [3]float64{} {
		result["center"] = fmt.Sprintf("%.6f,%.6f,%d",
			m.Center[0], m.Center[1], int(m.Center[2]))
	}
	if m.Attribution != "" {
		result["attribution"] = m.Attribution
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Type != "" {
		result["type"] = m.Type
	}
	if m.Version != "" {
		result["version"] = m.Version
	}

	return result
}

// ParseMetadata builds Metadata from the name/value rows of the metadata table.
// Malformed numeric fields are left at their zero value.
func ParseMetadata(rows map[string]string) Metadata {
	meta := Metadata{
		Name:        rows["name"],
		Format:      rows["format"],
		Attribution: rows["attribution"],
		Description: rows["description"],
		Type:        rows["type"],
		Version:     rows["version"],
	}

	if i, err := strconv.Atoi(rows["minzoom"]); err == nil {
		meta.MinZoom = i
	}
	if i, err := strconv.Atoi(rows["maxzoom"]); err == nil {
		meta.MaxZoom = i
	}

	// bounds: "minLon,minLat,maxLon,maxLat"
	if f, ok := parseFloats(rows["bounds"], 4); ok {
		meta.Bounds = types.BoundingBox{MinLon: f[0], MinLat: f[1], MaxLon: f[2], MaxLat: f[3]}
	}
	// center: "lon,lat,zoom"
	if f, ok := parseFloats(rows["center"], 3); ok {
		copy(meta.Center[:], f)
	}

	return meta
}

func parseFloats(s string, n int) ([]float64, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

package mbtiles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/nusantaramap/internal/tile"
)

func writeArchive(t *testing.T, meta Metadata, tiles map[tile.Coords]string) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.mbtiles")
	w, err := New(dbPath, meta)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	for c, data := range tiles {
		if err := w.WriteTile(c, []byte(data)); err != nil {
			t.Fatalf("Failed to write tile %s: %v", c, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}
	return dbPath
}

func TestReader_RoundTrip(t *testing.T) {
	tiles := map[tile.Coords]string{
		tile.NewCoords(5, 25, 16):   "java",
		tile.NewCoords(5, 26, 16):   "bali",
		tile.NewCoords(9, 419, 268): "denpasar",
	}

	for _, format := range []string{"png", "pbf"} {
		t.Run(format, func(t *testing.T) {
			r, err := OpenReader(writeArchive(t, Metadata{Name: "Test", Format: format}, tiles))
			if err != nil {
				t.Fatalf("Failed to open reader: %v", err)
			}
			defer r.Close()

			for c, want := range tiles {
				data, err := r.ReadTile(c)
				if err != nil {
					t.Fatalf("Failed to read tile %s: %v", c, err)
				}
				if string(data) != want {
					t.Errorf("Tile %s data mismatch: got %q, want %q", c, data, want)
				}
			}
		})
	}
}

func TestReader_Metadata(t *testing.T) {
	meta := testMetadata()
	r, err := OpenReader(writeArchive(t, meta, nil))
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	got := r.Metadata()
	if got != meta {
		t.Errorf("Metadata mismatch:\ngot  %+v\nwant %+v", got, meta)
	}
	if got.ContentType() != "image/png" {
		t.Errorf("ContentType() = %q", got.ContentType())
	}
}

func TestReader_TileNotFound(t *testing.T) {
	r, err := OpenReader(writeArchive(t, Metadata{Format: "png"}, map[tile.Coords]string{
		tile.NewCoords(5, 26, 16): "bali",
	}))
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	_, err = r.ReadTile(tile.NewCoords(5, 27, 16))
	if !errors.Is(err, ErrTileNotFound) {
		t.Errorf("Expected ErrTileNotFound, got %v", err)
	}

	_, err = r.ReadTile(tile.NewCoords(1, 5, 5))
	if !errors.Is(err, ErrTileNotFound) {
		t.Errorf("Expected ErrTileNotFound for invalid coords, got %v", err)
	}
}

func TestReader_InvalidDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "invalid.mbtiles")
	if err := os.WriteFile(dbPath, []byte("not a database"), 0o644); err != nil {
		t.Fatalf("Failed to create invalid file: %v", err)
	}

	if _, err := OpenReader(dbPath); err == nil {
		t.Error("Expected error for invalid database, got nil")
	}
}

func TestParseMetadata_Malformed(t *testing.T) {
	meta := ParseMetadata(map[string]string{
		"name":    "x",
		"minzoom": "four",
		"bounds":  "1,2,3",
		"center":  "118,-2.5,five",
	})

	if meta.Name != "x" || meta.MinZoom != 0 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if !meta.Bounds.IsZero() {
		t.Errorf("Expected zero bounds, got %v", meta.Bounds)
	}
	if meta.Center != [3]float64{} {
		t.Errorf("Expected zero center, got %v", meta.Center)
	}
}

func TestReader_ZoomCounts(t *testing.T) {
	path := writeArchive(t, Metadata{Name: "Test", Format: "png"}, map[tile.Coords]string{
		tile.NewCoords(5, 25, 16):   "a",
		tile.NewCoords(5, 26, 16):   "b",
		tile.NewCoords(9, 419, 268): "c",
	})
	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("Failed to open reader: %v", err)
	}
	defer r.Close()

	counts, err := r.ZoomCounts()
	if err != nil {
		t.Fatalf("ZoomCounts failed: %v", err)
	}
	if counts[5] != 2 || counts[9] != 1 || len(counts) != 2 {
		t.Errorf("Unexpected counts: %v", counts)
	}
}

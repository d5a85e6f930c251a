package mbtiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/nusantaramap/internal/tile"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
)

func testMetadata() Metadata {
	return Metadata{
		Name:        "Nusantara Basemap",
		Format:      "png",
		MinZoom:     4,
		MaxZoom:     9,
		Bounds:      types.BoundingBox{MinLon: 95.0, MinLat: -11.0, MaxLon: 141.0, MaxLat: 6.0},
		Center:      [3]float64{118.0149, -2.5489, 5},
		Attribution: "© Test",
		Description: "Test description",
		Type:        "baselayer",
		Version:     "1.0",
	}
}

func TestWriter_New(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.mbtiles")

	w, err := New(dbPath, testMetadata())
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Database file was not created")
	}

	var count int
	err = w.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='tiles'").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query schema: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected tiles table to exist, got count=%d", count)
	}

	err = w.db.QueryRow("SELECT COUNT(*) FROM metadata").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to query metadata: %v", err)
	}
	if count != len(testMetadata().ToMap()) {
		t.Errorf("Expected %d metadata rows, got %d", len(testMetadata().ToMap()), count)
	}
}

func TestWriter_WriteTileStoresTMSRow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.mbtiles")

	w, err := New(dbPath, Metadata{Name: "Test", Format: "png"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	c := tile.NewCoords(9, 419, 268)
	if err := w.WriteTile(c, []byte("fake png data")); err != nil {
		t.Fatalf("Failed to write tile: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	var data []byte
	tmsY := (1 << 9) - 1 - 268
	err = w.db.QueryRow("SELECT tile_data FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=?",
		9, 419, tmsY).Scan(&data)
	if err != nil {
		t.Fatalf("Failed to read tile: %v", err)
	}
	// Raster tiles are stored uncompressed.
	if string(data) != "fake png data" {
		t.Errorf("stored data = %q", data)
	}
}

func TestWriter_CompressesVectorTiles(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.mbtiles")

	w, err := New(dbPath, Metadata{Name: "Test", Format: "pbf"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	if err := w.WriteTile(tile.NewCoords(3, 6, 4), []byte("vector")); err != nil {
		t.Fatalf("Failed to write tile: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	var data []byte
	if err := w.db.QueryRow("SELECT tile_data FROM tiles").Scan(&data); err != nil {
		t.Fatalf("Failed to read tile: %v", err)
	}
	if !isGzip(data) {
		t.Error("Expected pbf tile to be gzipped")
	}
}

func TestWriter_RejectsInvalidCoords(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "test.mbtiles"), Metadata{Format: "png"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	if err := w.WriteTile(tile.NewCoords(2, 4, 0), []byte("x")); err == nil {
		t.Error("Expected error for column outside zoom 2")
	}
}

func TestWriter_BatchFlush(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "test.mbtiles"), Metadata{Name: "Test", Format: "png"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	// One more than a batch triggers exactly one automatic flush.
	for i := 0; i <= DefaultBatchSize; i++ {
		c := tile.NewCoords(10, uint32(800+i), 520)
		if err := w.WriteTile(c, []byte("tile")); err != nil {
			t.Fatalf("Failed to write tile %d: %v", i, err)
		}
	}

	if got := w.Written(); got != DefaultBatchSize {
		t.Errorf("Written() before flush = %d, want %d", got, DefaultBatchSize)
	}

	if err := w.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	var count int
	if err := w.db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&count); err != nil {
		t.Fatalf("Failed to count tiles: %v", err)
	}
	if count != DefaultBatchSize+1 {
		t.Errorf("Expected %d tiles, got %d", DefaultBatchSize+1, count)
	}
}

func TestWriter_ReplaceExisting(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "test.mbtiles"), Metadata{Name: "Test", Format: "png"})
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	defer w.Close()

	c := tile.NewCoords(5, 26, 16)
	if err := w.WriteTile(c, []byte("first")); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteTile(c, []byte("second")); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := w.db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 tile after replace, got %d", count)
	}

	var data []byte
	if err := w.db.QueryRow("SELECT tile_data FROM tiles").Scan(&data); err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("Expected latest write to win, got %q", data)
	}
}

package mbtiles

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/nusantaramap/internal/tile"
	"github.com/bmatcuk/doublestar/v4"
)

// TileFile is a tile found on disk in a {z}/{x}/{y}.{ext} directory tree.
type TileFile struct {
	Path   string
	Coords tile.Coords
}

// DefaultPattern returns the glob matching every {z}/{x}/{y} tile with ext.
func DefaultPattern(ext string) string {
	return "*/*/*." + strings.TrimPrefix(ext, ".")
}

// ScanDir walks dir for tile files whose slash-separated path relative to dir
// matches pattern (doublestar syntax, e.g. "{4,5,6}/*/*.png").
// Files outside the {z}/{x}/{y} layout or with out-of-range coordinates are ignored.
func ScanDir(dir, pattern string) ([]TileFile, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid tile pattern %q", pattern)
	}
	var tiles []TileFile

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matched, err := doublestar.Match(pattern, rel); err != nil || !matched {
			return nil
		}
		parts := strings.Split(rel, "/")
		if len(parts) != 3 {
			return nil
		}
		c, err := tile.ParsePath(parts[0], parts[1], parts[2])
		if err != nil {
			return nil
		}
		tiles = append(tiles, TileFile{Path: path, Coords: c})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tiles, nil
}

// ZoomRange returns the lowest and highest zoom among tiles.
func ZoomRange(tiles []TileFile) (minZoom, maxZoom int) {
	if len(tiles) == 0 {
		return 0, 0
	}
	minZoom, maxZoom = int(tiles[0].Coords.Z), int(tiles[0].Coords.Z)
	for _, t := range tiles[1:] {
		minZoom = min(minZoom, int(t.Coords.Z))
		maxZoom = max(maxZoom, int(t.Coords.Z))
	}
	return minZoom, maxZoom
}

// ProgressFunc is called after each tile with the number processed so far.
type ProgressFunc func(done, total int)

// Pack copies the tiles into a new archive at out. The zoom range of meta is
// filled from the tiles when unset. It returns the number of tiles written;
// unreadable files are logged and skipped. progress may be nil.
func Pack(ctx context.Context, tiles []TileFile, out string, meta Metadata, progress ProgressFunc, logger *slog.Logger) (int, error) {
	if len(tiles) == 0 {
		return 0, fmt.Errorf("no tiles to pack")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if meta.MinZoom == 0 && meta.MaxZoom == 0 {
		meta.MinZoom, meta.MaxZoom = ZoomRange(tiles)
	}

	w, err := New(out, meta)
	if err != nil {
		return 0, fmt.Errorf("failed to create MBTiles writer: %w", err)
	}

	for i, tf := range tiles {
		if err := ctx.Err(); err != nil {
			w.Close()
			return w.Written(), err
		}

		data, err := os.ReadFile(tf.Path)
		if err != nil {
			logger.Error("Failed to read tile", "path", tf.Path, "error", err)
		} else if err := w.WriteTile(tf.Coords, data); err != nil {
			w.Close()
			return w.Written(), err
		}

		if progress != nil {
			progress(i+1, len(tiles))
		} else if (i+1)%1000 == 0 {
			logger.Info("Progress", "packed", i+1, "total", len(tiles))
		}
	}

	if err := w.Close(); err != nil {
		return w.Written(), err
	}
	return w.Written(), nil
}

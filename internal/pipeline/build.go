package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/nusantaramap/internal/tile"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/MeKo-Tech/nusantaramap/internal/worker"
)

// TileWriter stores encoded tiles. *mbtiles.Writer satisfies it.
type TileWriter interface {
	WriteTile(c tile.Coords, data []byte) error
}

// BuildOptions configures Build.
type BuildOptions struct {
	MinZoom    uint32
	MaxZoom    uint32
	Workers    int
	OnProgress worker.ProgressFunc
	// Bounds limits the rendered area; zero means the extent of all regions.
	Bounds types.BoundingBox
}

// BuildStats summarizes a Build run.
type BuildStats struct {
	Total    int
	Rendered int
	Failed   int
}

// Build renders every tile covering the regions in the zoom range into w.
// Tiles fail independently; the returned error joins the failures.
func (g *Generator) Build(ctx context.Context, w TileWriter, opts BuildOptions) (BuildStats, error) {
	if opts.MinZoom > opts.MaxZoom {
		return BuildStats{}, fmt.Errorf("min zoom %d is above max zoom %d", opts.MinZoom, opts.MaxZoom)
	}
	if opts.MaxZoom > tile.MaxZoom {
		return BuildStats{}, fmt.Errorf("max zoom %d exceeds %d", opts.MaxZoom, tile.MaxZoom)
	}

	bounds := g.bounds
	if !opts.Bounds.IsZero() {
		bounds = opts.Bounds
	}
	tiles := tile.Covering(bounds, opts.MinZoom, opts.MaxZoom)
	g.log().Info("Rendering basemap", "tiles", len(tiles), "zoom_min", opts.MinZoom, "zoom_max", opts.MaxZoom, "workers", opts.Workers)

	pool := worker.New(worker.Config[tile.Coords]{
		Workers:    opts.Workers,
		OnProgress: opts.OnProgress,
		Handle: func(ctx context.Context, c tile.Coords) error {
			data, err := g.RenderPNG(ctx, c)
			if err != nil {
				return err
			}
			return w.WriteTile(c, data)
		},
	})

	stats := BuildStats{Total: len(tiles)}
	var errs []error
	for _, r := range pool.Run(ctx, tiles) {
		if r.Err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("tile %s: %w", r.Task, r.Err))
			continue
		}
		stats.Rendered++
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, errors.Join(errs...)
}

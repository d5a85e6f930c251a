// Package pipeline renders the province basemap: regions are rasterized per
// tile, painted as watercolor washes over a sea texture, outlined and
// optionally labelled.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"

	"github.com/MeKo-Tech/nusantaramap/internal/composite"
	"github.com/MeKo-Tech/nusantaramap/internal/mask"
	"github.com/MeKo-Tech/nusantaramap/internal/palette"
	"github.com/MeKo-Tech/nusantaramap/internal/raster"
	"github.com/MeKo-Tech/nusantaramap/internal/texture"
	"github.com/MeKo-Tech/nusantaramap/internal/tile"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/MeKo-Tech/nusantaramap/internal/watercolor"
	"github.com/paulmach/orb"
)

// Style configures the look of rendered tiles.
type Style struct {
	TileSize   int
	Watercolor watercolor.Params
	Paper      texture.Params
	Sea        texture.Params
	// SeaTexture replaces the procedural sea when set.
	SeaTexture *image.NRGBA

	Border      color.NRGBA
	BorderWidth float64

	Labels       bool
	LabelMinZoom uint32
	LabelColor   color.NRGBA
}

// DefaultStyle returns the default look for a seed.
func DefaultStyle(seed int64) Style {
	return Style{
		TileSize:     256,
		Watercolor:   watercolor.DefaultParams(seed),
		Paper:        texture.Paper(seed),
		Sea:          texture.Sea(seed + 1),
		Border:       color.NRGBA{R: 255, G: 255, B: 255, A: 200},
		BorderWidth:  1.5,
		Labels:       true,
		LabelMinZoom: 6,
		LabelColor:   color.NRGBA{R: 60, G: 50, B: 40, A: 255},
	}
}

// Region is one painted area.
type Region struct {
	Name     string
	Geometry orb.Geometry
	Fill     color.NRGBA
	bound    orb.Bound
}

// ProvinceRegions pairs provinces with their palette colors.
func ProvinceRegions(provinces []types.Province, colors palette.Map) ([]Region, error) {
	regions := make([]Region, 0, len(provinces))
	for _, p := range provinces {
		fill, err := palette.ParseHex(colors.Color(p.Name))
		if err != nil {
			return nil, fmt.Errorf("province %q: %w", p.Name, err)
		}
		regions = append(regions, Region{Name: p.Name, Geometry: p.Geometry, Fill: fill})
	}
	return regions, nil
}

// Generator renders tiles for a fixed set of regions. It is safe for
// concurrent use.
type Generator struct {
	style   Style
	regions []Region
	bounds  types.BoundingBox
	paper   *texture.Generator
	sea     *texture.Generator
	pad     int
	logger  *slog.Logger
}

// NewGenerator validates style and prepares the texture generators.
func NewGenerator(regions []Region, style Style, logger *slog.Logger) (*Generator, error) {
	if style.TileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive")
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("no regions to render")
	}
	if err := style.Watercolor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid watercolor params: %w", err)
	}
	paper, err := texture.New(style.Paper)
	if err != nil {
		return nil, fmt.Errorf("invalid paper texture: %w", err)
	}
	sea, err := texture.New(style.Sea)
	if err != nil {
		return nil, fmt.Errorf("invalid sea texture: %w", err)
	}

	g := &Generator{
		style:   style,
		regions: make([]Region, 0, len(regions)),
		paper:   paper,
		sea:     sea,
		pad:     watercolor.RequiredPaddingPx(style.Watercolor),
		logger:  logger,
	}
	var all orb.Bound
	for _, r := range regions {
		if r.Geometry == nil {
			continue
		}
		r.bound = r.Geometry.Bound()
		if len(g.regions) == 0 {
			all = r.bound
		} else {
			all = all.Union(r.bound)
		}
		g.regions = append(g.regions, r)
	}
	if len(g.regions) == 0 {
		return nil, fmt.Errorf("no region has a geometry")
	}
	g.bounds = types.FromBound(all)
	return g, nil
}

// Bounds is the extent of all regions.
func (g *Generator) Bounds() types.BoundingBox { return g.bounds }

// Render paints the tile at c.
func (g *Generator) Render(ctx context.Context, c tile.Coords) (*image.NRGBA, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid tile %s", c)
	}

	canvas := raster.ForTile(c, g.style.TileSize, g.pad)
	bounds := canvas.Bounds()
	ox, oy := canvas.Offset()
	geo := canvas.Geo()

	var base *image.NRGBA
	if g.style.SeaTexture != nil {
		base = texture.Repeat(g.style.SeaTexture, bounds, ox, oy)
	} else {
		base = g.sea.Render(bounds, ox, oy)
	}
	paper := g.paper.Render(bounds, ox, oy)

	var (
		layers  []*image.NRGBA
		borders = image.NewGray(bounds)
		painted int
	)
	for _, r := range g.regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.bound.Intersects(geo) {
			continue
		}
		coverage := canvas.Fill(r.Geometry)
		if raster.Empty(coverage) {
			continue
		}
		shape := watercolor.Shape(coverage, g.style.Watercolor, ox, oy)
		layers = append(layers, watercolor.Paint(shape, paper, r.Fill, g.style.Watercolor))
		if g.style.BorderWidth > 0 {
			borders = mask.Max(borders, canvas.Stroke(r.Geometry, g.style.BorderWidth))
		}
		painted++
	}
	if !raster.Empty(borders) {
		layers = append(layers, composite.Fill(borders, g.style.Border))
	}

	img, err := composite.Stack(base, layers...)
	if err != nil {
		return nil, fmt.Errorf("failed to composite tile %s: %w", c, err)
	}
	if g.style.Labels && c.Z >= g.style.LabelMinZoom {
		g.drawLabels(img, canvas)
	}

	g.log().Debug("Rendered tile", "coords", c.String(), "regions", painted)
	return composite.Crop(img, canvas.TileRect()), nil
}

// RenderPNG paints the tile at c and encodes it.
func (g *Generator) RenderPNG(ctx context.Context, c tile.Coords) ([]byte, error) {
	img, err := g.Render(ctx, c)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode tile %s: %w", c, err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/nusantaramap/internal/mbtiles"
	"github.com/MeKo-Tech/nusantaramap/internal/pipeline"
	"github.com/MeKo-Tech/nusantaramap/internal/texture"
	"github.com/MeKo-Tech/nusantaramap/internal/tile"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/MeKo-Tech/nusantaramap/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultAttribution = "Badan Informasi Geospasial"

var basemapCmd = &cobra.Command{
	Use:   "basemap",
	Short: "Build and inspect MBTiles basemaps",
	Long: `The basemap commands produce the raster layer serve can show under the
province and regency features: render paints the loaded provinces as
watercolor tiles, pack bundles an existing {z}/{x}/{y} tile tree.`,
}

var basemapRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Paint the provinces into a watercolor MBTiles basemap",
	RunE:  runBasemapRender,
}

var basemapPackCmd = &cobra.Command{
	Use:   "pack",
	Short: "Bundle a {z}/{x}/{y} tile directory into an MBTiles archive",
	RunE:  runBasemapPack,
}

var basemapInfoCmd = &cobra.Command{
	Use:   "info <archive>",
	Short: "Print the metadata and tile counts of an MBTiles archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runBasemapInfo,
}

func init() {
	rootCmd.AddCommand(basemapCmd)
	basemapCmd.AddCommand(basemapRenderCmd, basemapPackCmd, basemapInfoCmd)

	rf := basemapRenderCmd.Flags()
	rf.StringP("output", "o", "basemap.mbtiles", "Output MBTiles file")
	rf.Int("zoom-min", 4, "Minimum zoom level")
	rf.Int("zoom-max", 8, "Maximum zoom level")
	rf.String("bbox", "", "Limit rendering to minLon,minLat,maxLon,maxLat (default: all provinces)")
	rf.IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	rf.Bool("progress", true, "Show a progress bar")
	rf.Int("tile-size", 256, "Tile size in pixels (typically 256 or 512 for Hi-DPI)")
	rf.Int64("texture-seed", 1337, "Deterministic seed for noise and paper texture")
	rf.String("sea-texture", "", "PNG or JPEG tiled over the sea instead of the procedural wash")
	rf.Bool("labels", true, "Draw province names")
	rf.Int("label-min-zoom", 6, "Lowest zoom with province names")
	rf.Float64("border-width", 1.5, "Province border width in pixels (0 disables borders)")
	rf.Bool("allow-failures", false, "Keep the archive when some tiles fail")

	pf := basemapPackCmd.Flags()
	pf.String("input-dir", "./tiles", "Input directory containing {z}/{x}/{y} tiles")
	pf.StringP("output", "o", "", "Output MBTiles file path (required)")
	pf.String("pattern", mbtiles.DefaultPattern("png"), "Glob selecting tiles relative to the input directory")
	pf.String("format", "png", "Tile format stored in the metadata (png, jpg, webp, pbf)")
	pf.String("name", "Nusantara", "Tileset name")
	pf.String("description", "Basemap for the Indonesian province and regency viewer", "Tileset description")
	pf.String("attribution", defaultAttribution, "Attribution text")
	pf.String("bounds", "", "Bounding box: minLon,minLat,maxLon,maxLat (optional)")
	pf.Bool("progress", true, "Show a progress bar")

	bindFlags := []struct {
		cmd  *cobra.Command
		key  string
		flag string
	}{
		{basemapRenderCmd, "basemap.render.output", "output"},
		{basemapRenderCmd, "basemap.render.zoom_min", "zoom-min"},
		{basemapRenderCmd, "basemap.render.zoom_max", "zoom-max"},
		{basemapRenderCmd, "basemap.render.bbox", "bbox"},
		{basemapRenderCmd, "basemap.render.workers", "workers"},
		{basemapRenderCmd, "basemap.render.progress", "progress"},
		{basemapRenderCmd, "basemap.render.tile_size", "tile-size"},
		{basemapRenderCmd, "basemap.render.texture_seed", "texture-seed"},
		{basemapRenderCmd, "basemap.render.sea_texture", "sea-texture"},
		{basemapRenderCmd, "basemap.render.labels", "labels"},
		{basemapRenderCmd, "basemap.render.label_min_zoom", "label-min-zoom"},
		{basemapRenderCmd, "basemap.render.border_width", "border-width"},
		{basemapRenderCmd, "basemap.render.allow_failures", "allow-failures"},

		{basemapPackCmd, "basemap.pack.input_dir", "input-dir"},
		{basemapPackCmd, "basemap.pack.output", "output"},
		{basemapPackCmd, "basemap.pack.pattern", "pattern"},
		{basemapPackCmd, "basemap.pack.format", "format"},
		{basemapPackCmd, "basemap.pack.name", "name"},
		{basemapPackCmd, "basemap.pack.description", "description"},
		{basemapPackCmd, "basemap.pack.attribution", "attribution"},
		{basemapPackCmd, "basemap.pack.bounds", "bounds"},
		{basemapPackCmd, "basemap.pack.progress", "progress"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, bf.cmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runBasemapRender(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	output := viper.GetString("basemap.render.output")
	zoomMin := viper.GetInt("basemap.render.zoom_min")
	zoomMax := viper.GetInt("basemap.render.zoom_max")
	workers := viper.GetInt("basemap.render.workers")
	if output == "" {
		return fmt.Errorf("--output is required")
	}
	if zoomMin < 0 || zoomMax < 0 {
		return fmt.Errorf("zoom levels must not be negative")
	}
	if zoomMin > zoomMax {
		return fmt.Errorf("--zoom-min (%d) must be <= --zoom-max (%d)", zoomMin, zoomMax)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var bbox types.BoundingBox
	if s := viper.GetString("basemap.render.bbox"); s != "" {
		b, err := parseBBox(s)
		if err != nil {
			return fmt.Errorf("invalid bbox: %w", err)
		}
		bbox = b
	}

	style := pipeline.DefaultStyle(viper.GetInt64("basemap.render.texture_seed"))
	style.TileSize = viper.GetInt("basemap.render.tile_size")
	style.Labels = viper.GetBool("basemap.render.labels")
	style.LabelMinZoom = uint32(max(viper.GetInt("basemap.render.label_min_zoom"), 0))
	style.BorderWidth = viper.GetFloat64("basemap.render.border_width")
	if path := viper.GetString("basemap.render.sea_texture"); path != "" {
		img, err := texture.Load(path)
		if err != nil {
			return err
		}
		style.SeaTexture = img
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := newStore()
	defer store.Close()
	if err := store.Load(ctx, types.KindProvince); err != nil {
		return err
	}
	provinces, _ := store.Provinces()

	regions, err := pipeline.ProvinceRegions(provinces.Items, provinces.Colors)
	if err != nil {
		return err
	}
	gen, err := pipeline.NewGenerator(regions, style, logger)
	if err != nil {
		return err
	}

	bounds := gen.Bounds()
	if !bbox.IsZero() {
		bounds = bbox
	}
	centerLat, centerLon := bounds.Center()
	w, err := mbtiles.New(output, mbtiles.Metadata{
		Name:        "Nusantara",
		Format:      "png",
		Type:        "baselayer",
		Version:     "1.0",
		Description: "Watercolor provinces of Indonesia",
		Attribution: defaultAttribution,
		Bounds:      bounds,
		Center:      [3]float64{centerLon, centerLat, float64(zoomMin)},
		MinZoom:     zoomMin,
		MaxZoom:     zoomMax,
	})
	if err != nil {
		return fmt.Errorf("failed to create MBTiles writer: %w", err)
	}

	progress := worker.NewProgress(tile.Count(bounds, uint32(zoomMin), uint32(zoomMax)),
		viper.GetBool("basemap.render.progress"), "Rendering", "tiles")
	stats, buildErr := gen.Build(ctx, w, pipeline.BuildOptions{
		MinZoom:    uint32(zoomMin),
		MaxZoom:    uint32(zoomMax),
		Workers:    workers,
		OnProgress: progress.Callback(),
		Bounds:     bbox,
	})
	progress.Done()

	if err := w.Close(); err != nil {
		return err
	}
	logger.Info(progress.Summary(), "output", output, "provinces", len(regions))

	if buildErr != nil {
		if viper.GetBool("basemap.render.allow_failures") && stats.Rendered > 0 {
			logger.Warn("Some tiles failed", "failed", stats.Failed, "total", stats.Total)
			return nil
		}
		return fmt.Errorf("%d of %d tiles failed: %w", stats.Failed, stats.Total, buildErr)
	}
	return nil
}

func runBasemapPack(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	inputDir := viper.GetString("basemap.pack.input_dir")
	output := viper.GetString("basemap.pack.output")
	if output == "" {
		return fmt.Errorf("--output is required")
	}
	if _, err := os.Stat(inputDir); os.IsNotExist(err) {
		return fmt.Errorf("input directory does not exist: %s", inputDir)
	}

	meta := mbtiles.Metadata{
		Name:        viper.GetString("basemap.pack.name"),
		Format:      viper.GetString("basemap.pack.format"),
		Description: viper.GetString("basemap.pack.description"),
		Attribution: viper.GetString("basemap.pack.attribution"),
		Type:        "baselayer",
		Version:     "1.0",
	}
	if s := viper.GetString("basemap.pack.bounds"); s != "" {
		b, err := parseBBox(s)
		if err != nil {
			return fmt.Errorf("invalid bounds: %w", err)
		}
		meta.Bounds = b
	}

	pattern := viper.GetString("basemap.pack.pattern")
	tiles, err := mbtiles.ScanDir(inputDir, pattern)
	if err != nil {
		return fmt.Errorf("failed to scan tiles directory: %w", err)
	}
	if len(tiles) == 0 {
		return fmt.Errorf("no tiles matching %q in %s", pattern, inputDir)
	}
	minZoom, maxZoom := mbtiles.ZoomRange(tiles)
	logger.Info("Found tiles", "count", len(tiles), "min_zoom", minZoom, "max_zoom", maxZoom)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := worker.NewProgress(len(tiles), viper.GetBool("basemap.pack.progress"), "Packing", "tiles")
	written, err := mbtiles.Pack(ctx, tiles, output, meta, func(done, total int) {
		progress.Update(done, total, 0)
	}, logger)
	progress.Done()
	if err != nil {
		return err
	}

	logger.Info("Packed tiles", "output", output, "written", written, "skipped", len(tiles)-written)
	return nil
}

func runBasemapInfo(cmd *cobra.Command, args []string) error {
	r, err := mbtiles.OpenReader(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	counts, err := r.ZoomCounts()
	if err != nil {
		return err
	}

	meta := r.Metadata()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Archive:     %s\n", r.Path())
	fmt.Fprintf(out, "Name:        %s\n", meta.Name)
	fmt.Fprintf(out, "Format:      %s (%s)\n", meta.Format, meta.ContentType())
	if meta.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", meta.Description)
	}
	if meta.Attribution != "" {
		fmt.Fprintf(out, "Attribution: %s\n", meta.Attribution)
	}
	fmt.Fprintf(out, "Zoom:        %d-%d\n", meta.MinZoom, meta.MaxZoom)
	if !meta.Bounds.IsZero() {
		fmt.Fprintf(out, "Bounds:      %.4f,%.4f,%.4f,%.4f\n",
			meta.Bounds.MinLon, meta.Bounds.MinLat, meta.Bounds.MaxLon, meta.Bounds.MaxLat)
	}

	zooms := make([]int, 0, len(counts))
	for z := range counts {
		zooms = append(zooms, z)
	}
	sort.Ints(zooms)

	total := 0
	for _, z := range zooms {
		line := fmt.Sprintf("  z%-2d %6d tiles", z, counts[z])
		if !meta.Bounds.IsZero() {
			line += fmt.Sprintf(" of %d covering the bounds", tile.Count(meta.Bounds, uint32(z), uint32(z)))
		}
		fmt.Fprintln(out, line)
		total += counts[z]
	}
	fmt.Fprintf(out, "Total:       %d tiles\n", total)
	return nil
}

// parseBBox parses a bounding box string "minLon,minLat,maxLon,maxLat".
func parseBBox(s string) (types.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.BoundingBox{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return types.BoundingBox{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		v[i] = f
	}

	if v[0] >= v[2] {
		return types.BoundingBox{}, fmt.Errorf("minLon (%f) must be < maxLon (%f)", v[0], v[2])
	}
	if v[1] >= v[3] {
		return types.BoundingBox{}, fmt.Errorf("minLat (%f) must be < maxLat (%f)", v[1], v[3])
	}
	if v[0] < -180 || v[2] > 180 || v[1] < -90 || v[3] > 90 {
		return types.BoundingBox{}, fmt.Errorf("coordinates out of range")
	}

	return types.BoundingBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}, nil
}

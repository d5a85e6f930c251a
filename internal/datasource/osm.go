package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/MeKo-Tech/nusantaramap/internal/locate"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// DefaultOverpassEndpoint is the public Overpass API interpreter.
const DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// OSMPointsOfInterest looks up named attractions inside a regency on
// OpenStreetMap. Results are cached per regency for the life of the value.
type OSMPointsOfInterest struct {
	client overpass.Client
	limit  int
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string][]types.PointOfInterest
}

// NewOSMPointsOfInterest creates a lookup against endpoint returning at most
// limit places per regency.
func NewOSMPointsOfInterest(endpoint string, limit int, logger *slog.Logger) *OSMPointsOfInterest {
	if endpoint == "" {
		endpoint = DefaultOverpassEndpoint
	}
	if limit <= 0 {
		limit = 10
	}
	return &OSMPointsOfInterest{
		// One request at a time, per Overpass usage policy.
		client: overpass.NewWithSettings(endpoint, 1, http.DefaultClient),
		limit:  limit,
		logger: logger,
		cache:  make(map[string][]types.PointOfInterest),
	}
}

// Find returns the places inside r. The Overpass client does not take a
// context, so ctx is only checked before the query is sent.
func (o *OSMPointsOfInterest) Find(ctx context.Context, r types.Regency) ([]types.PointOfInterest, error) {
	o.mu.Lock()
	cached, ok := o.cache[r.Name]
	o.mu.Unlock()
	if ok {
		return cached, nil
	}
	if r.Geometry == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := o.client.Query(poiQuery(r.Bounds(), o.limit*4))
	if err != nil {
		return nil, fmt.Errorf("overpass query for %s failed: %w", r.Name, err)
	}
	pois := ExtractPointsOfInterest(&result, r.Geometry, o.limit)
	o.log().Debug("points of interest from OpenStreetMap", "regency", r.Name, "count", len(pois))

	o.mu.Lock()
	o.cache[r.Name] = pois
	o.mu.Unlock()
	return pois, nil
}

// poiQuery selects named tourist places in the bounding box. Ways come back
// with full geometry so a center can be derived locally.
func poiQuery(b types.BoundingBox, limit int) string {
	bbox := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
	return fmt.Sprintf(`
[out:json][timeout:25];
(
  node["tourism"~"^(attraction|museum|viewpoint)$"]["name"](%[1]s);
  way["tourism"~"^(attraction|museum|viewpoint)$"]["name"](%[1]s);
  node["historic"]["name"](%[1]s);
  node["natural"="beach"]["name"](%[1]s);
  way["natural"="beach"]["name"](%[1]s);
);
out geom %[2]d;
`, bbox, limit)
}

// ExtractPointsOfInterest converts the named nodes and ways of result lying
// inside region into points of interest, sorted by name and capped at limit.
func ExtractPointsOfInterest(result *overpass.Result, region orb.Geometry, limit int) []types.PointOfInterest {
	if result == nil {
		return nil
	}
	seen := make(map[string]bool)
	var pois []types.PointOfInterest

	add := func(tags map[string]string, at orb.Point) {
		name := strings.TrimSpace(tags["name"])
		if name == "" || seen[name] {
			return
		}
		if region != nil && !locate.Contains(region, at) {
			return
		}
		seen[name] = true
		pois = append(pois, poiFromTags(name, tags))
	}

	for _, n := range result.Nodes {
		if n == nil {
			continue
		}
		add(n.Tags, orb.Point{n.Lon, n.Lat})
	}
	for _, w := range result.Ways {
		if w == nil || len(w.Geometry) == 0 {
			continue
		}
		add(w.Tags, wayCenter(w))
	}

	sort.Slice(pois, func(i, j int) bool { return pois[i].Name < pois[j].Name })
	if limit > 0 && len(pois) > limit {
		pois = pois[:limit]
	}
	return pois
}

func wayCenter(w *overpass.Way) orb.Point {
	ls := make(orb.LineString, len(w.Geometry))
	for i, p := range w.Geometry {
		ls[i] = orb.Point{p.Lon, p.Lat}
	}
	if len(ls) > 3 && ls[0] == ls[len(ls)-1] {
		c, _ := planar.CentroidArea(orb.Polygon{orb.Ring(ls)})
		return c
	}
	return ls.Bound().Center()
}

func poiFromTags(name string, tags map[string]string) types.PointOfInterest {
	poi := types.PointOfInterest{Name: name, Description: tags["description"]}
	if poi.Description == "" {
		for _, key := range []string{"tourism", "historic", "natural"} {
			if v := tags[key]; v != "" {
				poi.Description = strings.ReplaceAll(v, "_", " ")
				break
			}
		}
	}

	var addr []string
	for _, key := range []string{"addr:street", "addr:village", "addr:city"} {
		if v := tags[key]; v != "" {
			addr = append(addr, v)
		}
	}
	poi.Address = strings.Join(addr, ", ")

	if img := tags["image"]; strings.HasPrefix(img, "http") {
		poi.Images = []string{img}
	}
	return poi
}

func (o *OSMPointsOfInterest) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

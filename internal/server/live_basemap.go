package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/nusantaramap/internal/datasource"
	"github.com/MeKo-Tech/nusantaramap/internal/pipeline"
	"github.com/MeKo-Tech/nusantaramap/internal/tile"
	"github.com/go-chi/chi/v5"
)

// ErrBasemapNotReady is returned while the provinces have not been loaded.
var ErrBasemapNotReady = errors.New("basemap not ready")

// LiveBasemapConfig configures on-demand basemap rendering.
type LiveBasemapConfig struct {
	Style         pipeline.Style
	CacheControl  string
	MaxConcurrent int
	Timeout       time.Duration
	CacheEntries  int // rendered tiles kept in memory; 0 disables the cache
}

// LiveBasemap paints watercolor province tiles on request, for when no
// prebuilt archive is available. It subscribes to the feature store and
// serves 503 until the provinces arrive.
type LiveBasemap struct {
	cfg    LiveBasemapConfig
	logger *slog.Logger
	sem    chan struct{}

	locksMu sync.Mutex
	locks   map[string]*tileLock // held or awaited tile keys only

	mu      sync.RWMutex
	regions []pipeline.Region
	gens    map[int]*pipeline.Generator // by tile size

	cacheMu    sync.Mutex
	cache      map[string][]byte
	cacheOrder []string

	activeRenders atomic.Int32
	queuedRenders atomic.Int32
	totalRendered atomic.Int64
	totalFailed   atomic.Int64
	cacheHits     atomic.Int64
}

// LiveBasemapStatus reports render activity.
type LiveBasemapStatus struct {
	Ready         bool  `json:"ready"`
	ActiveRenders int   `json:"active_renders"`
	QueuedRenders int   `json:"queued_renders"`
	TotalRendered int64 `json:"total_rendered"`
	TotalFailed   int64 `json:"total_failed"`
	CacheHits     int64 `json:"cache_hits"`
	Cached        int   `json:"cached"`
	MaxConcurrent int   `json:"max_concurrent"`
}

// NewLiveBasemap validates cfg and fills its defaults.
func NewLiveBasemap(cfg LiveBasemapConfig, logger *slog.Logger) (*LiveBasemap, error) {
	if cfg.Style.TileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive")
	}
	if err := cfg.Style.Watercolor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid watercolor params: %w", err)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	return &LiveBasemap{
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrent),
		gens:   make(map[int]*pipeline.Generator),
		locks:  make(map[string]*tileLock),
		cache:  make(map[string][]byte),
	}, nil
}

// ProvincesLoaded implements datasource.Subscriber.
func (b *LiveBasemap) ProvincesLoaded(c datasource.Provinces) {
	regions, err := pipeline.ProvinceRegions(c.Items, c.Colors)
	if err != nil {
		b.log().Error("live basemap disabled", "error", err)
		return
	}
	b.mu.Lock()
	b.regions = regions
	b.mu.Unlock()
	b.log().Info("live basemap ready", "provinces", len(regions))
}

// RegenciesLoaded implements datasource.Subscriber. Regencies are not painted.
func (b *LiveBasemap) RegenciesLoaded(datasource.Regencies) {}

// Routes mounts the tile and status endpoints.
func (b *LiveBasemap) Routes(r chi.Router) {
	r.Get("/status", b.serveStatus)
	r.Get("/{z}/{x}/{y}", b.serveTile)
}

// Status returns the current render activity.
func (b *LiveBasemap) Status() LiveBasemapStatus {
	b.mu.RLock()
	ready := b.regions != nil
	b.mu.RUnlock()
	b.cacheMu.Lock()
	cached := len(b.cache)
	b.cacheMu.Unlock()

	return LiveBasemapStatus{
		Ready:         ready,
		ActiveRenders: int(b.activeRenders.Load()),
		QueuedRenders: int(b.queuedRenders.Load()),
		TotalRendered: b.totalRendered.Load(),
		TotalFailed:   b.totalFailed.Load(),
		CacheHits:     b.cacheHits.Load(),
		Cached:        cached,
		MaxConcurrent: b.cfg.MaxConcurrent,
	}
}

// Tile returns the PNG for c at scale (1 or 2), rendering it when not cached.
func (b *LiveBasemap) Tile(ctx context.Context, c tile.Coords, scale int) ([]byte, error) {
	key := fmt.Sprintf("%s@%dx", c, scale)
	if data, ok := b.cached(key); ok {
		return data, nil
	}

	l := b.lock(key)
	defer b.unlock(key, l)
	if data, ok := b.cached(key); ok {
		return data, nil
	}

	gen, err := b.generator(b.cfg.Style.TileSize * scale)
	if err != nil {
		return nil, err
	}

	b.queuedRenders.Add(1)
	select {
	case b.sem <- struct{}{}:
		b.queuedRenders.Add(-1)
		defer func() { <-b.sem }()
	case <-ctx.Done():
		b.queuedRenders.Add(-1)
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	start := time.Now()
	b.activeRenders.Add(1)
	data, err := gen.RenderPNG(ctx, c)
	b.activeRenders.Add(-1)
	if err != nil {
		b.totalFailed.Add(1)
		return nil, err
	}
	b.totalRendered.Add(1)
	b.log().Debug("tile rendered on demand", "coords", c.String(), "scale", scale, "ms", time.Since(start).Milliseconds())

	b.store(key, data)
	return data, nil
}

func (b *LiveBasemap) serveTile(w http.ResponseWriter, r *http.Request) {
	row, scale, ok := parseTileName(chi.URLParam(r, "y"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	coords, err := tile.ParsePath(chi.URLParam(r, "z"), chi.URLParam(r, "x"), row)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	data, err := b.Tile(r.Context(), coords, scale)
	switch {
	case errors.Is(err, ErrBasemapNotReady):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case errors.Is(err, context.Canceled):
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	case err != nil:
		b.log().Error("failed to render tile", "coords", coords.String(), "error", err)
		http.Error(w, fmt.Sprintf("failed to render tile %s", coords), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", b.cfg.CacheControl)
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(data); err != nil {
		b.log().Error("Failed to write response", "error", err)
	}
}

func (b *LiveBasemap) serveStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(b.Status()); err != nil {
		b.log().Error("failed to encode status", "error", err)
	}
}

// generator returns the generator for size, creating it on first use.
func (b *LiveBasemap) generator(size int) (*pipeline.Generator, error) {
	b.mu.RLock()
	gen, ok := b.gens[size]
	regions := b.regions
	b.mu.RUnlock()
	if ok {
		return gen, nil
	}
	if regions == nil {
		return nil, ErrBasemapNotReady
	}

	style := b.cfg.Style
	style.TileSize = size
	gen, err := pipeline.NewGenerator(regions, style, b.logger)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.gens[size]; ok {
		return existing, nil
	}
	b.gens[size] = gen
	return gen, nil
}

// tileLock serializes renders of one tile. refs counts holders and waiters
// so the entry can be dropped once nobody needs it.
type tileLock struct {
	mu   sync.Mutex
	refs int
}

func (b *LiveBasemap) lock(key string) *tileLock {
	b.locksMu.Lock()
	l, ok := b.locks[key]
	if !ok {
		l = &tileLock{}
		b.locks[key] = l
	}
	l.refs++
	b.locksMu.Unlock()

	l.mu.Lock()
	return l
}

func (b *LiveBasemap) unlock(key string, l *tileLock) {
	l.mu.Unlock()

	b.locksMu.Lock()
	defer b.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(b.locks, key)
	}
}

func (b *LiveBasemap) pendingLocks() int {
	b.locksMu.Lock()
	defer b.locksMu.Unlock()
	return len(b.locks)
}

func (b *LiveBasemap) cached(key string) ([]byte, bool) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	data, ok := b.cache[key]
	if ok {
		b.cacheHits.Add(1)
	}
	return data, ok
}

// store keeps data, evicting the oldest entry when full.
func (b *LiveBasemap) store(key string, data []byte) {
	if b.cfg.CacheEntries <= 0 {
		return
	}
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	if _, ok := b.cache[key]; ok {
		return
	}
	if len(b.cacheOrder) >= b.cfg.CacheEntries {
		oldest := b.cacheOrder[0]
		b.cacheOrder = b.cacheOrder[1:]
		delete(b.cache, oldest)
	}
	b.cache[key] = data
	b.cacheOrder = append(b.cacheOrder, key)
}

func (b *LiveBasemap) log() *slog.Logger {
	if b.logger != nil {
		return b.logger
	}
	return slog.Default()
}

// parseTileName splits a "{y}.png" or "{y}@2x.png" path segment.
func parseTileName(name string) (row string, scale int, ok bool) {
	base, found := strings.CutSuffix(name, ".png")
	if !found || base == "" {
		return "", 0, false
	}
	scale = 1
	if r, hidpi := strings.CutSuffix(base, "@2x"); hidpi {
		base, scale = r, 2
	}
	if base == "" {
		return "", 0, false
	}
	return base, scale, true
}

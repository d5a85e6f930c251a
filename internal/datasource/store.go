// Package datasource loads the province and regency feature collections and
// publishes each one exactly once.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/nusantaramap/internal/geojson"
	"github.com/MeKo-Tech/nusantaramap/internal/palette"
	"github.com/MeKo-Tech/nusantaramap/internal/types"
	"github.com/MeKo-Tech/nusantaramap/internal/worker"
)

// ErrAlreadyLoaded is returned when a kind is loaded a second time.
var ErrAlreadyLoaded = errors.New("collection already loaded")

// DataLoadError reports a failed fetch or parse of one collection.
type DataLoadError struct {
	Err    error
	Kind   types.Kind
	Source string
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("failed to load %s collection from %s: %v", e.Kind, e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// Provinces is a loaded province collection with its color map.
type Provinces struct {
	LoadedAt time.Time
	Colors   palette.Map
	Source   string
	Items    []types.Province
}

// Regencies is a loaded regency collection with its color map.
type Regencies struct {
	LoadedAt time.Time
	Colors   palette.Map
	Source   string
	Items    []types.Regency
}

// Subscriber receives collections as they are published. Callbacks run on the
// loading goroutine.
type Subscriber interface {
	ProvincesLoaded(Provinces)
	RegenciesLoaded(Regencies)
}

// Config configures the store.
type Config struct {
	ProvinceSource string
	RegencySource  string
	// Seed for color assignment; 0 picks one from the clock.
	Seed    int64
	Fetcher *Fetcher
	Logger  *slog.Logger
}

// Store owns the raw collections.
type Store struct {
	cfg       Config
	fetcher   *Fetcher
	logger    *slog.Logger
	provinces *Provinces
	regencies *Regencies
	subs      []Subscriber
	mu        sync.RWMutex
	closed    bool
}

// NewStore creates an empty store.
func NewStore(cfg Config) *Store {
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}
	return &Store{cfg: cfg, fetcher: fetcher, logger: cfg.Logger}
}

// Subscribe registers s. Collections already published are replayed to it.
func (s *Store) Subscribe(sub Subscriber) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	provinces, regencies := s.provinces, s.regencies
	s.mu.Unlock()

	if provinces != nil {
		sub.ProvincesLoaded(*provinces)
	}
	if regencies != nil {
		sub.RegenciesLoaded(*regencies)
	}
}

// LoadAll loads both collections concurrently. Each kind fails independently;
// the returned error joins every failure.
func (s *Store) LoadAll(ctx context.Context) error {
	pool := worker.New(worker.Config[types.Kind]{Workers: 2, Handle: s.Load})
	results := pool.Run(ctx, []types.Kind{types.KindProvince, types.KindRegency})

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		s.log().Debug("collection loaded", "kind", r.Task, "elapsed", r.Elapsed)
	}
	return errors.Join(errs...)
}

// Load fetches, parses, colors and publishes one collection. Failures are
// logged and returned as *DataLoadError; the kind then stays empty.
func (s *Store) Load(ctx context.Context, kind types.Kind) error {
	source, err := s.source(kind)
	if err != nil {
		return err
	}

	data, err := s.fetcher.Fetch(ctx, source)
	if err != nil {
		return s.fail(kind, source, err)
	}

	switch kind {
	case types.KindProvince:
		items, err := geojson.DecodeProvinces(data)
		if err != nil {
			return s.fail(kind, source, err)
		}
		names := make([]string, len(items))
		for i, p := range items {
			names[i] = p.Name
		}
		return s.publishProvinces(Provinces{
			Items:    items,
			Colors:   palette.NewAssigner(s.seed(kind)).Assign(names),
			Source:   source,
			LoadedAt: time.Now(),
		})
	default:
		items, err := geojson.DecodeRegencies(data)
		if err != nil {
			return s.fail(kind, source, err)
		}
		names := make([]string, len(items))
		for i, r := range items {
			names[i] = r.Name
		}
		return s.publishRegencies(Regencies{
			Items:    items,
			Colors:   palette.NewAssigner(s.seed(kind)).Assign(names),
			Source:   source,
			LoadedAt: time.Now(),
		})
	}
}

// Close tears the store down. Loads finishing afterwards are discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.subs = nil
	return nil
}

// Loaded reports whether kind has been published.
func (s *Store) Loaded(kind types.Kind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch kind {
	case types.KindProvince:
		return s.provinces != nil
	case types.KindRegency:
		return s.regencies != nil
	default:
		return false
	}
}

// Provinces returns the province collection, if loaded.
func (s *Store) Provinces() (Provinces, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provinces == nil {
		return Provinces{}, false
	}
	return *s.provinces, true
}

// Regencies returns the regency collection, if loaded.
func (s *Store) Regencies() (Regencies, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.regencies == nil {
		return Regencies{}, false
	}
	return *s.regencies, true
}

func (s *Store) publishProvinces(c Provinces) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log().Debug("discarding province collection loaded after close", "source", c.Source)
		return nil
	}
	if s.provinces != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", types.KindProvince, ErrAlreadyLoaded)
	}
	s.provinces = &c
	subs := append([]Subscriber(nil), s.subs...)
	s.mu.Unlock()

	s.log().Info("province collection loaded", "source", c.Source, "count", len(c.Items))
	for _, sub := range subs {
		sub.ProvincesLoaded(c)
	}
	return nil
}

func (s *Store) publishRegencies(c Regencies) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log().Debug("discarding regency collection loaded after close", "source", c.Source)
		return nil
	}
	if s.regencies != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", types.KindRegency, ErrAlreadyLoaded)
	}
	s.regencies = &c
	subs := append([]Subscriber(nil), s.subs...)
	s.mu.Unlock()

	s.log().Info("regency collection loaded", "source", c.Source, "count", len(c.Items))
	for _, sub := range subs {
		sub.RegenciesLoaded(c)
	}
	return nil
}

func (s *Store) fail(kind types.Kind, source string, err error) error {
	loadErr := &DataLoadError{Kind: kind, Source: source, Err: err}
	s.log().Error("failed to load collection", "kind", kind, "source", source, "error", err)
	return loadErr
}

func (s *Store) source(kind types.Kind) (string, error) {
	switch kind {
	case types.KindProvince:
		return s.cfg.ProvinceSource, nil
	case types.KindRegency:
		return s.cfg.RegencySource, nil
	default:
		return "", fmt.Errorf("unknown collection kind %q", kind)
	}
}

// seed derives a per-kind seed so the two color maps are independent.
func (s *Store) seed(kind types.Kind) int64 {
	if s.cfg.Seed == 0 {
		return 0
	}
	if kind == types.KindRegency {
		return s.cfg.Seed + 1
	}
	return s.cfg.Seed
}

func (s *Store) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

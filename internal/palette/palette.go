// Package palette assigns a stable pastel display color to every region name
// of a loaded collection.
package palette

import (
	"math"
	"math/rand"
	"time"

	"github.com/aquilax/go-perlin"
)

const (
	// Saturation is fixed for every generated color.
	Saturation = 70.0
	// LightnessMin and LightnessMax bound the pastel band.
	LightnessMin = 70.0
	LightnessMax = 85.0

	// FallbackColor is returned for names missing from a Map.
	FallbackColor = "#cccccc"

	noiseStep = 0.37
)

// Map maps a region name to its "#rrggbb" color.
type Map map[string]string

// Color returns the color for name, or FallbackColor.
func (m Map) Color(name string) string {
	if c, ok := m[name]; ok {
		return c
	}
	return FallbackColor
}

// Assigner generates colors with a random hue inside the fixed saturation and
// lightness band. An Assigner is not safe for concurrent use; give each
// collection its own.
type Assigner struct {
	rng   *rand.Rand
	noise *perlin.Perlin
}

// NewAssigner creates an assigner. A zero seed picks one from the clock.
func NewAssigner(seed int64) *Assigner {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Assigner{
		rng:   rand.New(rand.NewSource(seed)),
		noise: perlin.NewPerlin(2.0, 2.0, 3, seed),
	}
}

// Assign returns a new Map with one color per distinct name. Duplicate names
// keep the color of their first occurrence.
func (a *Assigner) Assign(names []string) Map {
	m := make(Map, len(names))
	for i, name := range names {
		if _, ok := m[name]; ok {
			continue
		}
		m[name] = a.next(i)
	}
	return m
}

func (a *Assigner) next(i int) string {
	hue := uint16(a.rng.Intn(hueSteps))

	// Noise is roughly in [-1, 1]; fold it into the lightness band.
	n := (a.noise.Noise1D(float64(i)*noiseStep) + 1) / 2
	n = math.Max(0, math.Min(1, n))
	lightness := LightnessMin + n*(LightnessMax-LightnessMin)

	return Hex(hue, percent(Saturation), percent(lightness))
}

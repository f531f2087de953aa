package flow

import (
	"math"
	"runtime"
	"sync"

	"github.com/couchcryptid/cityflow-precompute/internal/domain"
)

// CompassDirection pairs one of the 8 compass labels with its unit vector
// in the local frame (x east, z north).
type CompassDirection struct {
	Label string
	Dir   domain.Vec2
}

// CompassRose returns the 8 cardinal and intercardinal directions at 45°
// increments, clockwise from north.
func CompassRose() []CompassDirection {
	d := math.Sqrt2 / 2
	return []CompassDirection{
		{"N", domain.Vec2{X: 0, Z: 1}},
		{"NE", domain.Vec2{X: d, Z: d}},
		{"E", domain.Vec2{X: 1, Z: 0}},
		{"SE", domain.Vec2{X: d, Z: -d}},
		{"S", domain.Vec2{X: 0, Z: -1}},
		{"SW", domain.Vec2{X: -d, Z: -d}},
		{"W", domain.Vec2{X: -1, Z: 0}},
		{"NW", domain.Vec2{X: -d, Z: d}},
	}
}

// GridConfig controls seed enumeration and result filtering. Callers wanting
// fewer or more streamlines tune Resolution and HeightLayers rather than the
// tracing algorithm.
type GridConfig struct {
	Resolution   int       // cells per axis of the seed grid
	HeightLayers []float64 // y value of each layer
	MinPoints    int       // streamlines shorter than this are discarded
	Workers      int       // concurrent traces; <=0 uses GOMAXPROCS

	// JitterSeed and JitterAmplitude derive an independent deterministic
	// jitter source per seed, so concurrent tracing cannot perturb output.
	// Amplitude 0 disables jitter.
	JitterSeed      int64
	JitterAmplitude float64
}

// DefaultGridConfig returns the seed grid defaults: 8 × 10×10 × 3 = 2400
// candidate seeds per area before filtering.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		Resolution:      10,
		HeightLayers:    []float64{20, 55, 90},
		MinPoints:       15,
		JitterAmplitude: 2,
	}
}

// Seeds enumerates one seed per (direction, grid cell, height layer) over
// bounds, in a fixed deterministic order. Cells whose center lies inside an
// obstacle are skipped before tracing.
func Seeds(bounds domain.Bounds, obstacles *domain.ObstacleIndex, grid GridConfig) []Seed {
	cellW := bounds.Width() / float64(grid.Resolution)
	cellD := bounds.Depth() / float64(grid.Resolution)

	var seeds []Seed
	for _, compass := range CompassRose() {
		for cz := 0; cz < grid.Resolution; cz++ {
			for cx := 0; cx < grid.Resolution; cx++ {
				center := domain.Vec2{
					X: bounds.MinX + (float64(cx)+0.5)*cellW,
					Z: bounds.MinZ + (float64(cz)+0.5)*cellD,
				}
				if obstacles.Contains(center) {
					continue
				}
				for _, y := range grid.HeightLayers {
					seeds = append(seeds, Seed{
						Position:  domain.Point3{X: center.X, Y: y, Z: center.Z},
						Direction: compass.Dir,
						Compass:   compass.Label,
					})
				}
			}
		}
	}
	return seeds
}

// GenerateStreamlines enumerates seeds over bounds, traces them, and
// returns the streamlines that meet the minimum-length threshold, in seed
// enumeration order.
func GenerateStreamlines(obstacles *domain.ObstacleIndex, bounds domain.Bounds, cfg Config, grid GridConfig) []domain.Streamline {
	lines, _ := TraceAll(Seeds(bounds, obstacles, grid), obstacles, bounds, cfg, grid)
	return lines
}

// TraceAll traces every seed and filters the results by the minimum-length
// threshold, preserving seed order. The second return value counts the
// discarded traces. Traces run concurrently; each seed gets its own jitter
// source derived from the configured seed, so output is identical regardless
// of worker count.
func TraceAll(seeds []Seed, obstacles *domain.ObstacleIndex, bounds domain.Bounds, cfg Config, grid GridConfig) ([]domain.Streamline, int) {
	traced := make([][]domain.Point3, len(seeds))

	workers := grid.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				seedCfg := cfg
				if grid.JitterAmplitude > 0 {
					seedCfg.Jitter = NewJitter(grid.JitterSeed+int64(i), grid.JitterAmplitude)
				}
				traced[i] = Trace(seeds[i], obstacles, bounds, seedCfg)
			}
		}()
	}
	for i := range seeds {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	lines := make([]domain.Streamline, 0, len(seeds))
	discarded := 0
	for i, points := range traced {
		if len(points) < grid.MinPoints {
			discarded++
			continue
		}
		lines = append(lines, domain.NewStreamline(seeds[i].Compass, points))
	}
	return lines, discarded
}

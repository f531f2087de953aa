// Package flow traces obstacle-aware flow streamlines across an area. A
// streamline is the path a fluid parcel would follow from a seed point:
// straight steps along the seed heading, deflected tangentially along
// building boundaries, until it leaves the area, exhausts its step budget,
// or gets stuck inside an obstacle.
//
// This is a lightweight deflection heuristic for visualization, not a fluid
// solver. Every termination path is an expected, silent outcome; the only
// caller-visible effect is the length of the returned point sequence.
package flow

import (
	"math/rand"

	"github.com/couchcryptid/cityflow-precompute/internal/domain"
)

// JitterFunc produces the next vertical offset applied to a streamline
// vertex. Jitter is cosmetic; injecting a seeded source keeps runs
// reproducible.
type JitterFunc func() float64

// NewJitter returns a seeded pseudo-random jitter source with offsets in
// [-amplitude, amplitude]. The same seed always yields the same sequence.
func NewJitter(seed int64, amplitude float64) JitterFunc {
	rng := rand.New(rand.NewSource(seed))
	return func() float64 {
		return (rng.Float64()*2 - 1) * amplitude
	}
}

// Config holds the tracer parameters for one area run.
type Config struct {
	StepSize float64 // distance advanced per step
	MaxSteps int     // step budget per streamline
	Margin   float64 // how far past the frame bounds a trace may wander
	YMin     float64 // vertical clamp for jitter
	YMax     float64
	Jitter   JitterFunc // nil disables vertical jitter
}

// DefaultConfig returns the tracer defaults used by the precompute service.
func DefaultConfig() Config {
	return Config{
		StepSize: 12,
		MaxSteps: 200,
		Margin:   50,
		YMin:     10,
		YMax:     100,
	}
}

// Seed is a starting position and heading for one streamline trace. The
// position's y component selects the height layer; it plays no part in 2D
// containment tests.
type Seed struct {
	Position  domain.Point3
	Direction domain.Vec2
	Compass   string
}

// Trace advances a single streamline from seed until a termination condition
// fires and returns the accumulated points, seed position first.
//
// Each step tests the candidate position against the obstacle index. A
// contained candidate triggers one deflection: the heading turns onto the
// tangent of the nearest boundary and one tangent step is attempted. If that
// step is still inside an obstacle the trace stops immediately without the
// offending point (collision-deadlock); concave and overlapping footprints
// would otherwise loop forever. After a deflection the trace follows the
// boundary tangent and resumes the seed's own heading as soon as a step in
// that direction is clear again.
//
// Leaving the bounds by more than Margin on either axis ends the trace with
// the final in-bounds point kept; so does exhausting MaxSteps.
func Trace(seed Seed, obstacles *domain.ObstacleIndex, bounds domain.Bounds, cfg Config) []domain.Point3 {
	base := seed.Direction.Normalize()
	if base == (domain.Vec2{}) {
		return nil
	}

	dir := base
	deflected := false
	pos := seed.Position
	points := []domain.Point3{pos}

	for step := 0; step < cfg.MaxSteps; step++ {
		next := cfg.advance(pos, dir)

		if obstacles.Contains(next.Horizontal()) {
			normal := obstacles.NearestBoundaryNormal(next.Horizontal())
			tangent := tangentAlong(normal, dir)
			next = cfg.advance(pos, tangent)
			if obstacles.Contains(next.Horizontal()) {
				return points // collision-deadlock
			}
			dir = tangent
			deflected = true
		}

		if !bounds.Contains(next.Horizontal(), cfg.Margin) {
			return points // out of bounds; final in-bounds point already kept
		}

		points = append(points, next)
		pos = next

		// Once the original heading is no longer blocked, resume it.
		if deflected {
			probe := pos.Horizontal().Add(base.Scale(cfg.StepSize))
			if !obstacles.Contains(probe) {
				dir = base
				deflected = false
			}
		}
	}

	return points
}

// advance takes one step of StepSize along dir, applying clamped vertical
// jitter.
func (cfg Config) advance(pos domain.Point3, dir domain.Vec2) domain.Point3 {
	y := pos.Y
	if cfg.Jitter != nil {
		y += cfg.Jitter()
		if y < cfg.YMin {
			y = cfg.YMin
		}
		if y > cfg.YMax {
			y = cfg.YMax
		}
	}
	return domain.Point3{
		X: pos.X + dir.X*cfg.StepSize,
		Y: y,
		Z: pos.Z + dir.Z*cfg.StepSize,
	}
}

// tangentAlong rotates a boundary normal 90° and orients the result to
// preserve the trace's forward motion. A perpendicular incoming heading is a
// tie; the unrotated perpendicular wins, deterministically.
func tangentAlong(normal, dir domain.Vec2) domain.Vec2 {
	t := normal.Perp()
	if t.Dot(dir) < 0 {
		t = t.Scale(-1)
	}
	return t
}

package domain

import "math"

// Footprint is one building's ground outline: an ordered, implicitly closed
// ring of local (x, z) points.
type Footprint []Vec2

// distinctPoints counts points that differ from their predecessor, treating
// the ring as closed. A valid footprint needs at least three.
func (fp Footprint) distinctPoints() int {
	n := 0
	for i, p := range fp {
		prev := fp[(i+len(fp)-1)%len(fp)]
		if p != prev {
			n++
		}
	}
	return n
}

// ObstacleIndex answers point-containment and nearest-boundary queries
// against the footprints of one area. It is immutable once built and safe
// for concurrent readers.
type ObstacleIndex struct {
	footprints []Footprint
	skipped    int
}

// NewObstacleIndex builds an index from raw footprints. Degenerate rings
// (fewer than three distinct points) are dropped silently; the count of
// dropped rings is available via Skipped for callers that want to report it.
func NewObstacleIndex(footprints []Footprint) *ObstacleIndex {
	idx := &ObstacleIndex{}
	for _, fp := range footprints {
		if fp.distinctPoints() < 3 {
			idx.skipped++
			continue
		}
		idx.footprints = append(idx.footprints, fp)
	}
	return idx
}

// Len returns the number of usable footprints in the index.
func (idx *ObstacleIndex) Len() int { return len(idx.footprints) }

// Skipped returns the number of degenerate footprints dropped at build time.
func (idx *ObstacleIndex) Skipped() int { return idx.skipped }

// Footprints returns the indexed rings. Callers must not mutate them.
func (idx *ObstacleIndex) Footprints() []Footprint { return idx.footprints }

// Contains reports whether p lies inside any footprint, using the even-odd
// ray cast. The half-open edge rule (zi > z) != (zj > z) fixes the on-edge
// tie-break: a point exactly on a horizontal edge counts as outside, one on
// a left edge as inside, deterministically.
func (idx *ObstacleIndex) Contains(p Vec2) bool {
	for _, fp := range idx.footprints {
		if ringContains(fp, p) {
			return true
		}
	}
	return false
}

func ringContains(ring Footprint, p Vec2) bool {
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		a, b := ring[i], ring[j]
		if (a.Z > p.Z) != (b.Z > p.Z) &&
			p.X < (b.X-a.X)*(p.Z-a.Z)/(b.Z-a.Z)+a.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// NearestBoundaryNormal returns the outward unit normal of the footprint
// edge nearest to p, scanning every edge of every ring. The nearest point is
// clamped to the segment, not the infinite line. Zero-length edges are
// skipped. The normal is oriented away from p's side of the boundary, which
// for a point inside an obstacle is the outward direction; callers only
// invoke this when Contains(p) is true.
func (idx *ObstacleIndex) NearestBoundaryNormal(p Vec2) Vec2 {
	best := math.MaxFloat64
	var bestEdge Vec2    // direction of the nearest edge
	var bestClosest Vec2 // closest point on that edge

	for _, fp := range idx.footprints {
		j := len(fp) - 1
		for i := 0; i < len(fp); i++ {
			a, b := fp[j], fp[i]
			j = i

			edge := b.Sub(a)
			lenSq := edge.Dot(edge)
			if lenSq == 0 {
				continue
			}

			// Foot of perpendicular, clamped to [0, 1] along the segment.
			t := p.Sub(a).Dot(edge) / lenSq
			t = math.Max(0, math.Min(1, t))
			closest := a.Add(edge.Scale(t))

			d := p.Sub(closest).Length()
			if d < best {
				best = d
				bestEdge = edge
				bestClosest = closest
			}
		}
	}

	if best == math.MaxFloat64 {
		return Vec2{}
	}

	n := bestEdge.Perp().Normalize()
	// p sits inside the obstacle, so the vector from the boundary to p points
	// inward. Flip the perpendicular onto the opposite side.
	if n.Dot(p.Sub(bestClosest)) > 0 {
		n = n.Scale(-1)
	}
	return n
}

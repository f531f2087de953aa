// Package interp estimates a scalar sensor quantity at arbitrary points from
// irregularly placed station readings, using inverse distance weighting.
package interp

import (
	"math"

	"github.com/couchcryptid/cityflow-precompute/internal/domain"
)

const (
	// DefaultPower is the IDW distance exponent.
	DefaultPower = 2.0

	// exactMatchEpsilon is the distance under which a query point is treated
	// as coincident with a station. Returning the station value directly both
	// avoids the 1/d^p blow-up and guarantees the interpolator reproduces
	// ground truth at sensor locations.
	exactMatchEpsilon = 1.0
)

// Interpolate estimates the value at p as the inverse-distance-weighted
// average of the station readings. Stations are never mutated. The second
// return value is false when there are no stations; callers that require a
// reading treat that as an error, the interpolator does not.
func Interpolate(p domain.Vec2, stations []domain.StationReading, power float64) (float64, bool) {
	if len(stations) == 0 {
		return 0, false
	}
	if power <= 0 {
		power = DefaultPower
	}

	var weightSum, weightedValueSum float64
	for _, s := range stations {
		d := p.Sub(s.Position).Length()
		if d < exactMatchEpsilon {
			return s.Value, true
		}
		w := 1 / math.Pow(d, power)
		weightSum += w
		weightedValueSum += w * s.Value
	}
	return weightedValueSum / weightSum, true
}

// Grid applies Interpolate at every cell center of a size×size grid over
// bounds and returns the values as rows south to north, columns west to
// east. It is a convenience wrapper with no semantics of its own; an empty
// station set yields a nil grid.
func Grid(bounds domain.Bounds, size int, stations []domain.StationReading, power float64) [][]float64 {
	if len(stations) == 0 || size <= 0 {
		return nil
	}

	cellW := bounds.Width() / float64(size)
	cellD := bounds.Depth() / float64(size)

	values := make([][]float64, size)
	for row := 0; row < size; row++ {
		values[row] = make([]float64, size)
		for col := 0; col < size; col++ {
			p := domain.Vec2{
				X: bounds.MinX + (float64(col)+0.5)*cellW,
				Z: bounds.MinZ + (float64(row)+0.5)*cellD,
			}
			v, _ := Interpolate(p, stations, power)
			values[row][col] = v
		}
	}
	return values
}

package flow

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cityflow-precompute/internal/domain"
)

func TestCompassRose(t *testing.T) {
	rose := CompassRose()
	require.Len(t, rose, 8)

	labels := make([]string, len(rose))
	for i, c := range rose {
		labels[i] = c.Label
		assert.InDelta(t, 1.0, c.Dir.Length(), 1e-9, "%s is a unit vector", c.Label)
	}
	assert.Equal(t, []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}, labels)

	assert.Equal(t, domain.Vec2{X: 0, Z: 1}, rose[0].Dir, "north points +z")
	assert.Equal(t, domain.Vec2{X: 1, Z: 0}, rose[2].Dir, "east points +x")
}

func TestSeeds(t *testing.T) {
	bounds := domain.Bounds{MinX: -100, MinZ: -100, MaxX: 100, MaxZ: 100}
	grid := GridConfig{Resolution: 4, HeightLayers: []float64{20, 55, 90}}

	t.Run("full enumeration without obstacles", func(t *testing.T) {
		seeds := Seeds(bounds, domain.NewObstacleIndex(nil), grid)
		assert.Len(t, seeds, 8*4*4*3)
	})

	t.Run("cells inside obstacles are skipped", func(t *testing.T) {
		// Covers exactly the cell centered at (-75, -75).
		obstacles := domain.NewObstacleIndex([]domain.Footprint{square(-75, -75, 20)})
		seeds := Seeds(bounds, obstacles, grid)
		assert.Len(t, seeds, 8*(4*4-1)*3)

		for _, s := range seeds {
			assert.False(t, obstacles.Contains(s.Position.Horizontal()))
		}
	})

	t.Run("positions sit at cell centers on each layer", func(t *testing.T) {
		seeds := Seeds(bounds, domain.NewObstacleIndex(nil), GridConfig{
			Resolution:   2,
			HeightLayers: []float64{20},
		})
		require.Len(t, seeds, 8*2*2)
		first := seeds[0]
		assert.Equal(t, domain.Point3{X: -50, Y: 20, Z: -50}, first.Position)
		assert.Equal(t, "N", first.Compass)
	})
}

func TestGenerateStreamlines(t *testing.T) {
	bounds := domain.Bounds{MinX: -200, MinZ: -200, MaxX: 200, MaxZ: 200}
	cfg := DefaultConfig()

	t.Run("open area keeps every long enough trace", func(t *testing.T) {
		grid := GridConfig{Resolution: 2, HeightLayers: []float64{20}, MinPoints: 5}
		lines := GenerateStreamlines(domain.NewObstacleIndex(nil), bounds, cfg, grid)

		assert.Len(t, lines, 8*2*2)
		for _, l := range lines {
			assert.GreaterOrEqual(t, len(l.Points), 5)
			assert.NotEmpty(t, l.Direction)
		}
	})

	t.Run("minimum length filter discards short traces", func(t *testing.T) {
		grid := GridConfig{Resolution: 2, HeightLayers: []float64{20}, MinPoints: 10000}
		lines := GenerateStreamlines(domain.NewObstacleIndex(nil), bounds, cfg, grid)
		assert.Empty(t, lines)
	})

	t.Run("trapped seeds are filtered out", func(t *testing.T) {
		// A single free cell center walled in on all four sides deadlocks
		// immediately and falls under the minimum length.
		pocket := domain.NewObstacleIndex([]domain.Footprint{
			square(30, 0, 25),
			square(-30, 0, 25),
			square(0, 30, 25),
			square(0, -30, 25),
		})
		small := domain.Bounds{MinX: -60, MinZ: -60, MaxX: 60, MaxZ: 60}
		grid := GridConfig{Resolution: 1, HeightLayers: []float64{20}, MinPoints: 15}

		lines := GenerateStreamlines(pocket, small, cfg, grid)
		assert.Empty(t, lines)
	})

	t.Run("streamlines avoid obstacles", func(t *testing.T) {
		obstacles := domain.NewObstacleIndex([]domain.Footprint{
			square(0, 0, 25),
			square(-90, 60, 20),
			square(80, -70, 15),
		})
		grid := GridConfig{Resolution: 6, HeightLayers: []float64{20, 55}, MinPoints: 15}

		lines := GenerateStreamlines(obstacles, bounds, cfg, grid)
		require.NotEmpty(t, lines)
		for _, l := range lines {
			for _, p := range l.Points {
				assert.False(t, obstacles.Contains(domain.Vec2{X: p[0], Z: p[2]}))
			}
		}
	})

	t.Run("identical inputs produce byte-identical output", func(t *testing.T) {
		obstacles := domain.NewObstacleIndex([]domain.Footprint{square(0, 0, 25)})
		run := func(workers int) []byte {
			grid := GridConfig{
				Resolution:      5,
				HeightLayers:    []float64{20, 55, 90},
				MinPoints:       15,
				Workers:         workers,
				JitterSeed:      99,
				JitterAmplitude: 2,
			}
			lines := GenerateStreamlines(obstacles, bounds, cfg, grid)
			data, err := json.Marshal(lines)
			require.NoError(t, err)
			return data
		}

		first := run(1)
		second := run(8)
		assert.Empty(t, cmp.Diff(string(first), string(second)))
	})
}

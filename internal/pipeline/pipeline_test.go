package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cityflow-precompute/internal/config"
	"github.com/couchcryptid/cityflow-precompute/internal/domain"
	"github.com/couchcryptid/cityflow-precompute/internal/observability"
	"github.com/couchcryptid/cityflow-precompute/internal/pipeline"
)

// --- mocks ---

type stubSource struct {
	areas []pipeline.AreaInput
	err   error
}

func (s *stubSource) Areas(_ context.Context) ([]pipeline.AreaInput, error) {
	return s.areas, s.err
}

type captureSink struct {
	streamlines []domain.StreamlineDocument
	grids       []domain.GridDocument
	err         error
}

func (c *captureSink) WriteStreamlines(_ context.Context, doc domain.StreamlineDocument) error {
	if c.err != nil {
		return c.err
	}
	c.streamlines = append(c.streamlines, doc)
	return nil
}

func (c *captureSink) WriteGrids(_ context.Context, docs []domain.GridDocument) error {
	if c.err != nil {
		return c.err
	}
	c.grids = append(c.grids, docs...)
	return nil
}

// --- fixtures ---

func testConfig() *config.Config {
	return &config.Config{
		Trace: config.TraceConfig{
			StepSize:        12,
			MaxSteps:        200,
			Margin:          50,
			YMin:            10,
			YMax:            100,
			JitterSeed:      7,
			JitterAmplitude: 2,
		},
		Grid: config.GridConfig{
			Resolution:   4,
			HeightLayers: []float64{20, 55},
			MinPoints:    15,
			Workers:      2,
		},
		Interp: config.InterpConfig{Power: 2, GridSize: 8},
	}
}

func testArea(areaID string) pipeline.AreaInput {
	x1, z1 := 800.0, -300.0
	x2, z2 := -1200.0, 900.0
	return pipeline.AreaInput{
		Buildings: domain.BuildingDocument{
			AreaID: areaID,
			Bounds: domain.GeoBounds{MinLat: 35.60, MinLng: 139.60, MaxLat: 35.70, MaxLng: 139.70},
			Buildings: []domain.Building{
				{Footprint: [][2]float64{{-100, -100}, {100, -100}, {100, 100}, {-100, 100}}, Height: 60},
				{Footprint: [][2]float64{{0, 0}, {1, 1}}}, // degenerate, skipped
			},
		},
		Stations: []domain.StationDocument{
			{
				AreaID:   areaID,
				Variable: "temperature",
				Stations: []domain.RawStation{
					{StationID: "st-1", X: &x1, Z: &z1, Value: 28.4},
					{StationID: "st-2", X: &x2, Z: &z2, Value: 26.9},
				},
			},
		},
	}
}

func newPipeline(src pipeline.AreaSource, sinks ...pipeline.ArtifactSink) *pipeline.Pipeline {
	return pipeline.New(src, sinks, slog.Default(), observability.NewMetricsForTesting(), testConfig())
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	sink := &captureSink{}
	p := newPipeline(&stubSource{areas: []pipeline.AreaInput{testArea("area-1")}}, sink)

	require.NoError(t, p.Run(context.Background()))

	require.Len(t, sink.streamlines, 1)
	doc := sink.streamlines[0]
	assert.Equal(t, "area-1", doc.AreaID)
	assert.Equal(t, len(doc.Streamlines), doc.StreamlineCount)
	assert.NotEmpty(t, doc.Streamlines)
	for _, l := range doc.Streamlines {
		assert.GreaterOrEqual(t, len(l.Points), 15)
	}

	require.Len(t, sink.grids, 1)
	grid := sink.grids[0]
	assert.Equal(t, "temperature", grid.Variable)
	assert.Equal(t, 8, grid.Size)
	require.Len(t, grid.Values, 8)
	for _, row := range grid.Values {
		require.Len(t, row, 8)
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 26.9)
			assert.LessOrEqual(t, v, 28.4)
		}
	}
}

func TestPipeline_Run_StreamlinesAvoidBuildings(t *testing.T) {
	sink := &captureSink{}
	area := testArea("area-1")
	p := newPipeline(&stubSource{areas: []pipeline.AreaInput{area}}, sink)

	require.NoError(t, p.Run(context.Background()))

	obstacles := domain.NewObstacleIndex(area.Buildings.Footprints())
	require.Len(t, sink.streamlines, 1)
	for _, l := range sink.streamlines[0].Streamlines {
		for _, pt := range l.Points {
			assert.False(t, obstacles.Contains(domain.Vec2{X: pt[0], Z: pt[2]}))
		}
	}
}

func TestPipeline_Run_MalformedAreaSkipped(t *testing.T) {
	bad := pipeline.AreaInput{Buildings: domain.BuildingDocument{AreaID: ""}}
	sink := &captureSink{}
	p := newPipeline(&stubSource{areas: []pipeline.AreaInput{bad, testArea("good")}}, sink)

	require.NoError(t, p.Run(context.Background()))

	// The malformed area is skipped, the good one still processed.
	require.Len(t, sink.streamlines, 1)
	assert.Equal(t, "good", sink.streamlines[0].AreaID)
}

func TestPipeline_Run_SourceError(t *testing.T) {
	p := newPipeline(&stubSource{err: errors.New("boom")})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list areas")
}

func TestPipeline_Run_SinkErrorFailsArea(t *testing.T) {
	sink := &captureSink{err: errors.New("disk full")}
	p := newPipeline(&stubSource{areas: []pipeline.AreaInput{testArea("area-1")}}, sink)

	// Sink failures are per-area: logged and counted, not fatal to the run.
	require.NoError(t, p.Run(context.Background()))
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPipeline(&stubSource{areas: []pipeline.AreaInput{testArea("area-1")}})
	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_CheckReadiness(t *testing.T) {
	sink := &captureSink{}
	p := newPipeline(&stubSource{areas: []pipeline.AreaInput{testArea("area-1")}}, sink)

	assert.Error(t, p.CheckReadiness(context.Background()))
	require.NoError(t, p.Run(context.Background()))
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_EmptyObstacleSet(t *testing.T) {
	area := testArea("open")
	area.Buildings.Buildings = nil
	sink := &captureSink{}
	p := newPipeline(&stubSource{areas: []pipeline.AreaInput{area}}, sink)

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, sink.streamlines, 1)
	assert.NotEmpty(t, sink.streamlines[0].Streamlines)
}

func TestPipeline_StationDocumentWithoutReadings(t *testing.T) {
	area := testArea("area-1")
	area.Stations = []domain.StationDocument{
		{AreaID: "area-1", Variable: "rainfall", Stations: []domain.RawStation{{StationID: "lost"}}},
	}
	sink := &captureSink{}
	p := newPipeline(&stubSource{areas: []pipeline.AreaInput{area}}, sink)

	require.NoError(t, p.Run(context.Background()))
	assert.Empty(t, sink.grids)
}

func TestPipeline_Idempotence(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	run := func() ([]byte, []byte) {
		sink := &captureSink{}
		p := newPipeline(&stubSource{areas: []pipeline.AreaInput{testArea("area-1")}}, sink)
		require.NoError(t, p.Run(context.Background()))

		lines, err := json.Marshal(sink.streamlines)
		require.NoError(t, err)
		grids, err := json.Marshal(sink.grids)
		require.NoError(t, err)
		return lines, grids
	}

	lines1, grids1 := run()
	lines2, grids2 := run()

	assert.Empty(t, cmp.Diff(string(lines1), string(lines2)))
	assert.Empty(t, cmp.Diff(string(grids1), string(grids2)))
}

func TestPipeline_FanOutToMultipleSinks(t *testing.T) {
	first := &captureSink{}
	second := &captureSink{}
	p := newPipeline(&stubSource{areas: []pipeline.AreaInput{testArea("area-1")}}, first, second)

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, first.streamlines, 1)
	require.Len(t, second.streamlines, 1)
	assert.Equal(t, first.streamlines[0].StreamlineCount, second.streamlines[0].StreamlineCount)
}

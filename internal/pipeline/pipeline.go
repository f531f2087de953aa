// Package pipeline orchestrates the per-area precompute: building documents
// in, streamline and grid documents out. The geometry work itself is pure;
// this package adds sourcing, sinking, logging, and metrics around it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/cityflow-precompute/internal/config"
	"github.com/couchcryptid/cityflow-precompute/internal/domain"
	"github.com/couchcryptid/cityflow-precompute/internal/flow"
	"github.com/couchcryptid/cityflow-precompute/internal/interp"
	"github.com/couchcryptid/cityflow-precompute/internal/observability"
)

// AreaInput bundles the input documents of one area: the building document
// plus any number of per-variable station documents.
type AreaInput struct {
	Buildings domain.BuildingDocument
	Stations  []domain.StationDocument
}

// AreaSource yields the areas to process, in a stable order.
type AreaSource interface {
	Areas(ctx context.Context) ([]AreaInput, error)
}

// ArtifactSink receives the artifacts of one processed area.
type ArtifactSink interface {
	WriteStreamlines(ctx context.Context, doc domain.StreamlineDocument) error
	WriteGrids(ctx context.Context, docs []domain.GridDocument) error
}

// Pipeline runs the precompute over every area an AreaSource provides and
// fans the artifacts out to its sinks.
type Pipeline struct {
	source  AreaSource
	sinks   []ArtifactSink
	logger  *slog.Logger
	metrics *observability.Metrics

	trace       flow.Config
	grid        flow.GridConfig
	interpPower float64
	interpSize  int

	ready atomic.Bool
}

// New creates a Pipeline wired to the given source and sinks, with tracer
// and interpolator parameters taken from cfg.
func New(source AreaSource, sinks []ArtifactSink, logger *slog.Logger, metrics *observability.Metrics, cfg *config.Config) *Pipeline {
	return &Pipeline{
		source:  source,
		sinks:   sinks,
		logger:  logger,
		metrics: metrics,
		trace: flow.Config{
			StepSize: cfg.Trace.StepSize,
			MaxSteps: cfg.Trace.MaxSteps,
			Margin:   cfg.Trace.Margin,
			YMin:     cfg.Trace.YMin,
			YMax:     cfg.Trace.YMax,
		},
		grid: flow.GridConfig{
			Resolution:      cfg.Grid.Resolution,
			HeightLayers:    cfg.Grid.HeightLayers,
			MinPoints:       cfg.Grid.MinPoints,
			Workers:         cfg.Grid.Workers,
			JitterSeed:      cfg.Trace.JitterSeed,
			JitterAmplitude: cfg.Trace.JitterAmplitude,
		},
		interpPower: cfg.Interp.Power,
		interpSize:  cfg.Interp.GridSize,
	}
}

// CheckReadiness returns nil once the pipeline has processed at least one
// area, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any areas yet")
	}
	return nil
}

// Run processes every area from the source. Per-area failures are logged
// and counted, never fatal; Run only returns an error when the source
// itself fails or the context is cancelled mid-batch.
func (p *Pipeline) Run(ctx context.Context) error {
	areas, err := p.source.Areas(ctx)
	if err != nil {
		return fmt.Errorf("list areas: %w", err)
	}

	p.logger.Info("pipeline started", "areas", len(areas))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for _, area := range areas {
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return ctx.Err()
		}

		if err := p.ProcessArea(ctx, area); err != nil {
			p.logger.Error("area failed, skipping",
				"area_id", area.Buildings.AreaID,
				"error", err,
			)
			p.metrics.AreasFailed.Inc()
			continue
		}
		p.metrics.AreasProcessed.Inc()
		p.ready.Store(true)
	}

	p.logger.Info("pipeline finished", "areas", len(areas))
	return nil
}

// ProcessArea runs the full precompute for a single area: derive the frame,
// build the obstacle index, trace the seed grid, interpolate one grid per
// station document, and write every artifact to every sink.
func (p *Pipeline) ProcessArea(ctx context.Context, area AreaInput) error {
	start := time.Now()

	if err := area.Buildings.Validate(); err != nil {
		return err
	}
	frame := area.Buildings.Frame()

	obstacles := domain.NewObstacleIndex(area.Buildings.Footprints())
	if skipped := obstacles.Skipped(); skipped > 0 {
		p.logger.Warn("degenerate footprints skipped",
			"area_id", area.Buildings.AreaID,
			"skipped", skipped,
		)
		p.metrics.FootprintsSkipped.Add(float64(skipped))
	}

	lineDoc := p.traceArea(area.Buildings.AreaID, obstacles, frame)
	gridDocs := p.interpolateArea(area, frame)

	for _, sink := range p.sinks {
		if err := sink.WriteStreamlines(ctx, lineDoc); err != nil {
			return fmt.Errorf("write streamlines: %w", err)
		}
		if err := sink.WriteGrids(ctx, gridDocs); err != nil {
			return fmt.Errorf("write grids: %w", err)
		}
	}

	p.metrics.AreaDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("area processed",
		"area_id", area.Buildings.AreaID,
		"footprints", obstacles.Len(),
		"streamlines", lineDoc.StreamlineCount,
		"grids", len(gridDocs),
		"duration", time.Since(start),
	)
	return nil
}

func (p *Pipeline) traceArea(areaID string, obstacles *domain.ObstacleIndex, frame domain.AreaFrame) domain.StreamlineDocument {
	seeds := flow.Seeds(frame.LocalBounds, obstacles, p.grid)
	enumerated := 8 * p.grid.Resolution * p.grid.Resolution * len(p.grid.HeightLayers)

	p.metrics.SeedsTraced.Add(float64(len(seeds)))
	p.metrics.SeedsSkipped.Add(float64(enumerated - len(seeds)))

	lines, discarded := flow.TraceAll(seeds, obstacles, frame.LocalBounds, p.trace, p.grid)
	p.metrics.StreamlinesKept.Add(float64(len(lines)))
	p.metrics.StreamlinesDiscarded.Add(float64(discarded))
	for _, l := range lines {
		p.metrics.StreamlinePoints.Observe(float64(len(l.Points)))
	}

	return domain.NewStreamlineDocument(areaID, lines)
}

func (p *Pipeline) interpolateArea(area AreaInput, frame domain.AreaFrame) []domain.GridDocument {
	docs := make([]domain.GridDocument, 0, len(area.Stations))
	for _, stationDoc := range area.Stations {
		readings, skipped := stationDoc.Resolve(frame)
		if skipped > 0 {
			p.logger.Warn("stations without position skipped",
				"area_id", area.Buildings.AreaID,
				"variable", stationDoc.Variable,
				"skipped", skipped,
			)
		}
		if len(readings) == 0 {
			p.logger.Warn("station document has no usable readings",
				"area_id", area.Buildings.AreaID,
				"variable", stationDoc.Variable,
			)
			continue
		}

		values := interp.Grid(frame.LocalBounds, p.interpSize, readings, p.interpPower)
		p.metrics.InterpQueries.Add(float64(p.interpSize * p.interpSize))
		p.metrics.GridsComputed.Inc()

		docs = append(docs, domain.NewGridDocument(
			area.Buildings.AreaID,
			stationDoc.Variable,
			p.interpSize,
			frame.LocalBounds,
			values,
		))
	}
	return docs
}

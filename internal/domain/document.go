package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Building is one entry of a building document: a ground footprint as
// [x, z] pairs plus a height consumed only by the rendering layer.
type Building struct {
	Footprint [][2]float64 `json:"footprint"`
	Height    float64      `json:"height,omitempty"`
}

// BuildingDocument is the per-area input produced by the footprint
// acquisition layer: the area's authoritative geographic bounds and its
// building footprints, already projected into the local frame derived from
// those bounds.
type BuildingDocument struct {
	AreaID    string     `json:"areaId"`
	Bounds    GeoBounds  `json:"bounds"`
	Scale     float64    `json:"scale,omitempty"`
	Buildings []Building `json:"buildings"`
}

// ParseBuildingDocument deserializes and validates a building document.
func ParseBuildingDocument(data []byte) (BuildingDocument, error) {
	var doc BuildingDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return BuildingDocument{}, fmt.Errorf("parse building document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return BuildingDocument{}, err
	}
	return doc, nil
}

// Validate checks the document-level contract. Per-record anomalies
// (degenerate footprints) are not errors; they are skipped downstream.
func (d BuildingDocument) Validate() error {
	if d.AreaID == "" {
		return errors.New("building document: missing areaId")
	}
	if d.Bounds.MaxLat <= d.Bounds.MinLat || d.Bounds.MaxLng <= d.Bounds.MinLng {
		return fmt.Errorf("building document %s: degenerate bounds", d.AreaID)
	}
	return nil
}

// Frame derives the area's one authoritative frame from the document bounds.
func (d BuildingDocument) Frame() AreaFrame {
	return NewAreaFrame(d.Bounds, d.Scale)
}

// Footprints converts the document buildings to rings for the obstacle index.
func (d BuildingDocument) Footprints() []Footprint {
	fps := make([]Footprint, 0, len(d.Buildings))
	for _, b := range d.Buildings {
		ring := make(Footprint, len(b.Footprint))
		for i, p := range b.Footprint {
			ring[i] = Vec2{X: p[0], Z: p[1]}
		}
		fps = append(fps, ring)
	}
	return fps
}

// RawStation is one sensor row of a station document. Position is either
// geographic (lat/lng, projected under the area frame at resolve time) or
// already local (x/z). Pointer fields distinguish absent from zero.
type RawStation struct {
	StationID string   `json:"stationId"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	X         *float64 `json:"x,omitempty"`
	Z         *float64 `json:"z,omitempty"`
	Value     float64  `json:"value"`
}

// StationDocument is the scattered readings of one environmental variable
// (temperature, wind speed, rainfall, pm25, ...) at one instant.
type StationDocument struct {
	AreaID   string       `json:"areaId"`
	Variable string       `json:"variable"`
	Stations []RawStation `json:"stations"`
}

// ParseStationDocument deserializes and validates a station document.
func ParseStationDocument(data []byte) (StationDocument, error) {
	var doc StationDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return StationDocument{}, fmt.Errorf("parse station document: %w", err)
	}
	if doc.AreaID == "" {
		return StationDocument{}, errors.New("station document: missing areaId")
	}
	if doc.Variable == "" {
		return StationDocument{}, fmt.Errorf("station document %s: missing variable", doc.AreaID)
	}
	return doc, nil
}

// StationReading is a resolved sensor sample in the area's local frame.
// The interpolator never mutates these.
type StationReading struct {
	StationID string
	Position  Vec2
	Value     float64
}

// Resolve converts raw stations to local readings under the given frame.
// Local x/z takes precedence over lat/lng when both are present. Rows with
// no position at all are dropped; the second return value counts them.
func (d StationDocument) Resolve(frame AreaFrame) ([]StationReading, int) {
	readings := make([]StationReading, 0, len(d.Stations))
	skipped := 0
	for _, s := range d.Stations {
		var pos Vec2
		switch {
		case s.X != nil && s.Z != nil:
			pos = Vec2{X: *s.X, Z: *s.Z}
		case s.Lat != nil && s.Lng != nil:
			pos = frame.Project(*s.Lat, *s.Lng)
		default:
			skipped++
			continue
		}
		readings = append(readings, StationReading{
			StationID: s.StationID,
			Position:  pos,
			Value:     s.Value,
		})
	}
	return readings, skipped
}

// Streamline is one traced flow path, grouped by the compass label of its
// seed direction. Points are [x, y, z] triples.
type Streamline struct {
	Direction string       `json:"direction"`
	Points    [][3]float64 `json:"points"`
}

// NewStreamline converts traced vertices into the document shape.
func NewStreamline(direction string, points []Point3) Streamline {
	triples := make([][3]float64, len(points))
	for i, p := range points {
		triples[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return Streamline{Direction: direction, Points: triples}
}

// StreamlineDocument is the per-area streamline artifact consumed by the
// rendering layer.
type StreamlineDocument struct {
	AreaID          string       `json:"areaId"`
	GeneratedAt     time.Time    `json:"generatedAt"`
	StreamlineCount int          `json:"streamlineCount"`
	Streamlines     []Streamline `json:"streamlines"`
}

// NewStreamlineDocument assembles the artifact and stamps the package clock.
func NewStreamlineDocument(areaID string, lines []Streamline) StreamlineDocument {
	return StreamlineDocument{
		AreaID:          areaID,
		GeneratedAt:     clock.Now().UTC(),
		StreamlineCount: len(lines),
		Streamlines:     lines,
	}
}

// GridDocument is a size×size interpolated scalar field over explicit local
// bounds, one per station document variable.
type GridDocument struct {
	AreaID      string      `json:"areaId"`
	Variable    string      `json:"variable"`
	Size        int         `json:"size"`
	Bounds      Bounds      `json:"bounds"`
	Values      [][]float64 `json:"values"`
	GeneratedAt time.Time   `json:"generatedAt"`
}

// NewGridDocument assembles the artifact and stamps the package clock.
func NewGridDocument(areaID, variable string, size int, bounds Bounds, values [][]float64) GridDocument {
	return GridDocument{
		AreaID:      areaID,
		Variable:    variable,
		Size:        size,
		Bounds:      bounds,
		Values:      values,
		GeneratedAt: clock.Now().UTC(),
	}
}

package domain

import "math"

// MetersPerDegree is the planar approximation of one degree of latitude at
// city scale. It doubles as the default longitude scale; the error this
// introduces away from the equator is acceptable for sub-areas a few
// kilometers across.
const MetersPerDegree = 111000.0

// Vec2 is a point or direction in the local horizontal plane (x east, z north).
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Z - o.Z} }

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Z * s} }

// Dot returns the dot product of v and o.
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Z*o.Z }

// Length returns the Euclidean length of v.
func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Z) }

// Normalize returns v scaled to unit length, or the zero vector if v has no
// length.
func (v Vec2) Normalize() Vec2 {
	l := v.Length()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Z / l}
}

// Perp returns v rotated 90° counterclockwise (viewed with x east, z north).
func (v Vec2) Perp() Vec2 { return Vec2{-v.Z, v.X} }

// Point3 is a streamline vertex: horizontal position plus height layer.
type Point3 struct {
	X float64
	Y float64
	Z float64
}

// Horizontal returns the 2D projection used for containment tests.
func (p Point3) Horizontal() Vec2 { return Vec2{p.X, p.Z} }

// Bounds is an axis-aligned rectangle in local coordinates.
type Bounds struct {
	MinX float64 `json:"minX"`
	MinZ float64 `json:"minZ"`
	MaxX float64 `json:"maxX"`
	MaxZ float64 `json:"maxZ"`
}

// Width returns the x extent.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Depth returns the z extent.
func (b Bounds) Depth() float64 { return b.MaxZ - b.MinZ }

// Contains reports whether p lies inside b, with the rectangle grown by
// margin on every side. A negative margin shrinks it.
func (b Bounds) Contains(p Vec2, margin float64) bool {
	return p.X >= b.MinX-margin && p.X <= b.MaxX+margin &&
		p.Z >= b.MinZ-margin && p.Z <= b.MaxZ+margin
}

// GeoBounds is the authoritative geographic bounding rectangle of one area,
// as recorded by whichever upstream step fetched or rendered it.
type GeoBounds struct {
	MinLat float64 `json:"minLat"`
	MinLng float64 `json:"minLng"`
	MaxLat float64 `json:"maxLat"`
	MaxLng float64 `json:"maxLng"`
}

// AreaFrame is the shared local coordinate frame of one geographic sub-area:
// a single reference origin, a meters-per-degree scale, and the local bounds
// of everything projected under it. All artifacts of one area must be
// produced under the same frame (see the package documentation).
type AreaFrame struct {
	OriginLat   float64 `json:"originLat"`
	OriginLng   float64 `json:"originLng"`
	Scale       float64 `json:"scale"`
	LocalBounds Bounds  `json:"localBounds"`
}

// NewAreaFrame derives the frame for an area from its authoritative
// geographic bounds. The origin is the midpoint of that rectangle; the local
// bounds are the rectangle's own projection, so they are symmetric about
// (0, 0).
func NewAreaFrame(geo GeoBounds, scale float64) AreaFrame {
	if scale == 0 {
		scale = MetersPerDegree
	}
	f := AreaFrame{
		OriginLat: (geo.MinLat + geo.MaxLat) / 2,
		OriginLng: (geo.MinLng + geo.MaxLng) / 2,
		Scale:     scale,
	}
	min := f.Project(geo.MinLat, geo.MinLng)
	max := f.Project(geo.MaxLat, geo.MaxLng)
	f.LocalBounds = Bounds{MinX: min.X, MinZ: min.Z, MaxX: max.X, MaxZ: max.Z}
	return f
}

// Project converts a geographic coordinate to the frame's local plane.
func (f AreaFrame) Project(lat, lng float64) Vec2 {
	return Vec2{
		X: (lng - f.OriginLng) * f.Scale,
		Z: (lat - f.OriginLat) * f.Scale,
	}
}

// Package domain models the geometry and artifact documents of the cityflow
// precompute pipeline.
//
// # Coordinate Conventions
//
// Every artifact of one geographic sub-area lives in that area's local planar
// frame. The frame is an equirectangular approximation, valid at city scale:
//
//	x = (lng - originLng) * scale
//	z = (lat - originLat) * scale
//
// with scale in meters per degree (~111000). Positive x is east, positive z
// is north. The y axis carries height above ground and never participates in
// 2D containment tests.
//
// The frame origin is the midpoint of the single authoritative bounding
// rectangle recorded in the area's building document — not the centroid of
// the raw polygon geometry, and not a bounding box recomputed by a later
// step. Two artifacts projected under different origins for the "same" area
// misalign silently even though each is individually correct, so the frame
// is constructed once by [NewAreaFrame] and passed everywhere.
//
// # Footprints
//
// A building footprint is an ordered, implicitly closed ring of local (x, z)
// points. Rings with fewer than three distinct points and zero-length edges
// are degenerate input: they are skipped, never an error. Point-in-polygon
// containment uses the even-odd ray cast with a half-open edge rule
// ((zi > z) != (zj > z)), which makes the on-edge tie-break deterministic
// across reruns.
//
// # Documents
//
// Documents are the plain JSON shapes exchanged with the surrounding layers:
// building and station documents in, streamline and grid documents out. The
// precompute core holds no state across runs; documents are read once before
// and written once after the pure computation.
package domain

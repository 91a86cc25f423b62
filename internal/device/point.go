// Package device resolves the physical geometry of a tractor-implement
// assembly from the ISO 11783 device description graph. The output is a
// list of geometry records, one per instrumented attachment point, each
// describing that point's kinematic relationship to the GNSS antenna.
package device

import (
	"math"

	"github.com/fieldtrace/isoxml-convert/internal/timelog"
)

// Point3 is an offset in a vehicle's local frame, metres, ENU sign
// convention: +x forward, +y left, +z up. An axis either holds a constant
// or carries a Ref into the decoded process data channels; when a Ref is
// present it overrides the constant at evaluation time. Arithmetic operates
// on the constants only and is valid once all refs have been resolved for a
// given sample.
type Point3 struct {
	X, Y, Z float64

	XRef, YRef, ZRef *timelog.Ref
}

// Add returns p + q, component-wise.
func (p Point3) Add(q Point3) Point3 {
	return Point3{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns p - q, component-wise.
func (p Point3) Sub(q Point3) Point3 {
	return Point3{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Dot returns the dot product of p and q.
func (p Point3) Dot(q Point3) float64 {
	return p.X*q.X + p.Y*q.Y + p.Z*q.Z
}

// RotateZ rotates p about the vertical axis by theta radians,
// counter-clockwise.
func (p Point3) RotateZ(theta float64) Point3 {
	sin, cos := math.Sincos(theta)
	return Point3{
		X: p.X*cos - p.Y*sin,
		Y: p.X*sin + p.Y*cos,
		Z: p.Z,
	}
}

// IsZero reports whether every axis is the constant 0 with no channel ref.
func (p Point3) IsZero() bool {
	return p.X == 0 && p.Y == 0 && p.Z == 0 &&
		p.XRef == nil && p.YRef == nil && p.ZRef == nil
}

// Package motion turns raw tri-axial accelerometer observations into
// canonical samples tagged with the current PK.
//
// Axis convention: x is longitudinal, y is lateral (transversal, the alerting
// signal) and z is vertical. All values are in m/s².
package motion

import (
	"encoding/json"
	"math"
	"time"
)

// Sample is one canonical accelerometer measurement. Magnitude is derived from
// the three axes by NewSample and again on JSON decode, so it can never drift
// from sqrt(x²+y²+z²).
type Sample struct {
	Timestamp int64    `json:"timestamp"` // unix milliseconds
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Z         float64  `json:"z"`
	Magnitude float64  `json:"magnitude"`
	Position  *float64 `json:"pk,omitempty"`
}

// NewSample builds a sample and computes its magnitude.
func NewSample(ts int64, x, y, z float64, pos *float64) Sample {
	return Sample{
		Timestamp: ts,
		X:         x,
		Y:         y,
		Z:         z,
		Magnitude: Magnitude(x, y, z),
		Position:  pos,
	}
}

// Magnitude returns the Euclidean norm of the acceleration vector.
func Magnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

// Lateral returns |y|.
func (s Sample) Lateral() float64 { return math.Abs(s.Y) }

// Vertical returns |z|.
func (s Sample) Vertical() float64 { return math.Abs(s.Z) }

// Time returns the sample timestamp as a UTC time.
func (s Sample) Time() time.Time { return time.UnixMilli(s.Timestamp).UTC() }

// PositionOr returns the sample PK or fallback when the sample is untagged.
func (s Sample) PositionOr(fallback float64) float64 {
	if s.Position == nil {
		return fallback
	}
	return *s.Position
}

// UnmarshalJSON decodes a sample and recomputes its magnitude.
func (s *Sample) UnmarshalJSON(data []byte) error {
	type plain Sample
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Sample(p)
	s.Magnitude = Magnitude(s.X, s.Y, s.Z)
	return nil
}

// Float returns a pointer to v, for optional sample fields.
func Float(v float64) *float64 { return &v }

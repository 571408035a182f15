package motion

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSample is returned for a raw observation with a missing or
// non-finite axis component.
var ErrInvalidSample = errors.New("invalid motion sample")

// RawMotion is an observation as delivered by the accelerometer collaborator.
// A nil axis means the device did not report that component.
type RawMotion struct {
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
	Z         *float64 `json:"z"`
	Timestamp int64    `json:"timestamp"`
}

// Raw builds a fully populated RawMotion.
func Raw(ts int64, x, y, z float64) RawMotion {
	return RawMotion{X: &x, Y: &y, Z: &z, Timestamp: ts}
}

// PositionSource reports the current PK.
type PositionSource interface {
	Position() float64
}

// Sampler validates raw observations and tags them with the current PK.
type Sampler struct {
	pos PositionSource
}

// NewSampler returns a Sampler reading positions from pos.
func NewSampler(pos PositionSource) *Sampler {
	return &Sampler{pos: pos}
}

// OnRawMotion converts raw into a canonical Sample. Only missing or
// non-finite axes are rejected; out-of-range physical values are kept as-is.
func (s *Sampler) OnRawMotion(raw RawMotion) (Sample, error) {
	axes := []struct {
		name string
		v    *float64
	}{{"x", raw.X}, {"y", raw.Y}, {"z", raw.Z}}
	for _, a := range axes {
		if a.v == nil {
			return Sample{}, fmt.Errorf("%w: missing %s axis", ErrInvalidSample, a.name)
		}
		if math.IsNaN(*a.v) || math.IsInf(*a.v, 0) {
			return Sample{}, fmt.Errorf("%w: non-finite %s axis", ErrInvalidSample, a.name)
		}
	}
	pos := s.pos.Position()
	return NewSample(raw.Timestamp, *raw.X, *raw.Y, *raw.Z, &pos), nil
}

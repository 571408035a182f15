// Package position dead-reckons the kilometric point (PK) of the vehicle from
// the most recent speed observation.
//
// Position is not a fused estimate: speed arrives from a slower, independent
// source and is reused for every motion step until it is refreshed, so error
// accumulates when speed updates are sparse. Resync is the only correction.
package position

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/track.monitor/internal/units"
)

// Direction is the sense in which PK values evolve along the route.
type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
)

// ParseDirection accepts the canonical names as well as the French field
// labels (croissant/decroissant) found in exported session files.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "increasing", "croissant", "+":
		return Increasing, nil
	case "decreasing", "decroissant", "décroissant", "-":
		return Decreasing, nil
	default:
		return "", fmt.Errorf("unknown PK direction %q", s)
	}
}

// Sign returns +1 for Increasing and -1 for Decreasing.
func (d Direction) Sign() float64 {
	if d == Decreasing {
		return -1
	}
	return 1
}

// Tracker integrates speed over elapsed time into a running PK. It is not
// safe for concurrent use; the session store serialises access.
type Tracker struct {
	position float64
}

// NewTracker returns a tracker positioned at initial.
func NewTracker(initial float64) *Tracker {
	return &Tracker{position: initial}
}

// Reset positions the tracker at initial.
func (t *Tracker) Reset(initial float64) {
	t.position = initial
}

// Integrate advances the position by speedMPS*elapsedSeconds metres in the
// given direction and returns the new position. A non-positive elapsed time,
// a negative speed or a non-finite input leaves the position unchanged.
func (t *Tracker) Integrate(speedMPS, elapsedSeconds float64, dir Direction) float64 {
	if !(elapsedSeconds > 0) || !(speedMPS >= 0) || math.IsInf(speedMPS, 0) || math.IsInf(elapsedSeconds, 0) {
		return t.position
	}
	metres := speedMPS * elapsedSeconds
	t.position += dir.Sign() * units.MetresToRoute(metres)
	return t.position
}

// Resync overwrites the position with a ground-truth value.
func (t *Tracker) Resync(explicit float64) {
	t.position = explicit
}

// Position returns the current PK.
func (t *Tracker) Position() float64 {
	return t.position
}

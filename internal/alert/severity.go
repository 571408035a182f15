// Package alert classifies lateral acceleration against the LA/LI/LAI
// thresholds and emits debounced, device-independent alert events.
package alert

import (
	"fmt"
	"math"
	"strings"
)

// Severity is the outcome of classifying one sample.
type Severity int

const (
	None Severity = iota
	LA            // alerte
	LI            // intervention
	LAI           // action immédiate
)

func (s Severity) String() string {
	switch s {
	case LA:
		return "LA"
	case LI:
		return "LI"
	case LAI:
		return "LAI"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "LA":
		*s = LA
	case "LI":
		*s = LI
	case "LAI":
		*s = LAI
	case "NONE", "":
		*s = None
	default:
		return fmt.Errorf("unknown severity %q", string(b))
	}
	return nil
}

// Thresholds are the three ascending lateral limits in m/s².
type Thresholds struct {
	LA  float64 `json:"threshold_la"`
	LI  float64 `json:"threshold_li"`
	LAI float64 `json:"threshold_lai"`
}

// DefaultThresholds returns the reference limits 1.2 / 2.2 / 2.8 m/s².
func DefaultThresholds() Thresholds {
	return Thresholds{LA: 1.2, LI: 2.2, LAI: 2.8}
}

// IsZero reports whether no threshold has been set.
func (t Thresholds) IsZero() bool {
	return t.LA == 0 && t.LI == 0 && t.LAI == 0
}

// Validate checks 0 < LA < LI < LAI.
func (t Thresholds) Validate() error {
	if !(t.LA > 0) {
		return fmt.Errorf("threshold LA must be positive, got %v", t.LA)
	}
	if !(t.LA < t.LI && t.LI < t.LAI) {
		return fmt.Errorf("thresholds must satisfy LA < LI < LAI, got %v / %v / %v", t.LA, t.LI, t.LAI)
	}
	return nil
}

// Classify maps a lateral acceleration to a severity, testing the highest
// threshold first.
func (t Thresholds) Classify(lateral float64) Severity {
	a := math.Abs(lateral)
	switch {
	case a >= t.LAI:
		return LAI
	case a >= t.LI:
		return LI
	case a >= t.LA:
		return LA
	default:
		return None
	}
}

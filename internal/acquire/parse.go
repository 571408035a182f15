// Package acquire turns lines from the sensor ports into observations for the
// session store.
//
// Accelerometer lines are "ACC,<unix_ms>,<x>,<y>,<z>" records or JSON objects
// {"ts":..,"x":..,"y":..,"z":..}. Speed comes from NMEA RMC (knots) and VTG
// (km/h) sentences; GGA sentences update the reported HDOP.
package acquire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/banshee-data/track.monitor/internal/session"
	"github.com/banshee-data/track.monitor/internal/units"
)

var (
	ErrChecksum    = errors.New("nmea checksum mismatch")
	ErrNoFix       = errors.New("nmea sentence without a valid fix")
	ErrUnsupported = errors.New("unsupported line")
)

// ParseMotion decodes an accelerometer line. A missing or blank axis yields
// a RawMotion with a nil component, which the sampler rejects. A zero
// timestamp is left for the caller to fill in.
func ParseMotion(line string) (motion.RawMotion, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		var v struct {
			TS int64    `json:"ts"`
			X  *float64 `json:"x"`
			Y  *float64 `json:"y"`
			Z  *float64 `json:"z"`
		}
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			return motion.RawMotion{}, fmt.Errorf("%w: %v", motion.ErrInvalidSample, err)
		}
		return motion.RawMotion{X: v.X, Y: v.Y, Z: v.Z, Timestamp: v.TS}, nil
	}

	fields := strings.Split(line, ",")
	if len(fields) == 0 || fields[0] != "ACC" {
		return motion.RawMotion{}, fmt.Errorf("%w: %q", ErrUnsupported, line)
	}
	fields = append(fields, make([]string, max(0, 5-len(fields)))...)

	var raw motion.RawMotion
	if ts := strings.TrimSpace(fields[1]); ts != "" {
		v, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return motion.RawMotion{}, fmt.Errorf("%w: bad timestamp %q", motion.ErrInvalidSample, ts)
		}
		raw.Timestamp = v
	}
	raw.X = axis(fields[2])
	raw.Y = axis(fields[3])
	raw.Z = axis(fields[4])
	return raw, nil
}

// axis parses one component; blanks and garbage read as missing.
func axis(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

// Sentence is a checksum-verified NMEA sentence.
type Sentence struct {
	Type   string // e.g. "RMC", talker stripped
	Fields []string
}

// ParseNMEA verifies the optional checksum and splits the sentence.
func ParseNMEA(line string) (Sentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Sentence{}, fmt.Errorf("%w: %q", ErrUnsupported, line)
	}
	body := line[1:]
	if i := strings.LastIndexByte(body, '*'); i >= 0 {
		want, err := strconv.ParseUint(body[i+1:], 16, 8)
		if err != nil {
			return Sentence{}, fmt.Errorf("%w: %q", ErrChecksum, line)
		}
		body = body[:i]
		var sum byte
		for j := 0; j < len(body); j++ {
			sum ^= body[j]
		}
		if sum != byte(want) {
			return Sentence{}, fmt.Errorf("%w: got %02X want %02X", ErrChecksum, sum, want)
		}
	}
	fields := strings.Split(body, ",")
	if len(fields[0]) < 5 {
		return Sentence{}, fmt.Errorf("%w: %q", ErrUnsupported, line)
	}
	return Sentence{Type: fields[0][2:], Fields: fields[1:]}, nil
}

// SpeedFromNMEA extracts a speed observation from an RMC or VTG sentence.
func SpeedFromNMEA(s Sentence) (session.SpeedObservation, error) {
	field := func(i int) string {
		if i < len(s.Fields) {
			return strings.TrimSpace(s.Fields[i])
		}
		return ""
	}
	switch s.Type {
	case "RMC":
		if field(1) != "A" {
			return session.SpeedObservation{}, ErrNoFix
		}
		knots, err := strconv.ParseFloat(field(6), 64)
		if err != nil {
			return session.SpeedObservation{}, fmt.Errorf("%w: speed %q", ErrNoFix, field(6))
		}
		return session.SpeedObservation{Speed: units.KnotsToMPS(knots), Units: units.MPS}, nil
	case "VTG":
		// NMEA 2.3 appends a mode indicator; N means not valid.
		if field(8) == "N" {
			return session.SpeedObservation{}, ErrNoFix
		}
		kmh, err := strconv.ParseFloat(field(6), 64)
		if err != nil {
			return session.SpeedObservation{}, fmt.Errorf("%w: speed %q", ErrNoFix, field(6))
		}
		return session.SpeedObservation{Speed: kmh, Units: units.KMPH}, nil
	}
	return session.SpeedObservation{}, fmt.Errorf("%w: %s", ErrUnsupported, s.Type)
}

// HDOPFromGGA returns the horizontal dilution of precision of a GGA sentence.
func HDOPFromGGA(s Sentence) (float64, bool) {
	if s.Type != "GGA" || len(s.Fields) < 8 || s.Fields[5] == "0" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s.Fields[7], 64)
	return v, err == nil
}

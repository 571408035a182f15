// Package codec reads and writes the tabular session format:
//
//	timestamp,position,x,y,z,magnitude
//
// one header row followed by one row per sample. Timestamps are integer unix
// milliseconds; every other numeric field is written with Precision decimals.
package codec

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// Errors reported by Import.
var (
	ErrMalformedRow   = errors.New("malformed row")
	ErrEmptyImport    = errors.New("import produced no valid samples")
	ErrUnmappedAxis   = errors.New("required column not found in header")
	ErrUnknownMapping = errors.New("unknown column mapping")
)

// Mode selects how columns are located.
type Mode string

const (
	// ModeFixed uses the column order written by Export.
	ModeFixed Mode = "fixed"
	// ModeHeader looks columns up by name in the header row.
	ModeHeader Mode = "header"
)

// ParseMode accepts "fixed", "header" or "" (fixed).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFixed:
		return ModeFixed, nil
	case ModeHeader:
		return ModeHeader, nil
	}
	return "", fmt.Errorf("%w %q (want fixed or header)", ErrUnknownMapping, s)
}

// Absent marks a column that is not present in the file.
const Absent = -1

// ColumnMapping gives the zero-based index of each column. Y and Z are
// required; a missing timestamp column yields synthetic SyntheticStep spacing
// and a missing position column leaves samples untagged.
type ColumnMapping struct {
	Mode      Mode `json:"mode"`
	Timestamp int  `json:"timestamp"`
	Position  int  `json:"position"`
	X         int  `json:"x"`
	Y         int  `json:"y"`
	Z         int  `json:"z"`

	// TimestampUnit is "s", "us" or "ns" when the timestamp column is not in
	// milliseconds. Header mode takes it from the column name suffix.
	TimestampUnit string `json:"timestamp_unit,omitempty"`
}

// FixedMapping matches the Export layout.
func FixedMapping() ColumnMapping {
	return ColumnMapping{Mode: ModeFixed, Timestamp: 0, Position: 1, X: 2, Y: 3, Z: 4}
}

// MappingFor returns the mapping for mode. Header mappings are resolved
// against the first row by Import.
func MappingFor(mode Mode) ColumnMapping {
	if mode == ModeHeader {
		return ColumnMapping{Mode: ModeHeader, Timestamp: Absent, Position: Absent, X: Absent, Y: Absent, Z: Absent}
	}
	return FixedMapping()
}

// header aliases, matched after lower-casing and trimming. Names in
// contains are also matched as substrings (e.g. "PK (km)", "gamma_atc").
var aliases = []struct {
	field    func(*ColumnMapping) *int
	exact    []string
	contains []string
}{
	{func(m *ColumnMapping) *int { return &m.Timestamp }, []string{
		"timestamp", "time", "ts", "t",
		"timestamp_ms", "time_ms", "timestamp_s", "time_s",
		"timestamp_us", "time_us", "timestamp_ns", "time_ns",
	}, nil},
	{func(m *ColumnMapping) *int { return &m.Position }, []string{"position", "pos"}, []string{"pk"}},
	{func(m *ColumnMapping) *int { return &m.X }, axisNames("x", "longitudinal"), nil},
	{func(m *ColumnMapping) *int { return &m.Y }, axisNames("y", "lateral", "transversal"), []string{"atc"}},
	{func(m *ColumnMapping) *int { return &m.Z }, axisNames("z", "vertical"), []string{"avc"}},
}

// axisNames lists the accelerometer spellings of an axis, e.g. "y", "gy",
// "ay", "acc_y", "accel_y", "acceleration_y".
func axisNames(axis string, extra ...string) []string {
	names := []string{axis, "g" + axis, "a" + axis, "acc" + axis}
	for _, p := range []string{"acc_", "accel_", "acceleration_", "gamma_"} {
		names = append(names, p+axis)
	}
	return append(names, extra...)
}

// timestampUnits maps a timestamp column suffix to its unit.
var timestampUnits = map[string]string{"_s": "s", "_us": "us", "_ns": "ns"}

// Resolve fills in a header mapping from the header row. A fixed mapping is
// returned unchanged.
func (m ColumnMapping) Resolve(header []string) (ColumnMapping, error) {
	if m.Mode != ModeHeader {
		return m, nil
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	for _, a := range aliases {
		idx := a.field(&m)
		*idx = Absent
		for i, n := range names {
			if slices.Contains(a.exact, n) {
				*idx = i
				break
			}
		}
		if *idx != Absent {
			continue
		}
		for i, n := range names {
			if slices.ContainsFunc(a.contains, func(c string) bool { return strings.Contains(n, c) }) {
				*idx = i
				break
			}
		}
	}
	m.TimestampUnit = ""
	if m.Timestamp != Absent {
		for suffix, unit := range timestampUnits {
			if strings.HasSuffix(names[m.Timestamp], suffix) {
				m.TimestampUnit = unit
			}
		}
	}
	if m.Y == Absent || m.Z == Absent {
		return m, fmt.Errorf("%w: need y/atc and z/avc in %q", ErrUnmappedAxis, header)
	}
	return m, nil
}

// millis converts a raw timestamp cell to unix milliseconds.
func (m ColumnMapping) millis(v float64) int64 {
	switch m.TimestampUnit {
	case "s":
		return int64(math.Round(v * 1000))
	case "us":
		return int64(math.Round(v / 1e3))
	case "ns":
		return int64(math.Round(v / 1e6))
	}
	return int64(v)
}

// width is the minimum number of cells a data row must have.
func (m ColumnMapping) width() int {
	return max(m.Timestamp, m.Position, m.X, m.Y, m.Z) + 1
}

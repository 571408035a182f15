package serialmux

import "strings"

// LineKind classifies a line read from a sensor port.
type LineKind string

const (
	LineMotion  LineKind = "motion"
	LineNMEA    LineKind = "nmea"
	LineConfig  LineKind = "config"
	LineUnknown LineKind = "unknown"
)

// ClassifyLine inspects a line and returns its kind. Accelerometer lines are
// either "ACC,..." records or JSON objects carrying axis keys; other JSON
// objects are device configuration replies.
func ClassifyLine(line string) LineKind {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "$"):
		return LineNMEA
	case strings.HasPrefix(line, "ACC,"):
		return LineMotion
	case strings.HasPrefix(line, "{"):
		if strings.Contains(line, `"x"`) && strings.Contains(line, `"y"`) {
			return LineMotion
		}
		return LineConfig
	}
	return LineUnknown
}

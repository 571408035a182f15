package diagnosis

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/banshee-data/track.monitor/internal/stats"
)

// MaxPeaks and MaxRegular bound the two halves of the selected sample set.
const (
	MaxPeaks   = 50
	MaxRegular = 50
)

// Point is one sample as sent for diagnosis.
type Point struct {
	Timestamp int64  `json:"timestamp"`
	Position  string `json:"pk"`
	Lateral   string `json:"y"`
	Vertical  string `json:"z"`
}

// Request describes one recorded run.
type Request struct {
	RecordID   string           `json:"record_id"`
	Line       string           `json:"line"`
	Track      string           `json:"track"`
	Train      string           `json:"train"`
	Direction  string           `json:"direction"`
	Thresholds alert.Thresholds `json:"thresholds"`
	Summary    stats.Summary    `json:"stats"`
	Points     []Point          `json:"points"`
}

// NewRequest builds a request from a record's metadata and samples. It fails
// with ErrTooFewSamples when fewer than MinSamples samples are available.
func NewRequest(id string, meta Request, samples []motion.Sample) (Request, error) {
	if len(samples) < MinSamples {
		return Request{}, fmt.Errorf("%w: %d < %d", ErrTooFewSamples, len(samples), MinSamples)
	}
	meta.RecordID = id
	selected := SelectSamples(samples, meta.Thresholds.LA)
	meta.Points = make([]Point, len(selected))
	for i, s := range selected {
		meta.Points[i] = Point{
			Timestamp: s.Timestamp,
			Lateral:   strconv.FormatFloat(s.Y, 'f', 3, 64),
			Vertical:  strconv.FormatFloat(s.Z, 'f', 3, 64),
		}
		if s.Position != nil {
			meta.Points[i].Position = strconv.FormatFloat(*s.Position, 'f', 4, 64)
		}
	}
	return meta, nil
}

// SelectSamples returns the last MaxPeaks samples whose |y| or |z| exceeds
// peak, merged with a regular decimated subset of at most MaxRegular
// samples, in time order. A sample appears at most once.
func SelectSamples(samples []motion.Sample, peak float64) []motion.Sample {
	var peaks []int
	for i, s := range samples {
		if math.Abs(s.Y) > peak || math.Abs(s.Z) > peak {
			peaks = append(peaks, i)
		}
	}
	if len(peaks) > MaxPeaks {
		peaks = peaks[len(peaks)-MaxPeaks:]
	}

	step := max(1, len(samples)/MaxRegular)
	var regular []int
	for i := 0; i < len(samples); i += step {
		regular = append(regular, i)
	}
	if len(regular) > MaxRegular {
		regular = regular[len(regular)-MaxRegular:]
	}

	idx := append(peaks, regular...)
	slices.Sort(idx)
	idx = slices.Compact(idx)

	out := make([]motion.Sample, len(idx))
	for i, j := range idx {
		out[i] = samples[j]
	}
	slices.SortStableFunc(out, func(a, b motion.Sample) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return out
}

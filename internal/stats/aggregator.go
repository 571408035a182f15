// Package stats maintains the running statistics of a recording session.
//
// Every sample is folded into the internal running state, but the snapshot
// visible to observers is only republished every K samples. A snapshot may
// therefore lag the latest sample by up to K-1 samples; Flush publishes the
// exact state on demand.
package stats

import (
	"math"

	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/motion"
)

// DefaultDecimation is the republication period in samples.
const DefaultDecimation = 5

// Summary holds the aggregate values of a session.
type Summary struct {
	MaxVertical     float64 `json:"max_vertical"`
	MaxLateral      float64 `json:"max_lateral"`
	MeanMagnitude   float64 `json:"mean_magnitude"`
	DurationSeconds float64 `json:"duration_s"`
	CountLA         int     `json:"count_la"`
	CountLI         int     `json:"count_li"`
	CountLAI        int     `json:"count_lai"`
	StartTime       int64   `json:"start_time"` // unix milliseconds
	Samples         int     `json:"samples"`
}

// Alerts returns CountLA+CountLI+CountLAI.
func (s Summary) Alerts() int {
	return s.CountLA + s.CountLI + s.CountLAI
}

// Aggregator folds samples into a Summary.
type Aggregator struct {
	thresholds alert.Thresholds
	every      int

	running   Summary
	published Summary
}

// NewAggregator returns an aggregator classifying against th and publishing
// every `every` samples (DefaultDecimation when every < 1).
func NewAggregator(th alert.Thresholds, every int) *Aggregator {
	if every < 1 {
		every = DefaultDecimation
	}
	return &Aggregator{thresholds: th, every: every}
}

// Reset clears all state for a session starting at startTime (unix ms).
func (a *Aggregator) Reset(th alert.Thresholds, startTime int64) {
	a.thresholds = th
	a.running = Summary{StartTime: startTime}
	a.published = a.running
}

// Decimation returns the republication period.
func (a *Aggregator) Decimation() int { return a.every }

// Update folds s into the running state. seq is the 1-based position of s in
// the session buffer; the snapshot is republished when seq is a multiple of
// the decimation period. now is the host time in unix milliseconds and sets
// the duration; sample timestamps may use any device clock. It returns the
// (possibly unchanged) snapshot and whether it was republished.
func (a *Aggregator) Update(s motion.Sample, seq int, now int64) (Summary, bool) {
	r := &a.running
	r.Samples++
	r.MaxVertical = math.Max(r.MaxVertical, s.Vertical())
	r.MaxLateral = math.Max(r.MaxLateral, s.Lateral())
	r.MeanMagnitude += (s.Magnitude - r.MeanMagnitude) / float64(r.Samples)

	switch a.thresholds.Classify(s.Y) {
	case alert.LAI:
		r.CountLAI++
	case alert.LI:
		r.CountLI++
	case alert.LA:
		r.CountLA++
	}

	if seq%a.every != 0 {
		return a.published, false
	}
	return a.Flush(now), true
}

// Flush publishes the exact running state as of now (unix ms) and returns it.
func (a *Aggregator) Flush(now int64) Summary {
	a.running.DurationSeconds = math.Max(0, float64(now-a.running.StartTime)/1000)
	a.published = a.running
	return a.published
}

// Snapshot returns the last published summary.
func (a *Aggregator) Snapshot() Summary {
	return a.published
}

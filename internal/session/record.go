// Package session owns the recording lifecycle: the live sample buffer, the
// position/alert/statistics engines fed by it, and the bounded history of
// finalized records.
package session

import (
	"fmt"
	"time"

	"github.com/banshee-data/track.monitor/internal/alert"
	"github.com/banshee-data/track.monitor/internal/diagnosis"
	"github.com/banshee-data/track.monitor/internal/motion"
	"github.com/banshee-data/track.monitor/internal/position"
	"github.com/banshee-data/track.monitor/internal/stats"
)

// Track identifiers accepted in Config.Track.
var Tracks = []string{"LGV1", "LGV2", "V1", "V2", ""}

// Config is fixed when a session starts.
type Config struct {
	StartPosition float64            `json:"start_pk"`
	Direction     position.Direction `json:"direction"`
	Track         string             `json:"track"`
	alert.Thresholds

	Operator     string `json:"operator"`
	Line         string `json:"line"`
	Train        string `json:"train"`
	EngineNumber string `json:"engine_number"`
	CarPosition  string `json:"car_position"`
	Note         string `json:"note"`
}

// Normalize fills in default thresholds and direction and validates the result.
func (c Config) Normalize() (Config, error) {
	if c.Thresholds.IsZero() {
		c.Thresholds = alert.DefaultThresholds()
	}
	dir, err := position.ParseDirection(string(c.Direction))
	if err != nil {
		return c, err
	}
	c.Direction = dir
	if err := c.Thresholds.Validate(); err != nil {
		return c, err
	}
	for _, t := range Tracks {
		if c.Track == t {
			return c, nil
		}
	}
	return c, fmt.Errorf("unknown track %q", c.Track)
}

// Stats is the configuration of a session together with its aggregates.
type Stats struct {
	Config
	stats.Summary
}

// Source tells recorded and imported records apart.
type Source string

const (
	Recorded Source = "recorded"
	Imported Source = "imported"
)

// Record is a snapshot of a finished session. Records handed out by the
// Store are deep copies; changing one never alters the stored history.
type Record struct {
	ID       string              `json:"id"`
	Date     time.Time           `json:"date"`
	Source   Source              `json:"source"`
	Stats    Stats               `json:"stats"`
	Samples  []motion.Sample     `json:"data"`
	Analysis *diagnosis.Analysis `json:"analysis"`
}

// LastPosition returns the PK of the last tagged sample, or the start PK.
func (r Record) LastPosition() float64 {
	for i := len(r.Samples) - 1; i >= 0; i-- {
		if r.Samples[i].Position != nil {
			return *r.Samples[i].Position
		}
	}
	return r.Stats.StartPosition
}

// Clone returns a copy of r that shares no samples, positions or analysis
// with it.
func (r Record) Clone() Record {
	if r.Samples != nil {
		samples := make([]motion.Sample, len(r.Samples))
		for i, smp := range r.Samples {
			if smp.Position != nil {
				smp.Position = motion.Float(*smp.Position)
			}
			samples[i] = smp
		}
		r.Samples = samples
	}
	if r.Analysis != nil {
		a := *r.Analysis
		r.Analysis = &a
	}
	return r
}

// WithoutSamples returns a shallow copy of r with no samples, for listings.
func (r Record) WithoutSamples() Record {
	r.Samples = nil
	return r
}

// DiagnosisRequest shapes r for the diagnosis collaborator.
func (r Record) DiagnosisRequest() (diagnosis.Request, error) {
	meta := diagnosis.Request{
		Line:       r.Stats.Line,
		Track:      r.Stats.Track,
		Train:      r.Stats.Train,
		Direction:  string(r.Stats.Direction),
		Thresholds: r.Stats.Thresholds,
		Summary:    r.Stats.Summary,
	}
	return diagnosis.NewRequest(r.ID, meta, r.Samples)
}

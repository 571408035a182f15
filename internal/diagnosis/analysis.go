// Package diagnosis defines the result returned by the external diagnosis
// service and the client used to request it. The session store keeps the
// result as an opaque value and never interprets its content.
package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
)

// Level is the compliance verdict of a diagnosis.
type Level string

const (
	Conforme     Level = "Conforme"
	Surveillance Level = "Surveillance"
	Critique     Level = "Critique"
)

// Analysis is a diagnosis result as produced by the collaborator.
type Analysis struct {
	ActivityType       string   `json:"activityType"`
	IntensityScore     float64  `json:"intensityScore"`
	SeverityLevel      Level    `json:"complianceLevel"`
	Observations       []string `json:"observations"`
	Recommendation     string   `json:"recommendations"`
	AnomalousPositions []string `json:"anomalousPKs"`

	// Extra holds every other field of the document so that it survives a
	// decode and re-encode unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

var analysisFields = []string{
	"activityType", "intensityScore", "complianceLevel",
	"observations", "recommendations", "anomalousPKs",
}

type analysisFieldsOnly Analysis

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (a *Analysis) UnmarshalJSON(b []byte) error {
	var known analysisFieldsOnly
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, f := range analysisFields {
		delete(all, f)
	}
	*a = Analysis(known)
	a.Extra = nil
	if len(all) > 0 {
		a.Extra = all
	}
	return nil
}

// MarshalJSON encodes the known fields merged with Extra.
func (a Analysis) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(analysisFieldsOnly(a))
	if err != nil || len(a.Extra) == 0 {
		return b, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	extra := maps.Clone(a.Extra)
	for _, f := range analysisFields {
		delete(extra, f)
	}
	maps.Copy(all, extra)
	return json.Marshal(all)
}

// ErrTooFewSamples is returned when a record is too short to be diagnosed.
var ErrTooFewSamples = errors.New("too few samples for diagnosis")

// MinSamples is the smallest record that will be sent for diagnosis.
const MinSamples = 10

// Diagnoser requests a diagnosis for a recorded run.
type Diagnoser interface {
	Diagnose(ctx context.Context, req Request) (*Analysis, error)
}

// DiagnoserFunc adapts a function to Diagnoser.
type DiagnoserFunc func(ctx context.Context, req Request) (*Analysis, error)

// Diagnose calls f.
func (f DiagnoserFunc) Diagnose(ctx context.Context, req Request) (*Analysis, error) {
	return f(ctx, req)
}
